package ledger

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// User is referenced by id from properties (owner) and transactions (buyer, seller).
type User struct {
	ID        uuid.UUID
	Username  string
	Email     string
	FullName  string
	Role      Role
	CreatedAt time.Time
}

func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAgent, RoleAdmin:
		return true
	}

	return false
}
