package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

var ErrInvalidUser = errors.New("invalid user")

type Service struct {
	store ledger.Store
	now   func() time.Time
}

func NewService(store ledger.Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type CreateParams struct {
	Username string
	Email    string
	FullName string
	Role     ledger.Role
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*ledger.User, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}

	addr, err := mail.ParseAddress(params.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidUser, params.Email)
	}

	role := params.Role
	if role == "" {
		role = ledger.RoleBuyer
	}

	if !role.Valid() {
		return nil, fmt.Errorf("%w: role %q", ErrInvalidUser, role)
	}

	u := &ledger.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     strings.ToLower(addr.Address),
		FullName:  strings.TrimSpace(params.FullName),
		Role:      role,
		CreatedAt: s.now(),
	}

	err = s.store.Update(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.CreateUser(ctx, u)
	})
	if err != nil {
		return nil, fmt.Errorf("creating user %s: %w", username, err)
	}

	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ledger.User, error) {
	return s.store.GetUser(ctx, id)
}
