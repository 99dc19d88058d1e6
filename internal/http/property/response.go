package property

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/importer"
	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

type moneyResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type propertyResponse struct {
	ID        uuid.UUID             `json:"id"`
	Title     string                `json:"title"`
	Address   string                `json:"address,omitempty"`
	Country   string                `json:"country"`
	Price     moneyResponse         `json:"price"`
	Status    ledger.PropertyStatus `json:"status"`
	OwnerID   *uuid.UUID            `json:"owner_id,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	Version   int64                 `json:"version"`
}

type importResponse struct {
	Format   string             `json:"format"`
	Charset  string             `json:"charset"`
	Imported int                `json:"imported"`
	Listings []propertyResponse `json:"listings"`
}

func toResponse(p *ledger.Property) propertyResponse {
	return propertyResponse{
		ID:      p.ID,
		Title:   p.Title,
		Address: p.Address,
		Country: p.Country,
		Price: moneyResponse{
			Amount:   p.Price.Amount.StringFixed(2),
			Currency: p.Price.Currency,
		},
		Status:    p.Status,
		OwnerID:   p.OwnerID,
		CreatedAt: p.CreatedAt,
		Version:   p.Version,
	}
}

func toResponseList(props []*ledger.Property) []propertyResponse {
	resp := make([]propertyResponse, len(props))
	for i, p := range props {
		resp[i] = toResponse(p)
	}

	return resp
}

func toImportResponse(s *importer.Summary) importResponse {
	return importResponse{
		Format:   s.Format,
		Charset:  s.Charset,
		Imported: len(s.Created),
		Listings: toResponseList(s.Created),
	}
}
