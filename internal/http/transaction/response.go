package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/estatebank/internal/ledger"
)

type moneyResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type transactionResponse struct {
	ID            uuid.UUID                `json:"id"`
	PropertyID    uuid.UUID                `json:"property_id"`
	BuyerID       uuid.UUID                `json:"buyer_id"`
	SellerID      uuid.UUID                `json:"seller_id"`
	Amount        moneyResponse            `json:"amount"`
	Status        ledger.TransactionStatus `json:"status"`
	FailureReason string                   `json:"failure_reason,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
	Version       int64                    `json:"version"`
}

type eventResponse struct {
	ID            uuid.UUID        `json:"id"`
	TransactionID *uuid.UUID       `json:"transaction_id,omitempty"`
	PropertyID    uuid.UUID        `json:"property_id"`
	Kind          ledger.EventKind `json:"kind"`
	From          string           `json:"from,omitempty"`
	To            string           `json:"to,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

func toResponse(t *ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:         t.ID,
		PropertyID: t.PropertyID,
		BuyerID:    t.BuyerID,
		SellerID:   t.SellerID,
		Amount: moneyResponse{
			Amount:   t.Amount.Amount.StringFixed(2),
			Currency: t.Amount.Currency,
		},
		Status:        t.Status,
		FailureReason: t.FailureReason,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		Version:       t.Version,
	}
}

func toResponseList(txs []*ledger.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, t := range txs {
		resp[i] = toResponse(t)
	}

	return resp
}

func toEventList(events []*ledger.Event) []eventResponse {
	resp := make([]eventResponse, len(events))
	for i, e := range events {
		resp[i] = eventResponse{
			ID:            e.ID,
			TransactionID: e.TransactionID,
			PropertyID:    e.PropertyID,
			Kind:          e.Kind,
			From:          e.FromStatus,
			To:            e.ToStatus,
			Reason:        e.Reason,
			CreatedAt:     e.CreatedAt,
		}
	}

	return resp
}
