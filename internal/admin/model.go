package admin

import (
	"time"

	"paypal-bridge/internal/payment"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type EntryResponse struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentResponse struct {
	ID               int64           `json:"id"`
	TemporaryOrderID string          `json:"temporary_order_id"`
	ProviderOrderID  string          `json:"provider_order_id"`
	PayerID          string          `json:"payer_id,omitempty"`
	Amount           string          `json:"amount"`
	Currency         string          `json:"currency"`
	OrderID          *int64          `json:"order_id,omitempty"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Entries          []EntryResponse `json:"entries,omitempty"`
}

type PaymentListResponse struct {
	Items []PaymentResponse `json:"items"`
	Limit int               `json:"limit"`
	Page  int               `json:"page"`
}

func toPaymentResponse(p *payment.Payment, status payment.Status) PaymentResponse {
	res := PaymentResponse{
		ID:               p.ID,
		TemporaryOrderID: p.TemporaryOrderID,
		ProviderOrderID:  p.ProviderOrderID,
		PayerID:          p.PayerID,
		Amount:           p.Amount.StringFixed(2),
		Currency:         p.Currency,
		OrderID:          p.OrderID,
		Status:           string(status),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	for _, e := range p.Entries {
		res.Entries = append(res.Entries, EntryResponse{
			ID:        e.ID,
			Status:    string(e.Status),
			CreatedAt: e.CreatedAt,
		})
	}
	return res
}
