package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Payment is one checkout attempt against PayPal.
type Payment struct {
	ID int64
	// TemporaryOrderID is minted locally before the PayPal order exists.
	TemporaryOrderID string
	// ProviderOrderID is the PayPal order id, unique across payments.
	ProviderOrderID string
	PayerID         string
	Amount          decimal.Decimal
	Currency        string
	// OrderID is set once, on the first successful capture.
	OrderID   *int64
	CreatedAt time.Time
	UpdatedAt time.Time

	// Entries is only filled by reads that load history, oldest first.
	Entries []Entry
}

// Entry is an immutable status record. The newest entry is the payment's
// current status.
type Entry struct {
	ID        int64
	PaymentID int64
	Status    Status
	CreatedAt time.Time
}

// CurrentStatus returns the status of the latest loaded entry, or "" when the
// history is empty.
func (p *Payment) CurrentStatus() Status {
	var latest *Entry
	for i := range p.Entries {
		e := &p.Entries[i]
		if latest == nil ||
			e.CreatedAt.After(latest.CreatedAt) ||
			(e.CreatedAt.Equal(latest.CreatedAt) && e.ID > latest.ID) {
			latest = e
		}
	}
	if latest == nil {
		return ""
	}
	return latest.Status
}

// Summary is a listing row for the reporting surface.
type Summary struct {
	Payment
	Status Status
}

type Filter struct {
	Currency string
	// Search matches provider order id, payer id or order id.
	Search string
	Limit  int
	Page   int
}

// WebhookEvent is the audit row of one REST webhook delivery.
type WebhookEvent struct {
	EventID        string
	EventType      string
	ResourceID     string
	Payload        []byte
	SignatureValid bool
}
