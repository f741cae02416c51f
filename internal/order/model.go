package order

import (
	"time"

	"paypal-bridge/internal/cart"

	"github.com/shopspring/decimal"
)

type State string

const (
	StateSubmitted      State = "submitted"
	StatePaid           State = "paid"
	StatePaymentFailed  State = "payment_failed"
	StatePaymentFlagged State = "payment_flagged"
	StateCancelled      State = "cancelled"
)

// Order is the shop's order record. This service creates it on capture and
// moves its state on provider notifications; everything else belongs to the shop.
type Order struct {
	ID              int64
	UUID            string
	SessionKey      string
	CustomerEmail   string
	State           State
	Price           decimal.Decimal
	Tax             decimal.Decimal
	Currency        string
	ShippingAddress cart.Address
	InvoiceAddress  cart.Address
	Items           []Item
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Settlement is a captured payment recorded in the same transaction as the
// order it paid for. The entry fields are filled on success.
type Settlement struct {
	PaymentID   int64
	PayerID     string
	EntryStatus string

	EntryID        int64
	EntryCreatedAt time.Time
}

type Item struct {
	ProductID   int64
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
	Tax         decimal.Decimal
}

// Net is the order price without tax.
func (o *Order) Net() decimal.Decimal {
	return o.Price.Sub(o.Tax)
}
