package checkout

import (
	"paypal-bridge/internal/order"
	"paypal-bridge/internal/payment"
)

type InitiateResult struct {
	Payment    *payment.Payment
	ApproveURL string
}

type CaptureResult struct {
	Payment *payment.Payment
	// Order is nil when the capture was a repeat of an already handled one.
	Order     *order.Order
	Duplicate bool
}
