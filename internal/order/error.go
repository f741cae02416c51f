package order

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrCartConsumed means another request already turned the cart into an order.
	ErrCartConsumed = errors.New("cart already consumed")
	ErrCartEmpty    = errors.New("cart is empty")
	// ErrPaymentLinked means the settled payment already points at an order.
	ErrPaymentLinked = errors.New("payment already linked to an order")
)
