package checkout

import "errors"

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrMissingCustomer = errors.New("customer data missing")
	ErrCaptureFailed   = errors.New("capture did not complete")
)
