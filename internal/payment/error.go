package payment

import "errors"

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrInvalidStatus    = errors.New("invalid payment status")
	ErrDuplicatePayment = errors.New("payment with this provider order id already exists")

	PgUniqueViolation = "23505"
)
