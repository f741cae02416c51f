package cart

import "errors"

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrFailedGetCart    = errors.New("failed to get cart")
)
