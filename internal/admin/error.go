package admin

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingSecret      = errors.New("JWT_SECRET is not set")
	ErrInvalidToken       = errors.New("invalid token")
)
