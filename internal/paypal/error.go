package paypal

import "errors"

var (
	ErrAuthFailed      = errors.New("paypal: failed to obtain access token")
	ErrProviderRequest = errors.New("paypal: request failed")
	ErrNoApproveLink   = errors.New("paypal: order has no approval link")
)
