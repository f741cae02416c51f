package paypal

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	StatusCompleted = "COMPLETED"

	IntentCapture = "CAPTURE"
)

type Address struct {
	FullName    string
	Line1       string
	Line2       string
	City        string
	State       string
	PostalCode  string
	CountryCode string
}

// CreateOrderRequest is what the shop knows about a checkout attempt.
type CreateOrderRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
	Shipping    Address
	ReturnURL   string
	CancelURL   string
}

type CreatedOrder struct {
	ID         string
	Status     string
	ApproveURL string
}

type Capture struct {
	ID      string
	Status  string
	PayerID string
	Raw     json.RawMessage
}

func (c *Capture) Completed() bool {
	return c != nil && c.Status == StatusCompleted
}

type PDTResult struct {
	Success bool
	Fields  map[string]string
}

// PayLinkParams feeds the legacy _xclick redirect.
type PayLinkParams struct {
	Business  string
	Currency  string
	NotifyURL string
	ReturnURL string
	Invoice   Address
	FirstName string
	LastName  string
	OrderUUID string
	ItemName  string
	Amount    decimal.Decimal
	Tax       decimal.Decimal
}

// wire types

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type shippingName struct {
	FullName string `json:"full_name"`
}

type shippingAddress struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	AdminArea2   string `json:"admin_area_2,omitempty"`
	AdminArea1   string `json:"admin_area_1,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryCode  string `json:"country_code"`
}

type shipping struct {
	Name    shippingName    `json:"name"`
	Address shippingAddress `json:"address"`
}

type purchaseUnit struct {
	ReferenceID string    `json:"reference_id"`
	Amount      money     `json:"amount"`
	Shipping    *shipping `json:"shipping,omitempty"`
}

type applicationContext struct {
	ReturnURL          string `json:"return_url"`
	CancelURL          string `json:"cancel_url"`
	ShippingPreference string `json:"shipping_preference"`
	UserAction         string `json:"user_action"`
}

type orderPayload struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
	Payer  struct {
		PayerID string `json:"payer_id"`
	} `json:"payer"`
}

type verifySignaturePayload struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifySignatureResponse struct {
	VerificationStatus string `json:"verification_status"`
}
