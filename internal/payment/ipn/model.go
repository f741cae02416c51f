package ipn

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Signals raised by the legacy endpoints.
const (
	SignalPaymentSuccessful = "payment_was_successful"
	SignalPaymentFlagged    = "payment_was_flagged"
	SignalPDTSuccessful     = "pdt_successful"
	SignalPDTFailed         = "pdt_failed"
)

// StatusCompleted is PayPal's payment_status for a finished payment.
const StatusCompleted = "Completed"

const postbackVerified = "VERIFIED"

// Notification is one IPN or PDT message. Custom carries the shop order uuid.
type Notification struct {
	ID            int64
	TxnID         string
	TxnType       string
	Custom        string
	Invoice       string
	PaymentStatus string
	ReceiverEmail string
	PayerID       string
	PayerEmail    string
	McGross       decimal.Decimal
	McCurrency    string
	Flag          bool
	FlagInfo      string
	Query         string
	Signal        string
	CreatedAt     time.Time
}

func (n *Notification) EventType() string {
	return n.Signal
}

// SetFlag marks the notification as not trustworthy.
func (n *Notification) SetFlag(info string) {
	n.Flag = true
	if n.FlagInfo != "" {
		n.FlagInfo += " "
	}
	n.FlagInfo += info
}

// ParseNotification reads an IPN form body.
func ParseNotification(raw string) (*Notification, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid ipn body: %w", err)
	}

	n := fromValues(func(k string) string { return values.Get(k) })
	n.Query = raw

	if gross := values.Get("mc_gross"); gross != "" {
		d, err := decimal.NewFromString(gross)
		if err != nil {
			return nil, fmt.Errorf("invalid mc_gross %q: %w", gross, err)
		}
		n.McGross = d
	}
	return n, nil
}

// FromPDT builds a notification from the key/value lines of a PDT answer.
func FromPDT(fields map[string]string) *Notification {
	n := fromValues(func(k string) string { return fields[k] })
	if d, err := decimal.NewFromString(fields["mc_gross"]); err == nil {
		n.McGross = d
	}
	return n
}

func fromValues(get func(string) string) *Notification {
	return &Notification{
		TxnID:         get("txn_id"),
		TxnType:       get("txn_type"),
		Custom:        get("custom"),
		Invoice:       get("invoice"),
		PaymentStatus: get("payment_status"),
		ReceiverEmail: get("receiver_email"),
		PayerID:       get("payer_id"),
		PayerEmail:    get("payer_email"),
		McCurrency:    get("mc_currency"),
	}
}

// signalFor picks the signal an IPN raises once verification is done.
func signalFor(n *Notification) string {
	switch {
	case n.Flag:
		return SignalPaymentFlagged
	case n.PaymentStatus == StatusCompleted:
		return SignalPaymentSuccessful
	}
	return ""
}

// verify flags n when the postback answer or the receiver do not match.
func verify(n *Notification, postback, receiverEmail string) {
	if postback != postbackVerified {
		n.SetFlag(fmt.Sprintf("Invalid postback. (%s)", postback))
	}
	if receiverEmail != "" && !strings.EqualFold(n.ReceiverEmail, receiverEmail) {
		n.SetFlag(fmt.Sprintf("Invalid receiver_email. (%s)", n.ReceiverEmail))
	}
}
