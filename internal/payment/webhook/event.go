package webhook

import "encoding/json"

const (
	EventSaleCompleted  = "PAYMENT.SALE.COMPLETED"
	EventOrderApproved  = "CHECKOUT.ORDER.APPROVED"
	EventOrderCompleted = "CHECKOUT.ORDER.COMPLETED"
)

// Event is a REST webhook delivery. Only the fields used for correlation are
// decoded; the raw body is kept for the audit table.
type Event struct {
	ID           string          `json:"id"`
	Type         string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

func (e Event) EventType() string {
	return e.Type
}

type resource struct {
	ID            string `json:"id"`
	ParentPayment string `json:"parent_payment"`
	Status        string `json:"status"`
}

func (e Event) resource() resource {
	var r resource
	_ = json.Unmarshal(e.Resource, &r)
	return r
}

// ProviderOrderID is the identifier the payment is stored under. v1 sale
// events carry it as parent_payment, v2 order events as the resource id.
func (e Event) ProviderOrderID() string {
	r := e.resource()
	if e.Type == EventSaleCompleted {
		return r.ParentPayment
	}
	return r.ID
}
