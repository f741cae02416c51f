package order

// Event names a notification the shop should receive about an order.
type Event string

const (
	EventSubmitted        Event = "order.submitted"
	EventPaid             Event = "order.paid"
	EventReceiptRequested Event = "order.receipt_requested"
)

// Transition is the outcome of ApplyState.
type Transition struct {
	Order  Order
	Prior  State
	Events []Event
}

// Fires reports whether the transition produced e.
func (t Transition) Fires(e Event) bool {
	for _, ev := range t.Events {
		if ev == e {
			return true
		}
	}
	return false
}

// ApplyState moves o to next and returns which notifications follow from the
// move. The paid notification fires only on the first transition into paid,
// so redelivered payment confirmations stay silent.
func ApplyState(o Order, next State) Transition {
	t := Transition{Prior: o.State}

	if o.State != StatePaid && next == StatePaid {
		t.Events = append(t.Events, EventPaid)
	}

	o.State = next
	t.Order = o
	return t
}
