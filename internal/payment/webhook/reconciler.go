package webhook

import (
	"context"
	"errors"

	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/metrics"
	"paypal-bridge/internal/notification"
	"paypal-bridge/internal/payment"

	"go.uber.org/zap"
)

// Reconciler appends payment entries for REST webhook events.
type Reconciler struct {
	payments   payment.Repository
	metrics    *metrics.Registry
	dispatcher *notification.Dispatcher[Event]
}

func NewReconciler(payments payment.Repository, m *metrics.Registry) *Reconciler {
	r := &Reconciler{
		payments:   payments,
		metrics:    m,
		dispatcher: notification.NewDispatcher[Event](),
	}
	r.dispatcher.Register(EventSaleCompleted, r.appendStatus(payment.StatusCompleted))
	r.dispatcher.Register(EventOrderApproved, r.appendStatus(payment.StatusApproved))
	r.dispatcher.Register(EventOrderCompleted, r.appendStatus(payment.StatusCompleted))
	return r
}

func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (bool, error) {
	return r.dispatcher.Reconcile(ctx, ev)
}

// appendStatus records status for the payment the event refers to. Unknown
// payments are ignored since nobody is waiting on the answer.
func (r *Reconciler) appendStatus(status payment.Status) notification.HandlerFunc[Event] {
	return func(ctx context.Context, ev Event) error {
		id := ev.ProviderOrderID()
		log := logger.FromCtx(ctx).With(
			zap.String("event_type", ev.Type),
			zap.String("event_id", ev.ID),
			zap.String("provider_order_id", id),
		)

		if id == "" {
			log.Warn("Webhook event without resource id")
			r.metrics.Inc(metrics.WebhookIgnored)
			return nil
		}

		p, err := r.payments.GetByProviderOrderID(ctx, id)
		if errors.Is(err, payment.ErrPaymentNotFound) {
			log.Warn("Webhook for unknown payment")
			r.metrics.Inc(metrics.WebhookIgnored)
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := r.payments.AppendEntry(ctx, p.ID, status); err != nil {
			return err
		}

		log.Info("Payment entry appended from webhook", zap.String("status", string(status)))
		return nil
	}
}
