package ipn

import (
	"context"
	"errors"

	"paypal-bridge/internal/event"
	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/metrics"
	"paypal-bridge/internal/notification"
	"paypal-bridge/internal/order"

	"go.uber.org/zap"
)

// Reconciler moves shop orders according to IPN and PDT signals.
type Reconciler struct {
	orders            order.Repository
	store             Repository
	publisher         event.Publisher
	metrics           *metrics.Registry
	sendMailOnPayment bool

	dispatcher *notification.Dispatcher[*Notification]
}

func NewReconciler(
	orders order.Repository,
	store Repository,
	publisher event.Publisher,
	m *metrics.Registry,
	sendMailOnPayment bool,
) *Reconciler {
	r := &Reconciler{
		orders:            orders,
		store:             store,
		publisher:         publisher,
		metrics:           m,
		sendMailOnPayment: sendMailOnPayment,
		dispatcher:        notification.NewDispatcher[*Notification](),
	}
	r.dispatcher.Register(SignalPaymentSuccessful, r.successfulPayment)
	r.dispatcher.Register(SignalPaymentFlagged, r.unsuccessfulPayment)
	r.dispatcher.Register(SignalPDTSuccessful, r.successfulPDT)
	r.dispatcher.Register(SignalPDTFailed, r.failedPDT)
	return r
}

func (r *Reconciler) Reconcile(ctx context.Context, n *Notification) (bool, error) {
	return r.dispatcher.Reconcile(ctx, n)
}

// MarkPayment sets the state of the order named by n.Custom. A missing order
// is logged and yields a nil order without error.
func (r *Reconciler) MarkPayment(ctx context.Context, n *Notification, desired order.State) (*order.Order, error) {
	log := logger.FromCtx(ctx).With(zap.String("order_uuid", n.Custom), zap.String("txn_id", n.TxnID))

	o, err := r.orders.GetByUUID(ctx, n.Custom)
	if errors.Is(err, order.ErrOrderNotFound) {
		log.Error("No order for notification")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// The stored prior state decides the paid event, not the earlier read
	prior, err := r.orders.UpdateState(ctx, o.ID, desired)
	if err != nil {
		return nil, err
	}
	o.State = prior
	t := order.ApplyState(*o, desired)
	r.metrics.Inc(metrics.OrderStateChanged)
	log.Info("Order state changed",
		zap.String("from", string(t.Prior)),
		zap.String("to", string(desired)),
	)

	if t.Fires(order.EventPaid) {
		r.publish(ctx, log, order.EventPaid, &t.Order)
		if r.sendMailOnPayment {
			r.publish(ctx, log, order.EventReceiptRequested, &t.Order)
		}
	}
	return &t.Order, nil
}

func (r *Reconciler) publish(ctx context.Context, log *zap.Logger, ev order.Event, o *order.Order) {
	if err := event.PublishOrder(ctx, r.publisher, ev, o); err != nil {
		log.Error("Failed to publish order event", zap.String("event", string(ev)), zap.Error(err))
	}
}

func (r *Reconciler) successfulPayment(ctx context.Context, n *Notification) error {
	o, err := r.MarkPayment(ctx, n, order.StatePaid)
	if err != nil {
		return err
	}
	return r.attach(ctx, n, o)
}

func (r *Reconciler) unsuccessfulPayment(ctx context.Context, n *Notification) error {
	r.metrics.Inc(metrics.IPNFlagged)

	state := order.StatePaymentFailed
	if n.PaymentStatus == StatusCompleted {
		state = order.StatePaymentFlagged
	}

	o, err := r.MarkPayment(ctx, n, state)
	if err != nil {
		return err
	}
	return r.attach(ctx, n, o)
}

func (r *Reconciler) successfulPDT(ctx context.Context, n *Notification) error {
	_, err := r.MarkPayment(ctx, n, order.StatePaid)
	return err
}

func (r *Reconciler) failedPDT(ctx context.Context, n *Notification) error {
	_, err := r.MarkPayment(ctx, n, order.StatePaymentFailed)
	return err
}

func (r *Reconciler) attach(ctx context.Context, n *Notification, o *order.Order) error {
	if o == nil {
		logger.FromCtx(ctx).Warn("Notification not attached, no order found", zap.String("order_uuid", n.Custom))
		return nil
	}
	if n.ID == 0 {
		return nil
	}
	return r.store.AttachToOrder(ctx, o.ID, n.ID)
}
