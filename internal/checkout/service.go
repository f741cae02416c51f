package checkout

import (
	"context"
	"errors"
	"fmt"

	"paypal-bridge/internal/cart"
	"paypal-bridge/internal/event"
	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/metrics"
	"paypal-bridge/internal/order"
	"paypal-bridge/internal/payment"
	"paypal-bridge/internal/paypal"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	// Initiate creates the PayPal order for the session's cart and stores a
	// pending payment. Nothing is stored when PayPal rejects the order.
	Initiate(ctx context.Context, sessionKey, baseURL string) (*InitiateResult, error)
	// Capture finalizes the payment identified by the approval token. It is
	// safe to call repeatedly for the same token.
	Capture(ctx context.Context, sessionKey, token string) (*CaptureResult, error)
}

type service struct {
	carts     cart.Repository
	orders    order.Repository
	payments  payment.Repository
	gateway   paypal.Gateway
	publisher event.Publisher
	metrics   *metrics.Registry

	newTemporaryID func() string
}

func NewService(
	carts cart.Repository,
	orders order.Repository,
	payments payment.Repository,
	gateway paypal.Gateway,
	publisher event.Publisher,
	m *metrics.Registry,
) Service {
	return &service{
		carts:          carts,
		orders:         orders,
		payments:       payments,
		gateway:        gateway,
		publisher:      publisher,
		metrics:        m,
		newTemporaryID: func() string { return uuid.New().String() },
	}
}

func (s *service) Initiate(ctx context.Context, sessionKey, baseURL string) (*InitiateResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("session_key", sessionKey))

	if sessionKey == "" {
		return nil, ErrEmptyCart
	}

	c, err := s.carts.GetActiveCart(ctx, sessionKey)
	if errors.Is(err, cart.ErrCartNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	cust, err := s.carts.GetCustomer(ctx, sessionKey)
	if errors.Is(err, cart.ErrCustomerNotFound) {
		return nil, ErrMissingCustomer
	}
	if err != nil {
		return nil, err
	}

	total := cart.GrossTotal(c, cust)

	token, err := s.gateway.AccessToken(ctx)
	if err != nil {
		s.metrics.Inc(metrics.CheckoutFailed)
		return nil, err
	}

	temporaryID := s.newTemporaryID()
	log = log.With(zap.String("temporary_order_id", temporaryID))

	created, err := s.gateway.CreateOrder(ctx, token, paypal.CreateOrderRequest{
		ReferenceID: temporaryID,
		Amount:      total,
		Currency:    cust.Currency,
		Shipping:    toPayPalAddress(cust.ShippingAddress),
		ReturnURL:   baseURL + "/capture-payment/",
		CancelURL:   baseURL + "/payment-cancelled/",
	})
	if err != nil {
		// No payment is stored for a rejected order
		s.metrics.Inc(metrics.CheckoutFailed)
		log.Warn("PayPal order creation failed", zap.Error(err))
		return nil, err
	}

	p := &payment.Payment{
		TemporaryOrderID: temporaryID,
		ProviderOrderID:  created.ID,
		Amount:           total,
		Currency:         cust.Currency,
	}
	if err := s.payments.Create(ctx, p, payment.StatusPending); err != nil {
		s.metrics.Inc(metrics.CheckoutFailed)
		log.Error("Failed to store payment", zap.String("provider_order_id", created.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}

	s.metrics.Inc(metrics.CheckoutCreated)
	log.Info("Checkout initiated",
		zap.String("provider_order_id", created.ID),
		zap.String("amount", total.StringFixed(2)),
		zap.String("currency", cust.Currency),
	)

	return &InitiateResult{Payment: p, ApproveURL: created.ApproveURL}, nil
}

func (s *service) Capture(ctx context.Context, sessionKey, token string) (*CaptureResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("provider_order_id", token))

	if token == "" {
		return nil, payment.ErrPaymentNotFound
	}

	p, err := s.payments.GetByProviderOrderID(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.OrderID != nil {
		return s.duplicate(log, p), nil
	}

	accessToken, err := s.gateway.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	capture, err := s.gateway.CaptureOrder(ctx, accessToken, token)
	if err != nil || !capture.Completed() {
		if _, appendErr := s.payments.AppendEntry(ctx, p.ID, payment.StatusFailed); appendErr != nil {
			log.Error("Failed to append failed entry", zap.Error(appendErr))
		}
		s.metrics.Inc(metrics.CaptureFailed)

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		}
		log.Warn("Capture returned non-completed status", zap.String("status", capture.Status))
		return nil, fmt.Errorf("%w: status %s", ErrCaptureFailed, capture.Status)
	}

	c, err := s.carts.GetActiveCart(ctx, sessionKey)
	if errors.Is(err, cart.ErrCartNotFound) {
		return s.duplicate(log, p), nil
	}
	if err != nil {
		return nil, err
	}

	cust, err := s.carts.GetCustomer(ctx, sessionKey)
	if errors.Is(err, cart.ErrCustomerNotFound) {
		log.Warn("Customer data missing at capture, creating order without addresses")
		cust = &cart.Customer{SessionKey: sessionKey, Currency: p.Currency}
	} else if err != nil {
		return nil, err
	}

	settle := &order.Settlement{
		PaymentID:   p.ID,
		PayerID:     capture.PayerID,
		EntryStatus: string(payment.StatusCompleted),
	}
	o, err := s.orders.CreateFromCart(ctx, c, cust, order.StatePaid, settle)
	if errors.Is(err, order.ErrCartConsumed) || errors.Is(err, order.ErrPaymentLinked) {
		return s.duplicate(log, p), nil
	}
	if err != nil {
		log.Error("Failed to create order for captured payment", zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	log = log.With(zap.String("order_uuid", o.UUID))

	p.OrderID = &o.ID
	if capture.PayerID != "" {
		p.PayerID = capture.PayerID
	}
	p.Entries = append(p.Entries, payment.Entry{
		ID:        settle.EntryID,
		PaymentID: p.ID,
		Status:    payment.StatusCompleted,
		CreatedAt: settle.EntryCreatedAt,
	})

	for _, ev := range []order.Event{order.EventSubmitted, order.EventPaid} {
		if err := event.PublishOrder(ctx, s.publisher, ev, o); err != nil {
			log.Error("Failed to publish order event", zap.String("event", string(ev)), zap.Error(err))
		}
	}

	s.metrics.Inc(metrics.CaptureCompleted)
	log.Info("Payment captured")

	return &CaptureResult{Payment: p, Order: o}, nil
}

func (s *service) duplicate(log *zap.Logger, p *payment.Payment) *CaptureResult {
	s.metrics.Inc(metrics.CaptureDuplicate)
	log.Info("Capture already handled")
	return &CaptureResult{Payment: p, Duplicate: true}
}

func toPayPalAddress(a cart.Address) paypal.Address {
	return paypal.Address{
		FullName:    a.FullName(),
		Line1:       a.Line1,
		Line2:       a.Line2,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.ZipCode,
		CountryCode: a.CountryCode,
	}
}
