package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"paypal-bridge/internal/cart"
	"paypal-bridge/internal/metrics"
	"paypal-bridge/internal/order"
	"paypal-bridge/internal/payment"
	"paypal-bridge/internal/paypal"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	carts     *MockCartRepository
	orders    *MockOrderRepository
	payments  *MockPaymentRepository
	gateway   *MockGateway
	publisher *recordingPublisher
	metrics   *metrics.Registry
	svc       *service
}

func newFixture() *fixture {
	f := &fixture{
		carts:     new(MockCartRepository),
		orders:    new(MockOrderRepository),
		payments:  new(MockPaymentRepository),
		gateway:   new(MockGateway),
		publisher: &recordingPublisher{},
		metrics:   metrics.NewRegistry(),
	}
	f.svc = NewService(f.carts, f.orders, f.payments, f.gateway, f.publisher, f.metrics).(*service)
	f.svc.newTemporaryID = func() string { return "tmp-0001" }
	return f
}

func tenEuroCart() (*cart.Cart, *cart.Customer) {
	c := &cart.Cart{
		ID:         7,
		SessionKey: "sess-1",
		Items: []cart.Item{
			{ProductID: 1, ProductName: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("4.50")},
		},
	}
	cust := &cart.Customer{
		SessionKey:    "sess-1",
		Email:         "john@doe.com",
		ShippingPrice: decimal.RequireFromString("1.00"),
		Currency:      "EUR",
		ShippingAddress: cart.Address{
			FirstName: "John", LastName: "Doe", Line1: "Street 42",
			City: "Gotham City", ZipCode: "2342", CountryCode: "IE",
		},
	}
	return c, cust
}

func TestService_Initiate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_TenEuro", func(t *testing.T) {
		f := newFixture()
		c, cust := tenEuroCart()

		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(cust, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CreateOrder", ctx, "tok", mock.MatchedBy(func(req paypal.CreateOrderRequest) bool {
			return req.ReferenceID == "tmp-0001" &&
				req.Amount.Equal(decimal.RequireFromString("10.00")) &&
				req.Currency == "EUR" &&
				req.ReturnURL == "https://shop.example/capture-payment/" &&
				req.CancelURL == "https://shop.example/payment-cancelled/" &&
				req.Shipping.FullName == "John Doe" &&
				req.Shipping.PostalCode == "2342"
		})).Return(&paypal.CreatedOrder{ID: "PP-ORDER-1", ApproveURL: "https://pp/approve"}, nil)
		f.payments.On("Create", ctx, mock.AnythingOfType("*payment.Payment"), payment.StatusPending).Return(nil)

		res, err := f.svc.Initiate(ctx, "sess-1", "https://shop.example")
		require.NoError(t, err)
		assert.Equal(t, "https://pp/approve", res.ApproveURL)

		p := res.Payment
		assert.Equal(t, "10.00", p.Amount.StringFixed(2))
		assert.Equal(t, "EUR", p.Currency)
		assert.Equal(t, "PP-ORDER-1", p.ProviderOrderID)
		assert.NotEqual(t, p.TemporaryOrderID, p.ProviderOrderID)
		assert.Nil(t, p.OrderID)

		f.payments.AssertNumberOfCalls(t, "Create", 1)
		assert.Equal(t, uint64(1), f.metrics.Counter(metrics.CheckoutCreated).Load())
	})

	t.Run("EmptyCart", func(t *testing.T) {
		f := newFixture()
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(nil, cart.ErrCartNotFound)

		_, err := f.svc.Initiate(ctx, "sess-1", "https://shop.example")
		assert.ErrorIs(t, err, ErrEmptyCart)
		f.gateway.AssertNotCalled(t, "AccessToken", mock.Anything)
	})

	t.Run("NoSession", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Initiate(ctx, "", "https://shop.example")
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("MissingCustomer", func(t *testing.T) {
		f := newFixture()
		c, _ := tenEuroCart()
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(nil, cart.ErrCustomerNotFound)

		_, err := f.svc.Initiate(ctx, "sess-1", "https://shop.example")
		assert.ErrorIs(t, err, ErrMissingCustomer)
	})

	t.Run("AuthFailure_NoPayment", func(t *testing.T) {
		f := newFixture()
		c, cust := tenEuroCart()
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(cust, nil)
		f.gateway.On("AccessToken", ctx).Return("", paypal.ErrAuthFailed)

		_, err := f.svc.Initiate(ctx, "sess-1", "https://shop.example")
		assert.ErrorIs(t, err, paypal.ErrAuthFailed)
		f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, uint64(1), f.metrics.Counter(metrics.CheckoutFailed).Load())
	})

	t.Run("ProviderRejects_NoPayment", func(t *testing.T) {
		f := newFixture()
		c, cust := tenEuroCart()
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(cust, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CreateOrder", ctx, "tok", mock.Anything).Return(nil, paypal.ErrProviderRequest)

		_, err := f.svc.Initiate(ctx, "sess-1", "https://shop.example")
		assert.ErrorIs(t, err, paypal.ErrProviderRequest)
		f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, uint64(0), f.metrics.Counter(metrics.CheckoutCreated).Load())
	})

	t.Run("StoreFailure", func(t *testing.T) {
		f := newFixture()
		c, cust := tenEuroCart()
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(cust, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CreateOrder", ctx, "tok", mock.Anything).Return(&paypal.CreatedOrder{ID: "PP-1", ApproveURL: "u"}, nil)
		f.payments.On("Create", ctx, mock.Anything, payment.StatusPending).Return(payment.ErrDuplicatePayment)

		_, err := f.svc.Initiate(ctx, "sess-1", "https://shop.example")
		assert.ErrorIs(t, err, payment.ErrDuplicatePayment)
	})
}

func pendingPayment() *payment.Payment {
	return &payment.Payment{
		ID:               1,
		TemporaryOrderID: "tmp-0001",
		ProviderOrderID:  "PP-ORDER-1",
		Amount:           decimal.RequireFromString("10.00"),
		Currency:         "EUR",
		Entries: []payment.Entry{
			{ID: 1, PaymentID: 1, Status: payment.StatusPending, CreatedAt: time.Now().Add(-time.Minute)},
		},
	}
}

// settles matches the settlement for payment 1 and fills its entry like the
// repository does on commit.
func settles(payerID string) any {
	return mock.MatchedBy(func(s *order.Settlement) bool {
		return s.PaymentID == 1 && s.PayerID == payerID && s.EntryStatus == string(payment.StatusCompleted)
	})
}

func fillEntry(args mock.Arguments) {
	s := args.Get(4).(*order.Settlement)
	s.EntryID = 2
	s.EntryCreatedAt = time.Now()
}

func TestService_Capture(t *testing.T) {
	ctx := context.Background()

	t.Run("Completed_CreatesPaidOrder", func(t *testing.T) {
		f := newFixture()
		p := pendingPayment()
		c, cust := tenEuroCart()
		o := &order.Order{ID: 99, UUID: "order-uuid", State: order.StatePaid, Price: decimal.RequireFromString("10.00"), Currency: "EUR"}

		f.payments.On("GetByProviderOrderID", ctx, "PP-ORDER-1").Return(p, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CaptureOrder", ctx, "tok", "PP-ORDER-1").
			Return(&paypal.Capture{ID: "PP-ORDER-1", Status: paypal.StatusCompleted, PayerID: "PAYER1"}, nil)
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(cust, nil)
		f.orders.On("CreateFromCart", ctx, c, cust, order.StatePaid, settles("PAYER1")).Run(fillEntry).Return(o, nil)

		res, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
		assert.Equal(t, order.StatePaid, res.Order.State)
		require.NotNil(t, res.Payment.OrderID)
		assert.Equal(t, int64(99), *res.Payment.OrderID)
		assert.Equal(t, "PAYER1", res.Payment.PayerID)
		assert.Equal(t, payment.StatusCompleted, res.Payment.CurrentStatus())
		assert.Equal(t, int64(2), res.Payment.Entries[len(res.Payment.Entries)-1].ID)
		f.payments.AssertNotCalled(t, "AppendEntry", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, []string{"order.submitted", "order.paid"}, f.publisher.topics)
		assert.Equal(t, uint64(1), f.metrics.Counter(metrics.CaptureCompleted).Load())
	})

	t.Run("RepeatedCapture_IsIdempotent", func(t *testing.T) {
		f := newFixture()
		p := pendingPayment()
		c, cust := tenEuroCart()
		o := &order.Order{ID: 99, UUID: "order-uuid", State: order.StatePaid}

		f.payments.On("GetByProviderOrderID", ctx, "PP-ORDER-1").Return(p, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CaptureOrder", ctx, "tok", "PP-ORDER-1").
			Return(&paypal.Capture{Status: paypal.StatusCompleted}, nil)
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil).Once()
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(nil, cart.ErrCartNotFound)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(cust, nil)
		f.orders.On("CreateFromCart", ctx, c, cust, order.StatePaid, settles("")).Run(fillEntry).Return(o, nil).Once()

		first, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		require.NoError(t, err)
		assert.False(t, first.Duplicate)

		// PayPal calls the return URL again for the same approval
		p.OrderID = nil
		second, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		require.NoError(t, err)
		assert.True(t, second.Duplicate)
		assert.Nil(t, second.Order)

		f.orders.AssertNumberOfCalls(t, "CreateFromCart", 1)
		assert.Equal(t, uint64(1), f.metrics.Counter(metrics.CaptureDuplicate).Load())
	})

	t.Run("AlreadyLinkedPayment_IsDuplicate", func(t *testing.T) {
		f := newFixture()
		p := pendingPayment()
		linked := int64(99)
		p.OrderID = &linked

		f.payments.On("GetByProviderOrderID", ctx, "PP-ORDER-1").Return(p, nil)

		res, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		f.gateway.AssertNotCalled(t, "CaptureOrder", mock.Anything, mock.Anything, mock.Anything)
		f.carts.AssertNotCalled(t, "GetActiveCart", mock.Anything, mock.Anything)
	})

	t.Run("ConcurrentConsumer_IsDuplicate", func(t *testing.T) {
		f := newFixture()
		p := pendingPayment()
		c, cust := tenEuroCart()

		f.payments.On("GetByProviderOrderID", ctx, "PP-ORDER-1").Return(p, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CaptureOrder", ctx, "tok", "PP-ORDER-1").
			Return(&paypal.Capture{Status: paypal.StatusCompleted}, nil)
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(cust, nil)
		f.orders.On("CreateFromCart", ctx, c, cust, order.StatePaid, mock.Anything).Return(nil, order.ErrCartConsumed)

		res, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		f.payments.AssertNotCalled(t, "AppendEntry", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, f.publisher.topics)
	})

	t.Run("PaymentLinkedElsewhere_IsDuplicate", func(t *testing.T) {
		f := newFixture()
		p := pendingPayment()
		c, cust := tenEuroCart()

		f.payments.On("GetByProviderOrderID", ctx, "PP-ORDER-1").Return(p, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CaptureOrder", ctx, "tok", "PP-ORDER-1").
			Return(&paypal.Capture{Status: paypal.StatusCompleted}, nil)
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(cust, nil)
		f.orders.On("CreateFromCart", ctx, c, cust, order.StatePaid, mock.Anything).Return(nil, order.ErrPaymentLinked)

		res, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		require.NoError(t, err)
		assert.True(t, res.Duplicate)
		assert.Nil(t, p.OrderID)
		assert.Empty(t, f.publisher.topics)
	})

	t.Run("SettlementFailure_LeavesCaptureRetryable", func(t *testing.T) {
		f := newFixture()
		p := pendingPayment()
		c, cust := tenEuroCart()
		o := &order.Order{ID: 99, UUID: "order-uuid", State: order.StatePaid}

		f.payments.On("GetByProviderOrderID", ctx, "PP-ORDER-1").Return(p, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CaptureOrder", ctx, "tok", "PP-ORDER-1").
			Return(&paypal.Capture{Status: paypal.StatusCompleted, PayerID: "PAYER1"}, nil)
		f.carts.On("GetActiveCart", ctx, "sess-1").Return(c, nil)
		f.carts.On("GetCustomer", ctx, "sess-1").Return(cust, nil)
		f.orders.On("CreateFromCart", ctx, c, cust, order.StatePaid, settles("PAYER1")).
			Return(nil, errors.New("failed to append payment entry: db down")).Once()
		f.orders.On("CreateFromCart", ctx, c, cust, order.StatePaid, settles("PAYER1")).
			Run(fillEntry).Return(o, nil).Once()

		_, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		require.Error(t, err)
		assert.Nil(t, p.OrderID)
		assert.Empty(t, f.publisher.topics)
		assert.Equal(t, uint64(0), f.metrics.Counter(metrics.CaptureCompleted).Load())

		// The rolled back transaction kept the cart and left the payment unlinked
		res, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
		require.NotNil(t, res.Payment.OrderID)
		assert.Equal(t, int64(99), *res.Payment.OrderID)
		assert.Equal(t, []string{"order.submitted", "order.paid"}, f.publisher.topics)
		f.gateway.AssertNumberOfCalls(t, "CaptureOrder", 2)
		f.payments.AssertNotCalled(t, "AppendEntry", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NotCompleted_AppendsFailed", func(t *testing.T) {
		f := newFixture()
		p := pendingPayment()

		f.payments.On("GetByProviderOrderID", ctx, "PP-ORDER-1").Return(p, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CaptureOrder", ctx, "tok", "PP-ORDER-1").
			Return(&paypal.Capture{Status: "PENDING"}, nil)
		f.payments.On("AppendEntry", ctx, int64(1), payment.StatusFailed).
			Return(&payment.Entry{Status: payment.StatusFailed}, nil)

		_, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		assert.ErrorIs(t, err, ErrCaptureFailed)
		f.orders.AssertNotCalled(t, "CreateFromCart", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Nil(t, p.OrderID)
		assert.Equal(t, uint64(1), f.metrics.Counter(metrics.CaptureFailed).Load())
	})

	t.Run("ProviderError_AppendsFailed", func(t *testing.T) {
		f := newFixture()
		p := pendingPayment()

		f.payments.On("GetByProviderOrderID", ctx, "PP-ORDER-1").Return(p, nil)
		f.gateway.On("AccessToken", ctx).Return("tok", nil)
		f.gateway.On("CaptureOrder", ctx, "tok", "PP-ORDER-1").Return(nil, paypal.ErrProviderRequest)
		f.payments.On("AppendEntry", ctx, int64(1), payment.StatusFailed).Return(nil, errors.New("db down"))

		_, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		assert.ErrorIs(t, err, ErrCaptureFailed)
		assert.ErrorIs(t, err, paypal.ErrProviderRequest)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		f := newFixture()
		f.payments.On("GetByProviderOrderID", ctx, "nope").Return(nil, payment.ErrPaymentNotFound)

		_, err := f.svc.Capture(ctx, "sess-1", "nope")
		assert.ErrorIs(t, err, payment.ErrPaymentNotFound)
		f.gateway.AssertNotCalled(t, "AccessToken", mock.Anything)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Capture(ctx, "sess-1", "")
		assert.ErrorIs(t, err, payment.ErrPaymentNotFound)
	})

	t.Run("AuthFailure_LeavesPaymentUnchanged", func(t *testing.T) {
		f := newFixture()
		f.payments.On("GetByProviderOrderID", ctx, "PP-ORDER-1").Return(pendingPayment(), nil)
		f.gateway.On("AccessToken", ctx).Return("", paypal.ErrAuthFailed)

		_, err := f.svc.Capture(ctx, "sess-1", "PP-ORDER-1")
		assert.ErrorIs(t, err, paypal.ErrAuthFailed)
		f.payments.AssertNotCalled(t, "AppendEntry", mock.Anything, mock.Anything, mock.Anything)
	})
}
