package checkout

import (
	"context"
	"net/http"
	"sync"

	"paypal-bridge/internal/cart"
	"paypal-bridge/internal/order"
	"paypal-bridge/internal/payment"
	"paypal-bridge/internal/paypal"

	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) GetActiveCart(ctx context.Context, sessionKey string) (*cart.Cart, error) {
	args := m.Called(ctx, sessionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartRepository) GetCustomer(ctx context.Context, sessionKey string) (*cart.Customer, error) {
	args := m.Called(ctx, sessionKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Customer), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateFromCart(ctx context.Context, c *cart.Cart, cust *cart.Customer, state order.State, settle *order.Settlement) (*order.Order, error) {
	args := m.Called(ctx, c, cust, state, settle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByUUID(ctx context.Context, orderUUID string) (*order.Order, error) {
	args := m.Called(ctx, orderUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateState(ctx context.Context, orderID int64, state order.State) (order.State, error) {
	args := m.Called(ctx, orderID, state)
	return args.Get(0).(order.State), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment, initial payment.Status) error {
	args := m.Called(ctx, p, initial)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByProviderOrderID(ctx context.Context, id string) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepository) AppendEntry(ctx context.Context, paymentID int64, status payment.Status) (*payment.Entry, error) {
	args := m.Called(ctx, paymentID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Entry), args.Error(1)
}

func (m *MockPaymentRepository) List(ctx context.Context, f payment.Filter) ([]payment.Summary, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]payment.Summary), args.Error(1)
}

func (m *MockPaymentRepository) SaveWebhookEvent(ctx context.Context, ev payment.WebhookEvent) (int64, bool, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) MarkWebhookProcessed(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPaymentRepository) MarkWebhookFailed(ctx context.Context, id int64, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateOrder(ctx context.Context, token string, req paypal.CreateOrderRequest) (*paypal.CreatedOrder, error) {
	args := m.Called(ctx, token, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paypal.CreatedOrder), args.Error(1)
}

func (m *MockGateway) CaptureOrder(ctx context.Context, token, orderID string) (*paypal.Capture, error) {
	args := m.Called(ctx, token, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paypal.Capture), args.Error(1)
}

func (m *MockGateway) VerifyWebhookSignature(ctx context.Context, token string, h http.Header, body []byte) (bool, error) {
	args := m.Called(ctx, token, h, body)
	return args.Bool(0), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type MockService struct {
	mock.Mock
}

func (m *MockService) Initiate(ctx context.Context, sessionKey, baseURL string) (*InitiateResult, error) {
	args := m.Called(ctx, sessionKey, baseURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InitiateResult), args.Error(1)
}

func (m *MockService) Capture(ctx context.Context, sessionKey, token string) (*CaptureResult, error) {
	args := m.Called(ctx, sessionKey, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CaptureResult), args.Error(1)
}
