package ipn

import (
	"context"
	"sync"

	"paypal-bridge/internal/cart"
	"paypal-bridge/internal/order"
	"paypal-bridge/internal/paypal"

	"github.com/stretchr/testify/mock"
)

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

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, n *Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockStore) AttachToOrder(ctx context.Context, orderID, ipnID int64) error {
	return m.Called(ctx, orderID, ipnID).Error(0)
}

type MockLegacyGateway struct {
	mock.Mock
}

func (m *MockLegacyGateway) VerifyIPN(ctx context.Context, rawBody []byte) (string, error) {
	args := m.Called(ctx, rawBody)
	return args.String(0), args.Error(1)
}

func (m *MockLegacyGateway) FetchPDT(ctx context.Context, txID string) (*paypal.PDTResult, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paypal.PDTResult), args.Error(1)
}

func (m *MockLegacyGateway) PayLink(p paypal.PayLinkParams) string {
	return m.Called(p).String(0)
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

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, n *Notification) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}
