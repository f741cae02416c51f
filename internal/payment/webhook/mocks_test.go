package webhook

import (
	"context"
	"net/http"

	"paypal-bridge/internal/payment"

	"github.com/stretchr/testify/mock"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment, initial payment.Status) error {
	return m.Called(ctx, p, initial).Error(0)
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

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) WebhookVerificationEnabled() bool {
	return m.Called().Bool(0)
}

func (m *MockVerifier) AccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockVerifier) VerifyWebhookSignature(ctx context.Context, token string, h http.Header, body []byte) (bool, error) {
	args := m.Called(ctx, token, h, body)
	return args.Bool(0), args.Error(1)
}

// auditStore keeps webhook audit rows in memory with the same redelivery
// rules as the SQL store. Payment methods go to the embedded mock.
type auditStore struct {
	MockPaymentRepository
	ids       map[string]int64
	processed map[int64]bool
}

func newAuditStore() *auditStore {
	return &auditStore{ids: map[string]int64{}, processed: map[int64]bool{}}
}

func (s *auditStore) SaveWebhookEvent(ctx context.Context, ev payment.WebhookEvent) (int64, bool, error) {
	id, ok := s.ids[ev.EventID]
	if !ok {
		id = int64(len(s.ids) + 1)
		s.ids[ev.EventID] = id
	}
	if s.processed[id] {
		return 0, true, nil
	}
	return id, false, nil
}

func (s *auditStore) MarkWebhookProcessed(ctx context.Context, id int64) error {
	s.processed[id] = true
	return nil
}

func (s *auditStore) MarkWebhookFailed(ctx context.Context, id int64, reason string) error {
	return nil
}
