package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/domain"
)

type mockLedgerClient struct {
	mock.Mock
}

func (m *mockLedgerClient) CreateHold(ctx context.Context, req app.HoldRequest, idempotencyKey string) (*app.HoldResponse, error) {
	args := m.Called(ctx, req, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.HoldResponse), args.Error(1)
}

func (m *mockLedgerClient) Capture(ctx context.Context, req app.CaptureRequest, idempotencyKey string) (*app.CaptureResponse, error) {
	args := m.Called(ctx, req, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.CaptureResponse), args.Error(1)
}

func (m *mockLedgerClient) CancelHold(ctx context.Context, req app.CancelRequest, idempotencyKey string) (*app.CancelResponse, error) {
	args := m.Called(ctx, req, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.CancelResponse), args.Error(1)
}

func (m *mockLedgerClient) Refund(ctx context.Context, req app.RefundRequest, idempotencyKey string) (*app.RefundResponse, error) {
	args := m.Called(ctx, req, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.RefundResponse), args.Error(1)
}

func (m *mockLedgerClient) GetPayment(ctx context.Context, paymentID string) (*app.PaymentStatusResponse, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.PaymentStatusResponse), args.Error(1)
}

type mockCheckoutGateway struct {
	mock.Mock
}

func (m *mockCheckoutGateway) Collect(ctx context.Context, req app.CollectRequest) (*app.CollectResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.CollectResult), args.Error(1)
}

type mockBackendClient struct {
	mock.Mock
}

func (m *mockBackendClient) GetApplication(ctx context.Context, id string) (*domain.TaskApplication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskApplication), args.Error(1)
}

func (m *mockBackendClient) UpdateStatus(ctx context.Context, id string, status domain.ApplicationStatus, role domain.Role) (*domain.TaskApplication, error) {
	args := m.Called(ctx, id, status, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskApplication), args.Error(1)
}

func (m *mockBackendClient) ListByTask(ctx context.Context, taskID string) ([]*domain.TaskApplication, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TaskApplication), args.Error(1)
}

func (m *mockBackendClient) ListByCompany(ctx context.Context, companyID string) ([]*domain.TaskApplication, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TaskApplication), args.Error(1)
}

func (m *mockBackendClient) ListByDeveloper(ctx context.Context, developerID string) ([]*domain.TaskApplication, error) {
	args := m.Called(ctx, developerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TaskApplication), args.Error(1)
}

// fakeJournal is an in-memory attempt journal that keeps every write so tests
// can assert the final journal state.
type fakeJournal struct {
	mu       sync.Mutex
	recorded []*app.SettlementAttempt
	updates  int
}

func (f *fakeJournal) Record(_ context.Context, attempt *app.SettlementAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, attempt)
	return nil
}

func (f *fakeJournal) Update(_ context.Context, _ *app.SettlementAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}

func (f *fakeJournal) FindUnresolved(_ context.Context, _ time.Time, _ int) ([]*app.SettlementAttempt, error) {
	return nil, nil
}

func (f *fakeJournal) last() *app.SettlementAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recorded) == 0 {
		return nil
	}
	return f.recorded[len(f.recorded)-1]
}

// fakePublisher records published events.
type fakePublisher struct {
	mu          sync.Mutex
	transitions []app.TransitionEvent
	settlements []app.SettlementEvent
	failWith    error
}

func (f *fakePublisher) PublishTransition(_ context.Context, event app.TransitionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.transitions = append(f.transitions, event)
	return nil
}

func (f *fakePublisher) PublishSettlement(_ context.Context, event app.SettlementEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.settlements = append(f.settlements, event)
	return nil
}
