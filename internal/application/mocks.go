package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchly/payments/internal/domain"
)

// Map-backed mocks for the ports. Default behavior is a working in-memory
// store; set the Fn fields to override individual calls.

type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment

	CreateFn           func(ctx context.Context, payment *domain.Payment) error
	FindByIDFn         func(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindByExternalIDFn func(ctx context.Context, provider domain.Provider, candidates []string) (*domain.Payment, error)
	UpdateFn           func(ctx context.Context, payment *domain.Payment) error
	FindStalePendingFn func(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error)

	UpdateCalls int
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[uuid.UUID]*domain.Payment),
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, payment)
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if p, ok := m.payments[id]; ok {
		return p, nil
	}
	return nil, domain.NewPaymentNotFoundError(id.String())
}

func (m *MockPaymentRepository) FindByExternalID(ctx context.Context, provider domain.Provider, candidates []string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByExternalIDFn != nil {
		return m.FindByExternalIDFn(ctx, provider, candidates)
	}
	for _, candidate := range candidates {
		for _, p := range m.payments {
			if p.Provider != provider {
				continue
			}
			for _, id := range p.ExternalIDCandidates() {
				if id == candidate {
					return p, nil
				}
			}
		}
	}
	return nil, domain.NewPaymentNotFoundError("")
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, payment)
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindStalePendingFn != nil {
		return m.FindStalePendingFn(ctx, olderThan, limit)
	}
	var out []*domain.Payment
	cutoff := time.Now().UTC().Add(-olderThan)
	for _, p := range m.payments {
		if p.Status == domain.StatusPending && p.UpdatedAt.Before(cutoff) {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type MockRefundRepository struct {
	mu      sync.RWMutex
	refunds map[string]*domain.Refund

	UpsertFn func(ctx context.Context, refund *domain.Refund) error

	UpsertCalls int
}

func NewMockRefundRepository() *MockRefundRepository {
	return &MockRefundRepository{
		refunds: make(map[string]*domain.Refund),
	}
}

func (m *MockRefundRepository) Upsert(ctx context.Context, refund *domain.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, refund)
	}
	key := string(refund.Provider) + "/" + refund.RefundID
	if existing, ok := m.refunds[key]; ok {
		existing.Status = refund.Status
		existing.AmountCents = refund.AmountCents
		existing.UpdatedAt = refund.UpdatedAt
		return nil
	}
	m.refunds[key] = refund
	return nil
}

func (m *MockRefundRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Refund
	for _, r := range m.refunds {
		if r.PaymentID == paymentID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Stored returns how many distinct refund rows exist.
func (m *MockRefundRepository) Stored() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.refunds)
}

type MockEventRepository struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*domain.IntegrationEvent
	dedup  map[string]bool

	RecordFn func(ctx context.Context, event *domain.IntegrationEvent) (bool, error)

	ProcessedCalls int
	FailedCalls    int
	LastFailReason string
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{
		events: make(map[uuid.UUID]*domain.IntegrationEvent),
		dedup:  make(map[string]bool),
	}
}

func (m *MockEventRepository) Record(ctx context.Context, event *domain.IntegrationEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordFn != nil {
		return m.RecordFn(ctx, event)
	}
	if event.ExternalID != nil {
		key := event.Provider + "/" + *event.ExternalID
		if m.dedup[key] {
			return false, nil
		}
		m.dedup[key] = true
	}
	m.events[event.ID] = event
	return true, nil
}

func (m *MockEventRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProcessedCalls++
	if e, ok := m.events[id]; ok {
		e.Status = domain.EventProcessed
	}
	return nil
}

func (m *MockEventRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailedCalls++
	m.LastFailReason = reason
	if e, ok := m.events[id]; ok {
		e.Status = domain.EventFailed
	}
	return nil
}

func (m *MockEventRepository) Recorded() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

type MockTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]uuid.UUID // task id -> payment id

	TaskExistsForPaymentFn   func(ctx context.Context, paymentID uuid.UUID) (bool, error)
	CreateTaskFromSnapshotFn func(ctx context.Context, paymentID uuid.UUID, snapshot []byte) (uuid.UUID, error)

	CreateCalls  int
	AttachCalls  int
	PublishCalls int
}

func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *MockTaskStore) TaskExistsForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.TaskExistsForPaymentFn != nil {
		return m.TaskExistsForPaymentFn(ctx, paymentID)
	}
	for _, pid := range m.tasks {
		if pid == paymentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockTaskStore) CreateTaskFromSnapshot(ctx context.Context, paymentID uuid.UUID, snapshot []byte) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateTaskFromSnapshotFn != nil {
		return m.CreateTaskFromSnapshotFn(ctx, paymentID, snapshot)
	}
	taskID := uuid.New()
	m.tasks[taskID] = paymentID
	return taskID, nil
}

func (m *MockTaskStore) AttachPaymentToTasks(ctx context.Context, paymentID uuid.UUID, taskIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AttachCalls++
	for _, id := range taskIDs {
		m.tasks[id] = paymentID
	}
	return nil
}

func (m *MockTaskStore) PublishTasks(ctx context.Context, taskIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls++
	return nil
}

type MockPayoutSyncer struct {
	mu     sync.Mutex
	queued map[uuid.UUID]bool

	EnqueueFn func(ctx context.Context, paymentID uuid.UUID) error

	EnqueueCalls int
}

func NewMockPayoutSyncer() *MockPayoutSyncer {
	return &MockPayoutSyncer{queued: make(map[uuid.UUID]bool)}
}

func (m *MockPayoutSyncer) Enqueue(ctx context.Context, paymentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnqueueCalls++
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, paymentID)
	}
	m.queued[paymentID] = true
	return nil
}

// Queued returns how many distinct payments have a payout sync queued.
func (m *MockPayoutSyncer) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queued)
}

type MockRemarkStore struct {
	mu      sync.Mutex
	Remarks []string

	AddRemarkFn func(ctx context.Context, paymentID uuid.UUID, text string) error
}

func (m *MockRemarkStore) AddRemark(ctx context.Context, paymentID uuid.UUID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddRemarkFn != nil {
		return m.AddRemarkFn(ctx, paymentID, text)
	}
	m.Remarks = append(m.Remarks, text)
	return nil
}
