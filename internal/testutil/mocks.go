package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/integrations"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
)

// MockSubscriptionRepository is a mock implementation of subscription.Repository
type MockSubscriptionRepository struct {
	mu            sync.Mutex
	Subscriptions map[string]*subscription.Subscription
	Payments      map[string]bool
	MutateCalls   int
	// LedgerError is returned from MutateActive and GetActiveByUser when set
	LedgerError error
	CreateError error
}

func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{
		Subscriptions: make(map[string]*subscription.Subscription),
		Payments:      make(map[string]bool),
	}
}

// Seed stores a copy of s and returns its ID
func (m *MockSubscriptionRepository) Seed(s *subscription.Subscription) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	m.Subscriptions[s.ID] = &cp
	return s.ID
}

// Get returns a copy of the stored subscription
func (m *MockSubscriptionRepository) Get(id string) *subscription.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Subscriptions[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.Seed(s)
	return nil
}

func (m *MockSubscriptionRepository) active(userID string, now time.Time) *subscription.Subscription {
	var best *subscription.Subscription
	for _, s := range m.Subscriptions {
		if s.UserID != userID || !s.IsActive(now) {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	return best
}

func (m *MockSubscriptionRepository) GetActiveByUser(ctx context.Context, userID string, now time.Time) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LedgerError != nil {
		return nil, m.LedgerError
	}
	s := m.active(userID, now)
	if s == nil {
		return nil, errors.NoActiveSubscription()
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepository) GetByStripeSubscription(ctx context.Context, stripeSubscriptionID string) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Subscriptions {
		if s.StripeSubscriptionID == stripeSubscriptionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, errors.NotFound("Subscription")
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Subscriptions[s.ID]
	if !ok {
		return errors.NotFound("Subscription")
	}
	stored.PlanID = s.PlanID
	stored.Status = s.Status
	stored.MonthlyQuota = s.MonthlyQuota
	stored.StartedAt = s.StartedAt
	stored.EndsAt = s.EndsAt
	stored.StripeCustomerID = s.StripeCustomerID
	stored.StripeSubscriptionID = s.StripeSubscriptionID
	stored.UpdatedAt = time.Now()
	return nil
}

func (m *MockSubscriptionRepository) MutateActive(ctx context.Context, userID string, now time.Time, fn subscription.MutateFunc) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MutateCalls++
	if m.LedgerError != nil {
		return nil, m.LedgerError
	}
	s := m.active(userID, now)
	if s == nil {
		return nil, errors.NoActiveSubscription()
	}
	cp := *s
	changed, err := fn(&cp)
	if err != nil {
		return nil, err
	}
	if changed {
		m.Subscriptions[s.ID] = &cp
	}
	out := cp
	return &out, nil
}

func (m *MockSubscriptionRepository) SupersedeActive(ctx context.Context, userID, keepID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.Subscriptions {
		if s.UserID == userID && id != keepID && s.Status == subscription.StatusActive {
			s.Status = subscription.StatusExpired
		}
	}
	return nil
}

func (m *MockSubscriptionRepository) ClaimPayment(ctx context.Context, key string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Payments[key] {
		return false, nil
	}
	m.Payments[key] = true
	return true, nil
}

func (m *MockSubscriptionRepository) UnclaimPayment(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Payments, key)
	return nil
}

func (m *MockSubscriptionRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.Subscriptions {
		if s.Status == subscription.StatusActive && !s.EndsAt.After(now) {
			s.Status = subscription.StatusExpired
			n++
		}
	}
	return n, nil
}

// MockVisionResponse is one scripted model answer
type MockVisionResponse struct {
	Text string
	Err  error
}

// MockVisionModel is a mock implementation of integrations.VisionModel.
// Responses are returned in order and the last one repeats.
type MockVisionModel struct {
	mu        sync.Mutex
	Responses []MockVisionResponse
	Requests  []integrations.VisionRequest
}

// NewMockVisionModel scripts the given answers
func NewMockVisionModel(responses ...MockVisionResponse) *MockVisionModel {
	return &MockVisionModel{Responses: responses}
}

func (m *MockVisionModel) Describe(ctx context.Context, req integrations.VisionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if len(m.Responses) == 0 {
		return "", integrations.ErrEmptyResponse
	}
	i := len(m.Requests) - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	r := m.Responses[i]
	return r.Text, r.Err
}

// Calls returns how many times Describe ran
func (m *MockVisionModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
