package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/repository/memory"
	"dispatch/internal/service"
)

// ──────────────────────────────────────────────
// MOCK CANDIDATE SELECTOR
// ──────────────────────────────────────────────

// MockSelector hands out candidates from a fixed pool, skipping excluded vehicles.
type MockSelector struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	queries    []domain.CandidateQuery

	// Counters
	SelectCallCount int32

	// Error injection
	SelectError error
}

// NewMockSelector creates a selector over the given candidates.
func NewMockSelector(candidates ...domain.Candidate) *MockSelector {
	return &MockSelector{candidates: candidates}
}

func (m *MockSelector) Select(ctx context.Context, q domain.CandidateQuery) (*domain.Candidate, error) {
	atomic.AddInt32(&m.SelectCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)

	if m.SelectError != nil {
		return nil, m.SelectError
	}
	for _, c := range m.candidates {
		if !q.Excludes(c.VehicleID) {
			candidate := c
			return &candidate, nil
		}
	}
	return nil, service.ErrNoCandidateAvailable
}

// Queries returns the queries seen so far.
func (m *MockSelector) Queries() []domain.CandidateQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CandidateQuery(nil), m.queries...)
}

// ──────────────────────────────────────────────
// MOCK NOTIFICATION CHANNEL
// ──────────────────────────────────────────────

// MockChannel records notifications and can be told to fail.
type MockChannel struct {
	mu   sync.Mutex
	sent []domain.Notification

	// Counters
	SendCallCount int32

	// Failure injection
	FailFirst  int32 // number of leading sends that fail
	AlwaysFail bool
	FailError  error
}

// NewMockChannel creates a channel that always succeeds.
func NewMockChannel() *MockChannel {
	return &MockChannel{FailError: errors.New("channel unavailable")}
}

func (m *MockChannel) Send(ctx context.Context, n domain.Notification) (string, error) {
	call := atomic.AddInt32(&m.SendCallCount, 1)
	if m.AlwaysFail || call <= m.FailFirst {
		return "", m.FailError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return "msg-" + n.BookingID, nil
}

// Sent returns the delivered notifications.
func (m *MockChannel) Sent() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.sent...)
}

// SentOfKind returns the delivered notifications of one kind.
func (m *MockChannel) SentOfKind(kind domain.NotificationKind) []domain.Notification {
	var out []domain.Notification
	for _, n := range m.Sent() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// PublishedEvent is one recorded publish call.
type PublishedEvent struct {
	RoutingKey string
	Payload    any
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{RoutingKey: routingKey, Payload: v})
	return nil
}

// RoutingKeys returns the routing keys in publish order.
func (m *MockPublisher) RoutingKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, len(m.events))
	for i, e := range m.events {
		keys[i] = e.RoutingKey
	}
	return keys
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu       sync.Mutex
	locks    map[string]time.Time
	messages map[string]bool

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks:    make(map[string]time.Time),
		messages: make(map[string]bool),
	}
}

func (m *MockLockStore) AcquireAmbulanceLock(ctx context.Context, ambulanceID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:ambulance:" + ambulanceID
	if expiry, exists := m.locks[key]; exists && time.Now().Before(expiry) {
		return false, nil // Lock still held.
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseAmbulanceLock(ctx context.Context, ambulanceID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:ambulance:"+ambulanceID)
	return nil
}

func (m *MockLockStore) ClaimMessage(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.messages[messageID] {
		return false, nil
	}
	m.messages[messageID] = true
	return true, nil
}

// IsLocked checks if an ambulance is reserved (for test assertions).
func (m *MockLockStore) IsLocked(ambulanceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:ambulance:"+ambulanceID]
	return exists && time.Now().Before(expiry)
}

// ──────────────────────────────────────────────
// STALE-READ BOOKING REPOSITORY
// ──────────────────────────────────────────────

// StaleReadRepository behaves like a lagging cache: GetByID serves frozen
// snapshots while GetLatest and writes go to the wrapped store.
type StaleReadRepository struct {
	*memory.BookingRepository

	mu     sync.Mutex
	frozen map[string]*domain.Booking
}

// NewStaleReadRepository wraps next.
func NewStaleReadRepository(next *memory.BookingRepository) *StaleReadRepository {
	return &StaleReadRepository{BookingRepository: next, frozen: make(map[string]*domain.Booking)}
}

// Freeze pins the snapshot GetByID returns for b.ID.
func (r *StaleReadRepository) Freeze(b *domain.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen[b.ID] = b.Clone()
}

func (r *StaleReadRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	b, ok := r.frozen[id]
	r.mu.Unlock()
	if ok {
		return b.Clone(), nil
	}
	return r.BookingRepository.GetByID(ctx, id)
}

func (r *StaleReadRepository) GetLatest(ctx context.Context, id string) (*domain.Booking, error) {
	return r.BookingRepository.GetByID(ctx, id)
}

// ──────────────────────────────────────────────
// TEST FIXTURES
// ──────────────────────────────────────────────

// Candidates used across scenarios.
var (
	candidateA = domain.Candidate{VehicleID: "KA01AB1234", DriverContact: "9876543210", Address: "Station A", Coordinates: domain.Coordinates{Latitude: 12.96, Longitude: 77.58}}
	candidateB = domain.Candidate{VehicleID: "KA01AB5678", DriverContact: "9123456780", Address: "Station B", Coordinates: domain.Coordinates{Latitude: 12.98, Longitude: 77.60}}
	candidateC = domain.Candidate{VehicleID: "KA01AB9999", DriverContact: "9000000001", Address: "Station C", Coordinates: domain.Coordinates{Latitude: 12.99, Longitude: 77.61}}
)

// dispatchFixture bundles a coordinator with its collaborators.
type dispatchFixture struct {
	repo       *memory.BookingRepository
	selector   *MockSelector
	channel    *MockChannel
	publisher  *MockPublisher
	notifier   *service.Notifier
	dispatch   *service.DispatchService
	correlator *service.WebhookCorrelator
	waits      *waitRecorder
}

// newDispatchFixture wires a coordinator over the in-memory store. Backoff
// waits are recorded instead of slept.
func newDispatchFixture(cfg service.DispatchConfig, candidates ...domain.Candidate) *dispatchFixture {
	f := &dispatchFixture{
		repo:      memory.NewBookingRepository(),
		selector:  NewMockSelector(candidates...),
		channel:   NewMockChannel(),
		publisher: NewMockPublisher(),
		waits:     &waitRecorder{},
	}
	f.notifier = service.NewNotifier(f.channel, service.DefaultRetryPolicy(), domain.DefaultCountryCode)
	f.notifier.SetWaitFunc(f.waits.wait)
	f.dispatch = service.NewDispatchService(f.repo, f.selector, f.notifier, f.publisher, nil, cfg)
	f.correlator = service.NewWebhookCorrelator(f.repo, f.dispatch, domain.DefaultCountryCode)
	return f
}

// createBooking creates the standard cardiac booking used by the scenarios.
func (f *dispatchFixture) createBooking(ctx context.Context) (*service.CreateBookingResponse, error) {
	return f.dispatch.CreateBooking(ctx, service.CreateBookingRequest{
		EmergencyType: "cardiac",
		Latitude:      12.97,
		Longitude:     77.59,
		Address:       "X",
	})
}

// waitRecorder records backoff waits without sleeping.
type waitRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = append(w.delays, d)
	return ctx.Err()
}

func (w *waitRecorder) Delays() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.delays...)
}
