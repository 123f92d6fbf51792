package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// memStore is an in-memory notification store with the same conditional claim
// semantics as the SQL repositories.
type memStore struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*domain.EmailRecord
	attempts []*domain.DeliveryAttempt
	writes   int
}

func newMemStore(records ...*domain.EmailRecord) *memStore {
	s := &memStore{records: make(map[uuid.UUID]*domain.EmailRecord)}
	for _, r := range records {
		s.records[r.ID] = cloneRecord(r)
	}
	return s
}

func cloneRecord(r *domain.EmailRecord) *domain.EmailRecord {
	c := *r
	return &c
}

func (s *memStore) get(id uuid.UUID) *domain.EmailRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecord(s.records[id])
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memStore) Create(ctx context.Context, record *domain.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = cloneRecord(record)
	s.writes++
	return nil
}

func (s *memStore) Get(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, domain.ErrEmailNotFound
	}
	return cloneRecord(r), nil
}

func (s *memStore) List(
	ctx context.Context,
	filter domain.ListFilter,
	offset, limit int,
) ([]*domain.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.EmailRecord
	for _, r := range s.records {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.ExhaustedOnly && !r.IsExhausted() {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	return out, nil
}

func (s *memStore) ListEligible(ctx context.Context, limit int, now time.Time) ([]*domain.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.EmailRecord
	for _, r := range s.records {
		if r.IsEligible(now) {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Claim(ctx context.Context, record *domain.EmailRecord, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[record.ID]
	if !ok || stored.Status != record.Status || stored.AttemptCount != record.AttemptCount ||
		stored.AttemptCount >= stored.MaxAttempts {
		return false, nil
	}
	stored.Status = domain.StatusProcessing
	stored.UpdatedAt = now
	s.writes++
	return true, nil
}

func (s *memStore) Complete(ctx context.Context, record *domain.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[record.ID]
	if !ok || stored.Status != domain.StatusProcessing {
		return domain.ErrClaimLost
	}
	s.records[record.ID] = cloneRecord(record)
	s.writes++
	return nil
}

func (s *memStore) RecoverStale(ctx context.Context, before, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if r.Status == domain.StatusProcessing && r.UpdatedAt.Before(before) {
			r.Status = domain.StatusFailed
			r.AttemptCount++
			r.UpdatedAt = now
			n++
		}
	}
	s.writes += int(n)
	return n, nil
}

// memAttempts is the delivery attempt side of memStore.
type memAttempts struct {
	store *memStore
}

func (a *memAttempts) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	a.store.attempts = append(a.store.attempts, attempt)
	a.store.writes++
	return nil
}

func (a *memAttempts) ListByEmail(ctx context.Context, emailID uuid.UUID) ([]*domain.DeliveryAttempt, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	var out []*domain.DeliveryAttempt
	for _, attempt := range a.store.attempts {
		if attempt.EmailID == emailID {
			out = append(out, attempt)
		}
	}
	return out, nil
}

// passthroughTx runs fn without a transaction.
type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// callLog records provider invocations across providers.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// fakeProvider succeeds or fails on every call.
type fakeProvider struct {
	name  string
	fail  bool
	panic bool
	log   *callLog

	mu         sync.Mutex
	recipients []string
}

func (f *fakeProvider) Name() string {
	return f.name
}

func (f *fakeProvider) Send(ctx context.Context, msg domain.Message) domain.Outcome {
	f.mu.Lock()
	f.recipients = append(f.recipients, msg.Recipient)
	f.mu.Unlock()
	if f.log != nil {
		f.log.add(f.name)
	}
	if f.panic {
		panic("boom")
	}
	if f.fail {
		return domain.Failed(f.name, domain.ErrorClassConnection, f.name+" unreachable")
	}
	return domain.Succeeded(f.name, f.name+"-message-id")
}

func (f *fakeProvider) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.recipients...)
}

// fakeDeliveryMetrics captures delivery metric calls.
type fakeDeliveryMetrics struct {
	mu         sync.Mutex
	deliveries []string
	calls      []string
}

func (f *fakeDeliveryMetrics) RecordDelivery(ctx context.Context, provider, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, provider+":"+result)
}

func (f *fakeDeliveryMetrics) RecordProviderCall(ctx context.Context, provider string, success bool, errorClass string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if success {
		f.calls = append(f.calls, provider+":success")
		return
	}
	f.calls = append(f.calls, provider+":"+errorClass)
}

// fakeBusinessMetrics captures business metric calls.
type fakeBusinessMetrics struct {
	mu         sync.Mutex
	operations []string
	durations  int
}

func (f *fakeBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operations = append(f.operations, domain+"/"+operation+"/"+status)
}

func (f *fakeBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations++
}

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newQueuedRecord(recipient string, priority int, createdAt time.Time) *domain.EmailRecord {
	return &domain.EmailRecord{
		ID:          uuid.Must(uuid.NewV7()),
		Recipient:   recipient,
		Subject:     "Booking Confirmed",
		BodyHTML:    "<p>Your ride is booked.</p>",
		Category:    domain.CategoryBookingConfirmation,
		Priority:    priority,
		Status:      domain.StatusQueued,
		MaxAttempts: 3,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ctxTx refuses to begin once ctx is done, like a SQL transaction manager.
type ctxTx struct{}

func (ctxTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// cancelOnSend cancels the batch context while its send is in flight. It only
// reports success when the send itself still runs on a live context.
type cancelOnSend struct {
	name   string
	cancel context.CancelFunc

	mu    sync.Mutex
	calls int
}

func (p *cancelOnSend) Name() string {
	return p.name
}

func (p *cancelOnSend) Send(ctx context.Context, msg domain.Message) domain.Outcome {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	p.cancel()
	if ctx.Err() != nil {
		return domain.Failed(p.name, domain.ErrorClassTimeout, "send aborted")
	}
	return domain.Succeeded(p.name, "queued")
}

func (p *cancelOnSend) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
