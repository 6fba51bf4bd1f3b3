package cashsession

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/tuitionhub/backend/internal/domain/cashsession"
	"github.com/tuitionhub/backend/internal/domain/catalog"
	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// =============================================================================
// In-memory session and report stores
// =============================================================================

type fakeSessionRepo struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]cashsession.CashSession
	entries   []cashsession.SessionEntry
	movements []cashsession.CashMovement
	reports   *fakeReportRepo

	// conflicts makes the next AddEntry calls fail with a version conflict
	conflicts int
}

func newFakeSessionRepo(reports *fakeReportRepo) *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[uuid.UUID]cashsession.CashSession),
		reports:  reports,
	}
}

func (r *fakeSessionRepo) Create(_ context.Context, s *cashsession.CashSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.CashierID == s.CashierID && existing.IsOpen() {
			return cashsession.ErrSessionAlreadyOpen
		}
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*cashsession.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, cashsession.ErrSessionNotFound
	}
	s.ClearDomainEvents()
	return &s, nil
}

func (r *fakeSessionRepo) FindOpenByCashier(_ context.Context, cashierID uuid.UUID) (*cashsession.CashSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.CashierID == cashierID && s.IsOpen() {
			s.ClearDomainEvents()
			return &s, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) save(s *cashsession.CashSession) error {
	stored, ok := r.sessions[s.ID]
	if !ok {
		return cashsession.ErrSessionNotFound
	}
	if stored.Version != s.Version {
		return shared.ErrConcurrencyConflict
	}
	s.Version++
	r.sessions[s.ID] = *s
	return nil
}

func (r *fakeSessionRepo) AddEntry(_ context.Context, s *cashsession.CashSession, entry *cashsession.SessionEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts > 0 {
		r.conflicts--
		return false, shared.ErrConcurrencyConflict
	}
	for _, e := range r.entries {
		if e.TransactionID == entry.TransactionID {
			return false, nil
		}
	}
	if err := r.save(s); err != nil {
		return false, err
	}
	r.entries = append(r.entries, *entry)
	return true, nil
}

func (r *fakeSessionRepo) FindLedger(_ context.Context, sessionID uuid.UUID) (*cashsession.CashSession, []cashsession.SessionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil, cashsession.ErrSessionNotFound
	}
	s.ClearDomainEvents()
	var out []cashsession.SessionEntry
	for _, e := range r.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return &s, out, nil
}

func (r *fakeSessionRepo) RecordCashOut(_ context.Context, s *cashsession.CashSession, m *cashsession.CashMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.save(s); err != nil {
		return err
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeSessionRepo) FindCashOuts(_ context.Context, sessionID uuid.UUID) ([]cashsession.CashMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []cashsession.CashMovement
	for _, m := range r.movements {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) CloseWithReport(ctx context.Context, s *cashsession.CashSession, report *cashsession.SessionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.save(s); err != nil {
		return err
	}
	return r.reports.Append(ctx, report)
}

type fakeReportRepo struct {
	mu      sync.Mutex
	reports []cashsession.SessionReport
}

func (r *fakeReportRepo) Append(_ context.Context, report *cashsession.SessionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, *report)
	return nil
}

func (r *fakeReportRepo) FindByID(_ context.Context, id uuid.UUID) (*cashsession.SessionReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.ID == id {
			return &rep, nil
		}
	}
	return nil, cashsession.ErrReportNotFound
}

func (r *fakeReportRepo) FindFinal(_ context.Context, sessionID uuid.UUID) (*cashsession.SessionReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.SessionID == sessionID && rep.IsFinal {
			return &rep, nil
		}
	}
	return nil, nil
}

func (r *fakeReportRepo) FindAll(_ context.Context, filter cashsession.ReportFilter) ([]cashsession.SessionReport, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []cashsession.SessionReport
	for _, rep := range r.reports {
		if filter.SessionID != nil && rep.SessionID != *filter.SessionID {
			continue
		}
		if filter.IsFinal != nil && rep.IsFinal != *filter.IsFinal {
			continue
		}
		out = append(out, rep)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return out, int64(len(out)), nil
}

func (r *fakeReportRepo) UpdateNotes(_ context.Context, report *cashsession.SessionReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.reports {
		if r.reports[i].ID != report.ID {
			continue
		}
		if r.reports[i].IsFinal {
			return cashsession.ErrImmutable(report.ID)
		}
		r.reports[i].Notes = report.Notes
		return nil
	}
	return cashsession.ErrReportNotFound
}

// =============================================================================
// Payment records
// =============================================================================

type fakePayments struct {
	mu       sync.Mutex
	payments []payment.Payment

	// beforeRead runs once at the start of the next FindSettledCollectedBy
	beforeRead func()
}

func (f *fakePayments) add(p *payment.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, *p)
}

func (f *fakePayments) FindSettledCollectedBy(_ context.Context, cashierID uuid.UUID, from, to time.Time) ([]payment.Payment, error) {
	if hook := f.takeBeforeRead(); hook != nil {
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payment.Payment
	for _, p := range f.payments {
		if p.Status != payment.StatusPaid || p.Unsettled || p.EnrollmentID == nil {
			continue
		}
		if p.CollectedBy == nil || *p.CollectedBy != cashierID {
			continue
		}
		if p.ProcessedAt == nil || p.ProcessedAt.Before(from) || p.ProcessedAt.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePayments) takeBeforeRead() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	hook := f.beforeRead
	f.beforeRead = nil
	return hook
}

// =============================================================================
// Mocks
// =============================================================================

type MockClassDirectory struct {
	mock.Mock
}

func (m *MockClassDirectory) GetClass(ctx context.Context, id uuid.UUID) (*catalog.Class, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Class), args.Error(1)
}

func (m *MockClassDirectory) GetClasses(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*catalog.Class, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*catalog.Class), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockEventPublisher) publishedTypes() []string {
	var types []string
	for _, call := range m.Calls {
		for _, e := range call.Arguments.Get(1).([]shared.DomainEvent) {
			types = append(types, e.EventType())
		}
	}
	return types
}

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}
