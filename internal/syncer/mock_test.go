package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/villa-sync-manager/backend/internal/platform"
	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// --- Mock booking store ------------------------------------------------------

type mockBookings struct {
	mu       sync.Mutex
	bookings []models.Booking
	nextID   int
	listErr  error
	upsertErr error
}

func newMockBookings(existing ...models.Booking) *mockBookings {
	m := &mockBookings{}
	for _, b := range existing {
		m.nextID++
		if b.ID == "" {
			b.ID = fmt.Sprintf("bk-%d", m.nextID)
		}
		m.bookings = append(m.bookings, b)
	}
	return m
}

func (m *mockBookings) ListConfirmed(_ context.Context, villaID string) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	var confirmed []models.Booking
	for _, b := range m.bookings {
		if b.VillaID == villaID && b.Status == models.BookingStatusConfirmed {
			confirmed = append(confirmed, b)
		}
	}
	return confirmed, nil
}

func (m *mockBookings) Upsert(_ context.Context, b *models.Booking) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return false, false, m.upsertErr
	}
	if b.ExternalRef == nil {
		return false, false, fmt.Errorf("upsert requires an external ref")
	}

	for i := range m.bookings {
		existing := &m.bookings[i]
		if existing.VillaID != b.VillaID || existing.Source != b.Source ||
			existing.ExternalRef == nil || *existing.ExternalRef != *b.ExternalRef {
			continue
		}

		if existing.StartDate.Equal(b.StartDate) && existing.EndDate.Equal(b.EndDate) &&
			existing.Status == b.Status && existing.GuestName == b.GuestName &&
			existing.TotalFare == b.TotalFare {
			return false, false, nil
		}

		b.ID = existing.ID
		*existing = *b
		return false, true, nil
	}

	m.nextID++
	b.ID = fmt.Sprintf("bk-%d", m.nextID)
	m.bookings = append(m.bookings, *b)
	return true, false, nil
}

func (m *mockBookings) get(villaID, source, ref string) *models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bookings {
		b := &m.bookings[i]
		if b.VillaID == villaID && b.Source == source && b.ExternalRef != nil && *b.ExternalRef == ref {
			cp := *b
			return &cp
		}
	}
	return nil
}

func (m *mockBookings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

// --- Mock integration store --------------------------------------------------

type mockIntegrations struct {
	mu           sync.Mutex
	integrations []models.PlatformIntegration
	synced       []string // integration IDs MarkSynced was called for
	errored      map[string]string // integration ID → message
}

func newMockIntegrations(integrations ...models.PlatformIntegration) *mockIntegrations {
	return &mockIntegrations{integrations: integrations, errored: make(map[string]string)}
}

func (m *mockIntegrations) GetActive(_ context.Context, villaID, platformName string) (*models.PlatformIntegration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.integrations {
		integ := &m.integrations[i]
		if integ.VillaID == villaID && integ.Platform == platformName && integ.Status != models.IntegrationStatusDisabled {
			cp := *integ
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockIntegrations) ListActiveByOwner(_ context.Context, ownerID string) ([]models.PlatformIntegration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.PlatformIntegration
	for _, integ := range m.integrations {
		if integ.OwnerID == ownerID && integ.Status != models.IntegrationStatusDisabled {
			list = append(list, integ)
		}
	}
	return list, nil
}

func (m *mockIntegrations) MarkSynced(_ context.Context, id string, _ time.Time, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, id)
	return nil
}

func (m *mockIntegrations) MarkError(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errored[id] = message
	for i := range m.integrations {
		if m.integrations[i].ID == id {
			m.integrations[i].Status = models.IntegrationStatusError
		}
	}
	return nil
}

func (m *mockIntegrations) errorMessage(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.errored[id]
	return msg, ok
}

// --- Mock credential source --------------------------------------------------

type mockCreds struct {
	sets map[string]*models.CredentialSet
}

func newMockCreds(sets ...*models.CredentialSet) *mockCreds {
	m := &mockCreds{sets: make(map[string]*models.CredentialSet)}
	for _, c := range sets {
		m.sets[c.ID] = c
	}
	return m
}

func (m *mockCreds) Get(_ context.Context, ref string) (*models.CredentialSet, error) {
	c, ok := m.sets[ref]
	if !ok {
		return nil, fmt.Errorf("credential set not found: %s", ref)
	}
	return c, nil
}

// --- Fake adapter ------------------------------------------------------------

// fetchResult is one scripted response of a fake adapter.
type fetchResult struct {
	bookings []models.Booking
	err      error
}

// fakeAdapter serves scripted FetchBookings responses in order, repeating
// the last one when the script runs out.
type fakeAdapter struct {
	name    string
	mu      sync.Mutex
	script  []fetchResult
	calls   int
	onFetch func(ctx context.Context) // runs before answering, may block
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) FetchBookings(ctx context.Context, _ *models.CredentialSet, _ platform.Window) ([]models.Booking, error) {
	if a.onFetch != nil {
		a.onFetch(ctx)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.calls
	a.calls++
	if idx >= len(a.script) {
		idx = len(a.script) - 1
	}
	res := a.script[idx]

	// Each run gets fresh copies: the orchestrator mutates VillaID.
	bookings := make([]models.Booking, len(res.bookings))
	copy(bookings, res.bookings)
	return bookings, res.err
}

func (a *fakeAdapter) FetchCalendar(context.Context, *models.CredentialSet, platform.Window) ([]models.CalendarEvent, error) {
	return nil, platform.ErrCapabilityNotSupported
}

func (a *fakeAdapter) PublishListing(context.Context, *models.CredentialSet, *models.Villa) (string, error) {
	return "", platform.ErrCapabilityNotSupported
}

func (a *fakeAdapter) UpdateListing(context.Context, *models.CredentialSet, string, *models.Villa) error {
	return platform.ErrCapabilityNotSupported
}

func (a *fakeAdapter) DeleteListing(context.Context, *models.CredentialSet, string) error {
	return platform.ErrCapabilityNotSupported
}

func (a *fakeAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// --- Mock adapter source -----------------------------------------------------

type mockAdapters struct {
	adapters map[string]platform.Adapter
}

func newMockAdapters(adapters ...platform.Adapter) *mockAdapters {
	m := &mockAdapters{adapters: make(map[string]platform.Adapter)}
	for _, a := range adapters {
		m.adapters[a.Name()] = a
	}
	return m
}

func (m *mockAdapters) Get(name string) (platform.Adapter, bool) {
	a, ok := m.adapters[name]
	return a, ok
}

// --- Capture recorder --------------------------------------------------------

// captureRecorder records entries synchronously so tests can assert on them
// without draining a queue.
type captureRecorder struct {
	mu      sync.Mutex
	entries []*models.SyncLogEntry
}

func (r *captureRecorder) Record(entry *models.SyncLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *captureRecorder) last() *models.SyncLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	return r.entries[len(r.entries)-1]
}

func (r *captureRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// --- Fake sleeper ------------------------------------------------------------

// fakeSleeper records requested delays without waiting.
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *fakeSleeper) sleepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}
