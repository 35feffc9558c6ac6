package syncer

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/villa-sync-manager/backend/internal/platform"
	"github.com/villa-sync-manager/backend/internal/storage/models"
	"github.com/villa-sync-manager/backend/pkg/logger"
)

func testIntegration(id, villaID, platformName string) models.PlatformIntegration {
	return models.PlatformIntegration{
		ID:            id,
		OwnerID:       "owner-1",
		VillaID:       villaID,
		Platform:      platformName,
		CredentialRef: "cred-" + platformName,
		Status:        models.IntegrationStatusActive,
	}
}

func testCreds(platformName string) *models.CredentialSet {
	return &models.CredentialSet{
		ID:       "cred-" + platformName,
		OwnerID:  "owner-1",
		Platform: platformName,
		Secrets:  map[string]string{"api_key": "hunter2secret"},
	}
}

type fixture struct {
	bookings     *mockBookings
	integrations *mockIntegrations
	adapters     *mockAdapters
	recorder     *captureRecorder
	sleeper      *fakeSleeper
	orch         *Orchestrator
}

func newFixture(bookings *mockBookings, integrations *mockIntegrations, adapters *mockAdapters, creds ...*models.CredentialSet) *fixture {
	f := &fixture{
		bookings:     bookings,
		integrations: integrations,
		adapters:     adapters,
		recorder:     &captureRecorder{},
		sleeper:      &fakeSleeper{},
	}
	f.orch = NewOrchestrator(
		bookings, integrations, newMockCreds(creds...), adapters,
		f.recorder, nil, logger.NewNop(),
		Options{Sleeper: f.sleeper},
	)
	return f
}

// ---------------------------------------------------------------------------
// Scenario 1: fresh feed → bookings created, run logged, integration marked
// ---------------------------------------------------------------------------

func TestSyncPlatform_NewBookings_Created(t *testing.T) {
	adapter := &fakeAdapter{name: "airbnb", script: []fetchResult{{
		bookings: []models.Booking{
			booking("airbnb", "A-1", day(2026, 4, 1), day(2026, 4, 5), models.BookingStatusConfirmed),
			booking("airbnb", "A-2", day(2026, 4, 10), day(2026, 4, 12), models.BookingStatusConfirmed),
		},
	}}}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "airbnb")),
		newMockAdapters(adapter),
		testCreds("airbnb"),
	)

	result, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.SyncStatusSuccess {
		t.Errorf("status = %q, want success", result.Status)
	}
	if result.NewBookings != 2 {
		t.Errorf("new bookings = %d, want 2", result.NewBookings)
	}
	if got := f.bookings.get("villa-1", "airbnb", "A-1"); got == nil {
		t.Errorf("booking A-1 not persisted")
	} else if got.VillaID != "villa-1" {
		t.Errorf("persisted villa = %q, want villa-1", got.VillaID)
	}

	entry := f.recorder.last()
	if entry == nil {
		t.Fatal("no sync log entry recorded")
	}
	if entry.NewBookings != 2 || entry.Status != models.SyncStatusSuccess {
		t.Errorf("entry = %+v, want 2 new / success", entry)
	}
	if len(f.integrations.synced) != 1 {
		t.Errorf("MarkSynced calls = %d, want 1", len(f.integrations.synced))
	}
}

// ---------------------------------------------------------------------------
// Scenario 2: re-running with unchanged remote data is a no-op
// ---------------------------------------------------------------------------

func TestSyncPlatform_UnchangedFeed_Idempotent(t *testing.T) {
	adapter := &fakeAdapter{name: "airbnb", script: []fetchResult{{
		bookings: []models.Booking{
			booking("airbnb", "A-1", day(2026, 4, 1), day(2026, 4, 5), models.BookingStatusConfirmed),
		},
	}}}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "airbnb")),
		newMockAdapters(adapter),
		testCreds("airbnb"),
	)

	first, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.NewBookings != 1 {
		t.Errorf("first run new = %d, want 1", first.NewBookings)
	}
	if second.NewBookings != 0 || second.UpdatedBookings != 0 {
		t.Errorf("second run new = %d updated = %d, want 0/0", second.NewBookings, second.UpdatedBookings)
	}
	if second.Status != models.SyncStatusSuccess {
		t.Errorf("second run status = %q, want success", second.Status)
	}
	if f.bookings.count() != 1 {
		t.Errorf("stored bookings = %d, want 1", f.bookings.count())
	}
}

// ---------------------------------------------------------------------------
// Scenario 3: changed dates on a known ref → update in place
// ---------------------------------------------------------------------------

func TestSyncPlatform_ModifiedBooking_Updated(t *testing.T) {
	adapter := &fakeAdapter{name: "airbnb", script: []fetchResult{
		{bookings: []models.Booking{
			booking("airbnb", "A-1", day(2026, 4, 1), day(2026, 4, 5), models.BookingStatusConfirmed),
		}},
		{bookings: []models.Booking{
			booking("airbnb", "A-1", day(2026, 4, 1), day(2026, 4, 7), models.BookingStatusConfirmed),
		}},
	}}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "airbnb")),
		newMockAdapters(adapter),
		testCreds("airbnb"),
	)

	if _, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if second.UpdatedBookings != 1 || second.NewBookings != 0 {
		t.Errorf("second run new = %d updated = %d, want 0/1", second.NewBookings, second.UpdatedBookings)
	}
	got := f.bookings.get("villa-1", "airbnb", "A-1")
	if got == nil || !got.EndDate.Equal(day(2026, 4, 7)) {
		t.Errorf("booking not extended: %+v", got)
	}
	if f.bookings.count() != 1 {
		t.Errorf("stored bookings = %d, want 1 (no duplicate)", f.bookings.count())
	}
}

// ---------------------------------------------------------------------------
// Scenario 4: cross-platform overlap → flagged, local booking untouched
// ---------------------------------------------------------------------------

func TestSyncPlatform_CrossPlatformConflict_Flagged(t *testing.T) {
	existing := booking("airbnb", "A-1", day(2026, 3, 10), day(2026, 3, 15), models.BookingStatusConfirmed)
	existing.VillaID = "villa-1"

	adapter := &fakeAdapter{name: "booking_com", script: []fetchResult{{
		bookings: []models.Booking{
			booking("booking_com", "B-1", day(2026, 3, 12), day(2026, 3, 18), models.BookingStatusConfirmed),
		},
	}}}

	f := newFixture(
		newMockBookings(existing),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "booking_com")),
		newMockAdapters(adapter),
		testCreds("booking_com"),
	)

	result, err := f.orch.SyncPlatform(context.Background(), "villa-1", "booking_com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(result.Conflicts))
	}
	conflict := result.Conflicts[0]
	if conflict.Reason != ReasonCrossPlatformConflict {
		t.Errorf("reason = %q, want %q", conflict.Reason, ReasonCrossPlatformConflict)
	}
	if conflict.ConflictingSource != "airbnb" {
		t.Errorf("conflicting source = %q, want airbnb", conflict.ConflictingSource)
	}
	if f.bookings.get("villa-1", "booking_com", "B-1") != nil {
		t.Error("conflicting booking must not be persisted")
	}
	if result.Status != models.SyncStatusSuccess {
		t.Errorf("status = %q, want success (conflicts are not errors)", result.Status)
	}
}

// ---------------------------------------------------------------------------
// Scenario 5: transient failures retried with backoff, then succeed
// ---------------------------------------------------------------------------

func TestSyncPlatform_TransientError_Retried(t *testing.T) {
	adapter := &fakeAdapter{name: "airbnb", script: []fetchResult{
		{err: &platform.Error{Kind: platform.Unreachable, Message: "connection refused"}},
		{err: &platform.Error{Kind: platform.RateLimited, Message: "429"}},
		{bookings: []models.Booking{
			booking("airbnb", "A-1", day(2026, 4, 1), day(2026, 4, 5), models.BookingStatusConfirmed),
		}},
	}}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "airbnb")),
		newMockAdapters(adapter),
		testCreds("airbnb"),
	)

	result, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.SyncStatusSuccess {
		t.Errorf("status = %q, want success", result.Status)
	}
	if adapter.callCount() != 3 {
		t.Errorf("adapter calls = %d, want 3", adapter.callCount())
	}
	if f.sleeper.sleepCount() != 2 {
		t.Errorf("backoff sleeps = %d, want 2", f.sleeper.sleepCount())
	}
}

// ---------------------------------------------------------------------------
// Scenario 6: transient failures exhaust the retry budget → failed run
// ---------------------------------------------------------------------------

func TestSyncPlatform_RetriesExhausted_Failed(t *testing.T) {
	adapter := &fakeAdapter{name: "airbnb", script: []fetchResult{
		{err: &platform.Error{Kind: platform.Unreachable, Message: "connection refused"}},
	}}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "airbnb")),
		newMockAdapters(adapter),
		testCreds("airbnb"),
	)

	result, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.SyncStatusFailed {
		t.Errorf("status = %q, want failed", result.Status)
	}
	if adapter.callCount() != defaultMaxAttempts {
		t.Errorf("adapter calls = %d, want %d", adapter.callCount(), defaultMaxAttempts)
	}
	if entry := f.recorder.last(); entry == nil || entry.Status != models.SyncStatusFailed {
		t.Errorf("failed run must still be logged, got %+v", entry)
	}
	if len(f.integrations.synced) != 0 {
		t.Error("failed run must not mark the integration synced")
	}
}

// ---------------------------------------------------------------------------
// Scenario 7: auth failure → no retry, integration flagged for re-auth
// ---------------------------------------------------------------------------

func TestSyncPlatform_AuthFailure_MarksIntegration(t *testing.T) {
	adapter := &fakeAdapter{name: "airbnb", script: []fetchResult{
		{err: &platform.Error{Kind: platform.AuthFailure, Message: "401 unauthorized"}},
	}}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "airbnb")),
		newMockAdapters(adapter),
		testCreds("airbnb"),
	)

	result, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != models.SyncStatusFailed {
		t.Errorf("status = %q, want failed", result.Status)
	}
	if adapter.callCount() != 1 {
		t.Errorf("adapter calls = %d, want 1 (auth failures are not retried)", adapter.callCount())
	}
	if _, flagged := f.integrations.errorMessage("integ-1"); !flagged {
		t.Error("integration not marked errored")
	}
}

// ---------------------------------------------------------------------------
// Scenario 8: credential material never reaches the sync log
// ---------------------------------------------------------------------------

func TestSyncPlatform_ErrorMessages_Redacted(t *testing.T) {
	secret := testCreds("airbnb").Secrets["api_key"]
	adapter := &fakeAdapter{name: "airbnb", script: []fetchResult{
		{err: &platform.Error{Kind: platform.AuthFailure, Message: "401 for key " + secret}},
	}}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "airbnb")),
		newMockAdapters(adapter),
		testCreds("airbnb"),
	)

	result, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, msg := range result.Errors {
		if strings.Contains(msg, secret) {
			t.Errorf("result error leaks secret: %q", msg)
		}
	}
	entry := f.recorder.last()
	if entry == nil {
		t.Fatal("no entry recorded")
	}
	for _, msg := range entry.Errors {
		if strings.Contains(msg, secret) {
			t.Errorf("log entry leaks secret: %q", msg)
		}
	}
	if msg, ok := f.integrations.errorMessage("integ-1"); ok && strings.Contains(msg, secret) {
		t.Errorf("integration error leaks secret: %q", msg)
	}
}

// ---------------------------------------------------------------------------
// Scenario 9: not connected
// ---------------------------------------------------------------------------

func TestSyncPlatform_NotConnected(t *testing.T) {
	f := newFixture(
		newMockBookings(),
		newMockIntegrations(), // no integrations
		newMockAdapters(&fakeAdapter{name: "airbnb", script: []fetchResult{{}}}),
		testCreds("airbnb"),
	)

	result, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if !IsNotConnected(err) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if result != nil {
		t.Errorf("result = %+v, want nil", result)
	}
	if f.recorder.count() != 0 {
		t.Error("precondition failure must not log a run")
	}
}

// ---------------------------------------------------------------------------
// Scenario 10: concurrent trigger for the same pair fails fast
// ---------------------------------------------------------------------------

func TestSyncPlatform_ConcurrentRun_AlreadySyncing(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	adapter := &fakeAdapter{
		name:   "airbnb",
		script: []fetchResult{{}},
		onFetch: func(context.Context) {
			close(started)
			<-release
		},
	}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "airbnb")),
		newMockAdapters(adapter),
		testCreds("airbnb"),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	}()

	<-started
	_, err := f.orch.SyncPlatform(context.Background(), "villa-1", "airbnb")
	if !IsAlreadySyncing(err) {
		t.Errorf("err = %v, want ErrAlreadySyncing", err)
	}

	close(release)
	wg.Wait()

	// The lock is released once the first run finishes.
	if !f.orch.locks.tryAcquire(lockKey("villa-1", "airbnb")) {
		t.Error("lock still held after sync finished")
	}
}

// ---------------------------------------------------------------------------
// Scenario 11: cancellation mid-run → cancelled entry, partial progress kept
// ---------------------------------------------------------------------------

func TestSyncPlatform_Cancelled_Logged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	adapter := &fakeAdapter{
		name: "airbnb",
		script: []fetchResult{{
			bookings: []models.Booking{
				booking("airbnb", "A-1", day(2026, 4, 1), day(2026, 4, 5), models.BookingStatusConfirmed),
				booking("airbnb", "A-2", day(2026, 4, 10), day(2026, 4, 12), models.BookingStatusConfirmed),
			},
		}},
		onFetch: func(context.Context) {
			// Cancel after the fetch: the per-booking loop must stop.
			cancel()
		},
	}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(testIntegration("integ-1", "villa-1", "airbnb")),
		newMockAdapters(adapter),
		testCreds("airbnb"),
	)

	result, err := f.orch.SyncPlatform(ctx, "villa-1", "airbnb")
	if err == nil {
		t.Fatal("expected context error")
	}
	if result.Status != models.SyncStatusCancelled {
		t.Errorf("status = %q, want cancelled", result.Status)
	}
	if entry := f.recorder.last(); entry == nil || entry.Status != models.SyncStatusCancelled {
		t.Errorf("cancelled run must still be logged, got %+v", entry)
	}
}

// ---------------------------------------------------------------------------
// Scenario 12: SyncAll isolates platform failures
// ---------------------------------------------------------------------------

func TestSyncAll_FailureIsolation(t *testing.T) {
	good := &fakeAdapter{name: "airbnb", script: []fetchResult{{
		bookings: []models.Booking{
			booking("airbnb", "A-1", day(2026, 4, 1), day(2026, 4, 5), models.BookingStatusConfirmed),
		},
	}}}
	bad := &fakeAdapter{name: "booking_com", script: []fetchResult{
		{err: &platform.Error{Kind: platform.AuthFailure, Message: "401"}},
	}}

	f := newFixture(
		newMockBookings(),
		newMockIntegrations(
			testIntegration("integ-1", "villa-1", "airbnb"),
			testIntegration("integ-2", "villa-1", "booking_com"),
		),
		newMockAdapters(good, bad),
		testCreds("airbnb"), testCreds("booking_com"),
	)

	agg, err := f.orch.SyncAll(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(agg.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(agg.Results))
	}
	if agg.Synced != 1 || agg.Failed != 1 {
		t.Errorf("synced = %d failed = %d, want 1/1", agg.Synced, agg.Failed)
	}
	if agg.NewBookings != 1 {
		t.Errorf("new bookings = %d, want 1", agg.NewBookings)
	}
	if f.bookings.get("villa-1", "airbnb", "A-1") == nil {
		t.Error("healthy platform's booking must be persisted despite the other failing")
	}
}

// ---------------------------------------------------------------------------
// Scenario 13: SyncAll with no integrations
// ---------------------------------------------------------------------------

func TestSyncAll_NoIntegrations_Empty(t *testing.T) {
	f := newFixture(
		newMockBookings(),
		newMockIntegrations(),
		newMockAdapters(),
	)

	agg, err := f.orch.SyncAll(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agg.Results) != 0 || agg.Synced != 0 || agg.Failed != 0 {
		t.Errorf("aggregate = %+v, want empty", agg)
	}
}

// ---------------------------------------------------------------------------
// Scenario 14: sync window spans grace and horizon
// ---------------------------------------------------------------------------

func TestWindow_GraceAndHorizon(t *testing.T) {
	f := newFixture(newMockBookings(), newMockIntegrations(), newMockAdapters())

	now := day(2026, 6, 15)
	w := f.orch.Window(now)

	if got := now.Sub(w.Start); got != 30*24*time.Hour {
		t.Errorf("grace = %v, want 30 days", got)
	}
	if got := w.End.Sub(now); got != 365*24*time.Hour {
		t.Errorf("horizon = %v, want 365 days", got)
	}
}
