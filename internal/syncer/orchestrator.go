package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/villa-sync-manager/backend/internal/platform"
	"github.com/villa-sync-manager/backend/internal/storage/models"
	"github.com/villa-sync-manager/backend/internal/vault"
	"github.com/villa-sync-manager/backend/pkg/logger"
	"github.com/villa-sync-manager/backend/pkg/metrics"
)

// Precondition failures. Anything past these preconditions terminates in a
// SyncResult and a log entry instead of an error.
var (
	// ErrNotConnected means no active integration exists for the pair.
	ErrNotConnected = errors.New("villa is not connected to platform")
	// ErrAlreadySyncing means a sync for the pair is already in flight.
	ErrAlreadySyncing = errors.New("sync already in progress")
)

// IsNotConnected reports whether err is a missing-integration failure.
func IsNotConnected(err error) bool { return errors.Is(err, ErrNotConnected) }

// IsAlreadySyncing reports whether err is a lock contention failure.
func IsAlreadySyncing(err error) bool { return errors.Is(err, ErrAlreadySyncing) }

// LogRecorder receives the log entry each sync run terminates in.
// Implemented by [Recorder].
type LogRecorder interface {
	Record(entry *models.SyncLogEntry)
}

// Options tunes the orchestrator's sync policy.
type Options struct {
	GraceDays      int           // how far behind now the sync window reaches
	HorizonDays    int           // how far ahead of now the sync window reaches
	MaxAttempts    int           // tries per adapter call for transient errors
	AdapterTimeout time.Duration // per-call deadline for adapter requests
	Parallelism    int           // concurrent platform syncs in SyncAll
	Backoff        BackoffPolicy
	Sleeper        Sleeper
}

func (o Options) withDefaults() Options {
	if o.GraceDays <= 0 {
		o.GraceDays = 30
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = 365
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.AdapterTimeout <= 0 {
		o.AdapterTimeout = 30 * time.Second
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 4
	}
	if o.Backoff == nil {
		o.Backoff = DefaultBackoff
	}
	if o.Sleeper == nil {
		o.Sleeper = RealSleeper{}
	}
	return o
}

// Orchestrator runs sync passes against booking platforms. All state a run
// needs lives in its SyncResult; concurrent runs share nothing but the
// booking store and the lock table.
type Orchestrator struct {
	bookings     BookingStore
	integrations IntegrationStore
	creds        CredentialSource
	adapters     AdapterSource
	recorder     LogRecorder
	locks        *lockTable
	opts         Options
	metrics      *metrics.Metrics
	log          logger.Logger
}

// NewOrchestrator wires an orchestrator. metrics may be nil.
func NewOrchestrator(
	bookings BookingStore,
	integrations IntegrationStore,
	creds CredentialSource,
	adapters AdapterSource,
	recorder LogRecorder,
	m *metrics.Metrics,
	log logger.Logger,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		bookings:     bookings,
		integrations: integrations,
		creds:        creds,
		adapters:     adapters,
		recorder:     recorder,
		locks:        newLockTable(),
		opts:         opts.withDefaults(),
		metrics:      m,
		log:          log,
	}
}

// Window returns the date range sync runs request from platforms.
func (o *Orchestrator) Window(now time.Time) platform.Window {
	return platform.Window{
		Start: now.AddDate(0, 0, -o.opts.GraceDays),
		End:   now.AddDate(0, 0, o.opts.HorizonDays),
	}
}

// SyncPlatform synchronizes one (villa, platform) pair. It returns
// ErrNotConnected or ErrAlreadySyncing when preconditions fail; any other
// outcome, including total failure and cancellation, terminates in a
// SyncResult and a sync log entry.
func (o *Orchestrator) SyncPlatform(ctx context.Context, villaID, platformName string) (*models.SyncResult, error) {
	integ, err := o.integrations.GetActive(ctx, villaID, platformName)
	if err != nil {
		return nil, fmt.Errorf("looking up integration: %w", err)
	}
	if integ == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotConnected, villaID, platformName)
	}

	key := lockKey(villaID, platformName)
	if !o.locks.tryAcquire(key) {
		return nil, fmt.Errorf("%w: %s/%s", ErrAlreadySyncing, villaID, platformName)
	}
	defer o.locks.release(key)

	now := time.Now().UTC()
	result := &models.SyncResult{
		VillaID:   villaID,
		Platform:  platformName,
		Conflicts: []models.ConflictDetail{},
		Errors:    []string{},
		StartedAt: now,
	}

	log := o.log.With("villa", villaID, "platform", platformName)
	log.Info("sync started")

	o.run(ctx, integ, result, log)

	result.FinishedAt = time.Now().UTC()
	o.finish(integ, result, log)

	if result.Status == models.SyncStatusCancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// run executes the fetch/classify/persist pipeline, filling in result.
func (o *Orchestrator) run(ctx context.Context, integ *models.PlatformIntegration, result *models.SyncResult, log logger.Logger) {
	adapter, ok := o.adapters.Get(integ.Platform)
	if !ok {
		result.Status = models.SyncStatusFailed
		result.Errors = append(result.Errors, fmt.Sprintf("no adapter registered for %q", integ.Platform))
		return
	}

	creds, err := o.creds.Get(ctx, integ.CredentialRef)
	if err != nil {
		result.Status = models.SyncStatusFailed
		result.Errors = append(result.Errors, err.Error())
		return
	}

	incoming, err := o.fetchBookings(ctx, adapter, creds, result)
	if err != nil {
		if ctx.Err() != nil {
			result.Status = models.SyncStatusCancelled
			return
		}
		result.Status = models.SyncStatusFailed
		result.Errors = append(result.Errors, vault.Redact(err.Error(), creds))
		if perr, ok := platform.AsError(err); ok {
			o.countError(string(perr.Kind))
			if perr.Kind == platform.AuthFailure {
				o.markAuthFailure(integ, perr, creds, log)
			}
		}
		return
	}

	// Adapters return bookings earliest start first; within one batch the
	// later-starting of two overlapping bookings is the one that flags.
	batch := make(RefSet)
	persistErrors := 0
	for i := range incoming {
		if ctx.Err() != nil {
			result.Status = models.SyncStatusCancelled
			return
		}

		booking := incoming[i]
		booking.VillaID = result.VillaID
		booking.Source = integ.Platform
		if booking.ExternalRef == nil {
			result.Errors = append(result.Errors, "booking without external ref skipped")
			persistErrors++
			continue
		}

		// Re-read the Confirmed set before each classification so a
		// concurrent sync of another platform for this villa is seen.
		existing, err := o.bookings.ListConfirmed(ctx, result.VillaID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reading confirmed bookings: %v", err))
			persistErrors++
			continue
		}

		cls := Classify(existing, booking, batch)
		switch cls.Verdict {
		case VerdictAccept:
			created, updated, err := o.bookings.Upsert(ctx, &booking)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("applying booking %s: %v", *booking.ExternalRef, err))
				persistErrors++
				continue
			}
			batch.Add(*booking.ExternalRef)
			if created {
				result.NewBookings++
				o.countCreated()
			} else if updated {
				result.UpdatedBookings++
				o.countUpdated()
			}

		case VerdictReject, VerdictFlag:
			result.Conflicts = append(result.Conflicts, conflictDetail(&booking, cls))
			o.countConflict(cls.Reason)
			log.Warn("booking conflict",
				"external_ref", *booking.ExternalRef,
				"reason", cls.Reason,
			)
		}
	}

	switch {
	case persistErrors == 0:
		result.Status = models.SyncStatusSuccess
	case result.NewBookings+result.UpdatedBookings > 0 || persistErrors < len(incoming):
		result.Status = models.SyncStatusPartial
	default:
		result.Status = models.SyncStatusFailed
	}
}

// fetchBookings calls the adapter with the retry policy: transient errors
// retried with backoff, auth and malformed failures returned immediately.
func (o *Orchestrator) fetchBookings(ctx context.Context, adapter platform.Adapter, creds *models.CredentialSet, result *models.SyncResult) ([]models.Booking, error) {
	window := o.Window(result.StartedAt)

	var lastErr error
	for attempt := 0; attempt < o.opts.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.AdapterTimeout)
		bookings, err := adapter.FetchBookings(callCtx, creds, window)
		cancel()

		if err == nil {
			return bookings, nil
		}
		lastErr = err

		perr, tagged := platform.AsError(err)
		if !tagged || !perr.Transient() {
			return nil, err
		}

		if attempt < o.opts.MaxAttempts-1 {
			if err := o.opts.Sleeper.Sleep(ctx, o.opts.Backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", o.opts.MaxAttempts, lastErr)
}

// markAuthFailure flags the integration for re-authentication. Auth errors
// are never retried; the owner has to act.
func (o *Orchestrator) markAuthFailure(integ *models.PlatformIntegration, perr *platform.Error, creds *models.CredentialSet, log logger.Logger) {
	msg := vault.Redact(perr.Error(), creds)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.integrations.MarkError(ctx, integ.ID, msg); err != nil {
		log.Error("marking integration errored", "error", err)
	}
	log.Warn("integration requires re-authentication", "reason", msg)
}

// finish records the run's log entry and integration bookkeeping.
func (o *Orchestrator) finish(integ *models.PlatformIntegration, result *models.SyncResult, log logger.Logger) {
	if o.metrics != nil {
		o.metrics.SyncRuns.WithLabelValues(result.Platform, result.Status).Inc()
		o.metrics.SyncDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	}

	summary := fmt.Sprintf("%s: %d new, %d updated, %d conflicts, %d errors",
		result.Status, result.NewBookings, result.UpdatedBookings, len(result.Conflicts), len(result.Errors))

	if result.Status == models.SyncStatusSuccess || result.Status == models.SyncStatusPartial {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.integrations.MarkSynced(ctx, integ.ID, result.FinishedAt, summary); err != nil {
			log.Error("marking integration synced", "error", err)
		}
		cancel()
	}

	o.recorder.Record(models.NewSyncLogEntry(result))

	log.Info("sync finished",
		"status", result.Status,
		"new", result.NewBookings,
		"updated", result.UpdatedBookings,
		"conflicts", len(result.Conflicts),
		"errors", len(result.Errors),
	)
}

func conflictDetail(b *models.Booking, cls Classification) models.ConflictDetail {
	detail := models.ConflictDetail{
		ExternalRef: *b.ExternalRef,
		GuestName:   b.GuestName,
		StartDate:   b.StartDate,
		EndDate:     b.EndDate,
		Reason:      cls.Reason,
	}
	if cls.Conflicting != nil {
		detail.ConflictingID = cls.Conflicting.ID
		detail.ConflictingSource = cls.Conflicting.Source
	}
	return detail
}

func (o *Orchestrator) countCreated() {
	if o.metrics != nil {
		o.metrics.BookingsCreated.Inc()
	}
}

func (o *Orchestrator) countUpdated() {
	if o.metrics != nil {
		o.metrics.BookingsUpdated.Inc()
	}
}

func (o *Orchestrator) countConflict(reason string) {
	if o.metrics != nil {
		o.metrics.Conflicts.WithLabelValues(reason).Inc()
	}
}

func (o *Orchestrator) countError(kind string) {
	if o.metrics != nil {
		o.metrics.SyncErrors.WithLabelValues(kind).Inc()
	}
}

// AggregateResult is the fan-out outcome of SyncAll.
type AggregateResult struct {
	Results         []*models.SyncResult `json:"results"`
	Synced          int                  `json:"synced"`
	Failed          int                  `json:"failed"`
	Skipped         int                  `json:"skipped"`
	NewBookings     int                  `json:"new_bookings"`
	UpdatedBookings int                  `json:"updated_bookings"`
	Conflicts       int                  `json:"conflicts"`
}

// SyncAll fans SyncPlatform out over every active integration of the
// owner's villas with bounded parallelism. Each platform's failure is
// isolated: one failing or locked pair never aborts the others.
func (o *Orchestrator) SyncAll(ctx context.Context, ownerID string) (*AggregateResult, error) {
	integrations, err := o.integrations.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing integrations: %w", err)
	}

	agg := &AggregateResult{Results: []*models.SyncResult{}}
	var mu sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(o.opts.Parallelism)

	for _, integ := range integrations {
		integ := integ
		g.Go(func() error {
			result, err := o.SyncPlatform(ctx, integ.VillaID, integ.Platform)

			mu.Lock()
			defer mu.Unlock()

			if err != nil && result == nil {
				// Precondition failure: the pair is locked or was
				// disconnected between listing and syncing.
				agg.Skipped++
				return nil
			}

			agg.Results = append(agg.Results, result)
			agg.NewBookings += result.NewBookings
			agg.UpdatedBookings += result.UpdatedBookings
			agg.Conflicts += len(result.Conflicts)
			if result.Status == models.SyncStatusFailed || result.Status == models.SyncStatusCancelled {
				agg.Failed++
			} else {
				agg.Synced++
			}
			return nil
		})
	}

	g.Wait()
	return agg, nil
}
