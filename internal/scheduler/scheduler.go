// Package scheduler drives periodic background syncs for integrations that
// have auto-sync enabled. Each integration gets its own cron entry at its
// configured interval; the entry set is refreshed from storage so enabling,
// disabling, or re-tuning an integration takes effect without a restart.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/villa-sync-manager/backend/internal/storage"
	"github.com/villa-sync-manager/backend/internal/storage/models"
	"github.com/villa-sync-manager/backend/internal/syncer"
	"github.com/villa-sync-manager/backend/pkg/logger"
)

// refreshSpec is how often the scheduler reconciles its cron entries with
// the integrations table.
const refreshSpec = "@every 5m"

// Syncer is the part of the orchestrator the scheduler drives.
type Syncer interface {
	SyncPlatform(ctx context.Context, villaID, platformName string) (*models.SyncResult, error)
}

type job struct {
	entryID     cron.EntryID
	intervalMin int
}

// Scheduler runs auto-sync integrations on their configured intervals.
type Scheduler struct {
	cron         *cron.Cron
	integrations *storage.IntegrationRepository
	syncer       Syncer
	log          logger.Logger

	mu   sync.Mutex
	jobs map[string]job // integration ID -> cron entry
}

// New creates a scheduler. Call Start to begin running jobs.
func New(integrations *storage.IntegrationRepository, s Syncer, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		integrations: integrations,
		syncer:       s,
		log:          log,
		jobs:         map[string]job{},
	}
}

// Start loads the current auto-sync integrations and begins the cron loop.
func (s *Scheduler) Start() {
	s.log.Info("starting sync scheduler")

	s.refresh()
	if _, err := s.cron.AddFunc(refreshSpec, s.refresh); err != nil {
		s.log.Error("scheduling refresh pass", "error", err)
	}

	s.cron.Start()
	s.log.Info("sync scheduler started", "jobs", len(s.jobs))
}

// Stop shuts the scheduler down, waiting for any running job to finish.
func (s *Scheduler) Stop() {
	s.log.Info("stopping sync scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("sync scheduler stopped")
}

// refresh reconciles cron entries with the integrations table: new
// integrations get entries, removed or disabled ones lose theirs, and
// interval changes reschedule.
func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	integrations, err := s.integrations.ListAutoSync(ctx)
	if err != nil {
		s.log.Error("listing auto-sync integrations", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	for _, integ := range integrations {
		seen[integ.ID] = true

		existing, ok := s.jobs[integ.ID]
		if ok && existing.intervalMin == integ.SyncIntervalMin {
			continue
		}
		if ok {
			s.cron.Remove(existing.entryID)
		}

		integ := integ
		spec := fmt.Sprintf("@every %dm", integ.SyncIntervalMin)
		entryID, err := s.cron.AddFunc(spec, func() {
			s.runSync(integ.VillaID, integ.Platform)
		})
		if err != nil {
			s.log.Error("scheduling integration", "integration", integ.ID, "error", err)
			continue
		}
		s.jobs[integ.ID] = job{entryID: entryID, intervalMin: integ.SyncIntervalMin}
		s.log.Info("integration scheduled",
			"integration", integ.ID,
			"villa", integ.VillaID,
			"platform", integ.Platform,
			"interval_min", integ.SyncIntervalMin,
		)
	}

	for id, j := range s.jobs {
		if !seen[id] {
			s.cron.Remove(j.entryID)
			delete(s.jobs, id)
			s.log.Info("integration unscheduled", "integration", id)
		}
	}
}

func (s *Scheduler) runSync(villaID, platformName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := s.syncer.SyncPlatform(ctx, villaID, platformName)
	switch {
	case err == nil:
		return
	case syncer.IsAlreadySyncing(err):
		// A manual sync beat us to the lock; the next tick catches up.
		s.log.Debug("scheduled sync skipped", "villa", villaID, "platform", platformName)
	case result != nil:
		s.log.Warn("scheduled sync ended early",
			"villa", villaID, "platform", platformName, "status", result.Status)
	default:
		s.log.Error("scheduled sync failed",
			"villa", villaID, "platform", platformName, "error", err)
	}
}
