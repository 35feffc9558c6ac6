package syncer

import (
	"context"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
	"github.com/villa-sync-manager/backend/pkg/logger"
)

// Recorder writes sync log entries without ever failing the sync that
// produced them. Entries are buffered and persisted by a background worker
// that retries transient storage errors on its own schedule.
type Recorder struct {
	store LogStore
	log   logger.Logger

	queue chan *models.SyncLogEntry
	done  chan struct{}
}

// NewRecorder creates a recorder. Call Start before recording and Close on
// shutdown to drain the buffer.
func NewRecorder(store LogStore, log logger.Logger) *Recorder {
	return &Recorder{
		store: store,
		log:   log,
		queue: make(chan *models.SyncLogEntry, 256),
		done:  make(chan struct{}),
	}
}

// Start launches the background writer.
func (r *Recorder) Start() {
	go r.run()
}

// Record enqueues an entry. It never blocks: if the buffer is full the
// entry is persisted on its own goroutine instead of being dropped.
func (r *Recorder) Record(entry *models.SyncLogEntry) {
	select {
	case r.queue <- entry:
	default:
		go r.persist(entry)
	}
}

// Close stops accepting entries and drains the buffer.
func (r *Recorder) Close() {
	close(r.queue)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		r.persist(entry)
	}
}

// persist writes one entry, retrying transient storage errors. The sync
// run that produced the entry has already returned; losing the entry is
// the only remaining failure mode, so the last resort is a logged dump.
func (r *Recorder) persist(entry *models.SyncLogEntry) {
	var err error
	for attempt := 0; attempt < defaultMaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = r.store.Insert(ctx, entry)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(DefaultBackoff(attempt))
	}

	r.log.Error("sync log entry could not be persisted",
		"villa", entry.VillaID,
		"platform", entry.Platform,
		"status", entry.Status,
		"error", err,
	)
}
