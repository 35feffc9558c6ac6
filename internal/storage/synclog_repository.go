package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/villa-sync-manager/backend/internal/storage/models"
)

// SyncLogRepository provides append-only access to the sync log.
type SyncLogRepository struct {
	BaseRepository
}

// NewSyncLogRepository creates a new sync log repository.
func NewSyncLogRepository(db *DB) *SyncLogRepository {
	return &SyncLogRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Insert appends a sync log entry. Entries are never updated or deleted.
func (r *SyncLogRepository) Insert(ctx context.Context, entry *models.SyncLogEntry) error {
	if entry.ID == "" {
		entry.ID = GenerateID()
	}
	entry.CreatedAt = r.Now()

	conflicts, err := json.Marshal(entry.Conflicts)
	if err != nil {
		return fmt.Errorf("encoding conflicts: %w", err)
	}
	errs, err := json.Marshal(entry.Errors)
	if err != nil {
		return fmt.Errorf("encoding errors: %w", err)
	}

	_, err = r.DB().ExecContext(ctx, `
		INSERT INTO sync_log_entries (
			id, villa_id, platform, status, new_bookings, updated_bookings,
			conflict_count, error_count, conflicts, errors, started_at, finished_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.VillaID, entry.Platform, entry.Status,
		entry.NewBookings, entry.UpdatedBookings, entry.ConflictCount, entry.ErrorCount,
		string(conflicts), string(errs), entry.StartedAt, entry.FinishedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting sync log entry: %w", err)
	}

	return nil
}

// List retrieves sync log entries matching the filter, newest first.
func (r *SyncLogRepository) List(ctx context.Context, filter models.SyncLogFilter) ([]models.SyncLogEntry, error) {
	var conditions []string
	var args []any

	if filter.VillaID != "" {
		conditions = append(conditions, "villa_id = ?")
		args = append(args, filter.VillaID)
	}
	if filter.Platform != "" {
		conditions = append(conditions, "platform = ?")
		args = append(args, filter.Platform)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "started_at < ?")
		args = append(args, filter.To)
	}

	query := `
		SELECT id, villa_id, platform, status, new_bookings, updated_bookings,
		       conflict_count, error_count, conflicts, errors, started_at, finished_at, created_at
		FROM sync_log_entries
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sync log: %w", err)
	}
	defer rows.Close()

	var entries []models.SyncLogEntry
	for rows.Next() {
		var e models.SyncLogEntry
		var conflicts, errs string
		if err := rows.Scan(
			&e.ID, &e.VillaID, &e.Platform, &e.Status,
			&e.NewBookings, &e.UpdatedBookings, &e.ConflictCount, &e.ErrorCount,
			&conflicts, &errs, &e.StartedAt, &e.FinishedAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning sync log entry: %w", err)
		}
		if err := json.Unmarshal([]byte(conflicts), &e.Conflicts); err != nil {
			return nil, fmt.Errorf("decoding conflicts: %w", err)
		}
		if err := json.Unmarshal([]byte(errs), &e.Errors); err != nil {
			return nil, fmt.Errorf("decoding errors: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Statistics aggregates sync outcomes, optionally scoped to a villa.
func (r *SyncLogRepository) Statistics(ctx context.Context, villaID string) (*models.SyncStatistics, error) {
	query := `
		SELECT status, platform, COUNT(*), SUM(new_bookings), SUM(updated_bookings),
		       SUM(conflict_count), SUM(error_count), MAX(started_at)
		FROM sync_log_entries
	`
	var args []any
	if villaID != "" {
		query += " WHERE villa_id = ?"
		args = append(args, villaID)
	}
	query += " GROUP BY status, platform"

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sync statistics: %w", err)
	}
	defer rows.Close()

	stats := &models.SyncStatistics{
		ByStatus:   make(map[string]int),
		ByPlatform: make(map[string]int),
	}
	for rows.Next() {
		var status, platform string
		var runs, created, updated, conflicts, errCount int
		var lastRun *time.Time
		if err := rows.Scan(&status, &platform, &runs, &created, &updated, &conflicts, &errCount, &lastRun); err != nil {
			return nil, fmt.Errorf("scanning sync statistics: %w", err)
		}

		stats.TotalRuns += runs
		stats.ByStatus[status] += runs
		stats.ByPlatform[platform] += runs
		stats.NewBookings += created
		stats.UpdatedBookings += updated
		stats.Conflicts += conflicts
		stats.Errors += errCount
		if lastRun != nil && (stats.LastRunAt == nil || lastRun.After(*stats.LastRunAt)) {
			stats.LastRunAt = lastRun
		}
	}

	return stats, rows.Err()
}
