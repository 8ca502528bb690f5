package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/brightsmile-hq/brightsmile-portal/internal/jobs"
)

// CacheInvalidator clears every cached permission snapshot after a sweep
// changes grant state.
type CacheInvalidator interface {
	InvalidateAllPermissionCaches(ctx context.Context) error
}

// ExpirySweepJob deactivates role assignments and permission overrides whose
// expiry has lapsed. Resolvers already ignore expired rows; the sweep keeps
// the tables honest so ad-hoc queries and reports see the same picture.
type ExpirySweepJob struct {
	Pool        *pgxpool.Pool
	Invalidator CacheInvalidator
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewExpirySweepJob initialises the sweep handler.
func NewExpirySweepJob(pool *pgxpool.Pool, invalidator CacheInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirySweepJob {
	return &ExpirySweepJob{
		Pool:        pool,
		Invalidator: invalidator,
		Logger:      logger,
		Metrics:     metrics,
	}
}

// Handle executes one sweep run.
func (j *ExpirySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("expiry sweep: handler not configured")
	}
	var payload ExpirySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTypeExpirySweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	assignments, err := j.sweep(ctx, "user_roles", payload.BatchLimit)
	if err != nil {
		resultErr = err
		return resultErr
	}
	overrides, err := j.sweep(ctx, "user_permissions", payload.BatchLimit)
	if err != nil {
		resultErr = err
		return resultErr
	}

	j.metrics().AddSwept("role_assignment", assignments)
	j.metrics().AddSwept("permission_override", overrides)

	if assignments+overrides > 0 {
		j.logger().Info("expiry sweep",
			slog.Int64("role_assignments", assignments),
			slog.Int64("permission_overrides", overrides))
		if j.Invalidator != nil {
			if err := j.Invalidator.InvalidateAllPermissionCaches(ctx); err != nil {
				j.logger().Warn("invalidate caches after sweep", slog.Any("error", err))
			}
		}
	}
	return nil
}

func (j *ExpirySweepJob) sweep(ctx context.Context, table string, limit int) (int64, error) {
	// table is one of two compile-time constants, never user input.
	query := `
		UPDATE ` + table + ` SET is_active = FALSE
		WHERE is_active AND expires_at IS NOT NULL AND expires_at < NOW()`
	if limit > 0 {
		query = `
		UPDATE ` + table + ` SET is_active = FALSE
		WHERE id IN (
			SELECT id FROM ` + table + `
			WHERE is_active AND expires_at IS NOT NULL AND expires_at < NOW()
			LIMIT $1
		)`
		tag, err := j.Pool.Exec(ctx, query, limit)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	tag, err := j.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (j *ExpirySweepJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}

func (j *ExpirySweepJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
