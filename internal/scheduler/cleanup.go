package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	dbgen "github.com/codr1/touchline/internal/db/dbgen"
)

const (
	DraftCleanupJobName = "draft_cleanup"
	draftCleanupTimeout = time.Minute
)

// DraftCleanup deletes drafts of Done games and drafts older than Retention.
type DraftCleanup struct {
	Queries   *dbgen.Queries
	Retention time.Duration
	Now       func() time.Time
}

func RegisterDraftCleanup(s *Service, cronExpr string, job *DraftCleanup) error {
	if job == nil || job.Queries == nil {
		return fmt.Errorf("draft cleanup job requires database")
	}
	_, err := s.AddJob(DraftCleanupJobName, cronExpr, draftCleanupTimeout, func(ctx context.Context) {
		deleted, err := job.Run(ctx)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Draft cleanup failed")
			return
		}
		log.Ctx(ctx).Info().Int64("deleted", deleted).Msg("Stale drafts removed")
	})
	if err != nil {
		return fmt.Errorf("add draft cleanup job: %w", err)
	}
	return nil
}

func (c *DraftCleanup) Run(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	if c.Now != nil {
		now = c.Now()
	}
	deleted, err := c.Queries.DeleteStaleDrafts(ctx, now.Add(-c.Retention))
	if err != nil {
		return 0, fmt.Errorf("delete stale drafts: %w", err)
	}
	return deleted, nil
}
