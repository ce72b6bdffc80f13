package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/veilpost/veilpost-backend/pkg/broadcast"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/logger"
	"github.com/veilpost/veilpost-backend/pkg/metrics"
)

const defaultUpvoteThreshold = 10

// ViralSweepJobParams configure the viral sweep.
type ViralSweepJobParams struct {
	Logger      *logger.Logger
	Repository  viralSweepRepo
	Broadcaster broadcast.Broadcaster
	Metrics     *metrics.CronJobMetrics
	Threshold   int64
}

type viralSweepRepo interface {
	ListNonViralWithUpvotesAtLeast(ctx context.Context, threshold int64) ([]models.Post, error)
	MarkViral(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// NewViralSweepJob builds the job that promotes posts past the upvote
// threshold to viral and announces each first-time transition.
func NewViralSweepJob(params ViralSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("posts repository required")
	}
	broadcaster := params.Broadcaster
	if broadcaster == nil {
		broadcaster = broadcast.Noop{}
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = defaultUpvoteThreshold
	}
	return &viralSweepJob{
		logg:        params.Logger,
		repo:        params.Repository,
		broadcaster: broadcaster,
		metrics:     params.Metrics,
		threshold:   threshold,
		now:         time.Now,
	}, nil
}

type viralSweepJob struct {
	logg        *logger.Logger
	repo        viralSweepRepo
	broadcaster broadcast.Broadcaster
	metrics     *metrics.CronJobMetrics
	threshold   int64
	now         func() time.Time
}

func (j *viralSweepJob) Name() string { return "viral-sweep" }

func (j *viralSweepJob) Run(ctx context.Context) error {
	candidates, err := j.repo.ListNonViralWithUpvotesAtLeast(ctx, j.threshold)
	if err != nil {
		return fmt.Errorf("listing sweep candidates: %w", err)
	}

	promoted := 0
	var errs []error
	for _, candidate := range candidates {
		transitioned, err := j.repo.MarkViral(ctx, candidate.ID, j.now().UTC())
		if err != nil {
			// One bad row must not stall the rest of the sweep.
			errs = append(errs, fmt.Errorf("marking post %s viral: %w", candidate.ID, err))
			continue
		}
		if !transitioned {
			continue
		}
		promoted++
		j.announce(ctx, candidate)
	}

	if j.metrics != nil && promoted > 0 {
		j.metrics.AddPromoted(promoted)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"promoted":   promoted,
		"threshold":  j.threshold,
	})
	j.logg.Info(logCtx, "viral sweep complete")
	return multierr.Combine(errs...)
}

func (j *viralSweepJob) announce(ctx context.Context, candidate models.Post) {
	event := broadcast.NewEvent(broadcast.EventViralDetected, map[string]any{
		"post_id":      candidate.ID.String(),
		"upvote_count": candidate.UpvoteCount,
	})
	if err := j.broadcaster.Publish(ctx, event); err != nil {
		logCtx := j.logg.WithPostID(ctx, candidate.ID.String())
		j.logg.Warn(logCtx, fmt.Sprintf("publishing viral event: %v", err))
	}
}
