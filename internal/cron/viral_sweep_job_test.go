package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veilpost/veilpost-backend/pkg/broadcast"
	"github.com/veilpost/veilpost-backend/pkg/db/models"
	"github.com/veilpost/veilpost-backend/pkg/logger"
)

type fakeSweepRepo struct {
	candidates []models.Post
	listErr    error
	markErr    map[uuid.UUID]error
	viral      map[uuid.UUID]bool
	markCalls  int
}

func (f *fakeSweepRepo) ListNonViralWithUpvotesAtLeast(_ context.Context, _ int64) ([]models.Post, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.candidates, nil
}

func (f *fakeSweepRepo) MarkViral(_ context.Context, id uuid.UUID, _ time.Time) (bool, error) {
	f.markCalls++
	if err := f.markErr[id]; err != nil {
		return false, err
	}
	if f.viral == nil {
		f.viral = map[uuid.UUID]bool{}
	}
	if f.viral[id] {
		return false, nil
	}
	f.viral[id] = true
	return true, nil
}

func newSweepJob(t *testing.T, repo *fakeSweepRepo, recorder *broadcast.Recorder) Job {
	t.Helper()
	job, err := NewViralSweepJob(ViralSweepJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		Repository:  repo,
		Broadcaster: recorder,
		Threshold:   10,
	})
	if err != nil {
		t.Fatalf("NewViralSweepJob: %v", err)
	}
	return job
}

func TestViralSweepPromotesAndAnnouncesOnce(t *testing.T) {
	postA := models.Post{ID: uuid.New(), UpvoteCount: 15}
	postB := models.Post{ID: uuid.New(), UpvoteCount: 11}
	repo := &fakeSweepRepo{candidates: []models.Post{postA, postB}}
	recorder := &broadcast.Recorder{}
	job := newSweepJob(t, repo, recorder)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(recorder.Events()) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recorder.Events()))
	}
	for _, event := range recorder.Events() {
		if event.Type != broadcast.EventViralDetected {
			t.Fatalf("expected %s events, got %s", broadcast.EventViralDetected, event.Type)
		}
	}

	// A repeat sweep over the same candidates announces nothing: the
	// transition already happened.
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(recorder.Events()) != 2 {
		t.Fatalf("expected no new events on repeat sweep, got %d", len(recorder.Events()))
	}
}

func TestViralSweepIsolatesPerPostFailures(t *testing.T) {
	badPost := models.Post{ID: uuid.New(), UpvoteCount: 20}
	goodPost := models.Post{ID: uuid.New(), UpvoteCount: 12}
	repo := &fakeSweepRepo{
		candidates: []models.Post{badPost, goodPost},
		markErr:    map[uuid.UUID]error{badPost.ID: errors.New("boom")},
	}
	recorder := &broadcast.Recorder{}
	job := newSweepJob(t, repo, recorder)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if repo.markCalls != 2 {
		t.Fatalf("expected both posts attempted, got %d", repo.markCalls)
	}
	if len(recorder.Events()) != 1 {
		t.Fatalf("expected the healthy post to be announced, got %d events", len(recorder.Events()))
	}
}

func TestViralSweepPropagatesListErrors(t *testing.T) {
	repo := &fakeSweepRepo{listErr: errors.New("db down")}
	job := newSweepJob(t, repo, &broadcast.Recorder{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
