package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethpandaops/mirror/internal/testutil"
	"github.com/ethpandaops/mirror/pkg/pipeline"
	"github.com/ethpandaops/mirror/pkg/runlock"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLoadFailed = errors.New("load failed")

type fakeRunService struct {
	runFunc func(ctx context.Context, rc pipeline.RunContext) (*pipeline.Report, error)
	runs    []pipeline.RunContext
}

func (f *fakeRunService) NewRunContext(dataset string, intervalEnd time.Time) (pipeline.RunContext, error) {
	if dataset != "sales" {
		return pipeline.RunContext{}, pipeline.ErrUnknownDataset
	}

	return pipeline.NewRunContext(dataset, dataset, intervalEnd), nil
}

func (f *fakeRunService) Run(ctx context.Context, rc pipeline.RunContext) (*pipeline.Report, error) {
	f.runs = append(f.runs, rc)

	if f.runFunc != nil {
		return f.runFunc(ctx, rc)
	}

	return &pipeline.Report{Status: pipeline.StatusSuccess}, nil
}

func ingestTask(t *testing.T, dataset string) *asynq.Task {
	t.Helper()

	task, err := NewIngestTask(IngestPayload{
		Dataset:     dataset,
		IntervalEnd: time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC),
		Trigger:     TriggerSchedule,
	})
	require.NoError(t, err)

	return task
}

func scratchReport(t *testing.T, status string) (*pipeline.Report, string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "sales-2024-05-01-1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.csv"), []byte("a\n"), 0o600))

	return &pipeline.Report{Status: status, ScratchDir: dir}, dir
}

func TestTaskHandler_HandleIngest(t *testing.T) {
	t.Run("success removes scratch directory", func(t *testing.T) {
		report, dir := scratchReport(t, pipeline.StatusSuccess)
		runs := &fakeRunService{runFunc: func(context.Context, pipeline.RunContext) (*pipeline.Report, error) {
			return report, nil
		}}
		h := NewTaskHandler(logrus.New(), runs, nil, HandlerConfig{WorkerID: "w1"})

		require.NoError(t, h.HandleIngest(context.Background(), ingestTask(t, "sales")))
		require.Len(t, runs.runs, 1)
		assert.Equal(t, "sales", runs.runs[0].Dataset)
		assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), runs.runs[0].RunDate)
		assert.NoDirExists(t, dir)
	})

	t.Run("keep scratch", func(t *testing.T) {
		report, dir := scratchReport(t, pipeline.StatusSuccess)
		runs := &fakeRunService{runFunc: func(context.Context, pipeline.RunContext) (*pipeline.Report, error) {
			return report, nil
		}}
		h := NewTaskHandler(logrus.New(), runs, nil, HandlerConfig{WorkerID: "w1", KeepScratch: true})

		require.NoError(t, h.HandleIngest(context.Background(), ingestTask(t, "sales")))
		assert.DirExists(t, dir)
	})

	t.Run("not found is not an error", func(t *testing.T) {
		runs := &fakeRunService{runFunc: func(context.Context, pipeline.RunContext) (*pipeline.Report, error) {
			return &pipeline.Report{Status: pipeline.StatusNotFound}, nil
		}}
		h := NewTaskHandler(logrus.New(), runs, nil, HandlerConfig{WorkerID: "w1"})

		assert.NoError(t, h.HandleIngest(context.Background(), ingestTask(t, "sales")))
	})

	t.Run("failed run is retried and cleaned", func(t *testing.T) {
		report, dir := scratchReport(t, pipeline.StatusFailed)
		runs := &fakeRunService{runFunc: func(context.Context, pipeline.RunContext) (*pipeline.Report, error) {
			return report, errLoadFailed
		}}
		h := NewTaskHandler(logrus.New(), runs, nil, HandlerConfig{WorkerID: "w1"})

		err := h.HandleIngest(context.Background(), ingestTask(t, "sales"))
		require.ErrorIs(t, err, errLoadFailed)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
		assert.NoDirExists(t, dir)
	})

	t.Run("unknown dataset skips retry", func(t *testing.T) {
		runs := &fakeRunService{}
		h := NewTaskHandler(logrus.New(), runs, nil, HandlerConfig{WorkerID: "w1"})

		err := h.HandleIngest(context.Background(), ingestTask(t, "returns"))
		require.ErrorIs(t, err, asynq.SkipRetry)
		assert.ErrorIs(t, err, pipeline.ErrUnknownDataset)
		assert.Empty(t, runs.runs)
	})

	t.Run("invalid payload skips retry", func(t *testing.T) {
		h := NewTaskHandler(logrus.New(), &fakeRunService{}, nil, HandlerConfig{WorkerID: "w1"})

		err := h.HandleIngest(context.Background(), asynq.NewTask(TypeIngest, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestTaskHandler_RunLock(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	locker := runlock.NewLocker(logrus.New(), client, "mirror", time.Minute)

	var heldDuringRun bool

	runs := &fakeRunService{runFunc: func(context.Context, pipeline.RunContext) (*pipeline.Report, error) {
		heldDuringRun = mr.Exists("mirror:lock:sales")
		return &pipeline.Report{Status: pipeline.StatusSuccess}, nil
	}}
	h := NewTaskHandler(logrus.New(), runs, locker, HandlerConfig{WorkerID: "w1"})

	require.NoError(t, h.HandleIngest(context.Background(), ingestTask(t, "sales")))
	assert.True(t, heldDuringRun)
	assert.False(t, mr.Exists("mirror:lock:sales"))

	busy, err := locker.Acquire(context.Background(), "sales")
	require.NoError(t, err)

	err = h.HandleIngest(context.Background(), ingestTask(t, "sales"))
	require.ErrorIs(t, err, runlock.ErrLocked)
	assert.Len(t, runs.runs, 1)

	require.NoError(t, busy.Release(context.Background()))
}

func TestTaskHandler_RunLockOutlivesTTL(t *testing.T) {
	mr, client := testutil.NewMiniredisClient(t)
	locker := runlock.NewLocker(logrus.New(), client, "mirror", 90*time.Millisecond)

	var expired bool

	runs := &fakeRunService{runFunc: func(context.Context, pipeline.RunContext) (*pipeline.Report, error) {
		for i := 0; i < 4; i++ {
			mr.FastForward(60 * time.Millisecond)
			time.Sleep(100 * time.Millisecond)

			if !mr.Exists("mirror:lock:sales") {
				expired = true
			}
		}

		return &pipeline.Report{Status: pipeline.StatusSuccess}, nil
	}}
	h := NewTaskHandler(logrus.New(), runs, locker, HandlerConfig{WorkerID: "w1"})

	require.NoError(t, h.HandleIngest(context.Background(), ingestTask(t, "sales")))
	assert.False(t, expired, "lease expired during a run longer than its TTL")
	assert.False(t, mr.Exists("mirror:lock:sales"))
}

func TestTaskHandler_Routes(t *testing.T) {
	h := NewTaskHandler(logrus.New(), &fakeRunService{}, nil, HandlerConfig{})

	routes := h.Routes()
	assert.Contains(t, routes, TypeIngest)
	assert.NotEmpty(t, h.cfg.WorkerID)
}
