package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/mirror/pkg/pipeline"
	"github.com/ethpandaops/mirror/pkg/tasks"
	"github.com/gofiber/fiber/v3"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errQueueDown = errors.New("queue down")

type mockDatasets struct {
	datasets []pipeline.Dataset
}

func (m *mockDatasets) Datasets() []pipeline.Dataset { return m.datasets }

func (m *mockDatasets) Dataset(name string) (pipeline.Dataset, bool) {
	for _, ds := range m.datasets {
		if ds.Name == name {
			return ds, true
		}
	}

	return pipeline.Dataset{}, false
}

type mockQueue struct {
	payloads []tasks.IngestPayload
	requeued bool
	err      error
}

func (m *mockQueue) Enqueue(_ context.Context, p tasks.IngestPayload, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}

	m.payloads = append(m.payloads, p)

	return &asynq.TaskInfo{ID: p.UniqueID(), Queue: p.QueueName(), State: asynq.TaskStatePending}, nil
}

func (m *mockQueue) Requeue(ctx context.Context, p tasks.IngestPayload, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.requeued = true
	return m.Enqueue(ctx, p, opts...)
}

type mockSchedule struct {
	last map[string]time.Time
}

func (m *mockSchedule) LastScheduled(_ context.Context, dataset string) (time.Time, error) {
	return m.last[dataset], nil
}

func testDatasets() *mockDatasets {
	return &mockDatasets{datasets: []pipeline.Dataset{
		{Name: "returns", Bucket: "landing", Prefix: "returns/{run_date}", FilePattern: `returns\.csv`, Mode: "replace", MultiMatch: "exactly-one"},
		{Name: "sales", Bucket: "landing", Prefix: "sales/{run_date}", FilePattern: `orders.*\.csv`, Mode: "append", MultiMatch: "exactly-one", Schedule: "0 6 * * *"},
	}}
}

func newTestApp(queue *mockQueue, schedule ScheduleReader) (*fiber.App, *Server) {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	server := NewServer(testDatasets(), queue, schedule, log)
	server.now = func() time.Time { return time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC) }

	app := fiber.New()
	server.Register(app.Group("/api/v1"))

	return app, server
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, out))
}

func TestListDatasets(t *testing.T) {
	last := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	app, _ := newTestApp(&mockQueue{}, &mockSchedule{last: map[string]time.Time{"sales": last}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/datasets", http.NoBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Datasets []DatasetSummary `json:"datasets"`
		Total    int              `json:"total"`
	}
	decode(t, resp, &body)

	require.Equal(t, 2, body.Total)
	assert.Equal(t, "returns", body.Datasets[0].Name)
	assert.Nil(t, body.Datasets[0].LastScheduled)

	sales := body.Datasets[1]
	assert.Equal(t, "MIRROR_DB.MIRROR.SALES", sales.Table)
	assert.Equal(t, "MIRROR_DB.MIRROR.STG_SALES", sales.Stage)
	assert.Equal(t, "0 6 * * *", sales.Schedule)
	require.NotNil(t, sales.LastScheduled)
	assert.True(t, last.Equal(*sales.LastScheduled))
}

func TestGetDataset(t *testing.T) {
	tests := []struct {
		name       string
		dataset    string
		wantStatus int
	}{
		{name: "configured", dataset: "sales", wantStatus: fiber.StatusOK},
		{name: "unknown", dataset: "refunds", wantStatus: fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(&mockQueue{}, nil)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/datasets/"+tt.dataset, http.NoBody))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestCreateRun(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		queueErr    error
		wantStatus  int
		wantRunDate string
		wantRequeue bool
	}{
		{
			name:        "defaults interval end to now",
			body:        `{"dataset":"sales"}`,
			wantStatus:  fiber.StatusAccepted,
			wantRunDate: "2024-05-01",
		},
		{
			name:        "explicit interval end",
			body:        `{"dataset":"sales","interval_end":"2024-04-30T23:59:00Z"}`,
			wantStatus:  fiber.StatusAccepted,
			wantRunDate: "2024-04-30",
		},
		{
			name:        "requeue",
			body:        `{"dataset":"sales","requeue":true}`,
			wantStatus:  fiber.StatusAccepted,
			wantRunDate: "2024-05-01",
			wantRequeue: true,
		},
		{name: "unknown dataset", body: `{"dataset":"refunds"}`, wantStatus: fiber.StatusNotFound},
		{name: "missing dataset", body: `{}`, wantStatus: fiber.StatusBadRequest},
		{name: "malformed body", body: `{"dataset":`, wantStatus: fiber.StatusBadRequest},
		{name: "already queued", body: `{"dataset":"sales"}`, queueErr: tasks.ErrAlreadyQueued, wantStatus: fiber.StatusConflict},
		{name: "queue failure", body: `{"dataset":"sales"}`, queueErr: errQueueDown, wantStatus: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := &mockQueue{err: tt.queueErr}
			app, _ := newTestApp(queue, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus != fiber.StatusAccepted {
				return
			}

			var run RunResponse
			decode(t, resp, &run)

			assert.Equal(t, "sales", run.Dataset)
			assert.Equal(t, "sales", run.Queue)
			assert.Equal(t, tt.wantRunDate, run.RunDate)
			assert.Equal(t, "sales:"+tt.wantRunDate, run.TaskID)
			assert.Equal(t, "pending", run.State)
			assert.Equal(t, tt.wantRequeue, queue.requeued)

			require.Len(t, queue.payloads, 1)
			assert.Equal(t, tasks.TriggerAPI, queue.payloads[0].Trigger)
		})
	}
}
