package tasks

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestPayload_Identity(t *testing.T) {
	p := IngestPayload{
		Dataset:     "sales",
		IntervalEnd: time.Date(2024, 5, 1, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600)),
	}

	assert.Equal(t, "2024-05-02", p.RunDate())
	assert.Equal(t, "sales:2024-05-02", p.UniqueID())
	assert.Equal(t, "sales", p.QueueName())
}

func TestIngestPayload_Validate(t *testing.T) {
	tests := []struct {
		name        string
		payload     IngestPayload
		expectError error
	}{
		{
			name:    "valid",
			payload: IngestPayload{Dataset: "sales", IntervalEnd: time.Now()},
		},
		{
			name:        "missing dataset",
			payload:     IngestPayload{IntervalEnd: time.Now()},
			expectError: ErrDatasetRequired,
		},
		{
			name:        "missing interval end",
			payload:     IngestPayload{Dataset: "sales"},
			expectError: ErrIntervalEndRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewIngestTask_RoundTrip(t *testing.T) {
	in := IngestPayload{
		Dataset:     "sales",
		IntervalEnd: time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC),
		Trigger:     TriggerAPI,
	}

	task, err := NewIngestTask(in)
	require.NoError(t, err)
	assert.Equal(t, TypeIngest, task.Type())

	out, err := ParseIngestPayload(task)
	require.NoError(t, err)
	assert.Equal(t, in.Dataset, out.Dataset)
	assert.True(t, in.IntervalEnd.Equal(out.IntervalEnd))
	assert.Equal(t, TriggerAPI, out.Trigger)

	_, err = NewIngestTask(IngestPayload{})
	assert.ErrorIs(t, err, ErrDatasetRequired)
}

func TestParseIngestPayload_Invalid(t *testing.T) {
	_, err := ParseIngestPayload(asynq.NewTask(TypeIngest, []byte("not json")))
	assert.Error(t, err)

	_, err = ParseIngestPayload(asynq.NewTask(TypeIngest, []byte(`{"dataset":"sales"}`)))
	assert.ErrorIs(t, err, ErrIntervalEndRequired)
}
