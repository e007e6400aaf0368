package acquisition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Discover(t *testing.T) {
	runDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		request      Request
		listed       []string
		listErr      error
		expectPrefix string
		expectKeys   []string
		expectError  error
	}{
		{
			name: "single match",
			request: Request{
				Dataset: "sales", Bucket: "b", Prefix: "sales/{run_date}/", Pattern: `sales_{run_date}\.csv`,
			},
			listed:       []string{"sales/2024-05-01/sales_2024-05-01.csv", "sales/2024-05-01/readme.txt"},
			expectPrefix: "sales/2024-05-01/",
			expectKeys:   []string{"sales/2024-05-01/sales_2024-05-01.csv"},
		},
		{
			name: "empty listing is not an error",
			request: Request{
				Dataset: "sales", Bucket: "b", Prefix: "sales/{run_date}/", Pattern: `\.csv$`,
			},
			listed:       nil,
			expectPrefix: "sales/2024-05-01/",
			expectKeys:   []string{},
		},
		{
			name: "listing without a match fails",
			request: Request{
				Dataset: "sales", Bucket: "b", Prefix: "sales/", Pattern: `sales_{run_date}\.csv`,
			},
			listed:       []string{"sales/sales_2024-04-30.csv"},
			expectPrefix: "sales/",
			expectError:  ErrPatternMismatch,
		},
		{
			name: "listing order is kept",
			request: Request{
				Dataset: "sales", Bucket: "b", Prefix: "sales/", Pattern: `part`,
				DateFormat: "%Y%m%d",
			},
			listed:       []string{"sales/part-2.csv", "sales/x.csv", "sales/part-1.csv"},
			expectPrefix: "sales/",
			expectKeys:   []string{"sales/part-2.csv", "sales/part-1.csv"},
		},
		{
			name: "custom date format",
			request: Request{
				Dataset: "sales", Bucket: "b", Prefix: "sales/{run_date}/", Pattern: `{run_date}`,
				DateFormat: "%Y%m%d",
			},
			listed:       []string{"sales/20240501/20240501.csv"},
			expectPrefix: "sales/20240501/",
			expectKeys:   []string{"sales/20240501/20240501.csv"},
		},
		{
			name: "list failure is returned",
			request: Request{
				Dataset: "sales", Bucket: "b", Prefix: "sales/", Pattern: `x`,
			},
			listErr:      errors.New("access denied"),
			expectPrefix: "sales/",
			expectError:  errors.New("access denied"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := objectstore.NewMockStore()
			store.ListFunc = func(_ context.Context, _, _ string) ([]objectstore.Object, error) {
				if tt.listErr != nil {
					return nil, tt.listErr
				}

				objects := make([]objectstore.Object, 0, len(tt.listed))
				for _, key := range tt.listed {
					objects = append(objects, objectstore.Object{Key: key, Size: 10})
				}

				return objects, nil
			}

			stage := NewStage(logrus.New(), store)
			objects, err := stage.Discover(context.Background(), tt.request, runDate)

			require.Len(t, store.ListCalls, 1)
			assert.Equal(t, tt.expectPrefix, store.ListCalls[0].Prefix)
			assert.Equal(t, tt.request.Bucket, store.ListCalls[0].Bucket)

			if tt.expectError != nil {
				require.Error(t, err)
				if errors.Is(tt.expectError, ErrPatternMismatch) {
					assert.ErrorIs(t, err, ErrPatternMismatch)
				} else {
					assert.Contains(t, err.Error(), tt.expectError.Error())
				}

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectKeys, objectstore.Keys(objects))
		})
	}
}

func TestStage_Discover_InvalidPattern(t *testing.T) {
	stage := NewStage(logrus.New(), objectstore.NewMockStore())

	_, err := stage.Discover(context.Background(), Request{Bucket: "b", Pattern: "("}, time.Now())
	assert.Error(t, err)
}
