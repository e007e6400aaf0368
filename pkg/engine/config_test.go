package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethpandaops/mirror/internal/testutil"
	"github.com/ethpandaops/mirror/pkg/load"
	"github.com/ethpandaops/mirror/pkg/pipeline"
	"github.com/ethpandaops/mirror/pkg/scheduler"
	"github.com/ethpandaops/mirror/pkg/transfer"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
logging: debug
metricsAddr: ""
redis:
  url: redis://localhost:6379/0
warehouse:
  account: acme-eu1
  user: loader
objectStore:
  region: eu-west-1
scheduler:
  leaderElection: false
datasets:
  - name: sales
    bucket: landing
    prefix: sales/{run_date}
    filePattern: 'orders.*\.csv'
    schedule: "0 6 * * *"
  - name: returns
    bucket: landing
    prefix: returns/{run_date}
    filePattern: 'returns\.csv'
    mode: replace
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Logging)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "mirror", cfg.Redis.Prefix)
	assert.Equal(t, "mirror", cfg.Warehouse.QueryTag)
	assert.Equal(t, 5, cfg.ObjectStore.Concurrency)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, 3, cfg.Queue.MaxRetry)
	assert.False(t, cfg.Scheduler.LeaderElection)
	assert.Equal(t, "UTC", cfg.Scheduler.Location)

	require.Len(t, cfg.Datasets, 2)

	sales := cfg.Datasets[0]
	assert.Equal(t, load.Mode("append"), sales.Mode)
	assert.Equal(t, transfer.MultiMatchPolicy("exactly-one"), sales.MultiMatch)
	assert.Equal(t, "%Y-%m-%d", sales.DateFormat)

	returns := cfg.Datasets[1]
	assert.Equal(t, load.Mode("replace"), returns.Mode)
	assert.Equal(t, transfer.MultiMatchPolicy("exactly-one"), returns.MultiMatch)

	assert.Equal(t, []string{"sales", "returns"}, cfg.DatasetNames())
	assert.Equal(t, []scheduler.Job{{Dataset: "sales", Schedule: "0 6 * * *"}}, cfg.ScheduledJobs())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "datasets: [unterminated"))
	require.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "no datasets",
			mutate:  func(cfg *Config) { cfg.Datasets = nil },
			wantErr: ErrNoDatasets,
		},
		{
			name:    "duplicate dataset",
			mutate:  func(cfg *Config) { cfg.Datasets[1].Name = "sales" },
			wantErr: pipeline.ErrDuplicateDataset,
		},
		{
			name:    "dataset without bucket",
			mutate:  func(cfg *Config) { cfg.Datasets[0].Bucket = "" },
			wantErr: pipeline.ErrBucketRequired,
		},
		{
			name:    "replace dataset loading every match",
			mutate:  func(cfg *Config) { cfg.Datasets[1].MultiMatch = transfer.MultiMatchAll },
			wantErr: pipeline.ErrReplaceMultiMatch,
		},
		{
			name:    "bad schedule",
			mutate:  func(cfg *Config) { cfg.Datasets[0].Schedule = "every morning" },
			wantErr: scheduler.ErrInvalidSchedule,
		},
		{
			name:   "bad log level",
			mutate: func(cfg *Config) { cfg.Logging = "loud" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()

			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.name == "valid":
				require.NoError(t, err)
			default:
				require.Error(t, err)
			}
		})
	}
}

func TestNewService_RequiresRole(t *testing.T) {
	_, err := NewService(t.Context(), logrus.New(), validConfig(t), Roles{})
	require.ErrorIs(t, err, ErrNoRoles)
}

func TestService_SchedulerAndAPI(t *testing.T) {
	_, url := testutil.NewMiniredisURL(t)

	cfg := validConfig(t)
	cfg.Redis.URL = url
	cfg.API.Addr = "127.0.0.1:0"

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	svc, err := NewService(t.Context(), log, cfg, Roles{Scheduler: true, API: true})
	require.NoError(t, err)

	assert.True(t, cfg.API.Enabled)
	assert.Nil(t, svc.worker)
	assert.Nil(t, svc.pipeline)
	assert.NotNil(t, svc.scheduler)
	assert.NotNil(t, svc.api)

	require.NoError(t, svc.Start(t.Context()))
	require.NoError(t, svc.Stop())
}
