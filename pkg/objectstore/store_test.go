package objectstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError error
	}{
		{
			name:   "default chain",
			config: Config{Region: "eu-west-1", Concurrency: 5},
		},
		{
			name:   "static credentials",
			config: Config{Concurrency: 1, AccessKeyID: "key", SecretAccessKey: "secret"},
		},
		{
			name:        "half a key pair",
			config:      Config{Concurrency: 1, AccessKeyID: "key"},
			expectError: ErrIncompleteCredentials,
		},
		{
			name:        "zero concurrency",
			config:      Config{},
			expectError: ErrInvalidConcurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocalPathFor(t *testing.T) {
	dir := t.TempDir()

	p, err := LocalPathFor(dir, "dataset_configs/dev/sales", "dataset_configs/dev/sales/mirror.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mirror.yaml"), p)

	p, err = LocalPathFor(dir, "dataset_configs/dev/sales/", "dataset_configs/dev/sales/nested/extra.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "extra.yaml"), p)

	_, err = LocalPathFor(dir, "cfg/", "cfg/../../etc/passwd")
	assert.ErrorIs(t, err, ErrUnsafeKey)
}

func TestKeys(t *testing.T) {
	objects := []Object{{Key: "b"}, {Key: "a"}}
	assert.Equal(t, []string{"b", "a"}, Keys(objects))
	assert.Empty(t, Keys(nil))
}
