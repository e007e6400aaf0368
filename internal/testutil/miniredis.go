package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewMiniredisClient starts an in-memory Redis and a client connected to it.
// Both are closed when the test completes.
func NewMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Logf("failed to close miniredis client: %v", err)
		}
	})

	return mr, client
}

// NewMiniredisURL starts an in-memory Redis and returns a redis:// URL for it
func NewMiniredisURL(t *testing.T) (*miniredis.Miniredis, string) {
	t.Helper()

	mr := miniredis.RunT(t)

	return mr, "redis://" + mr.Addr()
}
