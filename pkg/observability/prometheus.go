// Package observability provides metrics for mirror runs and their collaborators
package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

//nolint:gochecknoglobals // Singleton pattern for metrics server
var (
	metricsServerMu       sync.Mutex
	metricsServerInstance *http.Server
)

// StartMetricsServer starts a Prometheus metrics server unless one is already running.
// An empty address disables the server.
func StartMetricsServer(log logrus.FieldLogger, addr string) {
	if addr == "" {
		return
	}

	metricsServerMu.Lock()
	defer metricsServerMu.Unlock()

	if metricsServerInstance != nil {
		return
	}

	sm := http.NewServeMux()
	sm.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 15 * time.Second,
		Handler:           sm,
	}
	metricsServerInstance = srv

	go func() {
		log.WithField("addr", addr).Info("Starting metrics server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
}

// StopMetricsServer shuts the metrics server down if it was started
func StopMetricsServer(ctx context.Context) error {
	metricsServerMu.Lock()
	defer metricsServerMu.Unlock()

	if metricsServerInstance == nil {
		return nil
	}

	err := metricsServerInstance.Shutdown(ctx)
	metricsServerInstance = nil

	return err
}
