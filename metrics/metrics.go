// Package metrics exposes Prometheus counters for registry operations and a
// standalone metrics HTTP server.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// VersionsPublished counts successful ledger publishes.
	VersionsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plugin_registry",
		Name:      "versions_published_total",
		Help:      "Number of versions published at the ledger frontier.",
	})

	// VersionsEdited counts successful in-place ledger edits.
	VersionsEdited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plugin_registry",
		Name:      "versions_edited_total",
		Help:      "Number of ledger entries rewritten in place.",
	})

	// InstancesRegistered counts instance records created.
	InstancesRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plugin_registry",
		Name:      "instances_registered_total",
		Help:      "Number of instance records created.",
	})

	// UpgradesApplied counts committed single-step upgrades.
	UpgradesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "plugin_registry",
		Name:      "upgrades_applied_total",
		Help:      "Number of instance upgrades committed.",
	})

	// UpgradesFailed counts upgrade requests rejected or failed, by reason.
	UpgradesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plugin_registry",
		Name:      "upgrades_failed_total",
		Help:      "Number of instance upgrade requests that did not commit.",
	}, []string{"reason"})
)

// MetricsServer serves the Prometheus scrape endpoint on its own listener,
// separate from the API server.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given service name and listen address.
func New(name, listenAddr string) (*MetricsServer, error) {
	// Metric names cannot contain hyphens.
	namespace := strings.ReplaceAll(name, "-", "_")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		VersionsPublished,
		VersionsEdited,
		InstancesRegistered,
		UpgradesApplied,
		UpgradesFailed,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv: &http.Server{
			Addr:         listenAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
