// Package observability provides metrics and monitoring capabilities for the
// Retkikartta application.
package observability

import (
	"fmt"
	"net/http"

	"github.com/jtoivane/retkikartta/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry      *prometheus.Registry
	ImagePipeline *metrics.ImagePipelineMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors. It returns an error if any metric collector fails to
// initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	imagePipelineMetrics, err := metrics.NewImagePipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ImagePipeline metrics: %w", err)
	}

	return &Metrics{
		registry:      registry,
		ImagePipeline: imagePipelineMetrics,
	}, nil
}

// Handler returns an http.Handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
