// Package metrics provides custom Prometheus metrics for various components
// of the Retkikartta application.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ImagePipelineMetrics contains all Prometheus metrics related to the image
// resolution pipeline.
type ImagePipelineMetrics struct {
	EdgeCacheHits    prometheus.Counter
	EdgeCacheMisses  prometheus.Counter
	MappingHits      prometheus.Counter
	MappingMisses    prometheus.Counter
	ImageDownloads   prometheus.Counter
	DownloadErrors   prometheus.Counter
	DownloadDuration prometheus.Histogram
	MappingsCleaned  prometheus.Counter
	registry         *prometheus.Registry
}

// NewImagePipelineMetrics creates a new instance of ImagePipelineMetrics and
// registers it on the given registry.
func NewImagePipelineMetrics(registry *prometheus.Registry) (*ImagePipelineMetrics, error) {
	m := &ImagePipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ImagePipeline metrics: %w", err)
	}
	return m, nil
}

func (m *ImagePipelineMetrics) initMetrics() {
	m.EdgeCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_pipeline_edge_cache_hits_total",
		Help: "Total number of edge response cache hits.",
	})

	m.EdgeCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_pipeline_edge_cache_misses_total",
		Help: "Total number of edge response cache misses.",
	})

	m.MappingHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_pipeline_mapping_hits_total",
		Help: "Total number of URL cache mapping hits.",
	})

	m.MappingMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_pipeline_mapping_misses_total",
		Help: "Total number of URL cache mapping misses.",
	})

	m.ImageDownloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_pipeline_downloads_total",
		Help: "Total number of origin image downloads.",
	})

	m.DownloadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_pipeline_download_errors_total",
		Help: "Total number of origin image download errors.",
	})

	m.DownloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_pipeline_download_duration_seconds",
		Help:    "Duration of origin image downloads in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	m.MappingsCleaned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_pipeline_mappings_cleaned_total",
		Help: "Total number of expired URL cache mappings removed.",
	})
}

// IncrementEdgeCacheHits increases the edge cache hit counter by one.
func (m *ImagePipelineMetrics) IncrementEdgeCacheHits() {
	m.EdgeCacheHits.Inc()
}

// IncrementEdgeCacheMisses increases the edge cache miss counter by one.
func (m *ImagePipelineMetrics) IncrementEdgeCacheMisses() {
	m.EdgeCacheMisses.Inc()
}

// IncrementMappingHits increases the mapping hit counter by one.
func (m *ImagePipelineMetrics) IncrementMappingHits() {
	m.MappingHits.Inc()
}

// IncrementMappingMisses increases the mapping miss counter by one.
func (m *ImagePipelineMetrics) IncrementMappingMisses() {
	m.MappingMisses.Inc()
}

// IncrementImageDownloads increases the image download counter by one.
func (m *ImagePipelineMetrics) IncrementImageDownloads() {
	m.ImageDownloads.Inc()
}

// IncrementDownloadErrors increases the download error counter by one.
func (m *ImagePipelineMetrics) IncrementDownloadErrors() {
	m.DownloadErrors.Inc()
}

// ObserveDownloadDuration records the duration of an origin download in seconds.
func (m *ImagePipelineMetrics) ObserveDownloadDuration(durationSeconds float64) {
	m.DownloadDuration.Observe(durationSeconds)
}

// AddMappingsCleaned adds the number of removed mappings to the cleanup counter.
func (m *ImagePipelineMetrics) AddMappingsCleaned(count float64) {
	m.MappingsCleaned.Add(count)
}

// Collect implements the prometheus.Collector interface.
func (m *ImagePipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.EdgeCacheHits
	ch <- m.EdgeCacheMisses
	ch <- m.MappingHits
	ch <- m.MappingMisses
	ch <- m.ImageDownloads
	ch <- m.DownloadErrors
	ch <- m.DownloadDuration
	ch <- m.MappingsCleaned
}

// Describe implements the prometheus.Collector interface.
func (m *ImagePipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.EdgeCacheHits.Desc()
	ch <- m.EdgeCacheMisses.Desc()
	ch <- m.MappingHits.Desc()
	ch <- m.MappingMisses.Desc()
	ch <- m.ImageDownloads.Desc()
	ch <- m.DownloadErrors.Desc()
	ch <- m.DownloadDuration.Desc()
	ch <- m.MappingsCleaned.Desc()
}
