package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry              *prometheus.Registry
	RequestsTotal         *prometheus.CounterVec
	RequestDuration       prometheus.Histogram
	PagesTotal            prometheus.Counter
	ItemsScrapedTotal     prometheus.Counter
	ItemFailuresTotal     prometheus.Counter
	ImagesDownloadedTotal prometheus.Counter
	ImageFailuresTotal    prometheus.Counter
	RetriesTotal          prometheus.Counter
	ErrorsTotal           *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_listing_pages_total",
			Help: "Total number of listing pages fetched.",
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of game records added to the dataset.",
		},
	)
	itemFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_item_failures_total",
			Help: "Total number of items dropped after fetch or parse failures.",
		},
	)
	imagesDownloaded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_images_downloaded_total",
			Help: "Total number of poster images published to disk.",
		},
	)
	imageFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_image_failures_total",
			Help: "Total number of poster downloads that failed.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, itemsScraped, itemFailures, imagesDownloaded, imageFailures, retries, errorsTotal)

	return &Metrics{
		Registry:              registry,
		RequestsTotal:         requests,
		RequestDuration:       requestDuration,
		PagesTotal:            pages,
		ItemsScrapedTotal:     itemsScraped,
		ItemFailuresTotal:     itemFailures,
		ImagesDownloadedTotal: imagesDownloaded,
		ImageFailuresTotal:    imageFailures,
		RetriesTotal:          retries,
		ErrorsTotal:           errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the listing pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncItems increments the collected items counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncItemFailures increments the dropped items counter.
func (m *Metrics) IncItemFailures() {
	if m == nil {
		return
	}
	m.ItemFailuresTotal.Inc()
}

// IncImages increments the published images counter.
func (m *Metrics) IncImages() {
	if m == nil {
		return
	}
	m.ImagesDownloadedTotal.Inc()
}

// IncImageFailures increments the failed image downloads counter.
func (m *Metrics) IncImageFailures() {
	if m == nil {
		return
	}
	m.ImageFailuresTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
