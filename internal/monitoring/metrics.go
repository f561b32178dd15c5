package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ScrapesTotal    *prometheus.CounterVec
	FetchAttempts   *prometheus.CounterVec
	ImagesProcessed *prometheus.CounterVec
	ScrapeDuration  prometheus.Histogram
}

// NewMetrics registers the metrics on reg; nil uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ScrapesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "variantpad_scrapes_total",
			Help: "The total number of product pages scraped",
		}, []string{"outcome"}), // ok, invalid_input, retrieval_failed, empty
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "variantpad_fetch_attempts_total",
			Help: "Retrieval attempts by route and outcome",
		}, []string{"strategy", "outcome"}),
		ImagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "variantpad_images_processed_total",
			Help: "Images run through the pad transform",
		}, []string{"outcome"}),
		ScrapeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "variantpad_scrape_duration_seconds",
			Help:    "Time spent fetching and resolving one product page",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncScrapes(outcome string) {
	m.ScrapesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(strategy string, ok bool) {
	m.FetchAttempts.WithLabelValues(strategy, outcome(ok)).Inc()
}

func (m *Metrics) ObserveImage(ok bool) {
	m.ImagesProcessed.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) ObserveScrapeDuration(d time.Duration) {
	m.ScrapeDuration.Observe(d.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
