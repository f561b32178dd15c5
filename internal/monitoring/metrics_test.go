package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncScrapes("ok")
	m.IncScrapes("ok")
	m.ObserveFetch("cycletls", false)
	m.ObserveFetch("standard", true)
	m.ObserveImage(true)
	m.ObserveImage(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("cycletls", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("standard", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImagesProcessed.WithLabelValues("failed")))
}
