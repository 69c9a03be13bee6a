package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Propagation failure kinds.
const (
	FailureParse  = "parse"
	FailureSeries = "series"
	FailureSample = "sample"
)

var (
	screeningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panacea_screenings_total",
			Help: "Counterfactual screenings by outcome.",
		},
		[]string{"outcome"},
	)

	screeningDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panacea_screening_duration_seconds",
			Help:    "Wall time of one screening.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	neighborsChecked = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panacea_screening_neighbors_checked",
			Help:    "Neighbours that contributed sample pairs to a screening.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panacea_propagations_total",
			Help: "Objects propagated by result.",
		},
		[]string{"result"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panacea_propagation_batch_duration_seconds",
			Help:    "Wall time of one propagation batch.",
			Buckets: prometheus.DefBuckets,
		},
	)

	propagationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panacea_propagation_failures_total",
			Help: "Propagation failures by kind (parse, series, sample).",
		},
		[]string{"kind"},
	)

	cdmCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panacea_cdm_cache_lookups_total",
			Help: "CDM cache lookups by result.",
		},
		[]string{"result"},
	)

	catalogRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "panacea_catalog_records",
			Help: "Records in the loaded catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "panacea_catalog_age_seconds",
			Help: "Seconds since the loaded catalog was fetched.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		screeningsTotal,
		screeningDurationSeconds,
		neighborsChecked,
		propagationsTotal,
		propagationDurationSeconds,
		propagationFailuresTotal,
		cdmCacheTotal,
		catalogRecords,
		catalogAgeSeconds,
	)
}

// RecordScreening records one finished screening.
func RecordScreening(outcome string, duration time.Duration, checked int) {
	screeningsTotal.WithLabelValues(outcome).Inc()
	screeningDurationSeconds.Observe(duration.Seconds())
	neighborsChecked.Observe(float64(checked))
}

// RecordPropagation records one propagation batch.
func RecordPropagation(duration time.Duration, success, failed int) {
	propagationDurationSeconds.Observe(duration.Seconds())
	propagationsTotal.WithLabelValues("ok").Add(float64(success))
	propagationsTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordPropagationFailure counts one failed object.
func RecordPropagationFailure(kind string) {
	propagationFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordDroppedSamples counts samples skipped inside otherwise usable series.
func RecordDroppedSamples(n int) {
	if n > 0 {
		propagationFailuresTotal.WithLabelValues(FailureSample).Add(float64(n))
	}
}

// RecordCDMCache counts a CDM cache lookup.
func RecordCDMCache(hit bool) {
	if hit {
		cdmCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	cdmCacheTotal.WithLabelValues("miss").Inc()
}

// SetCatalogRecords sets the loaded catalog size.
func SetCatalogRecords(n int) {
	catalogRecords.Set(float64(n))
}

// SetCatalogAge sets the loaded catalog age.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}
