// Package metrics holds the Prometheus collectors shared by the ingestion and
// query paths.
package metrics

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/findly/internal/apperr"
)

const (
	OutcomeOK         = "ok"
	OutcomeSkipped    = "skipped"
	OutcomeNotIndexed = "not_indexed"
	OutcomeCanceled   = "canceled"
	OutcomeError      = "error"
)

var (
	IngestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "findly_ingest_total",
		Help: "Ingestion calls by outcome.",
	}, []string{"outcome"})

	IngestedChunks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "findly_ingested_chunks_total",
		Help: "Chunks written to the document store.",
	})

	QueryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "findly_query_total",
		Help: "Question answering calls by mode and outcome.",
	}, []string{"mode", "outcome"})

	StageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "findly_stage_seconds",
		Help:    "Latency of pipeline stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
)

var registerOnce sync.Once

// Register adds every collector to reg. Later calls are no-ops.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(IngestTotal, IngestedChunks, QueryTotal, StageSeconds)
	})
}

// Outcome labels err for the *_total counters.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeCanceled
	}
	if k, ok := apperr.KindOf(err); ok {
		return string(k)
	}
	return OutcomeError
}
