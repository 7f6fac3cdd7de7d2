package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Extraction outcomes.
const (
	outcomeCached   = "cached"
	outcomeCreated  = "created"
	outcomeReplaced = "replaced"
	outcomeConflict = "conflict"
	outcomeNotFound = "not_found"
	outcomeInvalid  = "invalid_domain"
	outcomeError    = "error"
)

var (
	extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logo_extractions_total",
		Help: "Extraction requests by outcome.",
	}, []string{"outcome"})
	strategyHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logo_strategy_hits_total",
		Help: "Extractions won by each acquisition strategy.",
	}, []string{"strategy"})
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logo_download_attempts_total",
		Help: "Candidate downloads by strategy and result.",
	}, []string{"strategy", "result"})
	normalizationDegradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logo_normalization_degraded_total",
		Help: "Artifacts stored unnormalized after a probe or conversion failure.",
	})
	extractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logo_extraction_duration_seconds",
		Help:    "Wall time of extractions that reached the strategies.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	})
)
