// Package metrics exposes scan and submission counters for Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "skinscan"

// Submission outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeNetwork   = "network_error"
	OutcomeServer    = "server_error"
	OutcomeMalformed = "malformed"
)

var (
	submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Analysis submissions by outcome.",
	}, []string{"outcome"})

	submissionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "submission_duration_seconds",
		Help:      "Wall time from request start to response body read.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	uploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_bytes",
		Help:      "Size of submitted images.",
		Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
	})

	staleResponses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_responses_total",
		Help:      "Responses discarded because the session moved on.",
	})

	phaseTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "phase_transitions_total",
		Help:      "Capture session phase transitions.",
	}, []string{"to"})

	cameraAcquires = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "camera_acquires_total",
		Help:      "Camera acquire attempts by result.",
	}, []string{"result"})
)

var all = []prometheus.Collector{
	submissions, submissionDuration, uploadBytes, staleResponses, phaseTransitions, cameraAcquires,
}

func ObserveSubmission(outcome string, d time.Duration, size int) {
	submissions.WithLabelValues(outcome).Inc()
	if d > 0 {
		submissionDuration.Observe(d.Seconds())
	}
	if size > 0 {
		uploadBytes.Observe(float64(size))
	}
}

// MalformedResponse counts a 2xx payload that failed normalization. The
// transport outcome has already been recorded as ok.
func MalformedResponse() {
	submissions.WithLabelValues(OutcomeMalformed).Inc()
}

func StaleResponse() {
	staleResponses.Inc()
}

func Transition(to string) {
	phaseTransitions.WithLabelValues(to).Inc()
}

func CameraAcquire(result string) {
	cameraAcquires.WithLabelValues(result).Inc()
}
