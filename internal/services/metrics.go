package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// certGenerated counts pipeline runs by template, format and outcome
	// (ok, degraded, failed, busy).
	certGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pledge_certificates_total",
			Help: "Certificate pipeline runs by outcome.",
		},
		[]string{"template", "format", "outcome"},
	)

	// certDuration records generation time only, not persistence.
	certDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pledge_certificate_generation_seconds",
			Help:    "Time spent composing and encoding a certificate.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"template"},
	)

	// fallbacks counts degraded steps.
	fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pledge_pipeline_fallbacks_total",
			Help: "Pipeline steps that fell back or failed without aborting.",
		},
		[]string{"step"},
	)

	// uploads counts object uploads by kind (selfie, certificate) and result.
	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pledge_uploads_total",
			Help: "Object storage uploads by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// mirrorFailures counts failed best-effort writes to the document mirror.
	mirrorFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pledge_mirror_failures_total",
			Help: "Failed writes to the document mirror store.",
		},
	)
)

func init() {
	prometheus.MustRegister(certGenerated, certDuration, fallbacks, uploads, mirrorFailures)
}
