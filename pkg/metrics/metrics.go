package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "profilesvc"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	// WebhookEvents counts webhook deliveries by response status (success|ignored|error).
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "webhook_events_total", Help: "Webhook deliveries by outcome status."},
		[]string{"status"},
	)
	// ProvisioningOutcomes counts orchestrator terminal states by stage.
	ProvisioningOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "provisioning_outcomes_total", Help: "Provisioning runs by terminal stage."},
		[]string{"stage"},
	)
	RenderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "render_requests_total", Help: "Profile render requests by result."},
		[]string{"result"},
	)
	RenderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: namespace, Name: "render_duration_seconds", Help: "Time spent compiling profile PDFs.", Buckets: prometheus.DefBuckets},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(WebhookEvents)
	reg.MustRegister(ProvisioningOutcomes)
	reg.MustRegister(RenderRequests)
	reg.MustRegister(RenderDuration)
}
