package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sign results recorded by PlaybackSigns.
const (
	SignHit        = "hit"
	SignMiss       = "miss"
	SignCacheError = "cache_error"
	SignFailed     = "failed"
)

// Metrics holds the Prometheus collectors for the lifecycle and playback paths.
type Metrics struct {
	WebhookEvents     *prometheus.CounterVec
	SignatureFailures prometheus.Counter
	RemoteFetches     *prometheus.CounterVec
	PlaybackSigns     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which keeps tests independent of the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnstream",
			Name:      "webhook_events_total",
			Help:      "Webhook events processed, by event type and result status.",
		}, []string{"type", "status"}),
		SignatureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "learnstream",
			Name:      "webhook_signature_failures_total",
			Help:      "Webhook requests rejected by signature verification.",
		}),
		RemoteFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnstream",
			Name:      "provider_asset_fetches_total",
			Help:      "Remote asset lookups during reconciliation, by outcome.",
		}, []string{"outcome"}),
		PlaybackSigns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "learnstream",
			Name:      "playback_sign_total",
			Help:      "Signed playback URL requests, by cache result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.WebhookEvents, m.SignatureFailures, m.RemoteFetches, m.PlaybackSigns)
	}
	return m
}

// ObserveWebhook is safe on a nil receiver.
func (m *Metrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, status).Inc()
}

func (m *Metrics) ObserveSignatureFailure() {
	if m == nil {
		return
	}
	m.SignatureFailures.Inc()
}

func (m *Metrics) ObserveRemoteFetch(outcome string) {
	if m == nil {
		return
	}
	m.RemoteFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePlaybackSign(result string) {
	if m == nil {
		return
	}
	m.PlaybackSigns.WithLabelValues(result).Inc()
}
