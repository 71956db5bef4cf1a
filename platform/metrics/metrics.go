package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "model_status_transitions",
		Help: "Model lifecycle status transitions",
	}, []string{"from", "to"})

	webhookRejectMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_auth_rejections",
		Help: "Webhooks rejected for missing or invalid credentials",
	})

	trainingStartMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "training_starts", Help: "Training jobs started"})

	generationMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "image_generations", Help: "Image generation requests"})
)

func RecordTransition(from, to string) {
	transitionMetric.WithLabelValues(from, to).Inc()
}

func RecordWebhookRejection() {
	webhookRejectMetric.Inc()
}

func RecordTrainingStart() {
	trainingStartMetric.Observe(1)
}

func RecordGeneration(count int) {
	generationMetric.Observe(float64(count))
}
