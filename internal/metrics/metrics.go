// Package metrics exposes Prometheus collectors for the messenger pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"discordmessenger/internal/model"
)

const namespace = "discordmessenger"

// Metrics owns a private registry so tests and reloads never collide on
// global registration.
type Metrics struct {
	reg *prometheus.Registry

	Aggregations   *prometheus.CounterVec   // trigger=auto|manual
	Deliveries     *prometheus.CounterVec   // label, status
	DeliveryDur    *prometheus.HistogramVec // label
	DeliveredBytes prometheus.Counter
	Probes         *prometheus.CounterVec // status
	ProbeDur       prometheus.Histogram
	WebhookStatus  *prometheus.GaugeVec // status, 1 for the current one
	BusFaults      *prometheus.CounterVec
	AutoMode       prometheus.Gauge
	Reloads        prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      "Trading-status snapshots published.",
		}, []string{"trigger"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Finished webhook deliveries.",
		}, []string{"label", "status"}),
		DeliveryDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Time from send start to outcome, including the screenshot wait.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"label"}),
		DeliveredBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_screenshot_bytes_total",
			Help:      "Screenshot bytes accepted by every webhook.",
		}),
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_probes_total",
			Help:      "Webhook health rounds by outcome.",
		}, []string{"status"}),
		ProbeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "health_probe_duration_seconds",
			Help:      "Duration of one health round over all webhooks.",
			Buckets:   prometheus.DefBuckets,
		}),
		WebhookStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "webhook_status",
			Help:      "1 for the latest health classification, 0 otherwise.",
		}, []string{"status"}),
		BusFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_faults_total",
			Help:      "Event handlers that returned an error or panicked.",
		}, []string{"event"}),
		AutoMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auto_mode_enabled",
			Help:      "1 while automatic sends are enabled.",
		}),
		Reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Applied configuration reloads.",
		}),
	}
	m.reg.MustRegister(
		m.Aggregations, m.Deliveries, m.DeliveryDur, m.DeliveredBytes,
		m.Probes, m.ProbeDur, m.WebhookStatus, m.BusFaults, m.AutoMode, m.Reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveAggregation(manual bool) {
	trigger := "auto"
	if manual {
		trigger = "manual"
	}
	m.Aggregations.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ObserveDelivery(label string, status model.Status, bytes int64, took time.Duration) {
	m.Deliveries.WithLabelValues(label, string(status)).Inc()
	m.DeliveryDur.WithLabelValues(label).Observe(took.Seconds())
	if status == model.StatusSuccess && bytes > 0 {
		m.DeliveredBytes.Add(float64(bytes))
	}
}

func (m *Metrics) ObserveProbe(status model.Status, took time.Duration) {
	m.Probes.WithLabelValues(string(status)).Inc()
	m.ProbeDur.Observe(took.Seconds())
	for _, s := range []model.Status{model.StatusSuccess, model.StatusPartialSuccess, model.StatusFailed} {
		v := 0.0
		if s == status {
			v = 1
		}
		m.WebhookStatus.WithLabelValues(string(s)).Set(v)
	}
}

func (m *Metrics) ObserveFault(event string) { m.BusFaults.WithLabelValues(event).Inc() }

func (m *Metrics) SetAutoMode(mode model.AutoMode) {
	if mode == model.AutoEnabled {
		m.AutoMode.Set(1)
		return
	}
	m.AutoMode.Set(0)
}
