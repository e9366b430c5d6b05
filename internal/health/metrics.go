package health

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the latest health sample as Prometheus gauges.
type Metrics struct {
	live      prometheus.Gauge
	width     prometheus.Gauge
	height    prometheus.Gauge
	frameRate prometheus.Gauge
	samples   prometheus.Counter
	skipped   prometheus.Counter
}

// NewMetrics creates and registers the health metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scopeview_stream_live",
			Help: "Whether the active stream's primary track is live (1) or not (0)",
		}),
		width: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scopeview_stream_width_pixels",
			Help: "Current frame width of the active stream",
		}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scopeview_stream_height_pixels",
			Help: "Current frame height of the active stream",
		}),
		frameRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scopeview_stream_frame_rate",
			Help: "Current frame rate of the active stream",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scopeview_health_samples_total",
			Help: "Total number of health samples taken",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scopeview_health_samples_skipped_total",
			Help: "Total number of sampling ticks skipped due to sampling faults",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.live, m.width, m.height, m.frameRate, m.samples, m.skipped)
	}
	return m
}

func (m *Metrics) observe(live bool, width, height int, frameRate float64) {
	if m == nil {
		return
	}
	if live {
		m.live.Set(1)
	} else {
		m.live.Set(0)
	}
	m.width.Set(float64(width))
	m.height.Set(float64(height))
	m.frameRate.Set(frameRate)
	m.samples.Inc()
}

func (m *Metrics) observeSkip() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

func (m *Metrics) clear() {
	if m == nil {
		return
	}
	m.live.Set(0)
	m.width.Set(0)
	m.height.Set(0)
	m.frameRate.Set(0)
}
