package sender

import (
	"github.com/prometheus/client_golang/prometheus"
	"time"
)

// Metrics 发送相关的prometheus指标，多个Session可以共用一个
type Metrics struct {
	events  *prometheus.CounterVec
	bytes   prometheus.Counter
	latency prometheus.Histogram
}

// NewMetrics 创建并注册到reg，reg为nil时只创建不注册
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "event_sender",
			Name:      "events_total",
			Help:      "Events handed to a sender session, by result.",
		}, []string{"result"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "event_sender",
			Name:      "sent_bytes_total",
			Help:      "Frame bytes (header and body) fully written to the socket.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "event_sender",
			Name:      "send_duration_seconds",
			Help:      "Time spent in a send call, including connect.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.events, m.bytes, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(err error, frameLen int, dr time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ErrorKind(err)).Inc()
	if err == nil {
		m.bytes.Add(float64(frameLen))
	}
	m.latency.Observe(dr.Seconds())
}
