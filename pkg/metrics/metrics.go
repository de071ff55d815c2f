package metrics

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metrics *Metrics
)

func SetGlobal(m *Metrics) {
	metrics = m
}

type Gauge interface {
	Inc()
	Dec()
	Add(float64)
	Set(float64)
}

type Counter interface {
	Inc()
	Add(float64)
}

type Observer interface {
	Observe(float64)
}

// noop stands in for every metric while metrics are disabled.
type noop struct{}

func (noop) Inc()            {}
func (noop) Dec()            {}
func (noop) Add(float64)     {}
func (noop) Set(float64)     {}
func (noop) Observe(float64) {}

type Metrics struct {
	host             string
	services         *prometheus.GaugeVec
	connections      *prometheus.GaugeVec
	streams          *prometheus.GaugeVec
	requests         *prometheus.CounterVec
	requestSeconds   *prometheus.HistogramVec
	frames           *prometheus.CounterVec
	connectionErrors *prometheus.CounterVec
	streamResets     *prometheus.CounterVec
	inputBytes       *prometheus.CounterVec
	outputBytes      *prometheus.CounterVec
	handlerErrors    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg, or with
// the default registerer if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	host, _ := os.Hostname()
	m := &Metrics{
		host: host,
		services: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "h2engine_services",
				Help: "Current number of services",
			},
			[]string{"host"}),

		connections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "h2engine_service_connections",
				Help: "Current number of connections",
			},
			[]string{"host", "service"}),

		streams: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "h2engine_service_streams",
				Help: "Current number of open streams",
			},
			[]string{"host", "service"}),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2engine_service_requests_total",
				Help: "Total number of requests",
			},
			[]string{"host", "service"}),

		requestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "h2engine_service_request_duration_seconds",
				Help: "Distribution of request latencies",
				Buckets: []float64{
					.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60,
				},
			},
			[]string{"host", "service"}),

		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2engine_frames_received_total",
				Help: "Total number of frames received by type",
			},
			[]string{"host", "service", "type"}),

		connectionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2engine_connection_errors_total",
				Help: "Total number of connections failed by error code",
			},
			[]string{"host", "service", "code"}),

		streamResets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2engine_stream_resets_total",
				Help: "Total number of streams reset by error code",
			},
			[]string{"host", "service", "code"}),

		inputBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2engine_service_transfer_input_bytes_total",
				Help: "Total service input data transfer size in bytes",
			},
			[]string{"host", "service"}),
		outputBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2engine_service_transfer_output_bytes_total",
				Help: "Total service output data transfer size in bytes",
			},
			[]string{"host", "service"}),
		handlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "h2engine_service_handler_errors_total",
				Help: "Total service handler errors",
			},
			[]string{"host", "service"}),
	}
	reg.MustRegister(
		m.services,
		m.connections,
		m.streams,
		m.requests,
		m.requestSeconds,
		m.frames,
		m.connectionErrors,
		m.streamResets,
		m.inputBytes,
		m.outputBytes,
		m.handlerErrors,
	)
	return m
}

func Services() Gauge {
	if metrics == nil || metrics.services == nil {
		return noop{}
	}
	return metrics.services.
		With(prometheus.Labels{
			"host": metrics.host,
		})
}

func Connections(service string) Gauge {
	if metrics == nil || metrics.connections == nil {
		return noop{}
	}
	return metrics.connections.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
		})
}

func Streams(service string) Gauge {
	if metrics == nil || metrics.streams == nil {
		return noop{}
	}
	return metrics.streams.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
		})
}

func Requests(service string) Counter {
	if metrics == nil || metrics.requests == nil {
		return noop{}
	}

	return metrics.requests.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
		})
}

func RequestSeconds(service string) Observer {
	if metrics == nil || metrics.requestSeconds == nil {
		return noop{}
	}
	return metrics.requestSeconds.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
		})
}

func Frames(service string, typ string) Counter {
	if metrics == nil || metrics.frames == nil {
		return noop{}
	}
	return metrics.frames.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
			"type":    typ,
		})
}

func ConnectionErrors(service string, code string) Counter {
	if metrics == nil || metrics.connectionErrors == nil {
		return noop{}
	}
	return metrics.connectionErrors.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
			"code":    code,
		})
}

func StreamResets(service string, code string) Counter {
	if metrics == nil || metrics.streamResets == nil {
		return noop{}
	}
	return metrics.streamResets.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
			"code":    code,
		})
}

func InputBytes(service string) Counter {
	if metrics == nil || metrics.inputBytes == nil {
		return noop{}
	}
	return metrics.inputBytes.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
		})
}

func OutputBytes(service string) Counter {
	if metrics == nil || metrics.outputBytes == nil {
		return noop{}
	}
	return metrics.outputBytes.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
		})
}

func HandlerErrors(service string) Counter {
	if metrics == nil || metrics.handlerErrors == nil {
		return noop{}
	}
	return metrics.handlerErrors.
		With(prometheus.Labels{
			"host":    metrics.host,
			"service": service,
		})
}
