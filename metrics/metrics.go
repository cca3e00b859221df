// Package metrics exposes Prometheus counters for processed updates, commands and dialog
// messages. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "oopbot"

type Metrics struct {
	registry *prometheus.Registry

	updates  *prometheus.CounterVec
	commands *prometheus.CounterVec
	dialogs  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates received, by kind",
		}, []string{"kind"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands executed, by command name and result",
		}, []string{"command", "result"}),
		dialogs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialog_messages_total",
			Help:      "Messages handled by a dialog state, by state type",
		}, []string{"state"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Command execution time",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"command"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Update(kind string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind).Inc()
}

func (m *Metrics) Command(name, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name, result).Inc()
	m.duration.WithLabelValues(name).Observe(took.Seconds())
}

func (m *Metrics) Dialog(state string) {
	if m == nil {
		return
	}
	m.dialogs.WithLabelValues(state).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics on addr until Shutdown is called.
type Server struct {
	srv    *http.Server
	done   chan struct{}
	logger *zap.SugaredLogger
}

// Serve starts listening in the background.
func Serve(addr string, m *Metrics, l *zap.SugaredLogger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		done:   make(chan struct{}),
		logger: l,
	}

	go func() {
		defer close(s.done)
		l.Infof("serving metrics on %s", addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Errorw("failed serving metrics", "err", err)
		}
	}()
	return s
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return errors.Wrap(err, "failed to shut down metrics server")
}
