package service

import (
	"net"
	"net/http"

	"github.com/go-gost/h2engine/pkg/service"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DefaultPath = "/metrics"
)

type options struct {
	path     string
	gatherer prometheus.Gatherer
}

type Option func(*options)

func PathOption(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// GathererOption serves g instead of the default prometheus gatherer.
func GathererOption(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = g
	}
}

type server struct {
	s  *http.Server
	ln net.Listener
}

// NewService returns a service exposing the collected metrics over HTTP at addr.
func NewService(addr string, opts ...Option) (service.Service, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "metrics")
	}

	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if options.path == "" {
		options.path = DefaultPath
	}

	h := promhttp.Handler()
	if options.gatherer != nil {
		h = promhttp.HandlerFor(options.gatherer, promhttp.HandlerOpts{})
	}

	mux := http.NewServeMux()
	mux.Handle(options.path, h)
	return &server{
		s: &http.Server{
			Handler: mux,
		},
		ln: ln,
	}, nil
}

func (s *server) Serve() error {
	if err := s.s.Serve(s.ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *server) Close() error {
	return s.s.Close()
}
