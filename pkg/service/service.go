package service

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-gost/h2engine/pkg/handler"
	"github.com/go-gost/h2engine/pkg/listener"
	"github.com/go-gost/h2engine/pkg/logger"
	"github.com/go-gost/h2engine/pkg/metrics"
)

type options struct {
	logger logger.Logger
}

type Option func(opts *options)

func LoggerOption(logger logger.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

type Service interface {
	Serve() error
	Addr() net.Addr
	Close() error
}

type service struct {
	name     string
	listener listener.Listener
	handler  handler.Handler
	options  options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(name string, ln listener.Listener, h handler.Handler, opts ...Option) Service {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		name:     name,
		listener: ln,
		handler:  h,
		options:  options,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *service) Addr() net.Addr {
	return s.listener.Addr()
}

// Close stops accepting and asks the live connections to shut down gracefully.
func (s *service) Close() error {
	s.cancel()
	return s.listener.Close()
}

func (s *service) Serve() error {
	metrics.Services().Inc()
	defer metrics.Services().Dec()

	defer s.wg.Wait()

	var tempDelay time.Duration
	for {
		conn, e := s.listener.Accept()
		if e != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			if ne, ok := e.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 1 * time.Second
				} else {
					tempDelay *= 2
				}
				if max := 5 * time.Second; tempDelay > max {
					tempDelay = max
				}
				s.options.logger.Warnf("accept: %v, retrying in %v", e, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			s.options.logger.Errorf("accept: %v", e)
			return e
		}
		tempDelay = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			if err := s.handler.Handle(s.ctx, conn); err != nil {
				metrics.HandlerErrors(s.name).Inc()
			}
		}()
	}
}
