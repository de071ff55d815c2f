package handler

import (
	"github.com/go-gost/h2engine/pkg/http2"
	"github.com/go-gost/h2engine/pkg/logger"
)

type Options struct {
	Service string
	// HTTP2 configures the engine of every connection.
	HTTP2 []http2.Option
	// Responder serves the requests decoded by the engine.
	Responder http2.Handler
	Logger    logger.Logger
}

type Option func(opts *Options)

func ServiceOption(service string) Option {
	return func(opts *Options) {
		opts.Service = service
	}
}

func HTTP2Option(opts ...http2.Option) Option {
	return func(o *Options) {
		o.HTTP2 = append(o.HTTP2, opts...)
	}
}

func ResponderOption(h http2.Handler) Option {
	return func(opts *Options) {
		opts.Responder = h
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
