package listener

import (
	"crypto/tls"

	"github.com/go-gost/h2engine/pkg/logger"
)

type Options struct {
	Addr      string
	TLSConfig *tls.Config
	Service   string
	Logger    logger.Logger
}

type Option func(opts *Options)

func AddrOption(addr string) Option {
	return func(opts *Options) {
		opts.Addr = addr
	}
}

// TLSConfigOption enables TLS on accepted connections.
func TLSConfigOption(tlsConfig *tls.Config) Option {
	return func(opts *Options) {
		opts.TLSConfig = tlsConfig
	}
}

func ServiceOption(service string) Option {
	return func(opts *Options) {
		opts.Service = service
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
