package tcp

import (
	"crypto/tls"
	"net"

	metrics "github.com/go-gost/h2engine/pkg/common/metrics"
	"github.com/go-gost/h2engine/pkg/listener"
	"github.com/go-gost/h2engine/pkg/logger"
	md "github.com/go-gost/h2engine/pkg/metadata"
	"github.com/go-gost/h2engine/pkg/registry"
)

func init() {
	registry.ListenerRegistry().Register("tcp", NewListener)
}

type tcpListener struct {
	net.Listener
	logger  logger.Logger
	md      metadata
	options listener.Options
}

func NewListener(opts ...listener.Option) listener.Listener {
	options := listener.Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = logger.Nop()
	}
	return &tcpListener{
		logger:  options.Logger,
		options: options,
	}
}

func (l *tcpListener) Init(md md.Metadata) (err error) {
	if err = l.parseMetadata(md); err != nil {
		return
	}

	laddr, err := net.ResolveTCPAddr("tcp", l.options.Addr)
	if err != nil {
		return
	}
	ln, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return
	}

	var nl net.Listener = ln
	if l.md.keepAlive {
		nl = &keepAliveListener{
			TCPListener: ln,
			period:      l.md.keepAlivePeriod,
		}
	}
	nl = metrics.WrapListener(l.options.Service, nl)

	if cfg := l.options.TLSConfig; cfg != nil {
		cfg = cfg.Clone()
		if len(cfg.NextProtos) == 0 {
			cfg.NextProtos = l.md.nextProtos
		}
		nl = tls.NewListener(nl, cfg)
		l.logger.Debugf("tls enabled, alpn %v", cfg.NextProtos)
	}

	l.Listener = nl
	return
}
