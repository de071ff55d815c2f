package parsing

import (
	stdtls "crypto/tls"

	"github.com/go-gost/h2engine/pkg/common/util/tls"
	"github.com/go-gost/h2engine/pkg/config"
	"github.com/go-gost/h2engine/pkg/handler"
	"github.com/go-gost/h2engine/pkg/listener"
	"github.com/go-gost/h2engine/pkg/logger"
	"github.com/go-gost/h2engine/pkg/metadata"
	"github.com/go-gost/h2engine/pkg/registry"
	"github.com/go-gost/h2engine/pkg/service"
	"github.com/pkg/errors"
)

// ParseService builds the listener, handler and service of cfg. The
// engine settings of the handler are layered over global.
func ParseService(cfg *config.ServiceConfig, global *config.HTTP2Config) (service.Service, error) {
	if cfg.Listener == nil {
		cfg.Listener = &config.ListenerConfig{
			Type: "tcp",
		}
	}
	if cfg.Handler == nil {
		cfg.Handler = &config.HandlerConfig{
			Type: "echo",
		}
	}
	serviceLogger := logger.Default().WithFields(map[string]any{
		"kind":     "service",
		"service":  cfg.Name,
		"listener": cfg.Listener.Type,
		"handler":  cfg.Handler.Type,
	})

	listenerLogger := serviceLogger.WithFields(map[string]any{
		"kind": "listener",
	})

	// a tls section without files uses the default certificate
	var tlsConfig *stdtls.Config
	if c := cfg.Listener.TLS; c != nil {
		var err error
		tlsConfig, err = tls.LoadServerConfig(c.CertFile, c.KeyFile, c.CAFile)
		if err != nil {
			listenerLogger.Error(err)
			return nil, errors.Wrapf(err, "service %s", cfg.Name)
		}
	}

	newListener := registry.ListenerRegistry().Get(cfg.Listener.Type)
	if newListener == nil {
		return nil, errors.Errorf("unknown listener type %q", cfg.Listener.Type)
	}
	ln := newListener(
		listener.AddrOption(cfg.Addr),
		listener.TLSConfigOption(tlsConfig),
		listener.ServiceOption(cfg.Name),
		listener.LoggerOption(listenerLogger),
	)
	if err := ln.Init(metadata.NewMetadata(cfg.Listener.Metadata)); err != nil {
		listenerLogger.Error("init: ", err)
		return nil, errors.Wrapf(err, "service %s", cfg.Name)
	}

	handlerLogger := serviceLogger.WithFields(map[string]any{
		"kind": "handler",
	})

	newHandler := registry.HandlerRegistry().Get(cfg.Handler.Type)
	if newHandler == nil {
		ln.Close()
		return nil, errors.Errorf("unknown handler type %q", cfg.Handler.Type)
	}
	h := newHandler(
		handler.ServiceOption(cfg.Name),
		handler.HTTP2Option(global.ToOptions()...),
		handler.HTTP2Option(cfg.Handler.HTTP2.ToOptions()...),
		handler.LoggerOption(handlerLogger),
	)
	if err := h.Init(metadata.NewMetadata(cfg.Handler.Metadata)); err != nil {
		handlerLogger.Error("init: ", err)
		ln.Close()
		return nil, errors.Wrapf(err, "service %s", cfg.Name)
	}

	s := service.NewService(cfg.Name, ln, h,
		service.LoggerOption(serviceLogger),
	)

	serviceLogger.Infof("listening on %s/%s", s.Addr().String(), s.Addr().Network())
	return s, nil
}
