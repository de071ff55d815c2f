package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-gost/h2engine/pkg/config"
	"github.com/go-gost/h2engine/pkg/metadata"
	"github.com/pkg/errors"
)

var (
	ErrInvalidCmd = errors.New("invalid cmd")
)

type stringList []string

func (l *stringList) String() string {
	return fmt.Sprintf("%s", *l)
}

func (l *stringList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

func buildConfigFromCmd(services stringList) (*config.Config, error) {
	cfg := &config.Config{}

	if v := os.Getenv("H2ENGINE_METRICS"); v != "" {
		cfg.Metrics = &config.MetricsConfig{
			Addr: v,
		}
	}
	if v := os.Getenv("H2ENGINE_API"); v != "" {
		cfg.API = &config.APIConfig{
			Addr: v,
		}
	}
	if v := os.Getenv("H2ENGINE_LOGGER_LEVEL"); v != "" {
		cfg.Log = &config.LogConfig{
			Level: v,
		}
	}

	for i, svc := range services {
		u, err := normCmd(svc)
		if err != nil {
			return nil, err
		}

		service, err := buildServiceConfig(u)
		if err != nil {
			return nil, err
		}
		service.Name = fmt.Sprintf("service-%d", i)
		cfg.Services = append(cfg.Services, service)
	}

	return cfg, nil
}

// buildServiceConfig turns handler[+listener]://addr?k=v into a service.
// Engine settings and TLS files are taken out of the query, the rest is
// metadata of both the listener and the handler.
func buildServiceConfig(u *url.URL) (*config.ServiceConfig, error) {
	var handler, listener string
	schemes := strings.Split(u.Scheme, "+")
	switch len(schemes) {
	case 1:
		handler = schemes[0]
	case 2:
		handler = schemes[0]
		listener = schemes[1]
	default:
		return nil, errors.Wrapf(ErrInvalidCmd, "scheme %q", u.Scheme)
	}
	if listener == "" || listener == "tls" {
		listener = "tcp"
	}

	m := map[string]any{}
	for k, v := range u.Query() {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}
	md := metadata.NewMetadata(m)

	svc := &config.ServiceConfig{
		Addr: u.Host,
		Listener: &config.ListenerConfig{
			Type:     listener,
			Metadata: m,
		},
		Handler: &config.HandlerConfig{
			Type:     handler,
			Metadata: m,
		},
	}

	if strings.HasSuffix(u.Scheme, "+tls") || metadata.GetBool(md, "tls") ||
		metadata.GetString(md, "certFile") != "" {
		svc.Listener.TLS = &config.TLSConfig{
			CertFile: metadata.GetString(md, "certFile"),
			KeyFile:  metadata.GetString(md, "keyFile"),
			CAFile:   metadata.GetString(md, "caFile"),
		}
	}

	h2 := &config.HTTP2Config{
		ConcurrentStreams:    metadata.GetInt(md, "concurrentStreams"),
		MaxRequests:          metadata.GetInt(md, "maxRequests"),
		MaxFieldSize:         metadata.GetInt(md, "maxFieldSize"),
		MaxHeaderSize:        metadata.GetInt(md, "maxHeaderSize"),
		PrereadSize:          metadata.GetInt(md, "prereadSize"),
		ConnectionWindow:     metadata.GetInt(md, "connectionWindow"),
		MaxFrameSize:         metadata.GetInt(md, "maxFrameSize"),
		HeaderTableSize:      metadata.GetInt(md, "headerTableSize"),
		StreamsIndexSize:     metadata.GetInt(md, "streamsIndexSize"),
		ClosedNodes:          metadata.GetInt(md, "closedNodes"),
		UnderscoresInHeaders: metadata.GetBool(md, "underscoresInHeaders"),
	}
	if md.IsExists("ignoreInvalidHeaders") {
		b := metadata.GetBool(md, "ignoreInvalidHeaders")
		h2.IgnoreInvalidHeaders = &b
	}
	svc.Handler.HTTP2 = h2

	return svc, nil
}

func normCmd(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidCmd
	}

	if s[0] == ':' || !strings.Contains(s, "://") {
		s = "echo://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidCmd, "%s: %v", s, err)
	}
	return u, nil
}

// buildAPIConfig parses [user:pass@]addr[?pathPrefix=/x&accessLog=true].
func buildAPIConfig(s string) (*config.APIConfig, error) {
	u, err := normCmd(s)
	if err != nil {
		return nil, err
	}

	cfg := &config.APIConfig{
		Addr: u.Host,
	}
	if u.User != nil {
		password, _ := u.User.Password()
		cfg.Auth = &config.AuthConfig{
			Username: u.User.Username(),
			Password: password,
		}
	}

	m := map[string]any{}
	for k, v := range u.Query() {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}
	md := metadata.NewMetadata(m)
	cfg.PathPrefix = metadata.GetString(md, "pathPrefix")
	cfg.AccessLog = metadata.GetBool(md, "accessLog")

	return cfg, nil
}
