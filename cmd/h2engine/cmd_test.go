package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gost/h2engine/pkg/config"
)

func TestBuildConfigFromCmd(t *testing.T) {
	cfg, err := buildConfigFromCmd(stringList{
		":8080",
		"echo+tls://:8443?maxRequests=10&ignoreInvalidHeaders=false&idleTimeout=30s",
		"http2+tcp://127.0.0.1:9000?certFile=c.pem&keyFile=k.pem",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Services) != 3 {
		t.Fatalf("%d services", len(cfg.Services))
	}

	s := cfg.Services[0]
	if s.Name != "service-0" || s.Addr != ":8080" || s.Handler.Type != "echo" || s.Listener.Type != "tcp" || s.Listener.TLS != nil {
		t.Fatalf("service 0: %+v", s)
	}

	s = cfg.Services[1]
	if s.Listener.Type != "tcp" || s.Listener.TLS == nil || s.Listener.TLS.CertFile != "" {
		t.Fatalf("service 1 listener: %+v", s.Listener)
	}
	h2 := s.Handler.HTTP2
	if h2.MaxRequests != 10 || h2.IgnoreInvalidHeaders == nil || *h2.IgnoreInvalidHeaders {
		t.Fatalf("service 1 http2: %+v", h2)
	}
	if s.Handler.Metadata["idleTimeout"] != "30s" {
		t.Fatalf("service 1 metadata: %v", s.Handler.Metadata)
	}

	s = cfg.Services[2]
	if s.Handler.Type != "http2" || s.Listener.TLS == nil || s.Listener.TLS.KeyFile != "k.pem" {
		t.Fatalf("service 2: %+v", s)
	}
}

func TestBuildConfigFromCmdErrors(t *testing.T) {
	for _, s := range []string{"", "a+b+c://:1", "echo://[::1"} {
		if _, err := buildConfigFromCmd(stringList{s}); err == nil {
			t.Errorf("%q should fail", s)
		}
	}
}

func TestMergeConfig(t *testing.T) {
	p := &program{}
	cfg, err := buildConfigFromCmd(stringList{":1"})
	if err != nil {
		t.Fatal(err)
	}
	merged := p.mergeConfig(cfg, cfg)
	if len(merged.Services) != 2 {
		t.Fatalf("%d services", len(merged.Services))
	}
	if p.mergeConfig(nil, cfg) != cfg {
		t.Fatal("nil config")
	}
}

func TestBuildAPIConfig(t *testing.T) {
	cfg, err := buildAPIConfig("admin:secret@:18080?pathPrefix=/admin&accessLog=true")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":18080" || cfg.PathPrefix != "/admin" || !cfg.AccessLog {
		t.Fatalf("api %+v", cfg)
	}
	if cfg.Auth == nil || cfg.Auth.Username != "admin" || cfg.Auth.Password != "secret" {
		t.Fatalf("auth %+v", cfg.Auth)
	}

	cfg, err = buildAPIConfig(":18080")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth != nil || cfg.Addr != ":18080" {
		t.Fatalf("api %+v", cfg)
	}
}

func TestLogFromConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "h2engine.log")
	log := logFromConfig(&config.LogConfig{
		Output:   file,
		Format:   "json",
		Rotation: &config.LogRotationConfig{MaxSize: 1, MaxBackups: 1},
	})
	log.Info("rotated")

	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"msg":"rotated"`) {
		t.Fatalf("log file: %s", b)
	}
}
