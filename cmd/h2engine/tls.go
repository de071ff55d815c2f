package main

import (
	"crypto/tls"

	"github.com/go-gost/h2engine/pkg/config"
	"github.com/go-gost/h2engine/pkg/logger"
	tls_util "github.com/go-gost/h2engine/pkg/common/util/tls"
)

func buildDefaultTLSConfig(cfg *config.TLSConfig) error {
	log := logger.Default()
	if cfg == nil {
		cfg = &config.TLSConfig{
			CertFile: "cert.pem",
			KeyFile:  "key.pem",
		}
	}

	tlsConfig, err := tls_util.LoadServerConfig(cfg.CertFile, cfg.KeyFile, cfg.CAFile)
	if err != nil || tlsConfig == nil {
		// generate random self-signed certificate.
		cert, err := tls_util.GenCertificate("localhost")
		if err != nil {
			return err
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
		log.Warn("load TLS certificate files failed, use random generated certificate")
	} else {
		log.Info("load TLS certificate files OK")
	}
	tls_util.DefaultConfig = tlsConfig
	return nil
}
