package main

import (
	"os"
	"strings"

	"github.com/go-gost/h2engine/pkg/config"
	"github.com/go-gost/h2engine/pkg/logger"
	"github.com/go-gost/h2engine/pkg/metrics"
	"github.com/go-gost/h2engine/pkg/service"
	"github.com/judwhite/go-svc"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type program struct {
	cfg      *config.Config
	services []service.Service
	g        errgroup.Group
}

func (p *program) Init(env svc.Environment) error {
	cfg := &config.Config{}
	if cfgFile != "" {
		if err := cfg.ReadFile(strings.TrimSpace(cfgFile)); err != nil {
			return err
		}
	}

	cmdCfg, err := buildConfigFromCmd(services)
	if err != nil {
		return err
	}
	cfg = p.mergeConfig(cfg, cmdCfg)

	if len(cfg.Services) == 0 && apiAddr == "" && cfg.API == nil {
		if err := cfg.Load(); err != nil {
			return err
		}
	}

	if apiAddr != "" {
		api, err := buildAPIConfig(apiAddr)
		if err != nil {
			return err
		}
		cfg.API = api
	}

	if debug {
		if cfg.Log == nil {
			cfg.Log = &config.LogConfig{}
		}
		cfg.Log.Level = string(logger.DebugLevel)
	}
	if metricsAddr != "" {
		cfg.Metrics = &config.MetricsConfig{
			Addr: metricsAddr,
		}
	}

	logger.SetDefault(logFromConfig(cfg.Log))

	if outputFormat != "" {
		if outputFormat != "yaml" {
			return errors.Errorf("unsupported output format %q", outputFormat)
		}
		if err := cfg.Write(os.Stdout); err != nil {
			return err
		}
		os.Exit(0)
	}

	if err := buildDefaultTLSConfig(cfg.TLS); err != nil {
		return err
	}

	config.SetGlobal(cfg)
	p.cfg = cfg
	return nil
}

func (p *program) Start() error {
	log := logger.Default()
	cfg := p.cfg

	if cfg.Metrics != nil {
		metrics.SetGlobal(metrics.NewMetrics(nil))
		if cfg.Metrics.Addr != "" {
			s, err := buildMetricsService(cfg.Metrics)
			if err != nil {
				return err
			}
			p.services = append(p.services, s)
			log.Info("metrics service on ", s.Addr())
		}
	}

	if cfg.API != nil {
		s, err := buildAPIService(cfg.API)
		if err != nil {
			for _, s := range p.services {
				s.Close()
			}
			return err
		}
		p.services = append(p.services, s)
		log.Info("api service on ", s.Addr())
	}

	services, err := buildService(cfg)
	if err != nil {
		for _, s := range p.services {
			s.Close()
		}
		return err
	}
	p.services = append(p.services, services...)

	for _, s := range p.services {
		s := s
		p.g.Go(func() error {
			if err := s.Serve(); err != nil {
				log.Errorf("service on %s: %v", s.Addr(), err)
				return err
			}
			return nil
		})
	}

	return nil
}

func (p *program) Stop() error {
	for _, s := range p.services {
		s.Close()
		logger.Default().Debugf("service on %s shutdown", s.Addr())
	}
	return p.g.Wait()
}

func (p *program) mergeConfig(cfg1, cfg2 *config.Config) *config.Config {
	if cfg1 == nil {
		return cfg2
	}
	if cfg2 == nil {
		return cfg1
	}

	cfg := &config.Config{
		Services: append(cfg1.Services, cfg2.Services...),
		TLS:      cfg1.TLS,
		Log:      cfg1.Log,
		API:      cfg1.API,
		Metrics:  cfg1.Metrics,
		HTTP2:    cfg1.HTTP2,
	}
	if cfg2.TLS != nil {
		cfg.TLS = cfg2.TLS
	}
	if cfg2.Log != nil {
		cfg.Log = cfg2.Log
	}
	if cfg2.API != nil {
		cfg.API = cfg2.API
	}
	if cfg2.Metrics != nil {
		cfg.Metrics = cfg2.Metrics
	}
	if cfg2.HTTP2 != nil {
		cfg.HTTP2 = cfg2.HTTP2
	}

	return cfg
}
