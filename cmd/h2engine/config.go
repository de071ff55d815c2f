package main

import (
	"io"
	"os"

	"github.com/go-gost/h2engine/pkg/api"
	"github.com/go-gost/h2engine/pkg/config"
	"github.com/go-gost/h2engine/pkg/config/parsing"
	"github.com/go-gost/h2engine/pkg/logger"
	metrics "github.com/go-gost/h2engine/pkg/metrics/service"
	"github.com/go-gost/h2engine/pkg/registry"
	"github.com/go-gost/h2engine/pkg/service"
	"gopkg.in/natefinch/lumberjack.v2"
)

func buildService(cfg *config.Config) (services []service.Service, err error) {
	if cfg == nil || len(cfg.Services) == 0 {
		return
	}

	for _, svcCfg := range cfg.Services {
		svc, err := parsing.ParseService(svcCfg, cfg.HTTP2)
		if err != nil {
			for _, s := range services {
				s.Close()
			}
			return nil, err
		}
		if err := registry.ServiceRegistry().Register(svcCfg.Name, svc); err != nil {
			svc.Close()
			return nil, err
		}
		services = append(services, svc)
	}

	return
}

func buildMetricsService(cfg *config.MetricsConfig) (service.Service, error) {
	return metrics.NewService(cfg.Addr, metrics.PathOption(cfg.Path))
}

func buildAPIService(cfg *config.APIConfig) (service.Service, error) {
	opts := []api.Option{
		api.PathPrefixOption(cfg.PathPrefix),
		api.AccessLogOption(cfg.AccessLog),
	}
	if cfg.Auth != nil {
		opts = append(opts, api.BasicAuthOption(cfg.Auth.Username, cfg.Auth.Password))
	}
	return api.NewService(cfg.Addr, opts...)
}

func logFromConfig(cfg *config.LogConfig) logger.Logger {
	if cfg == nil {
		cfg = &config.LogConfig{}
	}
	opts := []logger.LoggerOption{
		logger.FormatLoggerOption(logger.LogFormat(cfg.Format)),
		logger.LevelLoggerOption(logger.LogLevel(cfg.Level)),
	}

	var out io.Writer = os.Stderr
	switch cfg.Output {
	case "none", "null":
		return logger.Nop()
	case "stdout":
		out = os.Stdout
	case "stderr", "":
		out = os.Stderr
	default:
		if rotation := cfg.Rotation; rotation != nil {
			out = &lumberjack.Logger{
				Filename:   cfg.Output,
				MaxSize:    rotation.MaxSize,
				MaxAge:     rotation.MaxAge,
				MaxBackups: rotation.MaxBackups,
				LocalTime:  rotation.LocalTime,
				Compress:   rotation.Compress,
			}
			break
		}
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			logger.Default().Warnf("log: %v", err)
		} else {
			out = f
		}
	}
	opts = append(opts, logger.OutputLoggerOption(out))

	return logger.NewLogger(opts...)
}
