package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/go-gost/h2engine/pkg/config"
	"github.com/go-gost/h2engine/pkg/config/parsing"
	"github.com/go-gost/h2engine/pkg/logger"
	"github.com/go-gost/h2engine/pkg/registry"
	"github.com/go-gost/h2engine/pkg/service"
)

type serviceInfo struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

func listServices(ctx *gin.Context) {
	names := registry.ServiceRegistry().Names()
	sort.Strings(names)

	list := make([]serviceInfo, 0, len(names))
	for _, name := range names {
		svc := registry.ServiceRegistry().Get(name)
		if svc == nil {
			continue
		}
		list = append(list, serviceInfo{Name: name, Addr: svc.Addr().String()})
	}
	ctx.JSON(http.StatusOK, list)
}

func createService(ctx *gin.Context) {
	var data config.ServiceConfig
	if err := ctx.ShouldBindJSON(&data); err != nil || data.Name == "" {
		writeError(ctx, ErrInvalid)
		return
	}

	if registry.ServiceRegistry().IsRegistered(data.Name) {
		writeError(ctx, ErrDup)
		return
	}

	cfg := config.Global()
	svc, err := parsing.ParseService(&data, cfg.HTTP2)
	if err != nil {
		logger.Default().Warnf("api: create service %s: %v", data.Name, err)
		writeError(ctx, ErrCreate)
		return
	}

	if err := registry.ServiceRegistry().Register(data.Name, svc); err != nil {
		svc.Close()
		writeError(ctx, ErrDup)
		return
	}
	run(data.Name, svc)

	cfg.Services = append(cfg.Services, &data)
	config.SetGlobal(cfg)

	ctx.JSON(http.StatusOK, Response{
		Msg: "OK",
	})
}

type serviceRequest struct {
	Service string `uri:"service"`
}

func updateService(ctx *gin.Context) {
	var req serviceRequest
	ctx.ShouldBindUri(&req)

	var data config.ServiceConfig
	if err := ctx.ShouldBindJSON(&data); err != nil {
		writeError(ctx, ErrInvalid)
		return
	}

	old := registry.ServiceRegistry().Get(req.Service)
	if old == nil {
		writeError(ctx, ErrNotFound)
		return
	}
	// the address may be reused by the new service
	old.Close()
	registry.ServiceRegistry().Unregister(req.Service)

	data.Name = req.Service

	cfg := config.Global()
	svc, err := parsing.ParseService(&data, cfg.HTTP2)
	if err != nil {
		logger.Default().Warnf("api: update service %s: %v", data.Name, err)
		writeError(ctx, ErrCreate)
		return
	}

	if err := registry.ServiceRegistry().Register(req.Service, svc); err != nil {
		svc.Close()
		writeError(ctx, ErrDup)
		return
	}
	run(data.Name, svc)

	for i := range cfg.Services {
		if cfg.Services[i].Name == req.Service {
			cfg.Services[i] = &data
			break
		}
	}
	config.SetGlobal(cfg)

	ctx.JSON(http.StatusOK, Response{
		Msg: "OK",
	})
}

func deleteService(ctx *gin.Context) {
	var req serviceRequest
	ctx.ShouldBindUri(&req)

	svc := registry.ServiceRegistry().Get(req.Service)
	if svc == nil {
		writeError(ctx, ErrNotFound)
		return
	}

	registry.ServiceRegistry().Unregister(req.Service)
	svc.Close()

	cfg := config.Global()
	services := cfg.Services
	cfg.Services = nil
	for _, s := range services {
		if s.Name == req.Service {
			continue
		}
		cfg.Services = append(cfg.Services, s)
	}
	config.SetGlobal(cfg)

	ctx.JSON(http.StatusOK, Response{
		Msg: "OK",
	})
}

func run(name string, svc service.Service) {
	go func() {
		if err := svc.Serve(); err != nil {
			logger.Default().Errorf("service %s: %v", name, err)
		}
	}()
}
