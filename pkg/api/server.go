package api

import (
	"errors"
	"net"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-gost/h2engine/pkg/logger"
	"github.com/go-gost/h2engine/pkg/service"
)

type options struct {
	accessLog  bool
	pathPrefix string
	username   string
	password   string
	logger     logger.Logger
}

type Option func(*options)

func PathPrefixOption(pathPrefix string) Option {
	return func(o *options) {
		o.pathPrefix = pathPrefix
	}
}

func AccessLogOption(enable bool) Option {
	return func(o *options) {
		o.accessLog = enable
	}
}

// BasicAuthOption protects the /config endpoints. An empty username disables it.
func BasicAuthOption(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

type server struct {
	s  *http.Server
	ln net.Listener
}

// NewService creates the management API: the running configuration and
// the services built from it.
func NewService(addr string, opts ...Option) (service.Service, error) {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = logger.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &server{
		s: &http.Server{
			Handler: newRouter(&options),
		},
		ln: ln,
	}, nil
}

func newRouter(options *options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(
		cors.New((cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:    []string{"*"},
		})),
		gin.Recovery(),
	)
	if options.accessLog {
		r.Use(mwLogger(options.logger))
	}

	router := r.Group("")
	if options.pathPrefix != "" {
		router = router.Group(options.pathPrefix)
	}

	router.GET("/services", listServices)

	config := router.Group("/config")
	config.Use(mwBasicAuth(options.username, options.password))
	registerConfig(config)

	return r
}

func (s *server) Serve() error {
	err := s.s.Serve(s.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *server) Close() error {
	return s.s.Close()
}

func registerConfig(config *gin.RouterGroup) {
	config.GET("", getConfig)

	config.POST("/services", createService)
	config.PUT("/services/:service", updateService)
	config.DELETE("/services/:service", deleteService)
}
