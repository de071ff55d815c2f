package config

import (
	"fmt"
	"io"

	"github.com/go-gost/h2engine/pkg/http2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	v = viper.GetViper()
)

func init() {
	v.SetConfigName("h2engine")
	v.AddConfigPath("/etc/h2engine/")
	v.AddConfigPath("$HOME/.h2engine/")
	v.AddConfigPath(".")
}

type LogRotationConfig struct {
	// MaxSize is the maximum size in megabytes of the log file before it gets rotated.
	MaxSize int `yaml:"maxSize,omitempty" mapstructure:"maxSize"`
	// MaxAge is the maximum number of days to retain old log files.
	MaxAge     int  `yaml:"maxAge,omitempty" mapstructure:"maxAge"`
	MaxBackups int  `yaml:"maxBackups,omitempty" mapstructure:"maxBackups"`
	LocalTime  bool `yaml:"localTime,omitempty" mapstructure:"localTime"`
	Compress   bool `yaml:"compress,omitempty"`
}

type LogConfig struct {
	// Output is one of stderr (default), stdout, none or a file path.
	Output   string             `yaml:",omitempty"`
	Level    string             `yaml:",omitempty"`
	Format   string             `yaml:",omitempty"`
	Rotation *LogRotationConfig `yaml:",omitempty"`
}

type AuthConfig struct {
	Username string
	Password string `yaml:",omitempty"`
}

type APIConfig struct {
	Addr       string      `yaml:",omitempty"`
	PathPrefix string      `yaml:"pathPrefix,omitempty" mapstructure:"pathPrefix"`
	AccessLog  bool        `yaml:"accessLog,omitempty" mapstructure:"accessLog"`
	Auth       *AuthConfig `yaml:",omitempty"`
}

type MetricsConfig struct {
	Addr string `yaml:",omitempty"`
	Path string `yaml:",omitempty"`
}

type TLSConfig struct {
	CertFile string `yaml:"certFile,omitempty" mapstructure:"certFile"`
	KeyFile  string `yaml:"keyFile,omitempty" mapstructure:"keyFile"`
	CAFile   string `yaml:"caFile,omitempty" mapstructure:"caFile"`
}

// HTTP2Config holds the engine settings. Zero values keep the engine defaults.
type HTTP2Config struct {
	ConcurrentStreams    int   `yaml:"concurrentStreams,omitempty" mapstructure:"concurrentStreams"`
	MaxRequests          int   `yaml:"maxRequests,omitempty" mapstructure:"maxRequests"`
	MaxFieldSize         int   `yaml:"maxFieldSize,omitempty" mapstructure:"maxFieldSize"`
	MaxHeaderSize        int   `yaml:"maxHeaderSize,omitempty" mapstructure:"maxHeaderSize"`
	PrereadSize          int   `yaml:"prereadSize,omitempty" mapstructure:"prereadSize"`
	ConnectionWindow     int   `yaml:"connectionWindow,omitempty" mapstructure:"connectionWindow"`
	MaxFrameSize         int   `yaml:"maxFrameSize,omitempty" mapstructure:"maxFrameSize"`
	HeaderTableSize      int   `yaml:"headerTableSize,omitempty" mapstructure:"headerTableSize"`
	StreamsIndexSize     int   `yaml:"streamsIndexSize,omitempty" mapstructure:"streamsIndexSize"`
	ClosedNodes          int   `yaml:"closedNodes,omitempty" mapstructure:"closedNodes"`
	IgnoreInvalidHeaders *bool `yaml:"ignoreInvalidHeaders,omitempty" mapstructure:"ignoreInvalidHeaders"`
	UnderscoresInHeaders bool  `yaml:"underscoresInHeaders,omitempty" mapstructure:"underscoresInHeaders"`
}

// ToOptions converts the non-zero settings into engine options.
func (c *HTTP2Config) ToOptions() []http2.Option {
	if c == nil {
		return nil
	}

	var opts []http2.Option
	set := func(n int, opt func(int) http2.Option) {
		if n > 0 {
			opts = append(opts, opt(n))
		}
	}
	set(c.ConcurrentStreams, http2.ConcurrentStreamsOption)
	set(c.MaxRequests, http2.MaxRequestsOption)
	set(c.MaxFieldSize, http2.MaxFieldSizeOption)
	set(c.MaxHeaderSize, http2.MaxHeaderSizeOption)
	set(c.PrereadSize, http2.PrereadSizeOption)
	set(c.ConnectionWindow, http2.ConnectionWindowOption)
	set(c.MaxFrameSize, http2.MaxFrameSizeOption)
	set(c.HeaderTableSize, http2.HeaderTableSizeOption)
	set(c.StreamsIndexSize, http2.StreamsIndexSizeOption)
	set(c.ClosedNodes, http2.ClosedNodesOption)
	if c.IgnoreInvalidHeaders != nil {
		opts = append(opts, http2.IgnoreInvalidHeadersOption(*c.IgnoreInvalidHeaders))
	}
	if c.UnderscoresInHeaders {
		opts = append(opts, http2.UnderscoresInHeadersOption(true))
	}
	return opts
}

type ListenerConfig struct {
	Type     string
	TLS      *TLSConfig     `yaml:",omitempty"`
	Metadata map[string]any `yaml:",omitempty"`
}

type HandlerConfig struct {
	Type string
	// HTTP2 overrides the global engine settings for this service.
	HTTP2    *HTTP2Config   `yaml:"http2,omitempty" mapstructure:"http2"`
	Metadata map[string]any `yaml:",omitempty"`
}

type ServiceConfig struct {
	Name     string
	Addr     string          `yaml:",omitempty"`
	Listener *ListenerConfig `yaml:",omitempty"`
	Handler  *HandlerConfig  `yaml:",omitempty"`
}

type Config struct {
	Log      *LogConfig     `yaml:",omitempty"`
	API      *APIConfig     `yaml:",omitempty"`
	Metrics  *MetricsConfig `yaml:",omitempty"`
	TLS      *TLSConfig     `yaml:",omitempty"`
	HTTP2    *HTTP2Config   `yaml:"http2,omitempty" mapstructure:"http2"`
	Services []*ServiceConfig
}

func (c *Config) Load() error {
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, "load config")
	}

	return c.unmarshal()
}

func (c *Config) Read(r io.Reader) error {
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return errors.Wrap(err, "read config")
	}

	return c.unmarshal()
}

func (c *Config) ReadFile(file string) error {
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config %s", file)
	}
	return c.unmarshal()
}

func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	enc.SetIndent(2)

	return enc.Encode(c)
}

func (c *Config) unmarshal() error {
	if err := v.Unmarshal(c); err != nil {
		return errors.Wrap(err, "decode config")
	}
	for i, svc := range c.Services {
		if svc.Name == "" {
			svc.Name = fmt.Sprintf("service-%d", i)
		}
	}
	return nil
}
