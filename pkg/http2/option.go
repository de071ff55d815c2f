package http2

import (
	"context"

	"github.com/go-gost/h2engine/pkg/logger"
)

type Options struct {
	// Name labels the metrics of the connection, usually the service name.
	Name    string
	Handler Handler
	Logger  logger.Logger
	// Context is handed to handlers through Stream.Context.
	Context context.Context

	ConcurrentStreams int
	// MaxRequests is the number of streams served before the connection
	// is shut down gracefully. Zero disables the limit.
	MaxRequests int
	// MaxFieldSize limits a single name or value. A Huffman coded string
	// is measured by the longest text it could decode to.
	MaxFieldSize int
	// MaxHeaderSize limits the decoded header list of a stream.
	MaxHeaderSize int
	// PrereadSize is the advertised initial stream window and the amount
	// of request body buffered before a body consumer is attached.
	PrereadSize      int
	ConnectionWindow int
	MaxFrameSize     int
	HeaderTableSize  int
	StreamsIndexSize int
	ClosedNodes      int

	IgnoreInvalidHeaders bool
	UnderscoresInHeaders bool
}

// DefaultOptions returns the options a Conn starts from.
func DefaultOptions() Options {
	return Options{
		ConcurrentStreams:    128,
		MaxRequests:          1000,
		MaxFieldSize:         4096,
		MaxHeaderSize:        16384,
		PrereadSize:          65536,
		ConnectionWindow:     MaxWindow,
		MaxFrameSize:         DefaultFrameSize,
		HeaderTableSize:      defaultHeaderTableSize,
		StreamsIndexSize:     32,
		ClosedNodes:          32,
		IgnoreInvalidHeaders: true,
	}
}

type Option func(opts *Options)

func NameOption(name string) Option {
	return func(opts *Options) {
		opts.Name = name
	}
}

func HandlerOption(h Handler) Option {
	return func(opts *Options) {
		opts.Handler = h
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func ContextOption(ctx context.Context) Option {
	return func(opts *Options) {
		opts.Context = ctx
	}
}

func ConcurrentStreamsOption(n int) Option {
	return func(opts *Options) {
		opts.ConcurrentStreams = n
	}
}

func MaxRequestsOption(n int) Option {
	return func(opts *Options) {
		opts.MaxRequests = n
	}
}

func MaxFieldSizeOption(n int) Option {
	return func(opts *Options) {
		opts.MaxFieldSize = n
	}
}

func MaxHeaderSizeOption(n int) Option {
	return func(opts *Options) {
		opts.MaxHeaderSize = n
	}
}

func PrereadSizeOption(n int) Option {
	return func(opts *Options) {
		opts.PrereadSize = n
	}
}

func ConnectionWindowOption(n int) Option {
	return func(opts *Options) {
		opts.ConnectionWindow = n
	}
}

func MaxFrameSizeOption(n int) Option {
	return func(opts *Options) {
		opts.MaxFrameSize = n
	}
}

func HeaderTableSizeOption(n int) Option {
	return func(opts *Options) {
		opts.HeaderTableSize = n
	}
}

func StreamsIndexSizeOption(n int) Option {
	return func(opts *Options) {
		opts.StreamsIndexSize = n
	}
}

func ClosedNodesOption(n int) Option {
	return func(opts *Options) {
		opts.ClosedNodes = n
	}
}

func IgnoreInvalidHeadersOption(b bool) Option {
	return func(opts *Options) {
		opts.IgnoreInvalidHeaders = b
	}
}

func UnderscoresInHeadersOption(b bool) Option {
	return func(opts *Options) {
		opts.UnderscoresInHeaders = b
	}
}

// normalize clamps out-of-range values back to usable ones.
func (o *Options) normalize() {
	def := DefaultOptions()

	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.ConcurrentStreams <= 0 {
		o.ConcurrentStreams = def.ConcurrentStreams
	}
	if o.MaxRequests < 0 {
		o.MaxRequests = 0
	}
	if o.MaxFieldSize <= 0 {
		o.MaxFieldSize = def.MaxFieldSize
	}
	if o.MaxHeaderSize <= 0 {
		o.MaxHeaderSize = def.MaxHeaderSize
	}
	if o.PrereadSize < 0 || o.PrereadSize > MaxWindow {
		o.PrereadSize = def.PrereadSize
	}
	if o.ConnectionWindow <= 0 || o.ConnectionWindow > MaxWindow {
		o.ConnectionWindow = MaxWindow
	}
	if o.MaxFrameSize < DefaultFrameSize || o.MaxFrameSize > MaxFrameSize {
		o.MaxFrameSize = DefaultFrameSize
	}
	if o.HeaderTableSize < 0 {
		o.HeaderTableSize = defaultHeaderTableSize
	}
	if o.StreamsIndexSize <= 0 {
		o.StreamsIndexSize = def.StreamsIndexSize
	}
	if o.ClosedNodes <= 0 {
		o.ClosedNodes = def.ClosedNodes
	}
}
