package http2

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/go-gost/h2engine/pkg/common/bufpool"
	"github.com/go-gost/h2engine/pkg/handler"
	h2 "github.com/go-gost/h2engine/pkg/http2"
	"github.com/go-gost/h2engine/pkg/logger"
	md "github.com/go-gost/h2engine/pkg/metadata"
	"github.com/go-gost/h2engine/pkg/metrics"
	"github.com/go-gost/h2engine/pkg/registry"
	"github.com/rs/xid"
)

func init() {
	registry.HandlerRegistry().Register("http2", NewHandler)
}

var (
	ErrProtocol = errors.New("http2: h2 was not negotiated")
)

type http2Handler struct {
	md      metadata
	options handler.Options
}

// NewHandler returns a handler running the engine over each connection.
// Requests go to the responder option; without one they get 404.
func NewHandler(opts ...handler.Option) handler.Handler {
	options := handler.Options{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = logger.Nop()
	}

	return &http2Handler{
		options: options,
	}
}

func (h *http2Handler) Init(md md.Metadata) error {
	return h.parseMetadata(md)
}

func (h *http2Handler) Handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	start := time.Now()
	log := h.options.Logger.WithFields(map[string]any{
		"conn":   xid.New().String(),
		"remote": conn.RemoteAddr().String(),
		"local":  conn.LocalAddr().String(),
	})
	log.Infof("%s <> %s", conn.RemoteAddr(), conn.LocalAddr())
	defer func() {
		log.WithFields(map[string]any{
			"duration": time.Since(start),
		}).Infof("%s >< %s", conn.RemoteAddr(), conn.LocalAddr())
	}()

	metrics.Connections(h.options.Service).Inc()
	defer metrics.Connections(h.options.Service).Dec()

	if tc, ok := conn.(*tls.Conn); ok {
		if err := h.handshake(ctx, tc); err != nil {
			log.Error(err)
			return err
		}
	}

	// streams see a context that lives as long as the connection, while
	// ctx only asks for a graceful shutdown
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	r := &reactor{
		conn:  conn,
		tasks: make(chan func(), 16),
		reads: make(chan readResult),
		done:  sctx.Done(),
		md:    &h.md,
		log:   log,
	}
	sctx = context.WithValue(sctx, reactorKey{}, r)

	opts := append([]h2.Option{}, h.options.HTTP2...)
	opts = append(opts,
		h2.NameOption(h.options.Service),
		h2.LoggerOption(log),
		h2.ContextOption(sctx),
		h2.HandlerOption(h.options.Responder),
	)
	r.c = h2.NewConn(opts...)

	err := r.run(ctx)
	var ce h2.ConnectionError
	if err != nil && !errors.As(err, &ce) {
		// protocol errors of the peer are logged by the engine
		log.Error(err)
	}
	return err
}

func (h *http2Handler) handshake(ctx context.Context, tc *tls.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, h.md.handshakeTimeout)
	defer cancel()

	if err := tc.HandshakeContext(ctx); err != nil {
		return err
	}
	if p := tc.ConnectionState().NegotiatedProtocol; p != "h2" {
		return ErrProtocol
	}
	return nil
}

type reactorKey struct{}

// Post runs fn on the goroutine driving the connection of ctx, which is
// where a stream may be used. It reports false if the connection is gone.
func Post(ctx context.Context, fn func()) bool {
	r, _ := ctx.Value(reactorKey{}).(*reactor)
	if r == nil {
		return false
	}
	select {
	case r.tasks <- fn:
		return true
	case <-r.done:
		return false
	}
}

type readResult struct {
	b   []byte
	err error
}

// reactor drives one engine connection: socket reads, posted tasks and
// timers all run on its goroutine.
type reactor struct {
	conn  net.Conn
	c     *h2.Conn
	tasks chan func()
	reads chan readResult
	done  <-chan struct{}
	md    *metadata
	log   logger.Logger
}

func (r *reactor) run(ctx context.Context) error {
	go r.read()

	shutdown := ctx.Done()

	var idle <-chan time.Time
	var timer *time.Timer
	if r.md.idleTimeout > 0 {
		timer = time.NewTimer(r.md.idleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		if err := r.flush(); err != nil {
			return err
		}
		if r.c.Done() {
			if err := r.c.Err(); err != nil && !errors.Is(err, h2.ErrConnClosed) {
				return err
			}
			return nil
		}

		select {
		case rr := <-r.reads:
			var err error
			if len(rr.b) > 0 {
				_, err = r.c.Feed(rr.b)
			}
			bufpool.Put(rr.b)
			if err != nil {
				r.flush()
				return err
			}
			if rr.err != nil {
				if rr.err == io.EOF || errors.Is(rr.err, net.ErrClosed) {
					r.c.Close(h2.ErrCodeNo)
					return nil
				}
				return rr.err
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(r.md.idleTimeout)
			}

		case fn := <-r.tasks:
			fn()

		case <-idle:
			r.log.Debugf("idle timeout %v", r.md.idleTimeout)
			idle = nil
			r.c.Shutdown()

		case <-shutdown:
			shutdown = nil
			r.c.Shutdown()
		}
	}
}

func (r *reactor) flush() error {
	if r.c.Pending() == 0 {
		return nil
	}
	if r.md.writeTimeout > 0 {
		r.conn.SetWriteDeadline(time.Now().Add(r.md.writeTimeout))
	}
	err := r.c.Flush(r.conn)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		r.log.Warnf("write timeout %v", r.md.writeTimeout)
	}
	return err
}

func (r *reactor) read() {
	for {
		b := bufpool.Get(r.md.readBufferSize)
		n, err := r.conn.Read(b)
		select {
		case r.reads <- readResult{b: b[:n], err: err}:
		case <-r.done:
			bufpool.Put(b)
			return
		}
		if err != nil {
			return
		}
	}
}
