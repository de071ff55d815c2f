package echo

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-gost/h2engine/pkg/handler"
	h2handler "github.com/go-gost/h2engine/pkg/handler/http2"
	"github.com/go-gost/h2engine/pkg/http2"
	mdata "github.com/go-gost/h2engine/pkg/metadata"
	"github.com/go-gost/h2engine/pkg/registry"
)

func init() {
	registry.HandlerRegistry().Register("echo", NewHandler)
}

const (
	defaultMaxBodySize = 1 << 20
)

type metadata struct {
	maxBodySize int
	delay       time.Duration
}

// echoHandler answers every request with its request line, its headers
// and its body.
type echoHandler struct {
	handler.Handler
	md metadata
}

func NewHandler(opts ...handler.Option) handler.Handler {
	h := &echoHandler{}
	h.Handler = h2handler.NewHandler(append(opts, handler.ResponderOption(h))...)
	return h
}

func (h *echoHandler) Init(md mdata.Metadata) error {
	const (
		maxBodySize = "maxBodySize"
		delay       = "delay"
	)

	h.md.maxBodySize = mdata.GetInt(md, maxBodySize)
	if h.md.maxBodySize <= 0 {
		h.md.maxBodySize = defaultMaxBodySize
	}
	h.md.delay = mdata.GetDuration(md, delay)

	return h.Handler.Init(md)
}

func (h *echoHandler) ServeHTTP2(s *http2.Stream, r *http2.Request) {
	var body bytes.Buffer
	rejected := false
	s.OnData(func(p []byte, last bool) {
		if rejected {
			return
		}
		if body.Len()+len(p) > h.md.maxBodySize {
			rejected = true
			s.Respond(http.StatusRequestEntityTooLarge, nil, true)
			return
		}
		body.Write(p)
		if !last {
			return
		}

		if h.md.delay <= 0 {
			h.respond(s, r, body.Bytes())
			return
		}
		b := bytes.Clone(body.Bytes())
		ctx := s.Context()
		time.AfterFunc(h.md.delay, func() {
			h2handler.Post(ctx, func() {
				h.respond(s, r, b)
			})
		})
	})
}

func (h *echoHandler) respond(s *http2.Stream, r *http2.Request, body []byte) {
	var b bytes.Buffer
	b.WriteString(r.RequestLine)
	b.WriteString("\r\n")
	r.Header.Write(&b)
	b.WriteString("\r\n")
	b.Write(body)

	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Content-Length", strconv.Itoa(b.Len()))
	if err := s.Respond(http.StatusOK, header, false); err != nil {
		return
	}
	s.Write(b.Bytes(), true)
}
