package http2

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gost/h2engine/pkg/metrics"
)

// Stream is one request/response exchange of a Conn. Its methods must be
// called from the goroutine that drives the Conn.
type Stream struct {
	conn *Conn
	id   uint32
	node int32
	req  *Request

	recvWindow window
	sendWindow window
	queued     int

	inClosed      bool
	outClosed     bool
	rstSent       bool
	skipData      bool
	closing       bool
	closed        bool
	exhausted     bool
	waiting       bool
	noFlowControl bool
	handled       bool

	headersSent bool
	endQueued   bool
	pending     []byte
	pendingEnd  bool
	trailers    []HeaderField

	headerBudget int
	cookies      []string
	preread      []byte
	onData       func(p []byte, last bool)
	onClose      []func(err error)
	err          error
	start        time.Time
}

func (c *Conn) newStream(i int32) *Stream {
	s := &Stream{
		conn:         c,
		id:           c.tree.nodes[i].id,
		node:         i,
		recvWindow:   window{size: int64(c.opts.PrereadSize)},
		sendWindow:   window{size: c.initWindow},
		headerBudget: c.opts.MaxHeaderSize,
		req: &Request{
			Header:        make(http.Header),
			ContentLength: -1,
		},
	}
	c.tree.nodes[i].stream = s

	c.processing++
	c.requests++
	metrics.Streams(c.opts.Name).Inc()
	metrics.Requests(c.opts.Name).Inc()

	return s
}

func (s *Stream) ID() uint32 {
	return s.id
}

func (s *Stream) Request() *Request {
	return s.req
}

// Context returns the context the connection was created with.
func (s *Stream) Context() context.Context {
	return s.conn.opts.Context
}

// Err returns why the stream ended early, if it did.
func (s *Stream) Err() error {
	return s.err
}

// OnData attaches the request body consumer. Body bytes that arrived
// before are delivered at once. p is only valid during the call. Once a
// consumer is attached the stream window is kept open.
func (s *Stream) OnData(fn func(p []byte, last bool)) {
	s.onData = fn
	if fn == nil || s.closed {
		return
	}

	if len(s.preread) > 0 || s.inClosed {
		p := s.preread
		s.preread = nil
		fn(p, s.inClosed)
	}

	if s.inClosed || s.closed {
		return
	}

	c := s.conn
	s.noFlowControl = true
	if s.recvWindow.size < MaxWindow {
		c.sendWindowUpdate(s.id, MaxWindow-s.recvWindow.size)
		s.recvWindow.size = MaxWindow
	}
}

// OnClose registers fn to run when the stream is released. err is nil for
// a stream that completed normally.
func (s *Stream) OnClose(fn func(err error)) {
	s.onClose = append(s.onClose, fn)
}

// Respond submits the response headers. Header names are sent lowercase,
// in sorted order.
func (s *Stream) Respond(status int, header http.Header, end bool) error {
	fields := make([]HeaderField, 0, len(header)+1)
	fields = append(fields, HeaderField{Name: ":status", Value: strconv.Itoa(status)})
	fields = append(fields, headerFields(header)...)
	return s.conn.SubmitHeaders(s.id, fields, end)
}

// Write submits response body bytes.
func (s *Stream) Write(p []byte, end bool) error {
	return s.conn.SubmitData(s.id, p, end)
}

// Trailers ends the response with a trailing header block.
func (s *Stream) Trailers(header http.Header) error {
	return s.conn.SubmitHeaders(s.id, headerFields(header), true)
}

func (s *Stream) Reset(code ErrCode) error {
	return s.conn.StreamReset(s.id, code)
}

// Close releases the stream. A response that is not complete by then is
// reset with INTERNAL_ERROR.
func (s *Stream) Close() {
	s.conn.closeStream(s)
}

func headerFields(header http.Header) []HeaderField {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fields []HeaderField
	for _, k := range keys {
		name := strings.ToLower(k)
		for _, v := range header[k] {
			fields = append(fields, HeaderField{Name: name, Value: v})
		}
	}
	return fields
}

// deliver hands body bytes to the consumer, or keeps them until one is
// attached.
func (c *Conn) deliver(s *Stream, p []byte, last bool) error {
	if s.onData != nil {
		if len(p) > 0 || last {
			s.onData(p, last)
		}
		return nil
	}

	if len(p) > 0 {
		if len(s.preread)+len(p) > c.opts.PrereadSize {
			c.log.Errorf("http2 preread buffer overflow")
			return c.connectionError(ErrCodeInternal, "preread buffer overflow")
		}
		s.preread = append(s.preread, p...)
	}
	return nil
}

// resetStream sends RST_STREAM for a stream the connection does not track.
func (c *Conn) resetStream(sid uint32, code ErrCode) {
	c.sendRstStream(sid, code)
	metrics.StreamResets(c.opts.Name, code.String()).Inc()
}

// terminateStream resets s and releases it once its queued frames are out.
func (c *Conn) terminateStream(s *Stream, code ErrCode) {
	if s.rstSent {
		return
	}

	c.resetStream(s.id, code)
	s.rstSent = true
	s.skipData = true
	if s.err == nil {
		s.err = StreamError{StreamID: s.id, Code: code}
	}

	c.dropFrames(s)
	c.closeStream(s)
}

// closeStream releases s. While frames of s are still queued it is only
// marked, and the last sent frame finishes the job.
func (c *Conn) closeStream(s *Stream) {
	if s.closed {
		return
	}
	if s.queued > 0 {
		s.closing = true
		return
	}

	c.log.Debugf("http2 close stream %d, processing %d", s.id, c.processing)

	if !s.rstSent && c.err == nil {
		if !s.outClosed {
			c.resetStream(s.id, ErrCodeInternal)
			s.rstSent = true
			if s.err == nil {
				s.err = StreamError{StreamID: s.id, Code: ErrCodeInternal, Reason: "response not complete"}
			}
		} else if !s.inClosed && s.recvWindow.size < MaxWindow {
			// the client may go on sending a body nobody reads
			c.sendWindowUpdate(s.id, MaxWindow-s.recvWindow.size)
		}
	}

	s.closed = true
	if c.stream == s {
		c.stream = nil
	}

	c.tree.nodes[s.node].stream = nil
	c.tree.park(s.node)
	c.unwait(s)
	c.processing--

	s.pending = nil
	s.preread = nil
	s.trailers = nil

	metrics.Streams(c.opts.Name).Dec()
	if s.handled {
		metrics.RequestSeconds(c.opts.Name).Observe(time.Since(s.start).Seconds())
	}

	for _, fn := range s.onClose {
		fn(s.err)
	}
}
