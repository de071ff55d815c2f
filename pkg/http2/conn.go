package http2

import (
	"bytes"
	"fmt"

	"github.com/go-gost/h2engine/pkg/logger"
	"github.com/go-gost/h2engine/pkg/metrics"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// stateKind names the step Feed resumes at.
type stateKind uint8

const (
	statePreface stateKind = iota
	statePrefaceEnd
	stateHead
	stateData
	stateReadData
	stateHeaders
	stateHeaderBlock
	stateHeaderPadding
	stateContinuation
	statePriority
	stateRstStream
	stateSettings
	stateSettingsParams
	statePing
	stateGoaway
	stateWindowUpdate
	stateSkip
)

// Conn is the server side of one multiplexed connection. It owns no
// socket: the host feeds it the bytes it reads and flushes the frames it
// queues. A Conn is not safe for concurrent use.
type Conn struct {
	opts Options
	log  logger.Logger

	state    stateKind
	carry    [stateBufferSize]byte
	carryLen int
	joined   []byte

	// frame being parsed
	frame   frameHeader
	length  int
	padding int
	stream  *Stream

	tree *priorityTree
	hdec *HeaderDecoder
	henc *hpack.Encoder
	hbuf bytes.Buffer

	out     []*outFrame
	free    []*outFrame
	waiting []*Stream

	recvWindow     window
	sendWindow     window
	initWindow     int64
	peerFrameSize  int
	peerMaxStreams uint32

	lastSid     uint32
	processing  int
	requests    int
	goaway      bool
	goawaySent  bool
	settingsAck bool

	err error
}

// NewConn creates a connection and queues the server's initial SETTINGS
// and connection WINDOW_UPDATE frames.
func NewConn(opts ...Option) *Conn {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	options.normalize()

	c := &Conn{
		opts:           options,
		log:            options.Logger,
		tree:           newPriorityTree(options.StreamsIndexSize, options.ClosedNodes),
		sendWindow:     window{size: DefaultWindow},
		initWindow:     DefaultWindow,
		peerFrameSize:  DefaultFrameSize,
		peerMaxStreams: 1<<32 - 1,
	}
	// a smaller table only applies once the client acknowledges it
	c.hdec = NewHeaderDecoder(uint32(max(options.HeaderTableSize, defaultHeaderTableSize)), options.MaxFieldSize, c.processHeader)
	c.henc = hpack.NewEncoder(&c.hbuf)

	c.sendSettings()

	// A window below the protocol default cannot be announced; it is
	// still enforced on what the peer sends.
	c.recvWindow.size = int64(options.ConnectionWindow)
	if options.ConnectionWindow > DefaultWindow {
		c.sendWindowUpdate(0, int64(options.ConnectionWindow-DefaultWindow))
	}
	return c
}

// Feed runs the dispatcher over p and returns the number of bytes consumed.
// Bytes of an incomplete step are kept internally and count as consumed.
// A non-nil error means the connection has failed; the frames queued so
// far, GOAWAY included, should still be flushed.
func (c *Conn) Feed(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}

	total := len(p)
	carried := c.carryLen
	if carried > 0 {
		c.joined = append(append(c.joined[:0], c.carry[:carried]...), p...)
		p = c.joined
		c.carryLen = 0
	}

	for len(p) > 0 {
		n, err := c.step(p)
		p = p[n:]
		if err != nil {
			return max(total-len(p), 0), err
		}
	}
	return total, nil
}

func (c *Conn) step(p []byte) (int, error) {
	switch c.state {
	case statePreface:
		return c.readPreface(p)
	case statePrefaceEnd:
		return c.readPrefaceEnd(p)
	case stateHead:
		return c.readHead(p)
	case stateData:
		return c.readDataHead(p)
	case stateReadData:
		return c.readData(p)
	case stateHeaders:
		return c.readHeaders(p)
	case stateHeaderBlock:
		return c.readHeaderBlock(p)
	case stateHeaderPadding:
		return c.readHeaderPadding(p)
	case stateContinuation:
		return c.readContinuation(p)
	case statePriority:
		return c.readPriority(p)
	case stateRstStream:
		return c.readRstStream(p)
	case stateSettings:
		return c.readSettings(p)
	case stateSettingsParams:
		return c.readSettingsParams(p)
	case statePing:
		return c.readPing(p)
	case stateGoaway:
		return c.readGoaway(p)
	case stateWindowUpdate:
		return c.readWindowUpdate(p)
	case stateSkip:
		return c.readSkip(p)
	}
	return 0, c.connectionError(ErrCodeInternal, "invalid dispatcher state %d", c.state)
}

// save keeps the unconsumed tail of p until the next Feed and resumes at
// state.
func (c *Conn) save(p []byte, state stateKind) (int, error) {
	if len(p) > stateBufferSize {
		c.log.Errorf("http2 state buffer overflow: %d bytes required", len(p))
		return 0, c.connectionError(ErrCodeInternal, "internal buffer overrun")
	}

	c.carryLen = copy(c.carry[:], p)
	c.state = state
	return len(p), nil
}

// complete finishes the current frame.
func (c *Conn) complete() {
	c.state = stateHead
	c.stream = nil
	c.length = 0
	c.padding = 0
}

// connectionError fails the connection: GOAWAY with code is queued and
// every live stream is completed. The returned error is also kept as Err.
func (c *Conn) connectionError(code ErrCode, format string, args ...any) error {
	if c.err != nil {
		return c.err
	}

	reason := fmt.Sprintf(format, args...)
	c.log.WithFields(map[string]any{
		"code": code.String(),
	}).Info(reason)
	metrics.ConnectionErrors(c.opts.Name, code.String()).Inc()

	c.err = ConnectionError{Code: code, Reason: reason}
	c.finalize(code)
	return c.err
}

// Close shuts the connection down with code. Frames already queued, and
// the GOAWAY, can still be flushed; Feed reports ErrConnClosed afterwards.
func (c *Conn) Close(code ErrCode) {
	if c.err != nil {
		return
	}
	c.err = ErrConnClosed
	c.finalize(code)
}

// Shutdown starts a graceful shutdown: GOAWAY(NO_ERROR) is queued, new
// streams are skipped and the connection is done once the live ones finish.
func (c *Conn) Shutdown() {
	if c.err != nil || c.goawaySent {
		return
	}
	c.goaway = true
	c.sendGoaway(ErrCodeNo)
}

func (c *Conn) finalize(code ErrCode) {
	if !c.goawaySent {
		c.sendGoaway(code)
	}
	c.goaway = true

	out := c.out[:0]
	for _, f := range c.out {
		s := f.stream
		if s == nil {
			out = append(out, f)
			continue
		}
		s.queued--
		if f.off == 0 {
			c.freeFrame(f)
			continue
		}
		// a partly written frame must still go out whole
		f.stream = nil
		out = append(out, f)
	}
	for i := len(out); i < len(c.out); i++ {
		c.out[i] = nil
	}
	c.out = out

	for i := range c.tree.nodes {
		s := c.tree.nodes[i].stream
		if s == nil {
			continue
		}
		s.inClosed = true
		if s.err == nil {
			s.err = c.err
		}
		c.closeStream(s)
	}
}

// StreamReset resets stream id with code.
func (c *Conn) StreamReset(id uint32, code ErrCode) error {
	if c.err != nil {
		return ErrConnClosed
	}
	s := c.tree.stream(id)
	if s == nil {
		return ErrUnknownStream
	}
	c.terminateStream(s, code)
	return nil
}

// Done reports whether the connection has nothing left to do: it failed
// or is going away with no stream left, and its output is drained.
func (c *Conn) Done() bool {
	if len(c.out) > 0 {
		return false
	}
	return c.err != nil || (c.goaway && c.processing == 0)
}

// Err returns the error that ended the connection, if any.
func (c *Conn) Err() error {
	return c.err
}

// Streams returns the number of live streams.
func (c *Conn) Streams() int {
	return c.processing
}

func (c *Conn) frameMetrics(t http2.FrameType) {
	metrics.Frames(c.opts.Name, t.String()).Inc()
}
