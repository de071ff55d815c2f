package http2

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// testPeer plays the client side of a Conn: frames are written with the
// x/net Framer and the server output is parsed back the same way.
type testPeer struct {
	t    *testing.T
	conn *Conn

	in   bytes.Buffer
	fr   *http2.Framer
	hbuf bytes.Buffer
	enc  *hpack.Encoder

	out bytes.Buffer
	rd  *http2.Framer
}

type record struct {
	typ       http2.FrameType
	sid       uint32
	ack       bool
	end       bool
	code      ErrCode
	last      uint32
	increment uint32
	data      []byte
	fields    []hpack.HeaderField
	settings  []http2.Setting
}

func newTestPeer(t *testing.T, h Handler, opts ...Option) *testPeer {
	p := &testPeer{t: t}
	p.conn = NewConn(append([]Option{HandlerOption(h)}, opts...)...)

	p.fr = http2.NewFramer(&p.in, nil)
	p.fr.AllowIllegalWrites = true
	p.enc = hpack.NewEncoder(&p.hbuf)

	p.rd = http2.NewFramer(io.Discard, &p.out)
	p.rd.ReadMetaHeaders = hpack.NewDecoder(4096, nil)
	return p
}

// start writes the preface and an empty SETTINGS frame.
func (p *testPeer) start() {
	p.in.WriteString(http2.ClientPreface)
	p.fr.WriteSettings()
}

func (p *testPeer) block(kv ...string) []byte {
	p.hbuf.Reset()
	for i := 0; i+1 < len(kv); i += 2 {
		p.enc.WriteField(hpack.HeaderField{Name: kv[i], Value: kv[i+1]})
	}
	return append([]byte(nil), p.hbuf.Bytes()...)
}

func (p *testPeer) get(sid uint32, end bool, kv ...string) {
	fields := append([]string{":method", "GET", ":scheme", "http", ":path", "/", ":authority", "a"}, kv...)
	p.fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      sid,
		BlockFragment: p.block(fields...),
		EndStream:     end,
		EndHeaders:    true,
	})
}

// feed hands everything written so far to the connection and flushes.
func (p *testPeer) feed() error {
	return p.feedChunks(len(p.in.Bytes()))
}

func (p *testPeer) feedChunks(chunk int) error {
	b := append([]byte(nil), p.in.Bytes()...)
	p.in.Reset()

	var err error
	for len(b) > 0 && err == nil {
		n := min(chunk, len(b))
		_, err = p.conn.Feed(b[:n])
		b = b[n:]
	}
	p.flush()
	return err
}

func (p *testPeer) flush() {
	p.t.Helper()
	if err := p.conn.Flush(&p.out); err != nil {
		p.t.Fatalf("flush: %v", err)
	}
}

func (p *testPeer) read() []record {
	p.t.Helper()

	var recs []record
	for {
		f, err := p.rd.ReadFrame()
		if err == io.EOF {
			return recs
		}
		if err != nil {
			p.t.Fatalf("read frame: %v", err)
		}

		r := record{typ: f.Header().Type, sid: f.Header().StreamID}
		switch f := f.(type) {
		case *http2.SettingsFrame:
			r.ack = f.IsAck()
			f.ForeachSetting(func(s http2.Setting) error {
				r.settings = append(r.settings, s)
				return nil
			})
		case *http2.MetaHeadersFrame:
			r.end = f.StreamEnded()
			r.fields = append(r.fields, f.Fields...)
		case *http2.DataFrame:
			r.end = f.StreamEnded()
			r.data = append([]byte(nil), f.Data()...)
		case *http2.RSTStreamFrame:
			r.code = f.ErrCode
		case *http2.GoAwayFrame:
			r.code = f.ErrCode
			r.last = f.LastStreamID
		case *http2.WindowUpdateFrame:
			r.increment = f.Increment
		case *http2.PingFrame:
			r.ack = f.IsAck()
			r.data = append([]byte(nil), f.Data[:]...)
		}
		recs = append(recs, r)
	}
}

func filter(recs []record, typ http2.FrameType) []record {
	var out []record
	for _, r := range recs {
		if r.typ == typ {
			out = append(out, r)
		}
	}
	return out
}

func field(r record, name string) string {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// holder keeps the streams it is handed without answering them.
type holder struct {
	streams map[uint32]*Stream
	reqs    map[uint32]*Request
	calls   int
}

func newHolder() *holder {
	return &holder{
		streams: make(map[uint32]*Stream),
		reqs:    make(map[uint32]*Request),
	}
}

func (h *holder) ServeHTTP2(s *Stream, r *Request) {
	h.calls++
	h.streams[s.ID()] = s
	h.reqs[s.ID()] = r
}

func respondOK(s *Stream, r *Request) {
	s.Respond(200, nil, true)
}

func expectConnError(t *testing.T, err error, code ErrCode) {
	t.Helper()
	var ce ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("want connection error %v, got %v", code, err)
	}
	if ce.Code != code {
		t.Fatalf("want connection error %v, got %v", code, ce.Code)
	}
}

func expectGoaway(t *testing.T, recs []record, code ErrCode) {
	t.Helper()
	g := filter(recs, http2.FrameGoAway)
	if len(g) != 1 {
		t.Fatalf("want one GOAWAY, got %d", len(g))
	}
	if g[0].code != code {
		t.Fatalf("GOAWAY code: want %v, got %v", code, g[0].code)
	}
}

func expectRst(t *testing.T, recs []record, sid uint32, code ErrCode) {
	t.Helper()
	for _, r := range filter(recs, http2.FrameRSTStream) {
		if r.sid == sid {
			if r.code != code {
				t.Fatalf("RST_STREAM %d: want %v, got %v", sid, code, r.code)
			}
			return
		}
	}
	t.Fatalf("no RST_STREAM for stream %d", sid)
}

func TestInitialFrames(t *testing.T) {
	p := newTestPeer(t, nil, ConnectionWindowOption(1<<20), HeaderTableSizeOption(8192))
	p.flush()

	recs := p.read()
	if len(recs) != 2 {
		t.Fatalf("want 2 frames, got %d", len(recs))
	}

	s := recs[0]
	if s.typ != http2.FrameSettings || s.ack {
		t.Fatalf("first frame should be SETTINGS, got %v", s.typ)
	}
	want := map[http2.SettingID]uint32{
		http2.SettingMaxConcurrentStreams: 128,
		http2.SettingInitialWindowSize:    65536,
		http2.SettingMaxFrameSize:         DefaultFrameSize,
		http2.SettingHeaderTableSize:      8192,
	}
	if len(s.settings) != len(want) {
		t.Fatalf("want %d settings, got %d", len(want), len(s.settings))
	}
	for _, v := range s.settings {
		if want[v.ID] != v.Val {
			t.Errorf("setting %v: want %d, got %d", v.ID, want[v.ID], v.Val)
		}
	}

	wu := recs[1]
	if wu.typ != http2.FrameWindowUpdate || wu.sid != 0 || wu.increment != 1<<20-DefaultWindow {
		t.Fatalf("unexpected connection WINDOW_UPDATE %+v", wu)
	}
}

func TestSimpleRequest(t *testing.T) {
	var got *Request
	calls := 0
	p := newTestPeer(t, HandlerFunc(func(s *Stream, r *Request) {
		calls++
		got = r
		s.Respond(200, nil, true)
	}))

	p.start()
	p.get(1, true)
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}

	recs := p.read()

	acks := 0
	for _, r := range filter(recs, http2.FrameSettings) {
		if r.ack {
			acks++
		}
	}
	if acks != 1 {
		t.Fatalf("want exactly one SETTINGS ack, got %d", acks)
	}

	if calls != 1 {
		t.Fatalf("handler called %d times", calls)
	}
	if got.Method != "GET" || got.Path != "/" || got.Scheme != "http" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.RequestLine != "GET / HTTP/2.0" {
		t.Fatalf("request line %q", got.RequestLine)
	}
	if got.Header.Get("Host") != "a" {
		t.Fatalf("host %q", got.Header.Get("Host"))
	}
	if got.ContentLength != 0 {
		t.Fatalf("content length %d", got.ContentLength)
	}

	h := filter(recs, http2.FrameHeaders)
	if len(h) != 1 || h[0].sid != 1 || !h[0].end || field(h[0], ":status") != "200" {
		t.Fatalf("unexpected response %+v", h)
	}

	if n := p.conn.Streams(); n != 0 {
		t.Fatalf("%d streams still open", n)
	}
	if p.conn.Done() {
		t.Fatal("connection should stay open")
	}
}

func TestFeedByteByByte(t *testing.T) {
	var whole, split []*Request
	for _, chunk := range []int{0, 1} {
		var reqs *[]*Request
		if chunk == 0 {
			reqs = &whole
		} else {
			reqs = &split
		}

		p := newTestPeer(t, HandlerFunc(func(s *Stream, r *Request) {
			*reqs = append(*reqs, r)
			s.Respond(200, nil, true)
		}))
		p.start()
		p.fr.WritePing(false, [8]byte{1, 2, 3, 4, 5, 6, 7, 8})
		p.get(1, true, "x-one", "1")
		p.get(3, true, "x-two", "www.example.com")
		p.fr.WriteWindowUpdate(0, 100)

		var err error
		if chunk == 0 {
			err = p.feed()
		} else {
			err = p.feedChunks(chunk)
		}
		if err != nil {
			t.Fatal(err)
		}

		recs := p.read()
		if pings := filter(recs, http2.FramePing); len(pings) != 1 || !pings[0].ack {
			t.Fatalf("want one PING ack, got %+v", pings)
		}
	}

	if len(whole) != 2 || len(split) != 2 {
		t.Fatalf("want 2 requests, got %d and %d", len(whole), len(split))
	}
	for i := range whole {
		if whole[i].RequestLine != split[i].RequestLine {
			t.Errorf("request line %q != %q", whole[i].RequestLine, split[i].RequestLine)
		}
		if whole[i].Header.Get("X-One") != split[i].Header.Get("X-One") ||
			whole[i].Header.Get("X-Two") != split[i].Header.Get("X-Two") {
			t.Errorf("headers differ: %v != %v", whole[i].Header, split[i].Header)
		}
	}
	if split[1].Header.Get("X-Two") != "www.example.com" {
		t.Fatalf("unexpected header %v", split[1].Header)
	}
}

func TestBadPreface(t *testing.T) {
	p := newTestPeer(t, nil)
	p.in.WriteString("GET / HTTP/1.1\r\n\r\n")

	err := p.feed()
	expectConnError(t, err, ErrCodeProtocol)
	expectGoaway(t, p.read(), ErrCodeProtocol)

	if !p.conn.Done() {
		t.Fatal("connection should be done")
	}
	if _, err := p.conn.Feed([]byte{0}); err == nil {
		t.Fatal("feed after failure should fail")
	}
}

func TestSettingsAckOnce(t *testing.T) {
	p := newTestPeer(t, nil)
	p.in.WriteString(http2.ClientPreface)
	p.fr.WriteSettings(
		http2.Setting{ID: http2.SettingHeaderTableSize, Val: 1024},
		http2.Setting{ID: http2.SettingEnablePush, Val: 0},
		http2.Setting{ID: http2.SettingMaxConcurrentStreams, Val: 10},
		http2.Setting{ID: http2.SettingInitialWindowSize, Val: 1000},
		http2.Setting{ID: http2.SettingMaxFrameSize, Val: 32768},
		http2.Setting{ID: 0x99, Val: 1},
	)
	p.fr.WriteSettingsAck()

	if err := p.feedChunks(5); err != nil {
		t.Fatal(err)
	}

	acks := 0
	for _, r := range filter(p.read(), http2.FrameSettings) {
		if r.ack {
			acks++
		}
	}
	if acks != 1 {
		t.Fatalf("want one ack, got %d", acks)
	}

	c := p.conn
	if c.initWindow != 1000 || c.peerFrameSize != 32768 || c.peerMaxStreams != 10 {
		t.Fatalf("settings not applied: window %d frame %d streams %d", c.initWindow, c.peerFrameSize, c.peerMaxStreams)
	}
	if !c.settingsAck {
		t.Fatal("client ack not recorded")
	}
}

func TestSettingsErrors(t *testing.T) {
	tests := []struct {
		name  string
		write func(fr *http2.Framer)
		code  ErrCode
	}{
		{
			name: "ack with payload",
			write: func(fr *http2.Framer) {
				fr.WriteRawFrame(http2.FrameSettings, http2.FlagSettingsAck, 0, make([]byte, 6))
			},
			code: ErrCodeFrameSize,
		},
		{
			name: "bad length",
			write: func(fr *http2.Framer) {
				fr.WriteRawFrame(http2.FrameSettings, 0, 0, make([]byte, 7))
			},
			code: ErrCodeFrameSize,
		},
		{
			name: "stream id",
			write: func(fr *http2.Framer) {
				fr.WriteRawFrame(http2.FrameSettings, 0, 1, nil)
			},
			code: ErrCodeProtocol,
		},
		{
			name: "enable push",
			write: func(fr *http2.Framer) {
				fr.WriteSettings(http2.Setting{ID: http2.SettingEnablePush, Val: 2})
			},
			code: ErrCodeProtocol,
		},
		{
			name: "window too large",
			write: func(fr *http2.Framer) {
				fr.WriteSettings(http2.Setting{ID: http2.SettingInitialWindowSize, Val: 1 << 31})
			},
			code: ErrCodeFlowControl,
		},
		{
			name: "frame size too small",
			write: func(fr *http2.Framer) {
				fr.WriteSettings(http2.Setting{ID: http2.SettingMaxFrameSize, Val: 100})
			},
			code: ErrCodeProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPeer(t, nil)
			p.in.WriteString(http2.ClientPreface)
			tt.write(p.fr)

			err := p.feed()
			expectConnError(t, err, tt.code)

			recs := p.read()
			expectGoaway(t, recs, tt.code)
			for _, r := range filter(recs, http2.FrameSettings) {
				if r.ack {
					t.Fatal("failed SETTINGS must not be acknowledged")
				}
			}
		})
	}
}

func TestHeaderListTooLarge(t *testing.T) {
	h := newHolder()
	p := newTestPeer(t, h, MaxHeaderSizeOption(64))

	p.start()
	p.get(1, true, "x-big", string(bytes.Repeat([]byte("v"), 100)))
	p.get(3, true, "x-small", "ok")
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}

	recs := p.read()
	expectRst(t, recs, 1, ErrCodeEnhanceYourCalm)
	if len(filter(recs, http2.FrameGoAway)) != 0 {
		t.Fatal("connection should stay open")
	}

	if _, ok := h.streams[1]; ok {
		t.Fatal("stream 1 should not reach the handler")
	}
	r := h.reqs[3]
	if r == nil {
		t.Fatal("stream 3 should reach the handler")
	}
	if r.Header.Get("X-Small") != "ok" || r.Header.Get("Host") != "a" {
		t.Fatalf("unexpected headers %v", r.Header)
	}
}

func TestConnectionWindowViolation(t *testing.T) {
	var closeErr error
	closed := false
	p := newTestPeer(t, HandlerFunc(func(s *Stream, r *Request) {
		s.OnClose(func(err error) {
			closed = true
			closeErr = err
		})
	}), ConnectionWindowOption(1000))

	p.start()
	p.get(1, false)
	p.fr.WriteData(1, true, make([]byte, 2000))

	err := p.feed()
	expectConnError(t, err, ErrCodeFlowControl)
	expectGoaway(t, p.read(), ErrCodeFlowControl)

	if !closed {
		t.Fatal("live stream should be completed")
	}
	expectConnError(t, closeErr, ErrCodeFlowControl)
	if !p.conn.Done() {
		t.Fatal("connection should be done")
	}
}

func TestConnectionWindowRefill(t *testing.T) {
	h := newHolder()
	p := newTestPeer(t, h, ConnectionWindowOption(1000))

	p.start()
	p.get(1, false)
	p.fr.WriteData(1, false, make([]byte, 800))
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, r := range filter(p.read(), http2.FrameWindowUpdate) {
		if r.sid == 0 && r.increment == 800 {
			found = true
		}
	}
	if !found {
		t.Fatal("want a connection WINDOW_UPDATE of 800")
	}
	if p.conn.recvWindow.size != 1000 {
		t.Fatalf("window %d", p.conn.recvWindow.size)
	}
}

func TestContinuation(t *testing.T) {
	enc := new(bytes.Buffer)
	he := hpack.NewEncoder(enc)
	for _, f := range []hpack.HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: "/upload?name=value"},
		{Name: ":authority", Value: "www.example.com"},
		{Name: "user-agent", Value: "custom-agent/1.0 (testing)"},
		{Name: "x-token", Value: "secret", Sensitive: true},
		{Name: "cookie", Value: "a=1"},
		{Name: "cookie", Value: "b=2"},
	} {
		he.WriteField(f)
	}
	block := enc.Bytes()

	run := func(write func(fr *http2.Framer)) *Request {
		h := newHolder()
		p := newTestPeer(t, h)
		p.start()
		write(p.fr)
		if err := p.feed(); err != nil {
			t.Fatal(err)
		}
		return h.reqs[1]
	}

	want := run(func(fr *http2.Framer) {
		fr.WriteHeaders(http2.HeadersFrameParam{StreamID: 1, BlockFragment: block, EndStream: true, EndHeaders: true})
	})
	if want == nil {
		t.Fatal("unsplit block not served")
	}
	if want.Header.Get("Cookie") != "a=1; b=2" || want.Header.Get("X-Token") != "secret" {
		t.Fatalf("unexpected headers %v", want.Header)
	}

	same := func(got *Request) bool {
		return got != nil &&
			got.RequestLine == want.RequestLine &&
			got.Scheme == want.Scheme &&
			got.Authority == want.Authority &&
			got.Header.Get("User-Agent") == want.Header.Get("User-Agent") &&
			got.Header.Get("X-Token") == want.Header.Get("X-Token") &&
			got.Header.Get("Cookie") == want.Header.Get("Cookie")
	}

	for i := 1; i < len(block); i++ {
		got := run(func(fr *http2.Framer) {
			fr.WriteHeaders(http2.HeadersFrameParam{StreamID: 1, BlockFragment: block[:i], EndStream: true})
			fr.WriteContinuation(1, true, block[i:])
		})
		if !same(got) {
			t.Fatalf("split at %d: got %+v, want %+v", i, got, want)
		}
	}

	got := run(func(fr *http2.Framer) {
		fr.WriteHeaders(http2.HeadersFrameParam{StreamID: 1, BlockFragment: block[:3], EndStream: true, PadLength: 7})
		fr.WriteContinuation(1, false, nil)
		fr.WriteContinuation(1, false, block[3:10])
		fr.WriteContinuation(1, true, block[10:])
	})
	if !same(got) {
		t.Fatalf("padded split: got %+v, want %+v", got, want)
	}
}

func TestContinuationErrors(t *testing.T) {
	tests := []struct {
		name  string
		write func(p *testPeer)
	}{
		{
			name: "other stream",
			write: func(p *testPeer) {
				b := p.block(":method", "GET", ":scheme", "http", ":path", "/")
				p.fr.WriteHeaders(http2.HeadersFrameParam{StreamID: 1, BlockFragment: b[:1]})
				p.fr.WriteContinuation(3, true, b[1:])
			},
		},
		{
			name: "other frame",
			write: func(p *testPeer) {
				b := p.block(":method", "GET", ":scheme", "http", ":path", "/")
				p.fr.WriteHeaders(http2.HeadersFrameParam{StreamID: 1, BlockFragment: b})
				p.fr.WritePing(false, [8]byte{})
			},
		},
		{
			name: "no open block",
			write: func(p *testPeer) {
				p.fr.WriteContinuation(1, true, p.block(":method", "GET"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPeer(t, newHolder())
			p.start()
			tt.write(p)

			expectConnError(t, p.feed(), ErrCodeProtocol)
			expectGoaway(t, p.read(), ErrCodeProtocol)
		})
	}
}

func TestHeadersErrors(t *testing.T) {
	tests := []struct {
		name  string
		write func(p *testPeer)
		code  ErrCode
	}{
		{
			name: "even stream id",
			write: func(p *testPeer) {
				p.get(2, true)
			},
			code: ErrCodeProtocol,
		},
		{
			name: "decreasing stream id",
			write: func(p *testPeer) {
				p.get(5, true)
				p.get(3, true)
			},
			code: ErrCodeProtocol,
		},
		{
			name: "empty block",
			write: func(p *testPeer) {
				p.fr.WriteHeaders(http2.HeadersFrameParam{StreamID: 1, EndHeaders: true})
			},
			code: ErrCodeFrameSize,
		},
		{
			name: "bad padding",
			write: func(p *testPeer) {
				p.fr.WriteRawFrame(http2.FrameHeaders, http2.FlagHeadersEndHeaders|http2.FlagHeadersPadded, 1, []byte{5, 0x82})
			},
			code: ErrCodeProtocol,
		},
		{
			name: "push promise",
			write: func(p *testPeer) {
				p.fr.WritePushPromise(http2.PushPromiseParam{StreamID: 1, PromiseID: 2, BlockFragment: []byte{0x82}, EndHeaders: true})
			},
			code: ErrCodeProtocol,
		},
		{
			name: "bad index",
			write: func(p *testPeer) {
				p.fr.WriteHeaders(http2.HeadersFrameParam{StreamID: 1, BlockFragment: []byte{0xff, 0x10}, EndHeaders: true})
			},
			code: ErrCodeCompression,
		},
		{
			name: "frame too large",
			write: func(p *testPeer) {
				p.fr.WriteRawFrame(0xfa, 0, 0, make([]byte, DefaultFrameSize+1))
			},
			code: ErrCodeFrameSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPeer(t, HandlerFunc(respondOK))
			p.start()
			tt.write(p)

			expectConnError(t, p.feed(), tt.code)
			expectGoaway(t, p.read(), tt.code)
		})
	}
}

func TestUnknownFrameSkipped(t *testing.T) {
	p := newTestPeer(t, nil)
	p.start()
	p.fr.WriteRawFrame(0xfa, 0x1, 7, []byte("extension payload"))
	p.fr.WritePing(false, [8]byte{'p', 'i', 'n', 'g'})

	if err := p.feedChunks(3); err != nil {
		t.Fatal(err)
	}

	pings := filter(p.read(), http2.FramePing)
	if len(pings) != 1 || !pings[0].ack || string(pings[0].data[:4]) != "ping" {
		t.Fatalf("unexpected PING reply %+v", pings)
	}
}

func TestPingAckIgnored(t *testing.T) {
	p := newTestPeer(t, nil)
	p.start()
	p.fr.WritePing(true, [8]byte{})
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}
	if n := len(filter(p.read(), http2.FramePing)); n != 0 {
		t.Fatalf("PING ack answered with %d frames", n)
	}
}

func TestGoawayFromClient(t *testing.T) {
	h := newHolder()
	p := newTestPeer(t, h)
	p.start()
	p.get(1, true)
	p.fr.WriteGoAway(1, ErrCodeNo, []byte("bye"))
	p.get(3, true)
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}

	if h.calls != 1 {
		t.Fatalf("want one request served, got %d", h.calls)
	}
	if p.conn.Done() {
		t.Fatal("stream 1 is still open")
	}

	h.streams[1].Respond(200, nil, true)
	p.flush()
	if !p.conn.Done() {
		t.Fatal("connection should be done once streams drain")
	}
}

func TestMaxRequests(t *testing.T) {
	h := newHolder()
	p := newTestPeer(t, h, MaxRequestsOption(1))
	p.start()
	p.get(1, true)
	p.get(3, true)
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}

	recs := p.read()
	expectGoaway(t, recs, ErrCodeNo)
	if g := filter(recs, http2.FrameGoAway)[0]; g.last != 1 {
		t.Fatalf("GOAWAY last stream %d", g.last)
	}
	if h.calls != 1 {
		t.Fatalf("want one request served, got %d", h.calls)
	}

	h.streams[1].Respond(204, nil, true)
	p.flush()
	if !p.conn.Done() {
		t.Fatal("connection should be done")
	}
	if p.conn.Err() != nil {
		t.Fatalf("graceful shutdown reported %v", p.conn.Err())
	}
}

func TestClose(t *testing.T) {
	h := newHolder()
	p := newTestPeer(t, h)
	p.start()
	p.get(1, true)
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}

	var closeErr error
	s := h.streams[1]
	s.OnClose(func(err error) {
		closeErr = err
	})

	p.conn.Close(ErrCodeNo)
	p.flush()

	expectGoaway(t, p.read(), ErrCodeNo)
	if !errors.Is(closeErr, ErrConnClosed) {
		t.Fatalf("stream completed with %v", closeErr)
	}
	if err := s.Respond(200, nil, true); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("respond after close: %v", err)
	}
	if _, err := p.conn.Feed([]byte{0}); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("feed after close: %v", err)
	}
	if !p.conn.Done() {
		t.Fatal("connection should be done")
	}
}

func TestShutdown(t *testing.T) {
	h := newHolder()
	p := newTestPeer(t, h)
	p.start()
	p.get(1, true)
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}

	p.conn.Shutdown()
	p.conn.Shutdown()
	p.get(3, true)
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}

	recs := p.read()
	expectGoaway(t, recs, ErrCodeNo)
	if g := filter(recs, http2.FrameGoAway); g[0].last != 1 {
		t.Fatalf("last stream id %d", g[0].last)
	}
	if _, ok := h.streams[3]; ok {
		t.Fatal("stream opened after GOAWAY should be ignored")
	}
	if p.conn.Done() {
		t.Fatal("stream 1 is still live")
	}

	if err := h.streams[1].Respond(200, nil, true); err != nil {
		t.Fatal(err)
	}
	p.flush()
	if !p.conn.Done() || p.conn.Err() != nil {
		t.Fatalf("done %v, err %v", p.conn.Done(), p.conn.Err())
	}
}

func TestHeadersAfterShutdown(t *testing.T) {
	h := newHolder()
	p := newTestPeer(t, h)
	p.start()
	p.get(1, true)
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}
	// ":authority: a" is indexed by now: 10 + 1 + 32
	if size := p.conn.hdec.DynamicTableSize(); size != 43 {
		t.Fatalf("table size %d", size)
	}

	p.conn.Shutdown()
	block := p.block(":method", "GET", ":scheme", "http", ":path", "/", ":authority", "a", "x-a", "1")
	p.fr.WriteHeaders(http2.HeadersFrameParam{StreamID: 3, BlockFragment: block[:2], EndStream: true})
	p.fr.WriteContinuation(3, true, block[2:])
	if err := p.feed(); err != nil {
		t.Fatalf("split block after GOAWAY: %v", err)
	}

	if _, ok := h.streams[3]; ok {
		t.Fatal("stream opened after GOAWAY should be ignored")
	}
	// "x-a: 1" was added on the client side too: 43 + 3 + 1 + 32
	if size := p.conn.hdec.DynamicTableSize(); size != 79 {
		t.Fatalf("dynamic table out of step: %d", size)
	}
	if n := len(filter(p.read(), http2.FrameRSTStream)); n != 0 {
		t.Fatalf("ignored stream answered with %d resets", n)
	}

	if err := h.streams[1].Respond(200, nil, true); err != nil {
		t.Fatal(err)
	}
	p.flush()
	if !p.conn.Done() || p.conn.Err() != nil {
		t.Fatalf("done %v, err %v", p.conn.Done(), p.conn.Err())
	}
}

func TestHeaderTableSizeAppliesAfterAck(t *testing.T) {
	h := newHolder()
	p := newTestPeer(t, h, HeaderTableSizeOption(100))
	p.start()
	// before the ACK the client may still use the default table
	p.get(1, true, "x-long", string(bytes.Repeat([]byte("v"), 100)))
	if err := p.feed(); err != nil {
		t.Fatalf("block built for the default table: %v", err)
	}
	if size := p.conn.hdec.DynamicTableSize(); size != 181 {
		t.Fatalf("table size %d", size)
	}

	p.fr.WriteSettingsAck()
	p.enc.SetMaxDynamicTableSizeLimit(100)
	p.get(3, true)
	if err := p.feed(); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.streams[3]; !ok {
		t.Fatal("stream 3 not served")
	}
	// the update emptied the table before ":authority: a" came back
	if size := p.conn.hdec.DynamicTableSize(); size != 43 {
		t.Fatalf("table size %d", size)
	}
	if n := len(filter(p.read(), http2.FrameGoAway)); n != 0 {
		t.Fatalf("got %d GOAWAY frames", n)
	}
}
