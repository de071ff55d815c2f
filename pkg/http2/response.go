package http2

import (
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// SubmitHeaders queues a header block for stream id. The first call sends
// the response headers; a later one sends trailers and always ends the
// stream, after any body still pending.
func (c *Conn) SubmitHeaders(id uint32, fields []HeaderField, end bool) error {
	s, err := c.writableStream(id)
	if err != nil {
		return err
	}

	if s.headersSent {
		if s.pendingEnd {
			return ErrStreamClosed
		}
		s.trailers = fields
		s.pendingEnd = true
		c.pump(s)
		return nil
	}

	c.queueHeaders(s, fields, end, false)
	s.headersSent = true
	if end {
		s.pendingEnd = true
		s.endQueued = true
	}
	return nil
}

// SubmitData queues body bytes for stream id. They go out as the flow
// control windows allow; p is copied.
func (c *Conn) SubmitData(id uint32, p []byte, end bool) error {
	s, err := c.writableStream(id)
	if err != nil {
		return err
	}
	if !s.headersSent {
		return ErrHeadersNotSent
	}
	if s.pendingEnd {
		return ErrStreamClosed
	}

	s.pending = append(s.pending, p...)
	s.pendingEnd = end
	c.pump(s)
	return nil
}

func (c *Conn) writableStream(id uint32) (*Stream, error) {
	if c.err != nil {
		return nil, ErrConnClosed
	}
	s := c.tree.stream(id)
	if s == nil {
		return nil, ErrUnknownStream
	}
	if s.closed || s.rstSent || s.outClosed || s.endQueued {
		return nil, ErrStreamClosed
	}
	return s, nil
}

// queueHeaders encodes fields and queues them as HEADERS plus as many
// CONTINUATION frames as the peer's frame size requires. Trailers are
// queued behind the DATA frames of the stream.
func (c *Conn) queueHeaders(s *Stream, fields []HeaderField, end, trailers bool) {
	c.hbuf.Reset()
	for _, f := range fields {
		c.henc.WriteField(hpack.HeaderField{
			Name:      strings.ToLower(f.Name),
			Value:     f.Value,
			Sensitive: f.Sensitive,
		})
	}
	block := c.hbuf.Bytes()

	c.log.Debugf("http2 output header: sid:%d, fields:%d, size:%d", s.id, len(fields), len(block))

	typ := http2.FrameHeaders
	for first := true; first || len(block) > 0; first = false {
		n := min(len(block), c.peerFrameSize)
		last := n == len(block)

		var flags http2.Flags
		if last {
			flags |= http2.FlagHeadersEndHeaders
		}
		if first && end {
			flags |= http2.FlagHeadersEndStream
		}

		f := c.getFrame(n, typ, flags, s.id)
		copy(f.buf[frameHeaderLen:], block[:n])
		f.stream = s
		f.end = end && last
		f.blocked = true
		if trailers {
			c.queueFrame(f)
		} else {
			c.queueBlockedFrame(f)
		}

		block = block[n:]
		typ = http2.FrameContinuation
	}
}

// pump moves pending body bytes of s into DATA frames while both windows
// have room, and ends the stream once everything is queued.
func (c *Conn) pump(s *Stream) {
	if s.closed || s.rstSent || s.endQueued || !s.headersSent {
		return
	}

	for {
		if len(s.pending) == 0 {
			s.pending = nil
			if !s.pendingEnd {
				return
			}
			if s.trailers != nil {
				c.queueHeaders(s, s.trailers, true, true)
				s.trailers = nil
			} else {
				c.queueData(s, nil, true)
			}
			s.endQueued = true
			return
		}

		if s.sendWindow.size <= 0 {
			c.log.Debugf("http2 stream %d exhausted send window", s.id)
			s.exhausted = true
			return
		}
		if c.sendWindow.size <= 0 {
			c.wait(s)
			return
		}

		n := min(int64(len(s.pending)), s.sendWindow.size, c.sendWindow.size, int64(c.peerFrameSize))
		last := n == int64(len(s.pending)) && s.pendingEnd && s.trailers == nil

		c.queueData(s, s.pending[:n], last)
		s.pending = s.pending[n:]
		s.sendWindow.size -= n
		c.sendWindow.size -= n

		if last {
			s.pending = nil
			s.endQueued = true
			return
		}
	}
}

func (c *Conn) queueData(s *Stream, p []byte, end bool) {
	var flags http2.Flags
	if end {
		flags = http2.FlagDataEndStream
	}

	f := c.getFrame(len(p), http2.FrameData, flags, s.id)
	copy(f.buf[frameHeaderLen:], p)
	f.stream = s
	f.end = end
	c.queueFrame(f)
}
