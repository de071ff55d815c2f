package http2

import (
	"errors"
	"io"

	"github.com/go-gost/h2engine/pkg/common/bufpool"
	"golang.org/x/net/http2"
)

// controlFrameSize is the buffer size of recycled control frames.
const controlFrameSize = 32

type outFrame struct {
	buf     []byte
	off     int
	typ     http2.FrameType
	stream  *Stream
	end     bool
	blocked bool
	pooled  bool
}

// getFrame returns a frame with its header filled in and room for size
// payload octets. Small frames come from the connection free list, the
// rest from the shared buffer pool.
func (c *Conn) getFrame(size int, typ http2.FrameType, flags http2.Flags, sid uint32) *outFrame {
	n := frameHeaderLen + size

	var f *outFrame
	if n <= controlFrameSize {
		if k := len(c.free); k > 0 {
			f = c.free[k-1]
			c.free[k-1] = nil
			c.free = c.free[:k-1]
		} else {
			f = &outFrame{buf: make([]byte, controlFrameSize)}
		}
		f.buf = f.buf[:n]
	} else {
		f = &outFrame{buf: bufpool.Get(n), pooled: true}
	}

	f.typ = typ
	putFrameHeader(f.buf, size, typ, flags, sid)
	return f
}

func (c *Conn) freeFrame(f *outFrame) {
	if f.pooled {
		bufpool.Put(f.buf)
		return
	}
	*f = outFrame{buf: f.buf[:0]}
	c.free = append(c.free, f)
}

// queueFrame inserts a stream frame by priority: behind every blocked or
// control frame, and behind frames of streams ranked at least as high.
func (c *Conn) queueFrame(f *outFrame) {
	i := len(c.out)
	for ; i > 0; i-- {
		prev := c.out[i-1]
		if prev.blocked || prev.stream == nil {
			break
		}
		if c.precedes(prev.stream, f.stream) {
			break
		}
	}
	c.insertFrame(i, f)
}

// queueBlockedFrame inserts a frame right after the last blocked or
// control frame, ahead of ordinary stream frames.
func (c *Conn) queueBlockedFrame(f *outFrame) {
	i := len(c.out)
	for ; i > 0; i-- {
		prev := c.out[i-1]
		if prev.blocked || prev.stream == nil {
			break
		}
	}
	c.insertFrame(i, f)
}

func (c *Conn) insertFrame(i int, f *outFrame) {
	if f.stream != nil {
		f.stream.queued++
	}
	c.out = append(c.out, nil)
	copy(c.out[i+1:], c.out[i:])
	c.out[i] = f
}

func (c *Conn) precedes(a, b *Stream) bool {
	ra, rb := c.tree.rank(a.node), c.tree.rank(b.node)
	if ra != rb {
		return ra < rb
	}
	return c.tree.relWeight(a.node) >= c.tree.relWeight(b.node)
}

// dropFrames removes the unsent DATA frames of s. Header frames stay so
// that the peer's header decoder keeps in step.
func (c *Conn) dropFrames(s *Stream) {
	out := c.out[:0]
	for _, f := range c.out {
		if f.stream == s && f.typ == http2.FrameData && f.off == 0 {
			s.queued--
			c.freeFrame(f)
			continue
		}
		out = append(out, f)
	}
	for i := len(out); i < len(c.out); i++ {
		c.out[i] = nil
	}
	c.out = out
}

// Flush writes the queued frames to w in order. A frame that is written
// only in part stays at the head of the queue, marked blocked, and Flush
// returns ErrWouldBlock; the next Flush resumes it.
func (c *Conn) Flush(w io.Writer) error {
	for len(c.out) > 0 {
		f := c.out[0]

		n, err := w.Write(f.buf[f.off:])
		f.off += n
		if f.off < len(f.buf) {
			f.blocked = true
			if err == nil || errors.Is(err, ErrWouldBlock) {
				return ErrWouldBlock
			}
			return err
		}

		c.out[0] = nil
		c.out = c.out[1:]
		c.frameSent(f)

		if err != nil && !errors.Is(err, ErrWouldBlock) {
			return err
		}
	}
	return nil
}

// Pending returns the number of queued frames.
func (c *Conn) Pending() int {
	return len(c.out)
}

func (c *Conn) frameSent(f *outFrame) {
	if s := f.stream; s != nil {
		s.queued--
		if f.end {
			s.outClosed = true
		}
		if s.queued == 0 && (s.closing || s.outClosed) {
			c.closeStream(s)
		}
	}
	c.freeFrame(f)
}
