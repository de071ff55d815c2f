package http2

// window is a flow-control credit counter. The send side may go negative
// after the peer shrinks its initial window size.
type window struct {
	size int64
}

func (w *window) consume(n int64) bool {
	if n > w.size {
		return false
	}
	w.size -= n
	return true
}

// add grants n more octets, refusing to cross MaxWindow.
func (w *window) add(n int64) bool {
	if n > MaxWindow-w.size {
		return false
	}
	w.size += n
	return true
}

// consumeRecv accounts an inbound DATA frame against the connection
// window and tops the window back up once it drops under a quarter.
func (c *Conn) consumeRecv(size int) error {
	if !c.recvWindow.consume(int64(size)) {
		return c.connectionError(ErrCodeFlowControl,
			"client violated connection flow control: received DATA frame length %d, available window %d",
			size, c.recvWindow.size)
	}

	limit := int64(c.opts.ConnectionWindow)
	if c.recvWindow.size < limit/4 {
		c.sendWindowUpdate(0, limit-c.recvWindow.size)
		c.recvWindow.size = limit
	}
	return nil
}

// consumeStreamRecv does the same for one stream. A violation only resets
// the stream.
func (c *Conn) consumeStreamRecv(s *Stream, size int) bool {
	if !s.recvWindow.consume(int64(size)) {
		c.log.Infof("client violated flow control for stream %d: received DATA frame length %d, available window %d",
			s.id, size, s.recvWindow.size)
		c.terminateStream(s, ErrCodeFlowControl)
		return false
	}

	if s.noFlowControl && s.recvWindow.size < MaxWindow/4 {
		c.sendWindowUpdate(s.id, MaxWindow-s.recvWindow.size)
		s.recvWindow.size = MaxWindow
	}
	return true
}

// adjustWindows shifts the send window of every live stream after the
// peer changed SETTINGS_INITIAL_WINDOW_SIZE.
func (c *Conn) adjustWindows(delta int64) {
	if delta == 0 {
		return
	}

	for i := range c.tree.nodes {
		s := c.tree.nodes[i].stream
		if s == nil {
			continue
		}

		if delta > 0 && s.sendWindow.size > MaxWindow-delta {
			c.log.Infof("client settings overflow send window of stream %d", s.id)
			c.terminateStream(s, ErrCodeFlowControl)
			continue
		}

		s.sendWindow.size += delta
		if s.sendWindow.size > 0 && s.exhausted {
			s.exhausted = false
			c.pump(s)
		}
	}
}

// windowUpdate applies a WINDOW_UPDATE increment.
func (c *Conn) windowUpdate(sid uint32, increment int64) error {
	if sid != 0 {
		s := c.tree.stream(sid)
		if s == nil {
			c.log.Debugf("unknown http2 stream %d", sid)
			return nil
		}

		if increment == 0 {
			if s.rstSent {
				return nil
			}
			c.log.Infof("client sent WINDOW_UPDATE frame for stream %d with incorrect window increment 0", sid)
			c.terminateStream(s, ErrCodeProtocol)
			return nil
		}

		if !s.sendWindow.add(increment) {
			c.log.Infof("client violated flow control for stream %d: received WINDOW_UPDATE frame with window increment %d not allowed for window %d",
				sid, increment, s.sendWindow.size)
			c.terminateStream(s, ErrCodeFlowControl)
			return nil
		}

		if s.sendWindow.size > 0 && s.exhausted {
			s.exhausted = false
			c.pump(s)
		}
		return nil
	}

	if increment == 0 {
		return c.connectionError(ErrCodeProtocol,
			"client sent WINDOW_UPDATE frame with incorrect window increment 0")
	}

	if !c.sendWindow.add(increment) {
		return c.connectionError(ErrCodeFlowControl,
			"client violated connection flow control: received WINDOW_UPDATE frame with window increment %d not allowed for window %d",
			increment, c.sendWindow.size)
	}

	for len(c.waiting) > 0 && c.sendWindow.size > 0 {
		s := c.waiting[0]
		c.waiting[0] = nil
		c.waiting = c.waiting[1:]
		s.waiting = false
		c.pump(s)
	}
	return nil
}

func (c *Conn) wait(s *Stream) {
	if s.waiting {
		return
	}
	s.waiting = true
	c.waiting = append(c.waiting, s)
}

func (c *Conn) unwait(s *Stream) {
	if !s.waiting {
		return
	}
	s.waiting = false
	for i, w := range c.waiting {
		if w == s {
			c.waiting = append(c.waiting[:i], c.waiting[i+1:]...)
			return
		}
	}
}
