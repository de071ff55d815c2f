package http2

import (
	"encoding/binary"

	"golang.org/x/net/http2"
)

func (c *Conn) readPreface(p []byte) (int, error) {
	n := min(len(p), len(prefaceStart))
	if string(p[:n]) != prefaceStart[:n] {
		return 0, c.connectionError(ErrCodeProtocol, "invalid connection preface")
	}
	if n < len(prefaceStart) {
		return c.save(p, statePreface)
	}

	c.state = statePrefaceEnd
	return n, nil
}

func (c *Conn) readPrefaceEnd(p []byte) (int, error) {
	n := min(len(p), len(prefaceEnd))
	if string(p[:n]) != prefaceEnd[:n] {
		return 0, c.connectionError(ErrCodeProtocol, "invalid connection preface")
	}
	if n < len(prefaceEnd) {
		return c.save(p, statePrefaceEnd)
	}

	c.log.Debugf("http2 preface verified")
	c.state = stateHead
	return n, nil
}

func (c *Conn) readHead(p []byte) (int, error) {
	if len(p) < frameHeaderLen {
		return c.save(p, stateHead)
	}

	h := parseFrameHeader(p)
	c.frame = h
	c.length = h.Length
	c.padding = 0
	c.stream = nil

	c.log.Debugf("process http2 frame type:%v f:%v l:%d sid:%d", h.Type, h.Flags, h.Length, h.StreamID)
	c.frameMetrics(h.Type)

	if h.Length > c.opts.MaxFrameSize {
		return frameHeaderLen, c.connectionError(ErrCodeFrameSize,
			"client sent %v frame with length %d exceeding the limit %d", h.Type, h.Length, c.opts.MaxFrameSize)
	}

	n, err := c.dispatch(p[frameHeaderLen:])
	return frameHeaderLen + n, err
}

// dispatch routes the payload of a freshly read frame header. p may be
// empty: frames without payload are handled at once.
func (c *Conn) dispatch(p []byte) (int, error) {
	switch c.frame.Type {
	case http2.FrameData:
		c.state = stateData
	case http2.FrameHeaders:
		c.state = stateHeaders
	case http2.FramePriority:
		c.state = statePriority
	case http2.FrameRSTStream:
		c.state = stateRstStream
	case http2.FrameSettings:
		c.state = stateSettings
	case http2.FramePushPromise:
		return 0, c.connectionError(ErrCodeProtocol, "client sent PUSH_PROMISE frame")
	case http2.FramePing:
		c.state = statePing
	case http2.FrameGoAway:
		c.state = stateGoaway
	case http2.FrameWindowUpdate:
		c.state = stateWindowUpdate
	case http2.FrameContinuation:
		return 0, c.connectionError(ErrCodeProtocol, "client sent unexpected CONTINUATION frame")
	default:
		c.log.Debugf("http2 frame with unknown type %d", c.frame.Type)
		c.state = stateSkip
	}
	return c.step(p)
}

func (c *Conn) readSkip(p []byte) (int, error) {
	n := min(len(p), c.length)
	c.length -= n
	if c.length == 0 {
		c.complete()
	}
	return n, nil
}

// skipPadded drops the rest of the frame, padding included.
func (c *Conn) skipPadded(p []byte) (int, error) {
	c.length += c.padding
	c.padding = 0
	c.state = stateSkip
	return c.readSkip(p)
}

func (c *Conn) readDataHead(p []byte) (int, error) {
	if c.frame.StreamID == 0 {
		return 0, c.connectionError(ErrCodeProtocol, "client sent DATA frame with incorrect identifier")
	}

	n := 0
	if c.frame.Flags.Has(http2.FlagDataPadded) {
		if c.length == 0 {
			return 0, c.connectionError(ErrCodeFrameSize, "client sent padded DATA frame with incorrect length: 0")
		}
		if len(p) < 1 {
			return c.save(p, stateData)
		}

		pad := int(p[0])
		n = 1
		if pad >= c.length {
			return n, c.connectionError(ErrCodeProtocol,
				"client sent padded DATA frame with incorrect length: %d, padding: %d", c.length, pad)
		}
		c.length -= 1 + pad
		c.padding = pad
	}

	c.log.Debugf("http2 DATA frame sid:%d", c.frame.StreamID)

	if err := c.consumeRecv(c.frame.Length); err != nil {
		return n, err
	}

	s := c.tree.stream(c.frame.StreamID)
	if s == nil {
		c.log.Debugf("unknown http2 stream %d", c.frame.StreamID)
		k, err := c.skipPadded(p[n:])
		return n + k, err
	}

	if !c.consumeStreamRecv(s, c.frame.Length) {
		k, err := c.skipPadded(p[n:])
		return n + k, err
	}

	if s.inClosed {
		c.log.Infof("client sent DATA frame for half-closed stream %d", s.id)
		c.terminateStream(s, ErrCodeStreamClosed)
		k, err := c.skipPadded(p[n:])
		return n + k, err
	}

	c.stream = s
	c.state = stateReadData
	k, err := c.readData(p[n:])
	return n + k, err
}

func (c *Conn) readData(p []byte) (int, error) {
	s := c.stream
	if s == nil || s.skipData {
		return c.skipPadded(p)
	}

	size := min(len(p), c.length)
	last := size == c.length && c.frame.Flags.Has(http2.FlagDataEndStream)
	if last {
		s.inClosed = true
	}
	c.length -= size

	if err := c.deliver(s, p[:size], last); err != nil {
		return size, err
	}

	if c.length > 0 {
		return size, nil
	}
	if c.padding > 0 {
		k, err := c.skipPadded(p[size:])
		return size + k, err
	}
	c.complete()
	return size, nil
}

func (c *Conn) readHeaders(p []byte) (int, error) {
	padded := c.frame.Flags.Has(http2.FlagHeadersPadded)
	priority := c.frame.Flags.Has(http2.FlagHeadersPriority)

	size := 0
	if padded {
		size++
	}
	if priority {
		size += priorityLen
	}

	if c.length < size {
		return 0, c.connectionError(ErrCodeFrameSize, "client sent HEADERS frame with incorrect length %d", c.length)
	}
	if c.length == size {
		return 0, c.connectionError(ErrCodeFrameSize, "client sent HEADERS frame with empty header block")
	}

	if len(p) < size {
		return c.save(p, stateHeaders)
	}

	c.length -= size
	n := 0

	if padded {
		c.padding = int(p[0])
		n++
		if c.padding > c.length {
			return n, c.connectionError(ErrCodeProtocol,
				"client sent padded HEADERS frame with incorrect length: %d, padding: %d", c.length, c.padding)
		}
		c.length -= c.padding
	}

	var depend uint32
	var exclusive bool
	weight := DefaultWeight
	if priority {
		v := binary.BigEndian.Uint32(p[n:])
		depend = v & (1<<31 - 1)
		exclusive = v>>31 == 1
		weight = int(p[n+4]) + 1
		n += priorityLen
	}

	sid := c.frame.StreamID
	c.log.Debugf("http2 HEADERS frame sid:%d depends on %d excl:%v weight:%d", sid, depend, exclusive, weight)

	if sid%2 == 0 || sid <= c.lastSid {
		return n, c.connectionError(ErrCodeProtocol,
			"client sent HEADERS frame with incorrect identifier %d, the last was %d", sid, c.lastSid)
	}
	c.lastSid = sid

	c.state = stateHeaderBlock
	endStream := c.frame.Flags.Has(http2.FlagHeadersEndStream)

	var refuse ErrCode
	switch {
	case c.goaway:
		// not served, but the block still feeds the dynamic table
		c.log.Debugf("skipping http2 HEADERS frame for stream %d after GOAWAY", sid)
		c.stream = nil
		c.hdec.SetDiscard(true)
		k, err := c.readHeaderBlock(p[n:])
		return n + k, err
	case depend == sid:
		c.log.Infof("client sent HEADERS frame for stream %d with incorrect dependency", sid)
		refuse = ErrCodeProtocol
	case c.processing >= c.opts.ConcurrentStreams:
		c.log.Infof("concurrent streams exceeded %d", c.processing)
		refuse = ErrCodeRefusedStream
	case !c.settingsAck && !endStream && c.opts.PrereadSize < DefaultWindow:
		c.log.Infof("client sent stream with data before settings were acknowledged")
		refuse = ErrCodeRefusedStream
	default:
		c.openStream(sid, depend, exclusive, weight, priority, endStream)
		k, err := c.readHeaderBlock(p[n:])
		return n + k, err
	}

	// The block is decoded all the same to keep the dynamic table in step.
	c.resetStream(sid, refuse)
	c.stream = nil
	c.hdec.SetDiscard(true)

	k, err := c.readHeaderBlock(p[n:])
	return n + k, err
}

func (c *Conn) openStream(sid, depend uint32, exclusive bool, weight int, priority, endStream bool) {
	i := c.tree.get(sid, true)
	if c.tree.nodes[i].closed {
		c.tree.unpark(i)
	}

	s := c.newStream(i)
	s.inClosed = endStream
	c.stream = s
	c.hdec.SetDiscard(false)

	if priority || c.tree.nodes[i].parent == noNode {
		c.tree.nodes[i].weight = weight
		c.tree.setDependency(i, depend, exclusive)
	}

	if c.opts.MaxRequests > 0 && c.requests >= c.opts.MaxRequests && !c.goaway {
		c.log.Debugf("max requests %d reached", c.opts.MaxRequests)
		c.goaway = true
		c.sendGoaway(ErrCodeNo)
	}
}

func (c *Conn) readHeaderBlock(p []byte) (int, error) {
	size := min(len(p), c.length)
	if size > 0 {
		if _, err := c.hdec.Write(p[:size]); err != nil {
			return size, c.decoderError(err)
		}
		if c.err != nil {
			return size, c.err
		}
	}
	c.length -= size

	if c.length > 0 {
		return size, nil
	}

	c.state = stateHeaderPadding
	k, err := c.readHeaderPadding(p[size:])
	return size + k, err
}

func (c *Conn) readHeaderPadding(p []byte) (int, error) {
	n := min(len(p), c.padding)
	c.padding -= n
	if c.padding > 0 {
		return n, nil
	}

	if !c.frame.Flags.Has(http2.FlagHeadersEndHeaders) {
		c.state = stateContinuation
		k, err := c.readContinuation(p[n:])
		return n + k, err
	}

	if err := c.hdec.EndBlock(); err != nil {
		return n, c.decoderError(err)
	}
	c.hdec.SetDiscard(false)

	s := c.stream
	c.complete()
	if s != nil {
		c.runRequest(s)
	}
	return n, nil
}

// readContinuation expects the next frame of an open header block.
func (c *Conn) readContinuation(p []byte) (int, error) {
	if len(p) < frameHeaderLen {
		return c.save(p, stateContinuation)
	}

	h := parseFrameHeader(p)
	c.frameMetrics(h.Type)

	if h.Type != http2.FrameContinuation {
		return 0, c.connectionError(ErrCodeProtocol, "client sent inappropriate frame while CONTINUATION was expected")
	}
	if h.StreamID != c.frame.StreamID {
		return 0, c.connectionError(ErrCodeProtocol, "client sent CONTINUATION frame with incorrect identifier")
	}
	if h.Length > c.opts.MaxFrameSize {
		return 0, c.connectionError(ErrCodeFrameSize,
			"client sent CONTINUATION frame with length %d exceeding the limit %d", h.Length, c.opts.MaxFrameSize)
	}

	c.log.Debugf("http2 CONTINUATION frame sid:%d length:%d", h.StreamID, h.Length)

	c.frame.Flags |= h.Flags & http2.FlagContinuationEndHeaders
	c.length = h.Length
	c.padding = 0
	c.state = stateHeaderBlock

	k, err := c.readHeaderBlock(p[frameHeaderLen:])
	return frameHeaderLen + k, err
}

// decoderError turns a header decoding failure into a connection error.
func (c *Conn) decoderError(err error) error {
	if c.err != nil {
		return c.err
	}
	if e, ok := err.(ConnectionError); ok {
		return c.connectionError(e.Code, "%s", e.Reason)
	}
	return c.connectionError(ErrCodeCompression, "%v", err)
}

func (c *Conn) readPriority(p []byte) (int, error) {
	if c.length != priorityLen {
		return 0, c.connectionError(ErrCodeFrameSize, "client sent PRIORITY frame with incorrect length %d", c.length)
	}
	if len(p) < priorityLen {
		return c.save(p, statePriority)
	}

	v := binary.BigEndian.Uint32(p)
	depend := v & (1<<31 - 1)
	exclusive := v>>31 == 1
	weight := int(p[4]) + 1

	sid := c.frame.StreamID
	c.log.Debugf("http2 PRIORITY frame sid:%d depends on %d excl:%v weight:%d", sid, depend, exclusive, weight)

	if sid == 0 {
		return priorityLen, c.connectionError(ErrCodeProtocol, "client sent PRIORITY frame with incorrect identifier")
	}

	c.complete()

	if depend == sid {
		c.log.Infof("client sent PRIORITY frame for stream %d with incorrect dependency", sid)
		if s := c.tree.stream(sid); s != nil {
			c.terminateStream(s, ErrCodeProtocol)
		} else {
			c.resetStream(sid, ErrCodeProtocol)
		}
		return priorityLen, nil
	}

	i := c.tree.get(sid, true)
	n := &c.tree.nodes[i]
	n.weight = weight

	if n.stream == nil {
		if n.closed {
			c.tree.unpark(i)
		}
		c.tree.park(i)
	}
	c.tree.setDependency(i, depend, exclusive)
	return priorityLen, nil
}

func (c *Conn) readRstStream(p []byte) (int, error) {
	if c.length != rstStreamLen {
		return 0, c.connectionError(ErrCodeFrameSize, "client sent RST_STREAM frame with incorrect length %d", c.length)
	}
	if len(p) < rstStreamLen {
		return c.save(p, stateRstStream)
	}

	code := ErrCode(binary.BigEndian.Uint32(p))
	sid := c.frame.StreamID
	c.log.Debugf("http2 RST_STREAM frame, sid:%d status:%v", sid, code)

	if sid == 0 {
		return rstStreamLen, c.connectionError(ErrCodeProtocol, "client sent RST_STREAM frame with incorrect identifier")
	}

	c.complete()

	s := c.tree.stream(sid)
	if s == nil {
		c.log.Debugf("unknown http2 stream %d", sid)
		return rstStreamLen, nil
	}

	switch code {
	case ErrCodeCancel:
		c.log.Infof("client canceled stream %d", sid)
	case ErrCodeRefusedStream:
		c.log.Infof("client refused stream %d", sid)
	case ErrCodeInternal:
		c.log.Infof("client terminated stream %d due to internal error", sid)
	default:
		c.log.Infof("client terminated stream %d with status %v", sid, code)
	}

	s.inClosed = true
	s.outClosed = true
	if s.err == nil {
		s.err = StreamError{StreamID: sid, Code: code, Reason: "reset by client"}
	}
	c.dropFrames(s)
	c.closeStream(s)
	return rstStreamLen, nil
}

func (c *Conn) readSettings(p []byte) (int, error) {
	if c.frame.StreamID != 0 {
		return 0, c.connectionError(ErrCodeProtocol, "client sent SETTINGS frame with incorrect identifier")
	}

	if c.frame.Flags.Has(http2.FlagSettingsAck) {
		if c.length != 0 {
			return 0, c.connectionError(ErrCodeFrameSize, "client sent SETTINGS frame with the ACK flag and nonzero length")
		}
		if !c.settingsAck {
			c.hdec.SetMaxDynamicTableSizeLimit(uint32(c.opts.HeaderTableSize))
		}
		c.settingsAck = true
		c.complete()
		return 0, nil
	}

	if c.length%settingsParamLen != 0 {
		return 0, c.connectionError(ErrCodeFrameSize, "client sent SETTINGS frame with incorrect length %d", c.length)
	}

	c.state = stateSettingsParams
	return c.readSettingsParams(p)
}

func (c *Conn) readSettingsParams(p []byte) (int, error) {
	n := 0
	for c.length > 0 {
		if len(p)-n < settingsParamLen {
			k, err := c.save(p[n:], stateSettingsParams)
			return n + k, err
		}

		id := http2.SettingID(binary.BigEndian.Uint16(p[n:]))
		val := binary.BigEndian.Uint32(p[n+2:])
		n += settingsParamLen
		c.length -= settingsParamLen

		if err := c.applySetting(id, val); err != nil {
			return n, err
		}
	}

	c.sendSettingsAck()
	c.complete()
	return n, nil
}

func (c *Conn) applySetting(id http2.SettingID, val uint32) error {
	c.log.Debugf("http2 setting %v:%d", id, val)

	switch id {
	case http2.SettingHeaderTableSize:
		c.henc.SetMaxDynamicTableSizeLimit(val)

	case http2.SettingEnablePush:
		if val > 1 {
			return c.connectionError(ErrCodeProtocol, "client sent SETTINGS frame with incorrect ENABLE_PUSH value %d", val)
		}

	case http2.SettingMaxConcurrentStreams:
		c.peerMaxStreams = val

	case http2.SettingInitialWindowSize:
		if val > MaxWindow {
			return c.connectionError(ErrCodeFlowControl, "client sent SETTINGS frame with incorrect INITIAL_WINDOW_SIZE value %d", val)
		}
		delta := int64(val) - c.initWindow
		c.initWindow = int64(val)
		c.adjustWindows(delta)

	case http2.SettingMaxFrameSize:
		if val < DefaultFrameSize || val > MaxFrameSize {
			return c.connectionError(ErrCodeProtocol, "client sent SETTINGS frame with incorrect MAX_FRAME_SIZE value %d", val)
		}
		c.peerFrameSize = int(val)
	}
	return nil
}

func (c *Conn) readPing(p []byte) (int, error) {
	if c.length != pingLen {
		return 0, c.connectionError(ErrCodeFrameSize, "client sent PING frame with incorrect length %d", c.length)
	}
	if len(p) < pingLen {
		return c.save(p, statePing)
	}
	if c.frame.StreamID != 0 {
		return pingLen, c.connectionError(ErrCodeProtocol, "client sent PING frame with incorrect identifier")
	}

	if !c.frame.Flags.Has(http2.FlagPingAck) {
		c.sendPingAck(p)
	}
	c.complete()
	return pingLen, nil
}

func (c *Conn) readGoaway(p []byte) (int, error) {
	if c.length < goawayLen {
		return 0, c.connectionError(ErrCodeFrameSize, "client sent GOAWAY frame with incorrect length %d", c.length)
	}
	if len(p) < goawayLen {
		return c.save(p, stateGoaway)
	}
	if c.frame.StreamID != 0 {
		return goawayLen, c.connectionError(ErrCodeProtocol, "client sent GOAWAY frame with incorrect identifier")
	}

	last := binary.BigEndian.Uint32(p) & (1<<31 - 1)
	code := ErrCode(binary.BigEndian.Uint32(p[4:]))
	c.log.Debugf("http2 GOAWAY frame: last sid %d, error %v", last, code)

	c.goaway = true
	c.length -= goawayLen
	c.state = stateSkip

	k, err := c.readSkip(p[goawayLen:])
	return goawayLen + k, err
}

func (c *Conn) readWindowUpdate(p []byte) (int, error) {
	if c.length != windowUpdateLen {
		return 0, c.connectionError(ErrCodeFrameSize, "client sent WINDOW_UPDATE frame with incorrect length %d", c.length)
	}
	if len(p) < windowUpdateLen {
		return c.save(p, stateWindowUpdate)
	}

	increment := binary.BigEndian.Uint32(p) & (1<<31 - 1)
	sid := c.frame.StreamID
	c.log.Debugf("http2 WINDOW_UPDATE frame sid:%d window:%d", sid, increment)

	c.complete()
	if err := c.windowUpdate(sid, int64(increment)); err != nil {
		return windowUpdateLen, err
	}
	return windowUpdateLen, nil
}
