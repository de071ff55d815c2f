package http2

import (
	"encoding/binary"

	"golang.org/x/net/http2"
)

const (
	frameHeaderLen  = 9
	stateBufferSize = 16

	DefaultWindow    = 65535
	MaxWindow        = 1<<31 - 1
	DefaultFrameSize = 1 << 14
	MaxFrameSize     = 1<<24 - 1
	DefaultWeight    = 16

	defaultHeaderTableSize = 4096

	priorityLen      = 5
	rstStreamLen     = 4
	settingsParamLen = 6
	pingLen          = 8
	goawayLen        = 8
	windowUpdateLen  = 4
)

const (
	prefaceStart = "PRI * HTTP/2.0\r\n"
	prefaceEnd   = "\r\nSM\r\n\r\n"
)

type frameHeader struct {
	Length   int
	Type     http2.FrameType
	Flags    http2.Flags
	StreamID uint32
}

func parseFrameHeader(p []byte) frameHeader {
	return frameHeader{
		Length:   int(p[0])<<16 | int(p[1])<<8 | int(p[2]),
		Type:     http2.FrameType(p[3]),
		Flags:    http2.Flags(p[4]),
		StreamID: binary.BigEndian.Uint32(p[5:]) & (1<<31 - 1),
	}
}

func putFrameHeader(b []byte, length int, t http2.FrameType, flags http2.Flags, sid uint32) {
	b[0] = byte(length >> 16)
	b[1] = byte(length >> 8)
	b[2] = byte(length)
	b[3] = byte(t)
	b[4] = byte(flags)
	binary.BigEndian.PutUint32(b[5:], sid&(1<<31-1))
}

func (c *Conn) sendSettings() {
	params := []http2.Setting{
		{ID: http2.SettingMaxConcurrentStreams, Val: uint32(c.opts.ConcurrentStreams)},
		{ID: http2.SettingInitialWindowSize, Val: uint32(c.opts.PrereadSize)},
		{ID: http2.SettingMaxFrameSize, Val: uint32(c.opts.MaxFrameSize)},
	}
	if c.opts.HeaderTableSize != defaultHeaderTableSize {
		params = append(params, http2.Setting{
			ID:  http2.SettingHeaderTableSize,
			Val: uint32(c.opts.HeaderTableSize),
		})
	}

	f := c.getFrame(len(params)*settingsParamLen, http2.FrameSettings, 0, 0)
	b := f.buf[frameHeaderLen:]
	for _, p := range params {
		binary.BigEndian.PutUint16(b, uint16(p.ID))
		binary.BigEndian.PutUint32(b[2:], p.Val)
		b = b[settingsParamLen:]
	}
	c.queueBlockedFrame(f)
}

func (c *Conn) sendSettingsAck() {
	c.queueBlockedFrame(c.getFrame(0, http2.FrameSettings, http2.FlagSettingsAck, 0))
}

func (c *Conn) sendWindowUpdate(sid uint32, increment int64) {
	c.log.Debugf("send WINDOW_UPDATE frame sid:%d, window:%d", sid, increment)

	f := c.getFrame(windowUpdateLen, http2.FrameWindowUpdate, 0, sid)
	binary.BigEndian.PutUint32(f.buf[frameHeaderLen:], uint32(increment))
	c.queueBlockedFrame(f)
}

func (c *Conn) sendRstStream(sid uint32, code ErrCode) {
	c.log.Debugf("send RST_STREAM frame sid:%d, status:%v", sid, code)

	f := c.getFrame(rstStreamLen, http2.FrameRSTStream, 0, sid)
	binary.BigEndian.PutUint32(f.buf[frameHeaderLen:], uint32(code))
	c.queueBlockedFrame(f)
}

func (c *Conn) sendGoaway(code ErrCode) {
	c.log.Debugf("send GOAWAY frame: last sid %d, error %v", c.lastSid, code)

	f := c.getFrame(goawayLen, http2.FrameGoAway, 0, 0)
	binary.BigEndian.PutUint32(f.buf[frameHeaderLen:], c.lastSid)
	binary.BigEndian.PutUint32(f.buf[frameHeaderLen+4:], uint32(code))
	c.queueBlockedFrame(f)
	c.goawaySent = true
}

func (c *Conn) sendPingAck(data []byte) {
	f := c.getFrame(pingLen, http2.FramePing, http2.FlagPingAck, 0)
	copy(f.buf[frameHeaderLen:], data[:pingLen])
	c.queueBlockedFrame(f)
}
