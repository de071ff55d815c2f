package http2

import (
	"time"

	mdata "github.com/go-gost/h2engine/pkg/metadata"
)

const (
	defaultReadBufferSize   = 16 * 1024
	defaultHandshakeTimeout = 15 * time.Second
)

type metadata struct {
	readBufferSize   int
	idleTimeout      time.Duration
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
}

func (h *http2Handler) parseMetadata(md mdata.Metadata) error {
	const (
		readBufferSize   = "readBufferSize"
		idleTimeout      = "idleTimeout"
		handshakeTimeout = "handshakeTimeout"
		writeTimeout     = "writeTimeout"
	)

	h.md.readBufferSize = mdata.GetInt(md, readBufferSize)
	if h.md.readBufferSize <= 0 {
		h.md.readBufferSize = defaultReadBufferSize
	}
	h.md.idleTimeout = mdata.GetDuration(md, idleTimeout)
	h.md.handshakeTimeout = mdata.GetDuration(md, handshakeTimeout)
	if h.md.handshakeTimeout <= 0 {
		h.md.handshakeTimeout = defaultHandshakeTimeout
	}
	h.md.writeTimeout = mdata.GetDuration(md, writeTimeout)

	return nil
}
