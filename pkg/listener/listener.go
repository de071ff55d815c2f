package listener

import (
	"errors"
	"net"

	"github.com/go-gost/h2engine/pkg/metadata"
)

var (
	ErrClosed = errors.New("accept on closed listener")
)

// Listener is a server listener, just like a net.Listener.
type Listener interface {
	Init(metadata.Metadata) error
	net.Listener
}
