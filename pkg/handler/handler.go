package handler

import (
	"context"
	"net"

	"github.com/go-gost/h2engine/pkg/metadata"
)

// Handler serves the connections accepted by a service.
type Handler interface {
	Init(metadata.Metadata) error
	Handle(context.Context, net.Conn) error
}
