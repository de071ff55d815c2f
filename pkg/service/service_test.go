package service

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gost/h2engine/pkg/metadata"
)

type tcpListener struct {
	net.Listener
}

func (l *tcpListener) Init(metadata.Metadata) error { return nil }

type countHandler struct {
	n atomic.Int32
}

func (h *countHandler) Init(metadata.Metadata) error { return nil }

func (h *countHandler) Handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	h.n.Add(1)
	<-ctx.Done()
	return errors.New("shutdown")
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	h := &countHandler{}
	s := NewService("test", &tcpListener{ln}, h)

	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	for i := 0; i < 3; i++ {
		c, err := net.Dial("tcp", s.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()
	}
	deadline := time.Now().Add(5 * time.Second)
	for h.n.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("%d connections handled", h.n.Load())
		}
		time.Sleep(time.Millisecond)
	}

	// Serve returns once every handler has seen the shutdown
	s.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}
