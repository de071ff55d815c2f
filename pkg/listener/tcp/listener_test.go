package tcp

import (
	"crypto/tls"
	"io"
	"net"
	"testing"

	tls_util "github.com/go-gost/h2engine/pkg/common/util/tls"
	"github.com/go-gost/h2engine/pkg/listener"
	mdata "github.com/go-gost/h2engine/pkg/metadata"
	"github.com/go-gost/h2engine/pkg/registry"
)

func TestRegistered(t *testing.T) {
	if registry.ListenerRegistry().Get("tcp") == nil {
		t.Fatal("tcp listener not registered")
	}
}

func TestPlain(t *testing.T) {
	ln := NewListener(listener.AddrOption("127.0.0.1:0"))
	if err := ln.Init(mdata.NewMetadata(map[string]any{"keepAlive": true})); err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err == nil {
			c.Write([]byte("hi"))
			c.Close()
		}
	}()

	c, err := ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	b, _ := io.ReadAll(c)
	if string(b) != "hi" {
		t.Fatalf("read %q", b)
	}
}

func TestTLSNegotiatesH2(t *testing.T) {
	cert, err := tls_util.GenCertificate("localhost")
	if err != nil {
		t.Fatal(err)
	}
	ln := NewListener(
		listener.AddrOption("127.0.0.1:0"),
		listener.TLSConfigOption(&tls.Config{Certificates: []tls.Certificate{cert}}),
	)
	if err := ln.Init(nil); err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	done := make(chan string, 1)
	go func() {
		c, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{"h2"},
		})
		if err != nil {
			done <- err.Error()
			return
		}
		defer c.Close()
		done <- c.ConnectionState().NegotiatedProtocol
	}()

	c, err := ln.Accept()
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.(*tls.Conn).Handshake(); err != nil {
		t.Fatal(err)
	}
	if proto := <-done; proto != "h2" {
		t.Fatalf("negotiated %q", proto)
	}
}
