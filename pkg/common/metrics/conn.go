package metrics

import (
	"net"

	"github.com/go-gost/h2engine/pkg/metrics"
)

// WrapListener counts the traffic of every accepted connection under service.
func WrapListener(service string, ln net.Listener) net.Listener {
	return &countingListener{
		Listener: ln,
		service:  service,
	}
}

type countingListener struct {
	net.Listener
	service string
}

func (ln *countingListener) Accept() (net.Conn, error) {
	c, err := ln.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return WrapConn(ln.service, c), nil
}

// WrapConn counts the bytes moved through a server side connection.
func WrapConn(service string, c net.Conn) net.Conn {
	return &serverConn{
		Conn:   c,
		input:   metrics.InputBytes(service),
		output:  metrics.OutputBytes(service),
	}
}

type serverConn struct {
	net.Conn
	input  metrics.Counter
	output metrics.Counter
}

func (c *serverConn) Read(b []byte) (n int, err error) {
	n, err = c.Conn.Read(b)
	if n > 0 {
		c.input.Add(float64(n))
	}
	return
}

func (c *serverConn) Write(b []byte) (n int, err error) {
	n, err = c.Conn.Write(b)
	if n > 0 {
		c.output.Add(float64(n))
	}
	return
}

// Unwrap gives access to the underlying connection, e.g. for a TLS handshake state.
func (c *serverConn) Unwrap() net.Conn {
	return c.Conn
}
