package tcp

import (
	"net"
	"time"
)

const defaultKeepAlivePeriod = 180 * time.Second

// keepAliveListener turns on TCP keep-alive probes for accepted connections.
type keepAliveListener struct {
	*net.TCPListener
	period time.Duration
}

func (l *keepAliveListener) Accept() (net.Conn, error) {
	tc, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}

	if err := tc.SetKeepAlive(true); err != nil {
		tc.Close()
		return nil, err
	}
	period := l.period
	if period <= 0 {
		period = defaultKeepAlivePeriod
	}
	tc.SetKeepAlivePeriod(period)

	return tc, nil
}
