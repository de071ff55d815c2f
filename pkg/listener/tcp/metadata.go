package tcp

import (
	"time"

	mdata "github.com/go-gost/h2engine/pkg/metadata"
)

type metadata struct {
	keepAlive       bool
	keepAlivePeriod time.Duration
	nextProtos      []string
}

func (l *tcpListener) parseMetadata(md mdata.Metadata) (err error) {
	const (
		keepAlive       = "keepAlive"
		keepAlivePeriod = "keepAlivePeriod"
		alpn            = "alpn"
	)

	l.md.keepAlive = mdata.GetBool(md, keepAlive)
	l.md.keepAlivePeriod = mdata.GetDuration(md, keepAlivePeriod)
	l.md.nextProtos = mdata.GetStrings(md, alpn)
	if len(l.md.nextProtos) == 0 {
		l.md.nextProtos = []string{"h2"}
	}

	return
}
