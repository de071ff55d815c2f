package http2

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Request is the request a stream's header block decodes to.
type Request struct {
	Method    string
	Scheme    string
	Path      string
	Authority string
	// RequestLine is the HTTP/1 style "METHOD path HTTP/2.0" line.
	RequestLine string
	Header      http.Header
	// ContentLength is -1 when unknown.
	ContentLength int64
}

// Handler serves the requests of a connection. ServeHTTP2 is called once
// per stream, on the goroutine driving the Conn, and must not block: the
// response is submitted through the stream, now or later.
type Handler interface {
	ServeHTTP2(s *Stream, r *Request)
}

type HandlerFunc func(s *Stream, r *Request)

func (f HandlerFunc) ServeHTTP2(s *Stream, r *Request) {
	f(s, r)
}

// NotFoundHandler answers every request with 404.
func NotFoundHandler() Handler {
	return HandlerFunc(func(s *Stream, r *Request) {
		s.Respond(http.StatusNotFound, nil, true)
	})
}

var methods = map[string]bool{
	"GET":       true,
	"HEAD":      true,
	"POST":      true,
	"PUT":       true,
	"DELETE":    true,
	"MKCOL":     true,
	"COPY":      true,
	"MOVE":      true,
	"OPTIONS":   true,
	"PROPFIND":  true,
	"PROPPATCH": true,
	"LOCK":      true,
	"UNLOCK":    true,
	"PATCH":     true,
	"TRACE":     true,
}

// processHeader receives every field the decoder emits for the stream
// whose block is open. Problems of a single field only cost that stream.
func (c *Conn) processHeader(f HeaderField) error {
	s := c.stream
	if s == nil {
		return nil
	}

	size := len(f.Name) + len(f.Value)
	if size > s.headerBudget {
		c.log.Infof("client exceeded max header size limit on stream %d", s.id)
		c.dropHeaderStream(s, ErrCodeEnhanceYourCalm)
		return nil
	}
	s.headerBudget -= size

	invalid, ok := c.validateHeader(f)
	if !ok {
		c.dropHeaderStream(s, ErrCodeProtocol)
		return nil
	}

	if f.Name[0] == ':' {
		if !c.pseudoHeader(s, f) {
			c.finalizeStream(s, http.StatusBadRequest)
			return nil
		}
		c.log.Debugf("http2 header: \":%s: %s\"", f.Name[1:], f.Value)
		return nil
	}

	if invalid && c.opts.IgnoreInvalidHeaders {
		c.log.Infof("client sent invalid header: %q", f.Name)
		return nil
	}

	if f.Name == "cookie" {
		s.cookies = append(s.cookies, f.Value)
	} else {
		s.req.Header.Add(f.Name, f.Value)
	}

	c.log.Debugf("http2 header: \"%s: %s\"", f.Name, f.Value)
	return nil
}

// dropHeaderStream resets the stream of the open header block; the rest
// of the block is decoded for the dynamic table only.
func (c *Conn) dropHeaderStream(s *Stream, code ErrCode) {
	c.terminateStream(s, code)
	c.stream = nil
	c.hdec.SetDiscard(true)
}

// validateHeader reports whether f may be used at all (ok) and whether its
// name has characters outside the usual set (invalid).
func (c *Conn) validateHeader(f HeaderField) (invalid bool, ok bool) {
	if f.Name == "" {
		c.log.Infof("client sent empty header name")
		return false, false
	}

	i := 0
	if f.Name[0] == ':' {
		i = 1
	}
	for ; i < len(f.Name); i++ {
		ch := f.Name[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch == '-', ch >= '0' && ch <= '9':
			continue
		case ch == '_' && c.opts.UnderscoresInHeaders:
			continue
		case ch == 0, ch == '\n', ch == '\r', ch == ':', ch >= 'A' && ch <= 'Z':
			c.log.Infof("client sent invalid header name: %q", f.Name)
			return false, false
		}
		invalid = true
	}

	for i := 0; i < len(f.Value); i++ {
		if ch := f.Value[i]; ch == 0 || ch == '\n' || ch == '\r' {
			c.log.Infof("client sent header %q with invalid value: %q", f.Name, f.Value)
			return false, false
		}
	}
	return invalid, true
}

func (c *Conn) pseudoHeader(s *Stream, f HeaderField) bool {
	r := s.req
	name := f.Name[1:]

	var dst *string
	switch name {
	case "method":
		dst = &r.Method
	case "scheme":
		dst = &r.Scheme
	case "path":
		dst = &r.Path
	case "authority":
		dst = &r.Authority
	default:
		c.log.Infof("client sent unknown pseudo-header %q", f.Name)
		return false
	}

	if *dst != "" {
		c.log.Infof("client sent duplicate :%s header", name)
		return false
	}
	if f.Value == "" {
		c.log.Infof("client sent empty :%s header", name)
		return false
	}

	switch name {
	case "method":
		if !validMethod(f.Value) {
			c.log.Infof("client sent invalid method: %q", f.Value)
			return false
		}
	case "path":
		if !validPath(f.Value) {
			c.log.Infof("client sent invalid :path header: %q", f.Value)
			return false
		}
	case "authority":
		r.Header.Set("Host", f.Value)
	}

	*dst = f.Value
	return true
}

func validMethod(m string) bool {
	if methods[m] {
		return true
	}
	for i := 0; i < len(m); i++ {
		ch := m[i]
		if (ch < 'A' || ch > 'Z') && ch != '_' && ch != '-' {
			return false
		}
	}
	return true
}

func validPath(p string) bool {
	if p == "*" {
		return true
	}
	if p[0] != '/' {
		return false
	}
	_, err := url.ParseRequestURI(p)
	return err == nil
}

// runRequest completes the request of s and hands it to the handler.
func (c *Conn) runRequest(s *Stream) {
	r := s.req

	switch {
	case r.Method == "":
		c.log.Infof("client sent no :method header")
		c.finalizeStream(s, http.StatusBadRequest)
		return
	case r.Scheme == "":
		c.log.Infof("client sent no :scheme header")
		c.finalizeStream(s, http.StatusBadRequest)
		return
	case r.Path == "":
		c.log.Infof("client sent no :path header")
		c.finalizeStream(s, http.StatusBadRequest)
		return
	}

	r.RequestLine = r.Method + " " + r.Path + " HTTP/2.0"

	if len(s.cookies) > 0 {
		r.Header.Set("Cookie", strings.Join(s.cookies, "; "))
		s.cookies = nil
	}

	if v := r.Header.Get("Content-Length"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.log.Infof("client sent invalid content-length: %q", v)
			c.finalizeStream(s, http.StatusBadRequest)
			return
		}
		if n > 0 && s.inClosed {
			c.log.Infof("client prematurely closed stream %d", s.id)
			c.finalizeStream(s, http.StatusBadRequest)
			return
		}
		r.ContentLength = n
	} else if s.inClosed {
		r.ContentLength = 0
	}

	c.log.Debugf("http2 request line: %q", r.RequestLine)

	s.handled = true
	s.start = time.Now()

	h := c.opts.Handler
	if h == nil {
		h = NotFoundHandler()
	}
	h.ServeHTTP2(s, r)
}

// finalizeStream answers s with an error status and stops reading it.
func (c *Conn) finalizeStream(s *Stream, status int) {
	s.skipData = true
	if c.stream == s {
		c.stream = nil
		c.hdec.SetDiscard(true)
	}

	fields := []HeaderField{{Name: ":status", Value: strconv.Itoa(status)}}
	if err := c.SubmitHeaders(s.id, fields, true); err != nil {
		c.log.Debugf("http2 stream %d: %v", s.id, err)
	}
}
