package http2

import (
	"errors"
	"fmt"

	"golang.org/x/net/http2"
)

// ErrCode is the error code carried by RST_STREAM and GOAWAY frames.
type ErrCode = http2.ErrCode

const (
	ErrCodeNo                 = http2.ErrCodeNo
	ErrCodeProtocol           = http2.ErrCodeProtocol
	ErrCodeInternal           = http2.ErrCodeInternal
	ErrCodeFlowControl        = http2.ErrCodeFlowControl
	ErrCodeSettingsTimeout    = http2.ErrCodeSettingsTimeout
	ErrCodeStreamClosed       = http2.ErrCodeStreamClosed
	ErrCodeFrameSize          = http2.ErrCodeFrameSize
	ErrCodeRefusedStream      = http2.ErrCodeRefusedStream
	ErrCodeCancel             = http2.ErrCodeCancel
	ErrCodeCompression        = http2.ErrCodeCompression
	ErrCodeConnect            = http2.ErrCodeConnect
	ErrCodeEnhanceYourCalm    = http2.ErrCodeEnhanceYourCalm
	ErrCodeInadequateSecurity = http2.ErrCodeInadequateSecurity
	ErrCodeHTTP11Required     = http2.ErrCodeHTTP11Required
)

var (
	ErrWouldBlock     = errors.New("http2: write would block")
	ErrConnClosed     = errors.New("http2: connection closed")
	ErrStreamClosed   = errors.New("http2: stream closed")
	ErrUnknownStream  = errors.New("http2: unknown stream")
	ErrHeadersNotSent = errors.New("http2: response headers not sent")
)

// ConnectionError is a failure that tears down the whole connection.
// The peer is sent a GOAWAY frame carrying Code.
type ConnectionError struct {
	Code   ErrCode
	Reason string
}

func (e ConnectionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("http2: connection error: %v", e.Code)
	}
	return fmt.Sprintf("http2: connection error: %v: %s", e.Code, e.Reason)
}

// StreamError is a failure isolated to one stream.
type StreamError struct {
	StreamID uint32
	Code     ErrCode
	Reason   string
}

func (e StreamError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("http2: stream %d error: %v", e.StreamID, e.Code)
	}
	return fmt.Sprintf("http2: stream %d error: %v: %s", e.StreamID, e.Code, e.Reason)
}

func compressionError(format string, args ...any) error {
	return ConnectionError{
		Code:   ErrCodeCompression,
		Reason: fmt.Sprintf(format, args...),
	}
}
