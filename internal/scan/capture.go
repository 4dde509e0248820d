// Package scan owns the device side of a check-in: acquiring the camera
// stream, waiting for the external decode capability to produce text, and
// releasing the camera on every exit path. It never touches persistence.
package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrAlreadyScanning is returned when a second session is opened while
	// one is still active. One camera, one session.
	ErrAlreadyScanning = errors.New("a scan session is already open")
	// ErrClosed is returned from DecodeOnce after the session was released.
	ErrClosed = errors.New("scan session closed")
)

// Stream is a live video stream handle. Close turns the camera off and must
// be safe to call while a decode is in flight.
type Stream interface {
	// DecodeOnce blocks until the decode capability yields text from the
	// stream or fails (camera permission, hardware). It reports no semantic
	// judgement about the text.
	DecodeOnce(ctx context.Context) (string, error)
	Close() error
}

// Source opens streams; it is the external camera/decoder capability.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Capture gates access to the device: at most one open session at a time.
type Capture struct {
	source Source
	busy   atomic.Bool
}

// NewCapture wraps a source.
func NewCapture(source Source) *Capture {
	return &Capture{source: source}
}

// Open acquires the camera and returns the session handle. The caller owns
// the session and must Close it; a second Open before that returns
// ErrAlreadyScanning.
func (c *Capture) Open(ctx context.Context) (*Session, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrAlreadyScanning
	}
	stream, err := c.source.Open(ctx)
	if err != nil {
		c.busy.Store(false)
		return nil, err
	}
	return &Session{capture: c, stream: stream, done: make(chan struct{})}, nil
}

// Session is one scoped camera acquisition.
type Session struct {
	capture   *Capture
	stream    Stream
	closeOnce sync.Once
	done      chan struct{}
}

// DecodeOnce waits for one decoded text from the stream. Cancelling ctx
// releases the camera synchronously and discards any in-flight result; the
// session is unusable afterwards.
func (s *Session) DecodeOnce(ctx context.Context) (string, error) {
	select {
	case <-s.done:
		return "", ErrClosed
	default:
	}

	type decoded struct {
		text string
		err  error
	}
	ch := make(chan decoded, 1)
	go func() {
		text, err := s.stream.DecodeOnce(ctx)
		ch <- decoded{text, err}
	}()

	select {
	case d := <-ch:
		if d.err != nil {
			s.Close()
			return "", d.err
		}
		return d.text, nil
	case <-ctx.Done():
		s.Close()
		return "", ctx.Err()
	case <-s.done:
		return "", ErrClosed
	}
}

// Close releases the camera. Idempotent; called on success, cancel and error
// paths alike.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.stream.Close()
		s.capture.busy.Store(false)
	})
	return err
}
