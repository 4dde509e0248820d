package scan

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeStream struct {
	text   string
	err    error
	block  chan struct{} // when set, DecodeOnce waits on it
	closed atomic.Bool
}

func (s *fakeStream) DecodeOnce(ctx context.Context) (string, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeSource struct {
	stream  *fakeStream
	openErr error
}

func (f *fakeSource) Open(ctx context.Context) (Stream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.stream, nil
}

func TestScanSuccessAndRelease(t *testing.T) {
	stream := &fakeStream{text: `{"lessonId":"l1"}`}
	capture := NewCapture(&fakeSource{stream: stream})

	session, err := capture.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	text, err := session.DecodeOnce(context.Background())
	if err != nil {
		t.Fatalf("DecodeOnce: %v", err)
	}
	if text != `{"lessonId":"l1"}` {
		t.Errorf("text = %q", text)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !stream.closed.Load() {
		t.Error("stream not released on Close")
	}
}

func TestSecondOpenRejected(t *testing.T) {
	capture := NewCapture(&fakeSource{stream: &fakeStream{}})

	session, err := capture.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := capture.Open(context.Background()); !errors.Is(err, ErrAlreadyScanning) {
		t.Fatalf("second Open err = %v, want ErrAlreadyScanning", err)
	}

	session.Close()
	if _, err := capture.Open(context.Background()); err != nil {
		t.Fatalf("Open after Close: %v", err)
	}
}

func TestOpenFailureReleasesGate(t *testing.T) {
	src := &fakeSource{openErr: errors.New("camera permission denied")}
	capture := NewCapture(src)

	if _, err := capture.Open(context.Background()); err == nil {
		t.Fatal("Open should fail")
	}
	src.openErr = nil
	src.stream = &fakeStream{}
	if _, err := capture.Open(context.Background()); err != nil {
		t.Fatalf("Open after failure: %v", err)
	}
}

func TestCancelReleasesCameraAndDiscardsResult(t *testing.T) {
	stream := &fakeStream{text: "late-result", block: make(chan struct{})}
	capture := NewCapture(&fakeSource{stream: stream})

	session, err := capture.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := session.DecodeOnce(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("DecodeOnce err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("DecodeOnce did not return after cancel")
	}
	// Release happened before DecodeOnce returned, not as deferred cleanup.
	if !stream.closed.Load() {
		t.Error("camera not released on cancel")
	}

	// The in-flight decode result is discarded; the session is dead.
	close(stream.block)
	if _, err := session.DecodeOnce(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("DecodeOnce after cancel err = %v, want ErrClosed", err)
	}
}

func TestDecodeErrorClosesSession(t *testing.T) {
	stream := &fakeStream{err: errors.New("hardware fault")}
	capture := NewCapture(&fakeSource{stream: stream})

	session, err := capture.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := session.DecodeOnce(context.Background()); err == nil {
		t.Fatal("DecodeOnce should surface the stream error")
	}
	if !stream.closed.Load() {
		t.Error("camera not released on decode error")
	}
	if _, err := capture.Open(context.Background()); err != nil {
		t.Errorf("capture still busy after error: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	stream := &fakeStream{}
	capture := NewCapture(&fakeSource{stream: stream})

	session, _ := capture.Open(context.Background())
	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
