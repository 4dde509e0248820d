// Scanner is the device-side agent: it owns the camera session lifecycle and
// hands each decoded payload to the API, which does all validation. The
// decode capability is external; anything that prints one decoded QR payload
// per line (e.g. `zbarcam --raw`) can be piped in.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroll/internal/scan"
)

func main() {
	var (
		apiBase     = flag.String("api", envOr("CLASSROLL_API", "http://localhost:8081"), "classroll API base URL")
		accessToken = flag.String("token", os.Getenv("CLASSROLL_TOKEN"), "student access token")
	)
	flag.Parse()
	if *accessToken == "" {
		log.Fatal("access token required (-token or CLASSROLL_TOKEN)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	capture := scan.NewCapture(stdinSource{})
	client := &http.Client{Timeout: 10 * time.Second}

	for ctx.Err() == nil {
		rawText, err := scanOnce(ctx, capture)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				break
			}
			log.Fatalf("scan failed: %v", err)
		}

		outcome, err := submit(ctx, client, *apiBase, *accessToken, rawText)
		if err != nil {
			log.Printf("submit failed (you may re-scan): %v", err)
			continue
		}
		log.Printf("%s", outcome)
	}
	log.Println("scanner stopped")
}

// scanOnce runs one full camera session: acquire, decode once, release.
func scanOnce(ctx context.Context, capture *scan.Capture) (string, error) {
	session, err := capture.Open(ctx)
	if err != nil {
		return "", err
	}
	defer session.Close()
	return session.DecodeOnce(ctx)
}

func submit(ctx context.Context, client *http.Client, apiBase, accessToken, rawText string) (string, error) {
	body, err := json.Marshal(map[string]string{"raw_text": rawText})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/v1/scans", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		Status      string `json:"status"`
		LessonTitle string `json:"lesson_title"`
		Error       string `json:"error"`
		Retryable   bool   `json:"retryable"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}

	switch {
	case payload.Status == "recorded":
		return fmt.Sprintf("attendance recorded for %q", payload.LessonTitle), nil
	case payload.Status == "already_marked":
		return fmt.Sprintf("already checked in to %q", payload.LessonTitle), nil
	case payload.Retryable:
		return "", fmt.Errorf("%s (try again)", payload.Error)
	default:
		return fmt.Sprintf("rejected: %s", payload.Error), nil
	}
}

// stdinSource adapts stdin to the scan.Source device boundary.
type stdinSource struct{}

func (stdinSource) Open(ctx context.Context) (scan.Stream, error) {
	return &stdinStream{r: bufio.NewReader(os.Stdin)}, nil
}

type stdinStream struct {
	r *bufio.Reader
}

func (s *stdinStream) DecodeOnce(ctx context.Context) (string, error) {
	line, err := s.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return trimNewline(line), nil
}

func (s *stdinStream) Close() error { return nil }

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
