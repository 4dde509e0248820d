package qr

import (
	"bytes"
	"testing"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestPNGRendersPayloadVerbatim(t *testing.T) {
	png, err := PNG(`{"lessonId":"l1","title":"Math","issuedAt":"2026-03-09T10:30:00Z"}`, 256)
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	if !bytes.HasPrefix(png, pngMagic) {
		t.Error("output is not a PNG")
	}
}

func TestPNGRejectsEmptyPayload(t *testing.T) {
	if _, err := PNG("", 256); err == nil {
		t.Error("empty payload should fail")
	}
}
