package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// PNG renders a payload string as a scannable QR image. The payload is passed
// through verbatim; this package makes no semantic interpretation of it.
func PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}
