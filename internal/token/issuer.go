package token

import (
	"context"
	"time"
)

// Store persists a lesson's active token.
type Store interface {
	// ReplaceActiveToken overwrites the lesson's current token, reporting
	// lesson.ErrNotFound when the lesson row does not exist.
	ReplaceActiveToken(ctx context.Context, lessonID, payload string) error
}

// Issuer mints fresh attendance tokens and records them as the lesson's
// current active token. The overwrite is unconditional; two concurrent
// issuances race and the last write wins, permanently invalidating any QR
// codes rendered from the earlier payload.
type Issuer struct {
	store Store
	now   func() time.Time
}

// NewIssuer creates an issuer backed by a lesson store.
func NewIssuer(store Store) *Issuer {
	return &Issuer{store: store, now: time.Now}
}

// Issue encodes a new token stamped with the current time, persists it as the
// lesson's active token, and returns the payload for QR rendering. Storage
// failures are returned as-is for the caller to surface; they are not retried.
func (i *Issuer) Issue(ctx context.Context, lessonID, title string) (string, error) {
	payload, err := Encode(lessonID, title, i.now())
	if err != nil {
		return "", err
	}
	if err := i.store.ReplaceActiveToken(ctx, lessonID, payload); err != nil {
		return "", err
	}
	return payload, nil
}
