package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Codec errors. Decoding never touches storage; callers turn these into a
// user-facing "invalid code" rejection.
var (
	ErrMalformedPayload = errors.New("malformed token payload")
	ErrMissingField     = errors.New("token payload missing lessonId")
)

// Token is the attendance payload carried inside a QR code. Only LessonID is
// load-bearing: validity is decided by exact string comparison of the whole
// payload against the lesson's stored active token, so Title and IssuedAt are
// informational.
type Token struct {
	LessonID string `json:"lessonId"`
	Title    string `json:"title,omitempty"`
	IssuedAt string `json:"issuedAt,omitempty"`
}

// Encode serializes a token to its canonical payload string. The output is
// stable JSON, human-copyable, and round-trips through Decode.
func Encode(lessonID, title string, issuedAt time.Time) (string, error) {
	if lessonID == "" {
		return "", ErrMissingField
	}
	b, err := json.Marshal(Token{
		LessonID: lessonID,
		Title:    title,
		IssuedAt: issuedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return string(b), nil
}

// Decode parses a payload string. Missing title or issuedAt is tolerated and
// left zero; a missing or empty lessonId is ErrMissingField; anything that is
// not a JSON object is ErrMalformedPayload.
func Decode(payload string) (Token, error) {
	var tok Token
	if err := json.Unmarshal([]byte(payload), &tok); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if tok.LessonID == "" {
		return Token{}, ErrMissingField
	}
	return tok, nil
}
