// Package apierr is the failure vocabulary shared by the gateway and the
// stores. Every backend failure surfaces as an *Error carrying a
// user-presentable message extracted from whatever body shape the server
// returned.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind int

const (
	// KindTransport covers network failures and unreachable hosts.
	KindTransport Kind = iota
	// KindAuth is a terminal authentication failure (credentials cleared).
	KindAuth
	// KindSessionExpired means the refresh cycle could not recover the
	// session.
	KindSessionExpired
	// KindValidation is a business rejection surfaced verbatim from the
	// backend, never retried.
	KindValidation
	// KindPrecondition is a client-side short circuit; no network call was
	// made.
	KindPrecondition
	// KindDecode means transport succeeded but the payload was not valid
	// JSON.
	KindDecode
)

type Error struct {
	Kind    Kind
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is lets errors.Is match on kind: errors.Is(err, &Error{Kind: KindAuth}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Status == 0 || t.Status == e.Status)
}

func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Message: fmt.Sprintf("request failed: %v", err)}
}

func SessionExpired() *Error {
	return &Error{Kind: KindSessionExpired, Status: 401, Message: "Session expired. Please log in again."}
}

func Precondition(msg string) *Error {
	return &Error{Kind: KindPrecondition, Message: msg}
}

func Decode() *Error {
	return &Error{Kind: KindDecode, Message: "Failed to parse response from server."}
}

// FromStatus builds an Error for a non-2xx response, extracting the message
// from the body.
func FromStatus(status int, body []byte) *Error {
	kind := KindValidation
	if status == 401 {
		kind = KindAuth
	}
	return &Error{Kind: kind, Status: status, Message: ExtractMessage(body, status)}
}

// ExtractMessage pulls a human-readable message out of an error body. The
// backend is not consistent about its shape, so message-like fields are
// tried in a fixed priority order before falling back to a status-coded
// generic.
func ExtractMessage(body []byte, status int) string {
	fallback := fmt.Sprintf("HTTP error! status: %d", status)
	if len(body) == 0 {
		return fallback
	}
	var shape struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
		Err     string `json:"error"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return fallback
	}
	switch {
	case shape.Msg != "":
		return shape.Msg
	case shape.Message != "":
		return shape.Message
	case shape.Err != "":
		return shape.Err
	}
	return fallback
}

// Format renders err for the user, falling back to def when err carries no
// usable text. Guarantees a message always exists even for malformed
// failures.
func Format(err error, def string) string {
	if err == nil {
		return def
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return def
}
