// Package identity resolves the chat session and client address of a request.
package identity

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"unicode"
)

const (
	SessionHeaderName     = "X-Session-ID"
	SessionQueryParam     = "session_id"
	DefaultSessionIDValue = "default"

	// MaxSessionIDLen bounds the session id in bytes.
	MaxSessionIDLen = 256
)

// ErrInvalidSessionID is returned for session ids that are too long or carry
// control characters. Such ids are rejected, never rewritten, so two clients
// cannot end up sharing a history.
var ErrInvalidSessionID = errors.New("invalid session id")

type contextKey int

const (
	sessionIDKey contextKey = iota
	clientIPKey
)

// SessionIDFromContext extracts the session ID from the request context.
// The value is as the client sent it (trimmed) and may still fail ValidateSessionID.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// ClientIPFromContext extracts the client IP from the request context.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok {
		return v
	}
	return ""
}

// WithSessionID returns a copy of ctx carrying id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, normalize(id))
}

// ValidateSessionID trims id and maps an empty id to the default. Any other
// string is its own history key; over-long ids and ids with control
// characters return ErrInvalidSessionID.
func ValidateSessionID(id string) (string, error) {
	id = normalize(id)
	if len(id) > MaxSessionIDLen {
		return "", ErrInvalidSessionID
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return "", ErrInvalidSessionID
	}
	return id, nil
}

// ResolveSessionID prefers an explicit id (from a request body) over the
// one the middleware derived from headers, then validates it.
func ResolveSessionID(ctx context.Context, explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return ValidateSessionID(explicit)
	}
	return ValidateSessionID(SessionIDFromContext(ctx))
}

func normalize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultSessionIDValue
	}
	return id
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get(SessionQueryParam)
	}
	return normalize(sid)
}

// Middleware injects the session ID and client IP into the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), sessionIDKey, sessionIDFromRequest(r))
		ctx = context.WithValue(ctx, clientIPKey, IPFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IPFromRequest returns a normalized remote IP. chi's RealIP middleware has
// already rewritten RemoteAddr from forwarding headers when it is installed.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
