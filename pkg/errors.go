// Package pkg holds utilities shared across the hub. This file defines the
// domain-level sentinel errors services return and handlers map to HTTP
// status codes via errors.Is.
package pkg

import "errors"

// Domain-level errors. Services return these; handlers translate them into
// HTTP status codes (see mapErrorToStatus in response.go).
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrInternal      = errors.New("internal error")

	// ErrConflict covers a concurrent update or a duplicate id outside the
	// already-exists case (e.g. binding uniqueness on groupId+serverId+type).
	ErrConflict = errors.New("conflict")
	// ErrRateLimited is returned by the message router when a binding's
	// rate limit is exceeded.
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout is returned by the request correlator when no response
	// arrives before the caller's deadline.
	ErrTimeout = errors.New("timeout")
	// ErrProtocol marks a malformed or out-of-sequence U-WBP v2 frame.
	ErrProtocol = errors.New("protocol error")
	// ErrServerOffline signals that the target server has no live
	// connection. Qualifying mutations then go to the pending operations
	// queue; other requests simply fail with it.
	ErrServerOffline = errors.New("server offline")
	// ErrConnectionClosed is returned to callers whose pending request was
	// still outstanding when its connection went away.
	ErrConnectionClosed = errors.New("connection closed")
)
