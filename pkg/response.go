package pkg

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// requestIDKey is the context key the request-id middleware stores the
// per-request correlation id under; handlers never construct one directly.
type requestIDKey struct{}

// WithRequestID returns a context carrying the given request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom extracts the request id stashed by the request-id middleware,
// returning "" if none was set (e.g. in a unit test calling a handler directly).
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// APIResponse is the envelope every /api response is wrapped in, per the
// hub's admin API contract: {success, data?, error?, message?, requestId, timestamp}.
type APIResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId"`
	Timestamp int64  `json:"timestamp"`
}

// JSON writes a successful response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, APIResponse{Success: true, Data: data})
}

// Error maps a domain error to its HTTP status and writes the envelope.
// ErrServerOffline is not an error from the caller's point of view — it
// signals a deferred/pending mutation and is written with 202 plus a message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrServerOffline) {
		writeEnvelope(w, r, http.StatusAccepted, APIResponse{
			Success: true,
			Message: "server offline; operation enqueued",
		})
		return
	}
	status := mapErrorToStatus(err)
	writeEnvelope(w, r, status, APIResponse{Success: false, Error: err.Error()})
}

// ErrorWithMessage writes a hand-picked status/message pair, used where the
// caller has already decided the HTTP status (e.g. validation in a handler
// before any service call happens).
func ErrorWithMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeEnvelope(w, r, status, APIResponse{Success: false, Error: message})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp APIResponse) {
	resp.Timestamp = time.Now().UnixMilli()
	if r != nil {
		resp.RequestID = RequestIDFrom(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// mapErrorToStatus maps a domain error to an HTTP status code. errors.Is
// walks the chain, so a wrapped error still matches its sentinel.
func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrProtocol):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
