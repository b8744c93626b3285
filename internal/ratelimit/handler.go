package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
)

// Result is the structured outcome returned by rate-limited handlers. A
// rejected call is data, not an error, so callers can branch on the code.
type Result struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

const (
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeHandlerError      = "HANDLER_ERROR"
)

const rateLimitMessage = "Rate limit exceeded. Please try again later."

// Handler is an arbitrary IPC/API handler the decorator can wrap.
type Handler func(ctx context.Context, payload any) (any, error)

type Options struct {
	Channel string
}

// RateLimited wraps a handler with the limiter. On reject the handler is not
// invoked; on handler error or panic the failure is normalized into a Result.
// No failure mode lets a panic escape to the caller.
func RateLimited(limiter *Limiter, handler Handler, opts Options) func(ctx context.Context, callerID string, payload any) *Result {
	return func(ctx context.Context, callerID string, payload any) (result *Result) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("rate-limited handler panicked", "channel", opts.Channel, "panic", fmt.Sprint(r))
				result = &Result{Success: false, Error: &ErrorInfo{
					Message: fmt.Sprintf("handler failed: %v", r),
					Code:    CodeHandlerError,
				}}
			}
		}()

		if !limiter.CheckLimit(callerID, opts.Channel) {
			return &Result{Success: false, Error: &ErrorInfo{
				Message: rateLimitMessage,
				Code:    CodeRateLimitExceeded,
			}}
		}

		data, err := handler(ctx, payload)
		if err != nil {
			return &Result{Success: false, Error: &ErrorInfo{
				Message: err.Error(),
				Code:    CodeHandlerError,
			}}
		}

		return &Result{Success: true, Data: data}
	}
}
