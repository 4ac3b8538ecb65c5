package api

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDHeader            = "X-Request-Id"
	RequestIDKey    contextKey = "request_id"
)

// NewLoggingInterceptor creates a ConnectRPC interceptor that tags every call
// with a request id and logs its outcome.
func NewLoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			requestID := req.Header().Get(requestIDHeader)
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}
			ctx = context.WithValue(ctx, RequestIDKey, requestID)

			start := time.Now()
			res, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"request_id", requestID,
				"peer", req.Peer().Addr,
				"duration", time.Since(start),
			}
			if err != nil {
				logger.ErrorContext(ctx, "RPC failed", append(attrs, "code", connect.CodeOf(err).String(), "error", err)...)
				return nil, err
			}

			res.Header().Set(requestIDHeader, requestID)
			logger.DebugContext(ctx, "RPC served", attrs...)
			return res, nil
		}
	}
}

// RequestIDFromContext retrieves the request id set by the logging interceptor
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)
	return id, ok
}
