package server

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey string

const (
	ctxLoggerKey    ctxKey = "logger"
	ctxRequestIDKey ctxKey = "req_id"
	ctxProtocolKey  ctxKey = "protocol"
)

// WithRequestID кладёт requestID в context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, id)
}

// RequestIDFrom достаёт requestID из context или возвращает пустую строку
func RequestIDFrom(ctx context.Context) string {
	if s, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return s
	}
	return ""
}

func requestIDFrom(r *http.Request) string {
	return RequestIDFrom(r.Context())
}

// WithProtocol records which binding served the request, for the ledger.
func WithProtocol(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxProtocolKey, name)
}

func ProtocolFrom(ctx context.Context) string {
	if s, ok := ctx.Value(ctxProtocolKey).(string); ok {
		return s
	}
	return ""
}

func loggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxLoggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// helper: взять логгер из контекста
func loggerFrom(r *http.Request) *slog.Logger {
	return loggerFromCtx(r.Context())
}
