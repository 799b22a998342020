package logger

import "context"

type ctxKeyRequestID struct{}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, reqID)
}

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ctxKeyRequestID{}).(string); ok {
		return reqID
	}
	return ""
}

// Short returns the request id of ctx truncated for log prefixes.
func Short(ctx context.Context) string {
	return Shorten(RequestID(ctx))
}

// Shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func Shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
