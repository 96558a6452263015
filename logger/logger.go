package logger

// Logger is the minimal structured logging interface the engine and stores
// depend on. Implementations accept alternating key/value pairs.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation id attached to decision logs. It must
// be cheap and safe for concurrent calls.
type TraceIDFunc func() string
