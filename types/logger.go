package types

// Logger defines methods for structured logging.
//
// Compatible with zap.SugaredLogger, slog adapters and other structured loggers.
// Every method takes alternating key-value pairs as structured fields.
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a message at FatalLevel and calls os.Exit(1).
	//
	// The process exits even if logging at FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
}
