package application

import "log/slog"

// ModuleName is the "module" attribute on every log line emitted by this context.
const ModuleName = "finance-core/bank-payment-service"

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
