package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
)

// NewLogger builds the process logger from the shared slog setup. Every
// record carries a boot_id so log lines from one power cycle can be grouped.
func NewLogger(level, format string) *slog.Logger {
	return withBootID(sharedobs.NewLogger(level, format), uuid.New().String())
}

func withBootID(logger *slog.Logger, bootID string) *slog.Logger {
	return logger.With("boot_id", bootID)
}
