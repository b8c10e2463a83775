package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Hook releases one resource during shutdown.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Run executes hooks in order, sharing one deadline. Failures are logged and
// do not stop later hooks.
func Run(log *slog.Logger, timeout time.Duration, hooks ...Hook) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, h := range hooks {
		if err := h.Fn(ctx); err != nil {
			log.Error("shutdown hook failed", "hook", h.Name, "err", err)
			continue
		}
		log.Info("shutdown hook done", "hook", h.Name)
	}
}
