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
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ch:
		case <-ctx.Done():
		}
		signal.Stop(ch)
		cancel()
	}()

	return ctx, cancel
}

// Step is one thing to stop on the way out.
type Step struct {
	Name string
	Stop func(ctx context.Context) error
}

// Drain runs steps in order under a single deadline. A failing step is
// logged and the rest still run.
func Drain(log *slog.Logger, timeout time.Duration, steps ...Step) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, s := range steps {
		if err := s.Stop(ctx); err != nil {
			log.Warn("shutdown step failed", "step", s.Name, "err", err)
			continue
		}
		log.Debug("shutdown step done", "step", s.Name)
	}
}
