package app

import (
	"context"
	"log/slog"
)

// Run executes the configured run once. Per-recipient failures are reported
// in the log; an error means the run could not start.
func (a *App) Run() error {
	slog.InfoContext(a.ctx, "certificate run started", "mode", a.config.GetString("app.mode"))

	if err := a.runner.Run(a.ctx); err != nil {
		slog.ErrorContext(a.ctx, "certificate run failed", "error", err)
		return err
	}

	slog.InfoContext(a.ctx, "certificate run finished")
	return nil
}

// Stop closes resources.
func (a *App) Stop(ctx context.Context) {
	for _, closer := range a.closers {
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", closer.name, "error", err)
		}
	}
}
