package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/corleone113/waypoint/internal/history"
	"github.com/corleone113/waypoint/internal/route"
	"github.com/corleone113/waypoint/internal/router"
)

// newLogger builds the command logger. Routine router chatter is only
// shown with --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseMode(s string) (router.Mode, error) {
	switch router.Mode(s) {
	case router.ModeAbstract, router.ModeHash, router.ModeHistory:
		return router.Mode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q: must be one of abstract, hash, history", s)
}

// buildRouter creates a router over configs. URL modes run on an
// in-process platform since there is no browser behind the CLI.
func buildRouter(configs []route.Config, mode router.Mode, base string, logger *slog.Logger, extra ...router.Option) (*router.Router, error) {
	opts := []router.Option{
		router.WithRoutes(configs...),
		router.WithMode(mode),
		router.WithBase(base),
		router.WithLogger(logger),
	}
	switch mode {
	case router.ModeHash:
		opts = append(opts, router.WithPlatform(history.NewSimulatedPlatform("/")))
	case router.ModeHistory:
		url := base
		if url == "" {
			url = "/"
		}
		opts = append(opts, router.WithPlatform(history.NewSimulatedPlatform(url)))
	}
	return router.New(append(opts, extra...)...)
}
