// Package commands implements the quicketl subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type loggerKey struct{}

// WithLogger stores the run logger in the command context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// loggerFrom retrieves the run logger, defaulting to discard.
func loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}

// parseVars turns repeated --var KEY=VALUE flags into a map.
func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --var %q, want KEY=VALUE", pair)
		}
		vars[key] = value
	}
	return vars, nil
}
