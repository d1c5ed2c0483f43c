// Package cmd provides common initialization for the command-line entrypoints.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Butcher-11/SuperAI/pkg/persistence"
	"github.com/Butcher-11/SuperAI/pkg/persistence/file"
	"github.com/Butcher-11/SuperAI/pkg/persistence/postgresql"
)

// NewPersistence picks a storage backend from the database URL scheme.
// postgres:// and postgresql:// select PostgreSQL; anything else is treated
// as a filesystem path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		root := strings.TrimPrefix(databaseURL, "file://")
		if root == "" {
			return nil, fmt.Errorf("database url %q has no path", databaseURL)
		}

		return file.NewPersistence(root), nil
	}
}
