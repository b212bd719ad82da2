package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"replenisher/internal/persistence/indexdb"
	"replenisher/internal/persistence/snapshot"
	"replenisher/internal/replenish"
)

type runtimeIndex interface {
	replenish.RecordSink
	Close() error
	RecordSnapshot(path string, snap snapshot.WorldV1)
	Stats() indexdb.Stats
	RecentRuns(ctx context.Context, limit int) ([]indexdb.RunRow, error)
}

func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("REPLEN_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "runs.sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported REPLEN_INDEX_BACKEND: %s", backend)
	}
}
