package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/sidenote/internal/config"
)

// Open creates the store selected by cfg.Type.
func Open(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	switch cfg.Type {
	case "sqlite", "":
		return NewSQLiteStore(cfg.LocalPath, logger)
	case "bolt":
		return NewBoltStore(cfg.LocalPath, logger)
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
