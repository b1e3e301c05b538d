package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/phishguard/phish-detector/internal/adapters/storage"
	"github.com/phishguard/phish-detector/internal/config"
	"github.com/phishguard/phish-detector/internal/ports"
)

// RuleStoreFactory creates rule stores based on configuration
type RuleStoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRuleStoreFactory creates a new rule store factory
func NewRuleStoreFactory(cfg *config.Config, logger *zap.Logger) *RuleStoreFactory {
	return &RuleStoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRuleStore creates the rule store selected by rules.backend
func (f *RuleStoreFactory) CreateRuleStore(ctx context.Context) (ports.RuleStore, error) {
	backend := f.cfg.GetString("rules.backend")
	f.logger.Debug("Creating rule store", zap.String("backend", backend))

	switch backend {
	case "file":
		return storage.NewFileRuleStore(f.cfg.GetString("rules.file_path"), f.logger), nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("rules.sqlite_path")
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return storage.NewSQLiteRuleStore(ctx, sqlitePath, f.logger)
	case "postgres":
		return storage.NewPostgresRuleStore(ctx, f.cfg.GetString("rules.postgres_dsn"), f.logger)
	default:
		return nil, fmt.Errorf("unsupported rule store backend: %s", backend)
	}
}
