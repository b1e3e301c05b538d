package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	httpadapter "github.com/phishguard/phish-detector/internal/adapters/http"
	"github.com/phishguard/phish-detector/internal/application"
	"github.com/phishguard/phish-detector/internal/config"
	"github.com/phishguard/phish-detector/internal/domain/detection"
	"github.com/phishguard/phish-detector/internal/factory"
	"github.com/phishguard/phish-detector/internal/logging"
	"github.com/phishguard/phish-detector/internal/ports"
)

// BuildContainer creates and configures a dependency injection container.
// overrides are applied on top of the loaded configuration (flags win over
// files and environment).
func BuildContainer(configFile string, overrides map[string]any) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.New(configFile)
		if err != nil {
			return nil, err
		}
		for key, value := range overrides {
			cfg.Set(key, value)
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewRuleStoreFactory); err != nil {
		return nil, err
	}

	// Register rule store
	if err := container.Provide(func(f *factory.RuleStoreFactory) (ports.RuleStore, error) {
		return f.CreateRuleStore(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register rule manager, loaded once at startup
	if err := container.Provide(func(store ports.RuleStore, logger *zap.Logger) (*application.RuleManager, error) {
		manager := application.NewRuleManager(store, logger)
		if err := manager.Load(context.Background()); err != nil {
			// Defaults are still in effect; only persisting them failed
			logger.Warn("Rule configuration not persisted", zap.Error(err))
		}
		return manager, nil
	}); err != nil {
		return nil, err
	}

	// Register detection engine
	if err := container.Provide(detection.NewEngine); err != nil {
		return nil, err
	}

	// Register classification service
	if err := container.Provide(func(
		manager *application.RuleManager,
		engine *detection.Engine,
		logger *zap.Logger,
		cfg *config.Config,
	) *application.ClassificationService {
		return application.NewClassificationService(manager, engine, logger, cfg.GetInt("batch.workers"))
	}); err != nil {
		return nil, err
	}

	// Register HTTP adapter
	if err := container.Provide(func(
		service *application.ClassificationService,
		manager *application.RuleManager,
		logger *zap.Logger,
		cfg *config.Config,
	) *httpadapter.Server {
		return httpadapter.New(service, manager, logger, cfg.GetInt64("server.max_body_bytes"))
	}); err != nil {
		return nil, err
	}

	return container, nil
}
