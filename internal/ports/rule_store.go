package ports

import (
	"context"

	"github.com/phishguard/phish-detector/internal/domain"
)

// RuleStore defines the contract for persisting the rule configuration
//
// Implementations store the whole configuration as one unit: Save replaces
// whatever was stored before. Load returns domain.ErrRuleConfigNotFound (possibly
// wrapped) when nothing has been saved yet.
type RuleStore interface {
	Load(ctx context.Context) (*domain.RuleConfig, error)
	Save(ctx context.Context, rules *domain.RuleConfig) error

	// Lifecycle
	Close() error
}
