package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/phishguard/phish-detector/internal/domain"
	"github.com/phishguard/phish-detector/internal/ports"
)

// RuleManager owns the rule configuration lifecycle
//
// Readers take an immutable snapshot with Snapshot; a snapshot stays valid
// (and unchanged) for as long as the caller holds it. Mutations are serialized:
// each one clones the current snapshot, applies the change, persists it and
// only then publishes it, so a failed save never becomes visible.
type RuleManager struct {
	store  ports.RuleStore
	logger *zap.Logger

	mu      sync.Mutex // serializes writers
	current atomic.Pointer[domain.RuleConfig]
}

// NewRuleManager creates a rule manager publishing the built-in defaults until
// Load is called
func NewRuleManager(store ports.RuleStore, logger *zap.Logger) *RuleManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &RuleManager{store: store, logger: logger}
	m.current.Store(domain.DefaultRuleConfig())
	return m
}

// Load reads the stored configuration and publishes it
//
// Error handling strategy:
//   - Nothing stored yet: defaults are persisted and published
//   - Unreadable or corrupt configuration: defaults are published but NOT
//     persisted, so the broken source stays available for inspection
//
// The returned error is only non-nil when persisting fresh defaults failed;
// the defaults are still published in that case.
func (m *RuleManager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rules, err := m.store.Load(ctx)
	switch {
	case err == nil:
		rules.Normalize()
		m.current.Store(rules)
		m.logger.Info("Loaded rule configuration",
			zap.Int("legit_domains", len(rules.LegitDomains)),
			zap.Int("keywords", len(rules.SuspiciousKeywords)),
			zap.Int("known_brands", len(rules.KnownBrands)))
		return nil

	case errors.Is(err, domain.ErrRuleConfigNotFound):
		defaults := domain.DefaultRuleConfig()
		m.current.Store(defaults)
		m.logger.Info("No rule configuration stored, writing defaults")
		if err := m.store.Save(ctx, defaults); err != nil {
			return fmt.Errorf("failed to persist default rules: %w", err)
		}
		return nil

	default:
		m.logger.Error("Failed to load rule configuration, falling back to defaults", zap.Error(err))
		m.current.Store(domain.DefaultRuleConfig())
		return nil
	}
}

// Snapshot returns the current rule configuration. Callers must not modify it.
func (m *RuleManager) Snapshot() *domain.RuleConfig {
	return m.current.Load()
}

// Add inserts values into a list and returns how many were new
func (m *RuleManager) Add(ctx context.Context, list domain.RuleList, values ...string) (int, error) {
	var added int
	err := m.mutate(ctx, func(next *domain.RuleConfig) (bool, error) {
		var err error
		added, err = next.Add(list, values...)
		return added > 0, err
	})
	if err != nil {
		return 0, err
	}

	m.logger.Info("Rules added", zap.String("list", string(list)), zap.Int("added", added))
	return added, nil
}

// Remove deletes values from a list and returns how many were present
func (m *RuleManager) Remove(ctx context.Context, list domain.RuleList, values ...string) (int, error) {
	var removed int
	err := m.mutate(ctx, func(next *domain.RuleConfig) (bool, error) {
		var err error
		removed, err = next.Remove(list, values...)
		return removed > 0, err
	})
	if err != nil {
		return 0, err
	}

	m.logger.Info("Rules removed", zap.String("list", string(list)), zap.Int("removed", removed))
	return removed, nil
}

// SetThreshold changes one named weight or limit
func (m *RuleManager) SetThreshold(ctx context.Context, name string, value float64) error {
	err := m.mutate(ctx, func(next *domain.RuleConfig) (bool, error) {
		if err := next.Thresholds.Set(name, value); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("Threshold updated", zap.String("name", name), zap.Float64("value", value))
	return nil
}

// Reset replaces the configuration with the built-in defaults
func (m *RuleManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	defaults := domain.DefaultRuleConfig()
	if err := m.store.Save(ctx, defaults); err != nil {
		return fmt.Errorf("failed to persist default rules: %w", err)
	}
	m.current.Store(defaults)

	m.logger.Info("Rules reset to defaults")
	return nil
}

// mutate applies change to a clone of the current snapshot. Nothing is saved
// or published when change reports no modification.
func (m *RuleManager) mutate(ctx context.Context, change func(next *domain.RuleConfig) (bool, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.current.Load().Clone()
	changed, err := change(next)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := m.store.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to persist rules: %w", err)
	}
	m.current.Store(next)
	return nil
}
