package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/phishguard/phish-detector/internal/domain"
)

// ruleDocument is the on-disk layout of a rule file
//
// Whitelist and Brands only exist in files written by older releases, which
// kept sender whitelist and lookalike brands as two lists. Pointers tell an
// absent key from an empty list.
type ruleDocument struct {
	LegitDomains       *[]string          `json:"legit_domains,omitempty" yaml:"legit_domains,omitempty"`
	SuspiciousKeywords []string           `json:"keywords" yaml:"keywords"`
	KnownBrands        []string           `json:"known_brands,omitempty" yaml:"known_brands,omitempty"`
	SafeTerms          []string           `json:"safe_terms,omitempty" yaml:"safe_terms,omitempty"`
	ShortenerDomains   *[]string          `json:"shortener_domains,omitempty" yaml:"shortener_domains,omitempty"`
	FreemailDomains    *[]string          `json:"freemail_domains,omitempty" yaml:"freemail_domains,omitempty"`
	Thresholds         map[string]float64 `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	Whitelist []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
	Brands    []string `json:"brands,omitempty" yaml:"brands,omitempty"`
}

// FileRuleStore implements ports.RuleStore on a JSON or YAML file
//
// The format follows the file extension: .yaml and .yml are YAML, anything
// else is JSON.
type FileRuleStore struct {
	path   string
	logger *zap.Logger
}

// NewFileRuleStore creates a file-backed rule store. The file is not touched
// until the first Load or Save.
func NewFileRuleStore(path string, logger *zap.Logger) *FileRuleStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRuleStore{path: filepath.Clean(path), logger: logger}
}

// Path returns the rule file location
func (s *FileRuleStore) Path() string {
	return s.path
}

func (s *FileRuleStore) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(s.path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the rule file. A missing file yields domain.ErrRuleConfigNotFound.
// Files in the legacy whitelist/brands layout are migrated and rewritten.
func (s *FileRuleStore) Load(ctx context.Context) (*domain.RuleConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRuleConfigNotFound, s.path)
		}
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var doc ruleDocument
	if s.isYAML() {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse rule file %s: %w", s.path, err)
	}

	migrated := false
	if doc.LegitDomains == nil {
		legit := append(append([]string{}, doc.Whitelist...), doc.Brands...)
		doc.LegitDomains = &legit
		migrated = len(doc.Whitelist) > 0 || len(doc.Brands) > 0
	}

	rules := s.toRuleConfig(doc)

	if migrated {
		s.logger.Info("Migrating legacy rule file",
			zap.String("path", s.path),
			zap.Int("legit_domains", len(rules.LegitDomains)))
		if err := s.Save(ctx, rules); err != nil {
			s.logger.Warn("Failed to rewrite migrated rule file", zap.Error(err))
		}
	}

	return rules, nil
}

func (s *FileRuleStore) toRuleConfig(doc ruleDocument) *domain.RuleConfig {
	rules := &domain.RuleConfig{
		LegitDomains:       *doc.LegitDomains,
		SuspiciousKeywords: doc.SuspiciousKeywords,
		KnownBrands:        doc.KnownBrands,
		SafeTerms:          doc.SafeTerms,
		Thresholds:         domain.DefaultThresholds(),
	}

	// Older files predate the shortener and freemail lists
	defaults := domain.DefaultRuleConfig()
	rules.ShortenerDomains = defaults.ShortenerDomains
	if doc.ShortenerDomains != nil {
		rules.ShortenerDomains = *doc.ShortenerDomains
	}
	rules.FreemailDomains = defaults.FreemailDomains
	if doc.FreemailDomains != nil {
		rules.FreemailDomains = *doc.FreemailDomains
	}

	for _, name := range rules.Thresholds.ApplyValues(doc.Thresholds) {
		s.logger.Warn("Ignoring unknown or invalid threshold in rule file",
			zap.String("path", s.path),
			zap.String("name", name))
	}

	rules.Normalize()
	return rules
}

// Save writes the rules atomically: a temp file in the same directory is
// renamed over the target, so readers never see a partial file.
func (s *FileRuleStore) Save(ctx context.Context, rules *domain.RuleConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rules == nil {
		return errors.New("cannot save nil rule configuration")
	}

	legit := append([]string{}, rules.LegitDomains...)
	shorteners := append([]string{}, rules.ShortenerDomains...)
	freemail := append([]string{}, rules.FreemailDomains...)
	doc := ruleDocument{
		LegitDomains:       &legit,
		SuspiciousKeywords: rules.SuspiciousKeywords,
		KnownBrands:        rules.KnownBrands,
		SafeTerms:          rules.SafeTerms,
		ShortenerDomains:   &shorteners,
		FreemailDomains:    &freemail,
		Thresholds:         rules.Thresholds.Values(),
	}

	var data []byte
	var err error
	if s.isYAML() {
		data, err = yaml.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal rule config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp rule file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write rule file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync rule file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close rule file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set rule file permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace rule file: %w", err)
	}

	s.logger.Debug("Rule file saved", zap.String("path", s.path))
	return nil
}

// Close is a no-op; files are opened per call
func (s *FileRuleStore) Close() error {
	return nil
}
