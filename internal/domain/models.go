package domain

import (
	"errors"
	"sort"
	"strings"
)

// Label is the final verdict of a classification
type Label string

const (
	LabelPhishing Label = "Phishing"
	LabelSafe     Label = "Safe"
)

// ErrorScore is the sentinel total score returned when classification could not
// run at all. Callers that inspect the score treat it as "inconclusive".
const ErrorScore = -999.0

var (
	// ErrRuleConfigNotFound is returned by rule stores that hold no configuration yet
	ErrRuleConfigNotFound = errors.New("rule configuration not found")

	// ErrUnknownList is returned when a rule list name is not recognized
	ErrUnknownList = errors.New("unknown rule list")

	// ErrUnknownThreshold is returned when a threshold name is not recognized
	ErrUnknownThreshold = errors.New("unknown threshold")

	// ErrInvalidThreshold is returned for values a threshold cannot hold
	ErrInvalidThreshold = errors.New("invalid threshold value")
)

// EmailSample is the input of a single classification call
//
// SenderName is the optional display name of the From header; callers that
// only have the address leave it empty.
type EmailSample struct {
	Sender     string `json:"sender"`
	SenderName string `json:"sender_name,omitempty"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// DetectorResult is the partial score of one detector with its explanation
type DetectorResult struct {
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// ClassificationResult is the outcome of running every detector on an email
//
// Breakdown is keyed by detector name. When Whitelisted is true only the
// whitelist detector ran.
type ClassificationResult struct {
	Label       Label                     `json:"label"`
	TotalScore  float64                   `json:"total_score"`
	Whitelisted bool                      `json:"whitelisted"`
	Breakdown   map[string]DetectorResult `json:"breakdown"`
}

// DetectorOrder is the order detectors run in and reasons are reported in
var DetectorOrder = []string{"whitelist", "keywords", "lookalike", "suspicious_urls"}

// Reasons flattens the breakdown into one list, prefixed by detector name
func (r ClassificationResult) Reasons() []string {
	reasons := make([]string, 0)
	for _, name := range DetectorOrder {
		res, ok := r.Breakdown[name]
		if !ok {
			continue
		}
		for _, reason := range res.Reasons {
			reasons = append(reasons, name+": "+reason)
		}
	}
	return reasons
}

// IsPhishing reports whether the email was labelled as phishing
func (r ClassificationResult) IsPhishing() bool {
	return r.Label == LabelPhishing
}

// RuleList names one of the editable lists of a RuleConfig
type RuleList string

const (
	ListLegitDomains       RuleList = "legit_domains"
	ListSuspiciousKeywords RuleList = "keywords"
	ListKnownBrands        RuleList = "known_brands"
	ListSafeTerms          RuleList = "safe_terms"
	ListShortenerDomains   RuleList = "shortener_domains"
	ListFreemailDomains    RuleList = "freemail_domains"
)

// RuleLists returns every editable list name
func RuleLists() []RuleList {
	return []RuleList{
		ListLegitDomains,
		ListSuspiciousKeywords,
		ListKnownBrands,
		ListSafeTerms,
		ListShortenerDomains,
		ListFreemailDomains,
	}
}

// ParseRuleList validates a list name coming from an outer layer (CLI, HTTP)
func ParseRuleList(name string) (RuleList, error) {
	candidate := RuleList(strings.ToLower(strings.TrimSpace(name)))
	for _, list := range RuleLists() {
		if candidate == list {
			return list, nil
		}
	}
	return "", ErrUnknownList
}

// RuleConfig holds every rule the detectors read
//
// Lists behave as sets: after Normalize every member is lowercase, trimmed,
// non-empty, unique and the list is sorted so that iteration is stable.
// A RuleConfig published by the rule manager is never mutated again; use Clone
// to derive a modified copy.
type RuleConfig struct {
	LegitDomains       []string   `json:"legit_domains" yaml:"legit_domains"`
	SuspiciousKeywords []string   `json:"keywords" yaml:"keywords"`
	KnownBrands        []string   `json:"known_brands,omitempty" yaml:"known_brands,omitempty"`
	SafeTerms          []string   `json:"safe_terms,omitempty" yaml:"safe_terms,omitempty"`
	ShortenerDomains   []string   `json:"shortener_domains,omitempty" yaml:"shortener_domains,omitempty"`
	FreemailDomains    []string   `json:"freemail_domains,omitempty" yaml:"freemail_domains,omitempty"`
	Thresholds         Thresholds `json:"thresholds" yaml:"thresholds"`
}

// DefaultRuleConfig returns the built-in rules used when nothing is stored
func DefaultRuleConfig() *RuleConfig {
	cfg := &RuleConfig{
		LegitDomains:       []string{"singapore.tech.edu.sg", "paypal.com", "google.com"},
		SuspiciousKeywords: []string{"urgent", "verify", "account", "password", "click"},
		KnownBrands:        []string{},
		SafeTerms:          []string{},
		ShortenerDomains: []string{
			"bit.ly", "t.co", "goo.gl", "tinyurl.com", "is.gd", "ow.ly", "buff.ly", "lnkd.in",
		},
		FreemailDomains: []string{
			"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "aol.com",
			"msn.com", "live.com", "icloud.com", "proton.me", "protonmail.com",
		},
		Thresholds: DefaultThresholds(),
	}
	cfg.Normalize()
	return cfg
}

// List returns the members of the named list
func (c *RuleConfig) List(list RuleList) ([]string, error) {
	ptr, err := c.listPtr(list)
	if err != nil {
		return nil, err
	}
	return *ptr, nil
}

// Add inserts values into the named list and returns how many were new
func (c *RuleConfig) Add(list RuleList, values ...string) (int, error) {
	ptr, err := c.listPtr(list)
	if err != nil {
		return 0, err
	}

	existing := make(map[string]bool, len(*ptr))
	for _, v := range *ptr {
		existing[v] = true
	}

	added := 0
	for _, v := range values {
		nv := normalizeItem(list, v)
		if nv == "" || existing[nv] {
			continue
		}
		existing[nv] = true
		*ptr = append(*ptr, nv)
		added++
	}
	*ptr = normalizeSet(list, *ptr)
	return added, nil
}

// Remove deletes values from the named list and returns how many were present
func (c *RuleConfig) Remove(list RuleList, values ...string) (int, error) {
	ptr, err := c.listPtr(list)
	if err != nil {
		return 0, err
	}

	drop := make(map[string]bool, len(values))
	for _, v := range values {
		if nv := normalizeItem(list, v); nv != "" {
			drop[nv] = true
		}
	}

	kept := make([]string, 0, len(*ptr))
	removed := 0
	for _, v := range *ptr {
		if drop[v] {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	*ptr = kept
	return removed, nil
}

// Normalize enforces the set invariants on every list
func (c *RuleConfig) Normalize() {
	c.LegitDomains = normalizeSet(ListLegitDomains, c.LegitDomains)
	c.SuspiciousKeywords = normalizeSet(ListSuspiciousKeywords, c.SuspiciousKeywords)
	c.KnownBrands = normalizeSet(ListKnownBrands, c.KnownBrands)
	c.SafeTerms = normalizeSet(ListSafeTerms, c.SafeTerms)
	c.ShortenerDomains = normalizeSet(ListShortenerDomains, c.ShortenerDomains)
	c.FreemailDomains = normalizeSet(ListFreemailDomains, c.FreemailDomains)
}

// Clone returns a deep copy
func (c *RuleConfig) Clone() *RuleConfig {
	return &RuleConfig{
		LegitDomains:       append([]string{}, c.LegitDomains...),
		SuspiciousKeywords: append([]string{}, c.SuspiciousKeywords...),
		KnownBrands:        append([]string{}, c.KnownBrands...),
		SafeTerms:          append([]string{}, c.SafeTerms...),
		ShortenerDomains:   append([]string{}, c.ShortenerDomains...),
		FreemailDomains:    append([]string{}, c.FreemailDomains...),
		Thresholds:         c.Thresholds,
	}
}

func (c *RuleConfig) listPtr(list RuleList) (*[]string, error) {
	switch list {
	case ListLegitDomains:
		return &c.LegitDomains, nil
	case ListSuspiciousKeywords:
		return &c.SuspiciousKeywords, nil
	case ListKnownBrands:
		return &c.KnownBrands, nil
	case ListSafeTerms:
		return &c.SafeTerms, nil
	case ListShortenerDomains:
		return &c.ShortenerDomains, nil
	case ListFreemailDomains:
		return &c.FreemailDomains, nil
	default:
		return nil, ErrUnknownList
	}
}

func normalizeSet(list RuleList, values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		nv := normalizeItem(list, v)
		if nv == "" || seen[nv] {
			continue
		}
		seen[nv] = true
		out = append(out, nv)
	}
	sort.Strings(out)
	return out
}

// normalizeItem lowercases and trims a value. Domain lists additionally lose
// any scheme prefix and trailing slash an operator may have pasted in.
func normalizeItem(list RuleList, value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if list == ListLegitDomains || list == ListShortenerDomains || list == ListFreemailDomains {
		v = strings.TrimPrefix(v, "https://")
		v = strings.TrimPrefix(v, "http://")
		v = strings.TrimSuffix(v, "/")
		v = strings.TrimSpace(v)
	}
	return v
}
