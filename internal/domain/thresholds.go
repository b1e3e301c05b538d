package domain

import (
	"fmt"
	"math"
	"sort"
)

// Thresholds holds every numeric weight and limit used by the detectors
//
// Stores persist it as a flat name -> number mapping (see Values).
// Window sizes are counted in characters (runes), not bytes. Weights default
// to 0 for the optional signals, which switches them off.
type Thresholds struct {
	// Final decision: Phishing iff total score >= PhishScore
	PhishScore float64 `json:"phish_score" yaml:"phish_score"`

	WhitelistMiss float64 `json:"whitelist_miss" yaml:"whitelist_miss"`

	SubjectKeyword     float64 `json:"subject_keyword" yaml:"subject_keyword"`
	BodyKeyword        float64 `json:"body_keyword" yaml:"body_keyword"`
	EarlyBodyBonus     float64 `json:"early_body_bonus" yaml:"early_body_bonus"`
	EarlyBodyWindow    int     `json:"early_body_window" yaml:"early_body_window"`
	KeywordCap         float64 `json:"keyword_cap" yaml:"keyword_cap"` // 0 disables the cap
	SafeTermDownweight float64 `json:"safe_term_downweight" yaml:"safe_term_downweight"`

	LookalikeMaxDistance int     `json:"lookalike_max_distance" yaml:"lookalike_max_distance"`
	LookalikeFullDomain  bool    `json:"lookalike_full_domain" yaml:"lookalike_full_domain"`
	LookalikePenalty     float64 `json:"lookalike_penalty" yaml:"lookalike_penalty"`
	DisplayNameLookalike float64 `json:"display_name_lookalike" yaml:"display_name_lookalike"`

	IPURL                 float64 `json:"ip_url" yaml:"ip_url"`
	UserInfoURL           float64 `json:"userinfo_url" yaml:"userinfo_url"`
	ShortenerURL          float64 `json:"shortener_url" yaml:"shortener_url"`
	ClaimedDomainMismatch float64 `json:"claimed_domain_mismatch" yaml:"claimed_domain_mismatch"`
	KeywordNearURL        float64 `json:"keyword_near_url" yaml:"keyword_near_url"`
	KeywordNearURLWindow  int     `json:"keyword_near_url_window" yaml:"keyword_near_url_window"`
	URLCap                float64 `json:"url_cap" yaml:"url_cap"` // 0 disables the cap
	SenderURLMismatch     float64 `json:"sender_url_mismatch" yaml:"sender_url_mismatch"`
	LinkPresent           float64 `json:"link_present" yaml:"link_present"`
	MultipleLinks         float64 `json:"multiple_links" yaml:"multiple_links"`
	FreemailLink          float64 `json:"freemail_link" yaml:"freemail_link"`

	RiskyAttachment float64 `json:"risky_attachment" yaml:"risky_attachment"`
}

// DefaultThresholds returns the tuned default weights
func DefaultThresholds() Thresholds {
	return Thresholds{
		PhishScore:            10,
		WhitelistMiss:         2,
		SubjectKeyword:        3,
		BodyKeyword:           1,
		EarlyBodyBonus:        2,
		EarlyBodyWindow:       200,
		KeywordCap:            12,
		SafeTermDownweight:    1,
		LookalikeMaxDistance:  1,
		LookalikeFullDomain:   false,
		LookalikePenalty:      5,
		IPURL:                 6,
		UserInfoURL:           4,
		ShortenerURL:          4,
		ClaimedDomainMismatch: 5,
		KeywordNearURL:        2,
		KeywordNearURLWindow:  100,
		URLCap:                12,

		// Optional signals, off until tuned
		DisplayNameLookalike: 0,
		SenderURLMismatch:    0,
		LinkPresent:          0,
		MultipleLinks:        0,
		FreemailLink:         0,
		RiskyAttachment:      0,
	}
}

type thresholdField struct {
	get func(t *Thresholds) float64
	set func(t *Thresholds, v float64)
}

// countThresholds are character windows and edit distances
var countThresholds = map[string]bool{
	"early_body_window":       true,
	"lookalike_max_distance":  true,
	"keyword_near_url_window": true,
}

var thresholdFields = map[string]thresholdField{
	"phish_score": {
		func(t *Thresholds) float64 { return t.PhishScore },
		func(t *Thresholds, v float64) { t.PhishScore = v },
	},
	"whitelist_miss": {
		func(t *Thresholds) float64 { return t.WhitelistMiss },
		func(t *Thresholds, v float64) { t.WhitelistMiss = v },
	},
	"subject_keyword": {
		func(t *Thresholds) float64 { return t.SubjectKeyword },
		func(t *Thresholds, v float64) { t.SubjectKeyword = v },
	},
	"body_keyword": {
		func(t *Thresholds) float64 { return t.BodyKeyword },
		func(t *Thresholds, v float64) { t.BodyKeyword = v },
	},
	"early_body_bonus": {
		func(t *Thresholds) float64 { return t.EarlyBodyBonus },
		func(t *Thresholds, v float64) { t.EarlyBodyBonus = v },
	},
	"early_body_window": {
		func(t *Thresholds) float64 { return float64(t.EarlyBodyWindow) },
		func(t *Thresholds, v float64) { t.EarlyBodyWindow = int(v) },
	},
	"keyword_cap": {
		func(t *Thresholds) float64 { return t.KeywordCap },
		func(t *Thresholds, v float64) { t.KeywordCap = v },
	},
	"safe_term_downweight": {
		func(t *Thresholds) float64 { return t.SafeTermDownweight },
		func(t *Thresholds, v float64) { t.SafeTermDownweight = v },
	},
	"lookalike_max_distance": {
		func(t *Thresholds) float64 { return float64(t.LookalikeMaxDistance) },
		func(t *Thresholds, v float64) { t.LookalikeMaxDistance = int(v) },
	},
	"lookalike_full_domain": {
		func(t *Thresholds) float64 {
			if t.LookalikeFullDomain {
				return 1
			}
			return 0
		},
		func(t *Thresholds, v float64) { t.LookalikeFullDomain = v != 0 },
	},
	"lookalike_penalty": {
		func(t *Thresholds) float64 { return t.LookalikePenalty },
		func(t *Thresholds, v float64) { t.LookalikePenalty = v },
	},
	"ip_url": {
		func(t *Thresholds) float64 { return t.IPURL },
		func(t *Thresholds, v float64) { t.IPURL = v },
	},
	"userinfo_url": {
		func(t *Thresholds) float64 { return t.UserInfoURL },
		func(t *Thresholds, v float64) { t.UserInfoURL = v },
	},
	"shortener_url": {
		func(t *Thresholds) float64 { return t.ShortenerURL },
		func(t *Thresholds, v float64) { t.ShortenerURL = v },
	},
	"claimed_domain_mismatch": {
		func(t *Thresholds) float64 { return t.ClaimedDomainMismatch },
		func(t *Thresholds, v float64) { t.ClaimedDomainMismatch = v },
	},
	"keyword_near_url": {
		func(t *Thresholds) float64 { return t.KeywordNearURL },
		func(t *Thresholds, v float64) { t.KeywordNearURL = v },
	},
	"keyword_near_url_window": {
		func(t *Thresholds) float64 { return float64(t.KeywordNearURLWindow) },
		func(t *Thresholds, v float64) { t.KeywordNearURLWindow = int(v) },
	},
	"url_cap": {
		func(t *Thresholds) float64 { return t.URLCap },
		func(t *Thresholds, v float64) { t.URLCap = v },
	},
	"display_name_lookalike": {
		func(t *Thresholds) float64 { return t.DisplayNameLookalike },
		func(t *Thresholds, v float64) { t.DisplayNameLookalike = v },
	},
	"sender_url_mismatch": {
		func(t *Thresholds) float64 { return t.SenderURLMismatch },
		func(t *Thresholds, v float64) { t.SenderURLMismatch = v },
	},
	"link_present": {
		func(t *Thresholds) float64 { return t.LinkPresent },
		func(t *Thresholds, v float64) { t.LinkPresent = v },
	},
	"multiple_links": {
		func(t *Thresholds) float64 { return t.MultipleLinks },
		func(t *Thresholds, v float64) { t.MultipleLinks = v },
	},
	"freemail_link": {
		func(t *Thresholds) float64 { return t.FreemailLink },
		func(t *Thresholds, v float64) { t.FreemailLink = v },
	},
	"risky_attachment": {
		func(t *Thresholds) float64 { return t.RiskyAttachment },
		func(t *Thresholds, v float64) { t.RiskyAttachment = v },
	},
}

// ThresholdNames returns every known threshold name, sorted
func ThresholdNames() []string {
	names := make([]string, 0, len(thresholdFields))
	for name := range thresholdFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values flattens the thresholds into a name -> number mapping
func (t Thresholds) Values() map[string]float64 {
	values := make(map[string]float64, len(thresholdFields))
	for name, field := range thresholdFields {
		values[name] = field.get(&t)
	}
	return values
}

// Set updates a single threshold by name. NaN and infinities are rejected,
// as are negative or oversized windows and distances.
func (t *Thresholds) Set(name string, value float64) error {
	field, ok := thresholdFields[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownThreshold, name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidThreshold, name)
	}
	if countThresholds[name] && (value < 0 || value > math.MaxInt32) {
		return fmt.Errorf("%w: %s must be between 0 and %d", ErrInvalidThreshold, name, math.MaxInt32)
	}
	field.set(t, value)
	return nil
}

// ApplyValues overlays a name -> number mapping. Names that are unknown or
// carry an invalid value are skipped and returned so callers can log them;
// they never abort loading.
func (t *Thresholds) ApplyValues(values map[string]float64) []string {
	rejected := make([]string, 0)
	for name, value := range values {
		if err := t.Set(name, value); err != nil {
			rejected = append(rejected, name)
		}
	}
	sort.Strings(rejected)
	return rejected
}
