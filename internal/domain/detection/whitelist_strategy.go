package detection

import (
	"fmt"

	"github.com/phishguard/phish-detector/internal/domain"
)

// WhitelistStrategy checks the sender domain against the legit domains
//
// A hit is authoritative: the engine stops and labels the email Safe.
type WhitelistStrategy struct{}

// NewWhitelistStrategy creates a new sender whitelist detection strategy
func NewWhitelistStrategy() *WhitelistStrategy {
	return &WhitelistStrategy{}
}

// Name returns the strategy name
func (s *WhitelistStrategy) Name() string {
	return WhitelistDetector
}

// Detect scores the sender domain, see WhitelistCheck
func (s *WhitelistStrategy) Detect(sample domain.EmailSample, rules *domain.RuleConfig) domain.DetectorResult {
	result, _ := WhitelistCheck(sample.Sender, rules)
	return result
}

// WhitelistCheck returns a zero score and true when the sender domain is a legit
// domain or one of its subdomains. Otherwise the miss penalty is applied once;
// senders without '@' count as misses.
func WhitelistCheck(sender string, rules *domain.RuleConfig) (domain.DetectorResult, bool) {
	senderDomain := ExtractDomain(sender)

	if senderDomain != "" {
		for _, legit := range rules.LegitDomains {
			if DomainMatches(senderDomain, legit) {
				return domain.DetectorResult{
					Score:   0,
					Reasons: []string{fmt.Sprintf("Sender domain '%s' is whitelisted (matches '%s')", senderDomain, legit)},
				}, true
			}
		}
	}

	reason := fmt.Sprintf("Sender domain '%s' is not whitelisted (+%g)", senderDomain, rules.Thresholds.WhitelistMiss)
	if senderDomain == "" {
		reason = fmt.Sprintf("Sender '%s' has no domain (+%g)", sender, rules.Thresholds.WhitelistMiss)
	}
	return domain.DetectorResult{
		Score:   rules.Thresholds.WhitelistMiss,
		Reasons: []string{reason},
	}, false
}
