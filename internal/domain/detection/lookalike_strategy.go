package detection

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/phishguard/phish-detector/internal/domain"
)

// LookalikeStrategy detects sender domains that imitate a legit domain or brand
type LookalikeStrategy struct{}

// NewLookalikeStrategy creates a new lookalike domain detection strategy
func NewLookalikeStrategy() *LookalikeStrategy {
	return &LookalikeStrategy{}
}

// Name returns the strategy name
func (s *LookalikeStrategy) Name() string {
	return LookalikeDetector
}

// Detect checks the sender domain and display name, see EditDistanceCheck and
// DisplayNameCheck
func (s *LookalikeStrategy) Detect(sample domain.EmailSample, rules *domain.RuleConfig) domain.DetectorResult {
	result := EditDistanceCheck(sample.Sender, rules)

	name := DisplayNameCheck(sample.SenderName, sample.Sender, rules)
	result.Score += name.Score
	result.Reasons = append(result.Reasons, name.Reasons...)
	return result
}

// EditDistanceCheck compares the sender domain with every legit domain and known
// brand and applies the lookalike penalty when the closest one is within
// LookalikeMaxDistance edits without being identical.
//
// By default only second-level labels are compared ("paypa1" vs "paypal"),
// which keeps TLD differences out of the distance. Ties go to the candidate
// listed first: legit domains in sorted order, then brands in sorted order.
func EditDistanceCheck(sender string, rules *domain.RuleConfig) domain.DetectorResult {
	t := rules.Thresholds
	senderDomain := ExtractDomain(sender)
	if senderDomain == "" {
		return emptyResult()
	}

	// The legit domain itself (or a subdomain) is never its own lookalike
	for _, legit := range rules.LegitDomains {
		if DomainMatches(senderDomain, legit) {
			return emptyResult()
		}
	}

	observed := senderDomain
	if !t.LookalikeFullDomain {
		observed = SecondLevelLabel(senderDomain)
	}

	candidates := make([]string, 0, len(rules.LegitDomains)+len(rules.KnownBrands))
	candidates = append(candidates, rules.LegitDomains...)
	candidates = append(candidates, rules.KnownBrands...)

	bestDistance := -1
	bestCandidate := ""
	for _, candidate := range candidates {
		target := candidate
		if !t.LookalikeFullDomain && strings.Contains(candidate, ".") {
			target = SecondLevelLabel(candidate)
		}
		if target == "" {
			continue
		}

		distance := EditDistance(observed, target)
		if bestDistance < 0 || distance < bestDistance {
			bestDistance = distance
			bestCandidate = candidate
		}
	}

	// Flag if very similar but not identical
	if bestDistance > 0 && bestDistance <= t.LookalikeMaxDistance {
		return domain.DetectorResult{
			Score: t.LookalikePenalty,
			Reasons: []string{fmt.Sprintf(
				"Sender domain '%s' resembles '%s' (distance %d) (+%g)",
				senderDomain, bestCandidate, bestDistance, t.LookalikePenalty,
			)},
		}
	}

	return emptyResult()
}

// minNameTokenRunes keeps short words ("the", "inc") out of name matching
const minNameTokenRunes = 4

// DisplayNameCheck flags a display name that is a near miss of a known brand
// or of a legit domain's label ("PayPa1 Support" vs "paypal"). The whole name
// and each of its words are compared. Senders on a legit domain are exempt.
// Nothing is reported while the display_name_lookalike weight is 0.
func DisplayNameCheck(name, sender string, rules *domain.RuleConfig) domain.DetectorResult {
	t := rules.Thresholds
	name = strings.ToLower(strings.TrimSpace(name))
	if t.DisplayNameLookalike == 0 || name == "" {
		return emptyResult()
	}

	senderDomain := ExtractDomain(sender)
	for _, legit := range rules.LegitDomains {
		if DomainMatches(senderDomain, legit) {
			return emptyResult()
		}
	}

	observed := []string{name}
	for _, word := range strings.Fields(name) {
		if word != name && utf8.RuneCountInString(word) >= minNameTokenRunes {
			observed = append(observed, word)
		}
	}

	candidates := make([]string, 0, len(rules.KnownBrands)+len(rules.LegitDomains))
	candidates = append(candidates, rules.KnownBrands...)
	for _, legit := range rules.LegitDomains {
		candidates = append(candidates, SecondLevelLabel(legit))
	}

	bestDistance := -1
	bestCandidate := ""
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		for _, token := range observed {
			distance := EditDistance(token, candidate)
			if bestDistance < 0 || distance < bestDistance {
				bestDistance = distance
				bestCandidate = candidate
			}
		}
	}

	if bestDistance > 0 && bestDistance <= t.LookalikeMaxDistance {
		return domain.DetectorResult{
			Score: t.DisplayNameLookalike,
			Reasons: []string{fmt.Sprintf(
				"Display name '%s' resembles '%s' (distance %d) (+%g)",
				name, bestCandidate, bestDistance, t.DisplayNameLookalike,
			)},
		}
	}

	return emptyResult()
}
