package detection

import (
	"fmt"
	"strings"

	"github.com/phishguard/phish-detector/internal/domain"
)

// SuspiciousURLStrategy detects risky links in subject and body
//
// Attack pattern: the lure text impersonates a trusted brand while the link
// points at a raw IP, a shortener, a credential-prefixed host or simply a
// different domain.
type SuspiciousURLStrategy struct{}

// NewSuspiciousURLStrategy creates a new suspicious link detection strategy
func NewSuspiciousURLStrategy() *SuspiciousURLStrategy {
	return &SuspiciousURLStrategy{}
}

// Name returns the strategy name
func (s *SuspiciousURLStrategy) Name() string {
	return SuspiciousURLDetector
}

// Detect scores every link, see SuspiciousURLCheck
func (s *SuspiciousURLStrategy) Detect(sample domain.EmailSample, rules *domain.RuleConfig) domain.DetectorResult {
	return SuspiciousURLCheck(sample.Sender, sample.Subject, sample.Body, rules)
}

// SuspiciousURLCheck scores each URL independently; one URL may trigger
// several signals. A URL whose host cannot be extracted only takes part in the
// authority and keyword-context checks. Message-level link penalties (any link,
// several links, freemail sender with a link) are added once.
//
// The sender only feeds the signals whose weights default to 0
// (sender_url_mismatch, link_present, freemail_link).
func SuspiciousURLCheck(sender, subject, body string, rules *domain.RuleConfig) domain.DetectorResult {
	t := rules.Thresholds
	text := strings.ToLower(subject + "\n" + body)

	matches := findURLs(text)
	if len(matches) == 0 {
		return emptyResult()
	}
	senderDomain := ExtractDomain(sender)

	// Legit domains the message claims to come from
	claimed := make([]string, 0)
	for _, legit := range rules.LegitDomains {
		if strings.Contains(text, legit) {
			claimed = append(claimed, legit)
		}
	}

	result := emptyResult()
	for _, m := range matches {
		rawURL := text[m[0]:m[1]]
		host := URLHost(rawURL)

		if host != "" && IsIPLiteral(host) {
			result.Score += t.IPURL
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("URL '%s' uses IP address host '%s' (+%g)", rawURL, host, t.IPURL))
		}

		if hasUserInfo(rawURL) {
			result.Score += t.UserInfoURL
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("URL '%s' embeds credentials before the host (+%g)", rawURL, t.UserInfoURL))
		}

		if host != "" {
			for _, shortener := range rules.ShortenerDomains {
				if DomainMatches(host, shortener) {
					result.Score += t.ShortenerURL
					result.Reasons = append(result.Reasons,
						fmt.Sprintf("URL '%s' uses link shortener '%s' (+%g)", rawURL, shortener, t.ShortenerURL))
					break
				}
			}

			// Claimed-domain mismatch: counted once per URL
			for _, d := range claimed {
				if !DomainMatches(host, d) {
					result.Score += t.ClaimedDomainMismatch
					result.Reasons = append(result.Reasons,
						fmt.Sprintf("Text mentions '%s' but URL host '%s' does not belong to it (+%g)",
							d, host, t.ClaimedDomainMismatch))
					break
				}
			}

			if t.SenderURLMismatch != 0 && senderDomain != "" && !DomainMatches(host, senderDomain) {
				result.Score += t.SenderURLMismatch
				result.Reasons = append(result.Reasons,
					fmt.Sprintf("URL host '%s' does not match sender domain '%s' (+%g)",
						host, senderDomain, t.SenderURLMismatch))
			}
		}

		nearby := window(text, m[0], m[1], t.KeywordNearURLWindow)
		if kw := containsAny(nearby, rules.SuspiciousKeywords); kw != "" {
			result.Score += t.KeywordNearURL
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("Keyword '%s' within %d characters of URL '%s' (+%g)",
					kw, t.KeywordNearURLWindow, rawURL, t.KeywordNearURL))
		}
	}

	linkPenalties(&result, senderDomain, len(matches), rules)

	// Link-heavy newsletters should not dominate the total
	if t.URLCap > 0 && result.Score > t.URLCap {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("URL score %g capped at %g", result.Score, t.URLCap))
		result.Score = t.URLCap
	}

	return result
}

// linkPenalties adds the message-level link signals
func linkPenalties(result *domain.DetectorResult, senderDomain string, links int, rules *domain.RuleConfig) {
	t := rules.Thresholds

	if t.LinkPresent != 0 && !matchesAny(senderDomain, rules.LegitDomains) {
		result.Score += t.LinkPresent
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("Links from a sender outside the legit domains (+%g)", t.LinkPresent))
	}

	if t.MultipleLinks != 0 && links >= 2 {
		result.Score += t.MultipleLinks
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("%d links in message (+%g)", links, t.MultipleLinks))
	}

	if t.FreemailLink != 0 && matchesAny(senderDomain, rules.FreemailDomains) {
		result.Score += t.FreemailLink
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("Freemail sender '%s' sent links (+%g)", senderDomain, t.FreemailLink))
	}
}

// matchesAny reports whether host belongs to one of roots
func matchesAny(host string, roots []string) bool {
	if host == "" {
		return false
	}
	for _, root := range roots {
		if DomainMatches(host, root) {
			return true
		}
	}
	return false
}
