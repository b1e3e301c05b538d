package detection

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phishguard/phish-detector/internal/domain"
)

// riskyAttachmentPattern matches file names with executable or archive
// extensions, e.g. "invoice.pdf.exe"
var riskyAttachmentPattern = regexp.MustCompile(`(?i)\.(?:exe|scr|bat|cmd|js|vbs|jar|msi|hta|html?|zip|7z|rar)\b`)

// KeywordStrategy scores suspicious keywords by where they appear
//
// Subject hits weigh most, body hits least, and hits in the first characters of
// the body earn an extra "early pressure" bonus since lures front-load urgency.
type KeywordStrategy struct{}

// NewKeywordStrategy creates a new positional keyword detection strategy
func NewKeywordStrategy() *KeywordStrategy {
	return &KeywordStrategy{}
}

// Name returns the strategy name
func (s *KeywordStrategy) Name() string {
	return KeywordDetector
}

// Detect scores subject and body keywords, see KeywordCheck
func (s *KeywordStrategy) Detect(sample domain.EmailSample, rules *domain.RuleConfig) domain.DetectorResult {
	return KeywordCheck(sample.Subject, sample.Body, rules)
}

// KeywordCheck applies positional keyword scoring.
//
// Matching is plain substring containment on lowercased text, so "account" also
// matches inside "accounts". Each keyword counts once per location.
func KeywordCheck(subject, body string, rules *domain.RuleConfig) domain.DetectorResult {
	t := rules.Thresholds
	subj := strings.ToLower(subject)
	bod := strings.ToLower(body)
	early := prefixRunes(bod, t.EarlyBodyWindow)

	result := emptyResult()
	for _, kw := range rules.SuspiciousKeywords {
		if kw == "" {
			continue
		}

		kwScore := 0.0
		hits := make([]string, 0, 3)
		if strings.Contains(subj, kw) {
			kwScore += t.SubjectKeyword
			hits = append(hits, "subject")
		}
		if strings.Contains(bod, kw) {
			kwScore += t.BodyKeyword
			hits = append(hits, "body")
		}
		if strings.Contains(early, kw) {
			kwScore += t.EarlyBodyBonus
			hits = append(hits, fmt.Sprintf("early-body(%d)", t.EarlyBodyWindow))
		}

		if len(hits) > 0 {
			result.Score += kwScore
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("Keyword '%s' in %s (+%g)", kw, strings.Join(hits, ", "), kwScore))
		}
	}

	if t.RiskyAttachment != 0 {
		if ext := riskyAttachmentPattern.FindString(subj + "\n" + bod); ext != "" {
			result.Score += t.RiskyAttachment
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("Risky attachment type '%s' mentioned (+%g)", ext, t.RiskyAttachment))
		}
	}

	if t.KeywordCap > 0 && result.Score > t.KeywordCap {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("Keyword score %g capped at %g", result.Score, t.KeywordCap))
		result.Score = t.KeywordCap
	}

	// Newsletters and digests carry benign markers; one hit is enough
	if t.SafeTermDownweight != 0 {
		if term := containsAny(subj+"\n"+bod, rules.SafeTerms); term != "" {
			result.Score -= t.SafeTermDownweight
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("Safe term '%s' present (-%g)", term, t.SafeTermDownweight))
			if result.Score < 0 {
				result.Score = 0
			}
		}
	}

	return result
}
