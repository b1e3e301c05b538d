package detection

import (
	"github.com/phishguard/phish-detector/internal/domain"
)

// DetectionStrategy defines the interface that all phishing detectors must implement
//
// This follows the Strategy pattern, allowing each detection technique to be:
//   - Independently developed and tested
//   - Exposed on its own for score breakdown display
//   - Tuned through the weights in domain.Thresholds
//
// Strategies are pure: they read the sample and the rule snapshot and never
// mutate either.
type DetectionStrategy interface {
	// Detect scores an email and explains the score
	Detect(sample domain.EmailSample, rules *domain.RuleConfig) domain.DetectorResult

	// Name returns the detector key used in ClassificationResult.Breakdown
	Name() string
}

// Detector names, also the breakdown keys
const (
	WhitelistDetector     = "whitelist"
	KeywordDetector       = "keywords"
	LookalikeDetector     = "lookalike"
	SuspiciousURLDetector = "suspicious_urls"
)

// emptyResult is what a detector returns when it has nothing to report
func emptyResult() domain.DetectorResult {
	return domain.DetectorResult{Score: 0, Reasons: []string{}}
}
