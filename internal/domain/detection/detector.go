package detection

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/phishguard/phish-detector/internal/domain"
)

// Engine classifies emails by running the detection strategies and summing
// their scores
//
// The whitelist strategy always runs first and is authoritative: a legit
// sender is labelled Safe without consulting the others. Every other strategy
// runs unconditionally; their order only affects the order of reasons.
//
// The engine holds no rules of its own. Callers pass an immutable RuleConfig
// snapshot on every call, so one Engine can serve concurrent classifications.
type Engine struct {
	whitelist  *WhitelistStrategy
	strategies []DetectionStrategy
	logger     *zap.Logger
}

// NewEngine creates an engine with the standard detection strategies
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		whitelist: NewWhitelistStrategy(),
		strategies: []DetectionStrategy{
			NewKeywordStrategy(),
			NewLookalikeStrategy(),
			NewSuspiciousURLStrategy(),
		},
		logger: logger,
	}
}

// Strategies returns every strategy, whitelist included, in evaluation order
func (e *Engine) Strategies() []DetectionStrategy {
	all := make([]DetectionStrategy, 0, len(e.strategies)+1)
	all = append(all, e.whitelist)
	return append(all, e.strategies...)
}

// Classify labels an email. It never panics and always returns a well-formed
// result; if classification itself breaks, the result is Safe with
// domain.ErrorScore.
func (e *Engine) Classify(rules *domain.RuleConfig, sample domain.EmailSample) (result domain.ClassificationResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Classification failed, returning fallback result",
				zap.Any("panic", r),
				zap.String("sender", sample.Sender))
			result = domain.ClassificationResult{
				Label:      domain.LabelSafe,
				TotalScore: domain.ErrorScore,
				Breakdown:  map[string]domain.DetectorResult{},
			}
		}
	}()

	if rules == nil {
		e.logger.Warn("No rule configuration supplied, using defaults")
		rules = domain.DefaultRuleConfig()
	}

	breakdown := make(map[string]domain.DetectorResult, len(e.strategies)+1)

	// Phase 1: whitelist short-circuit
	wl, whitelisted := e.runWhitelist(rules, sample)
	breakdown[e.whitelist.Name()] = wl
	if whitelisted {
		e.logger.Debug("Sender whitelisted, skipping remaining detectors",
			zap.String("sender", sample.Sender))
		return domain.ClassificationResult{
			Label:       domain.LabelSafe,
			TotalScore:  0,
			Whitelisted: true,
			Breakdown:   breakdown,
		}
	}

	// Phase 2: every other detector contributes
	total := wl.Score
	for _, strategy := range e.strategies {
		res := e.runStrategy(strategy, rules, sample)
		breakdown[strategy.Name()] = res
		total += res.Score
	}

	label := domain.LabelSafe
	if total >= rules.Thresholds.PhishScore {
		label = domain.LabelPhishing
	}

	e.logger.Debug("Email classified",
		zap.String("sender", sample.Sender),
		zap.String("label", string(label)),
		zap.Float64("score", total))

	return domain.ClassificationResult{
		Label:      label,
		TotalScore: total,
		Breakdown:  breakdown,
	}
}

// runWhitelist treats a failing whitelist check as a miss with zero score
func (e *Engine) runWhitelist(rules *domain.RuleConfig, sample domain.EmailSample) (res domain.DetectorResult, whitelisted bool) {
	defer func() {
		if r := recover(); r != nil {
			res, whitelisted = e.failed(e.whitelist.Name(), r), false
		}
	}()
	return WhitelistCheck(sample.Sender, rules)
}

// runStrategy isolates one detector so its failure only zeroes its own score
func (e *Engine) runStrategy(strategy DetectionStrategy, rules *domain.RuleConfig, sample domain.EmailSample) (res domain.DetectorResult) {
	defer func() {
		if r := recover(); r != nil {
			res = e.failed(strategy.Name(), r)
		}
	}()
	return strategy.Detect(sample, rules)
}

func (e *Engine) failed(name string, r any) domain.DetectorResult {
	e.logger.Error("Detector failed, counting it as zero",
		zap.String("detector", name),
		zap.Any("panic", r))
	return domain.DetectorResult{
		Score:   0,
		Reasons: []string{fmt.Sprintf("Detector failed: %v", r)},
	}
}
