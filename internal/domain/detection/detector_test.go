package detection

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phishguard/phish-detector/internal/domain"
)

// panicStrategy fails inside Detect
type panicStrategy struct{}

func (p panicStrategy) Name() string { return "broken" }

func (p panicStrategy) Detect(domain.EmailSample, *domain.RuleConfig) domain.DetectorResult {
	panic("boom")
}

// badNameStrategy fails outside any detector boundary
type badNameStrategy struct{}

func (b badNameStrategy) Name() string { panic("no name") }

func (b badNameStrategy) Detect(domain.EmailSample, *domain.RuleConfig) domain.DetectorResult {
	return domain.DetectorResult{}
}

func TestEngine_Classify_Scenarios(t *testing.T) {
	engine := NewEngine(zap.NewNop())
	rules := domain.DefaultRuleConfig()

	tests := []struct {
		name              string
		sample            domain.EmailSample
		expectedLabel     domain.Label
		expectedScore     float64
		expectWhitelisted bool
		expectDetectors   []string
	}{
		{
			name: "Lookalike sender with urgent content and IP link",
			sample: domain.EmailSample{
				Sender:  "scammer@paypa1.com",
				Subject: "Urgent: Verify your account",
				Body:    "Click http://192.168.0.1/login to restore your password",
			},
			expectedLabel: domain.LabelPhishing,
			// whitelist 2 + keywords 12 (capped) + lookalike 5 + IP 6 + keyword near URL 2
			expectedScore:   27,
			expectDetectors: domain.DetectorOrder,
		},
		{
			name: "Legit sender short-circuits suspicious content",
			sample: domain.EmailSample{
				Sender:  "support@paypal.com",
				Subject: "URGENT verify your password",
				Body:    "click http://192.168.0.1 now",
			},
			expectedLabel:     domain.LabelSafe,
			expectedScore:     0,
			expectWhitelisted: true,
			expectDetectors:   []string{WhitelistDetector},
		},
		{
			name:            "Empty sample without domain",
			sample:          domain.EmailSample{Sender: "nobody"},
			expectedLabel:   domain.LabelSafe,
			expectedScore:   2,
			expectDetectors: domain.DetectorOrder,
		},
		{
			name: "Ordinary mail from unknown sender",
			sample: domain.EmailSample{
				Sender:  "friend@example.org",
				Subject: "Lunch on Friday?",
				Body:    "See you at noon.",
			},
			expectedLabel:   domain.LabelSafe,
			expectedScore:   2,
			expectDetectors: domain.DetectorOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Classify(rules, tt.sample)

			assert.Equal(t, tt.expectedLabel, result.Label)
			assert.Equal(t, tt.expectedScore, result.TotalScore)
			assert.Equal(t, tt.expectWhitelisted, result.Whitelisted)
			assert.Len(t, result.Breakdown, len(tt.expectDetectors))
			for _, name := range tt.expectDetectors {
				assert.Contains(t, result.Breakdown, name)
			}
		})
	}
}

func TestEngine_Classify_PhishingScenarioReasons(t *testing.T) {
	engine := NewEngine(nil)

	result := engine.Classify(domain.DefaultRuleConfig(), domain.EmailSample{
		Sender:  "scammer@paypa1.com",
		Subject: "Urgent: Verify your account",
		Body:    "Your mailbox is full, see http://192.168.0.1",
	})

	reasons := strings.Join(result.Reasons(), "\n")
	assert.Contains(t, reasons, "whitelist: Sender domain 'paypa1.com' is not whitelisted")
	assert.Contains(t, reasons, "keywords: Keyword 'urgent'")
	assert.Contains(t, reasons, "keywords: Keyword 'verify'")
	assert.Contains(t, reasons, "keywords: Keyword 'account'")
	assert.Contains(t, reasons, "lookalike: Sender domain 'paypa1.com' resembles 'paypal.com'")
	assert.Contains(t, reasons, "suspicious_urls: URL 'http://192.168.0.1' uses IP address host")
	assert.True(t, result.IsPhishing())
	assert.Greater(t, result.TotalScore, 10.0)
}

func TestEngine_Classify_TotalIsSumOfBreakdown(t *testing.T) {
	engine := NewEngine(nil)
	rules := domain.DefaultRuleConfig()

	result := engine.Classify(rules, domain.EmailSample{
		Sender:  "it@g00gle.com",
		Subject: "Password expiry",
		Body:    "Reset it at https://bit.ly/reset before friday",
	})

	sum := 0.0
	for _, res := range result.Breakdown {
		sum += res.Score
	}
	assert.Equal(t, sum, result.TotalScore)
}

func TestEngine_Classify_ThresholdIsInclusive(t *testing.T) {
	engine := NewEngine(nil)
	rules := domain.DefaultRuleConfig()
	sample := domain.EmailSample{Sender: "friend@example.org"}

	rules.Thresholds.PhishScore = 2
	assert.Equal(t, domain.LabelPhishing, engine.Classify(rules, sample).Label, "score equal to threshold is phishing")

	rules.Thresholds.PhishScore = 2.5
	assert.Equal(t, domain.LabelSafe, engine.Classify(rules, sample).Label)
}

func TestEngine_Classify_MissPenaltyIgnoresCase(t *testing.T) {
	engine := NewEngine(nil)
	rules := domain.DefaultRuleConfig()

	lower := engine.Classify(rules, domain.EmailSample{Sender: "user@example.org"})
	upper := engine.Classify(rules, domain.EmailSample{Sender: "USER@EXAMPLE.ORG"})

	assert.Equal(t, lower.TotalScore, upper.TotalScore)
	assert.Equal(t, rules.Thresholds.WhitelistMiss, upper.Breakdown[WhitelistDetector].Score)
}

func TestEngine_Classify_Idempotent(t *testing.T) {
	engine := NewEngine(nil)
	rules := domain.DefaultRuleConfig()
	sample := domain.EmailSample{
		Sender:  "billing@paypa1.com",
		Subject: "Verify your account",
		Body:    "Click https://paypal.com@evil.ru/login",
	}

	first := engine.Classify(rules, sample)
	second := engine.Classify(rules, sample)

	assert.Equal(t, first, second)
}

func TestEngine_Classify_Concurrent(t *testing.T) {
	engine := NewEngine(nil)
	rules := domain.DefaultRuleConfig()
	sample := domain.EmailSample{Sender: "scammer@paypa1.com", Subject: "Urgent"}
	expected := engine.Classify(rules, sample)

	var wg sync.WaitGroup
	results := make([]domain.ClassificationResult, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = engine.Classify(rules, sample)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, expected, r)
	}
}

func TestEngine_Classify_NilRulesUsesDefaults(t *testing.T) {
	engine := NewEngine(nil)

	result := engine.Classify(nil, domain.EmailSample{Sender: "a@paypal.com"})

	assert.True(t, result.Whitelisted)
	assert.Equal(t, domain.LabelSafe, result.Label)
}

func TestEngine_Classify_DetectorFailureIsIsolated(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	engine := NewEngine(zap.New(core))
	engine.strategies = append(engine.strategies, panicStrategy{})

	result := engine.Classify(domain.DefaultRuleConfig(), domain.EmailSample{
		Sender:  "x@example.org",
		Subject: "urgent",
	})

	require.Contains(t, result.Breakdown, "broken")
	assert.Zero(t, result.Breakdown["broken"].Score)
	assert.Equal(t, []string{"Detector failed: boom"}, result.Breakdown["broken"].Reasons)

	// The remaining detectors still contributed: miss 2 + subject keyword 3
	assert.Equal(t, 5.0, result.TotalScore)
	assert.Equal(t, 1, logs.FilterMessage("Detector failed, counting it as zero").Len())
}

func TestEngine_Classify_FallbackOnTotalFailure(t *testing.T) {
	engine := NewEngine(nil)
	engine.strategies = []DetectionStrategy{badNameStrategy{}}

	var result domain.ClassificationResult
	assert.NotPanics(t, func() {
		result = engine.Classify(domain.DefaultRuleConfig(), domain.EmailSample{Sender: "x@example.org"})
	})

	assert.Equal(t, domain.LabelSafe, result.Label)
	assert.Equal(t, domain.ErrorScore, result.TotalScore)
	assert.NotNil(t, result.Breakdown)
	assert.Empty(t, result.Reasons())
}

func TestEngine_Strategies(t *testing.T) {
	engine := NewEngine(nil)

	names := make([]string, 0)
	for _, s := range engine.Strategies() {
		names = append(names, s.Name())
	}

	assert.Equal(t, domain.DetectorOrder, names)
}
