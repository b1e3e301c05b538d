package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phishguard/phish-detector/internal/domain"
)

func TestLookalikeStrategy_Detect(t *testing.T) {
	rules := newTestRules([]string{"company.com", "paypal.com", "google.com"}, nil)
	rules.KnownBrands = []string{"microsoft"}
	strategy := NewLookalikeStrategy()

	tests := []struct {
		name            string
		sender          string
		expectDetection bool
		expectReason    string
	}{
		{
			name:            "Exact legit domain - no detection",
			sender:          "service@paypal.com",
			expectDetection: false,
		},
		{
			name:            "Legit subdomain - no detection",
			sender:          "noreply@mail.paypal.com",
			expectDetection: false,
		},
		{
			name:            "Digit substitution - paypa1.com",
			sender:          "scammer@paypa1.com",
			expectDetection: true,
			expectReason:    "Sender domain 'paypa1.com' resembles 'paypal.com' (distance 1) (+5)",
		},
		{
			name:            "Same label under another TLD is not a lookalike",
			sender:          "support@paypal.net",
			expectDetection: false,
		},
		{
			name:            "Lookalike behind a subdomain",
			sender:          "x@secure.paypa1.co.uk",
			expectDetection: true,
		},
		{
			name:            "Brand without dot - micros0ft",
			sender:          "it@micros0ft.com",
			expectDetection: true,
			expectReason:    "Sender domain 'micros0ft.com' resembles 'microsoft' (distance 1) (+5)",
		},
		{
			name:            "Two edits away - above max distance",
			sender:          "user@g00gle.com",
			expectDetection: false,
		},
		{
			name:            "Completely different domain",
			sender:          "user@example.org",
			expectDetection: false,
		},
		{
			name:            "No domain",
			sender:          "not-an-address",
			expectDetection: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := strategy.Detect(domain.EmailSample{Sender: tt.sender}, rules)

			if tt.expectDetection {
				assert.Equal(t, rules.Thresholds.LookalikePenalty, result.Score, "Expected lookalike penalty")
				require.Len(t, result.Reasons, 1)
				if tt.expectReason != "" {
					assert.Equal(t, tt.expectReason, result.Reasons[0])
				}
			} else {
				assert.Zero(t, result.Score, "Expected no detection but got score")
				assert.Empty(t, result.Reasons)
			}
		})
	}
}

func TestEditDistanceCheck_FullDomainMode(t *testing.T) {
	rules := newTestRules([]string{"paypal.com"}, nil)
	rules.Thresholds.LookalikeFullDomain = true

	// "paypal.co" vs "paypal.com" is one deletion away on the whole domain
	result := EditDistanceCheck("x@paypal.co", rules)
	assert.Equal(t, rules.Thresholds.LookalikePenalty, result.Score)

	// A different TLD costs more than one edit once the whole name is compared
	result = EditDistanceCheck("x@paypa1.net", rules)
	assert.Zero(t, result.Score)
}

func TestEditDistanceCheck_MaxDistance(t *testing.T) {
	rules := newTestRules([]string{"google.com"}, nil)

	assert.Zero(t, EditDistanceCheck("a@g00gle.com", rules).Score)

	rules.Thresholds.LookalikeMaxDistance = 2
	result := EditDistanceCheck("a@g00gle.com", rules)
	assert.Equal(t, rules.Thresholds.LookalikePenalty, result.Score)
	assert.Contains(t, result.Reasons[0], "distance 2")
}

func TestEditDistanceCheck_TieGoesToFirstCandidate(t *testing.T) {
	// "paypbl" is one edit from both; legit domains come before brands
	rules := newTestRules([]string{"paypal.com"}, nil)
	rules.KnownBrands = []string{"paypbm"}

	result := EditDistanceCheck("x@paypbl.com", rules)

	require.Len(t, result.Reasons, 1)
	assert.Contains(t, result.Reasons[0], "resembles 'paypal.com'")
}

func TestEditDistanceCheck_ClosestCandidateWins(t *testing.T) {
	rules := newTestRules([]string{"amazon.com", "amazom.com"}, nil)

	// Exact label match with a legit domain under another TLD: distance 0 wins
	// over distance 1, so nothing is flagged
	result := EditDistanceCheck("x@amazom.net", rules)
	assert.Zero(t, result.Score)
}

func TestEditDistanceCheck_EmptyRules(t *testing.T) {
	rules := newTestRules(nil, nil)

	result := EditDistanceCheck("x@paypa1.com", rules)

	assert.Zero(t, result.Score)
	assert.Empty(t, result.Reasons)
}

func TestDisplayNameCheck(t *testing.T) {
	rules := newTestRules([]string{"paypal.com"}, nil)
	rules.KnownBrands = []string{"microsoft"}
	rules.Thresholds.DisplayNameLookalike = 4

	tests := []struct {
		name          string
		displayName   string
		sender        string
		expectedScore float64
		expectReason  string
	}{
		{
			name:          "Near miss of a brand",
			displayName:   "Micros0ft",
			sender:        "it@helpdesk.ru",
			expectedScore: 4,
			expectReason:  "Display name 'micros0ft' resembles 'microsoft' (distance 1) (+4)",
		},
		{
			name:          "Near miss of a legit domain label inside a longer name",
			displayName:   "PayPa1 Support",
			sender:        "x@evil.ru",
			expectedScore: 4,
			expectReason:  "Display name 'paypa1 support' resembles 'paypal' (distance 1) (+4)",
		},
		{
			name:          "Exact brand name is not a near miss",
			displayName:   "Microsoft",
			sender:        "x@evil.ru",
			expectedScore: 0,
		},
		{
			name:          "Legit sender is exempt",
			displayName:   "PayPa1",
			sender:        "service@paypal.com",
			expectedScore: 0,
		},
		{
			name:          "Unrelated name",
			displayName:   "Jane Doe",
			sender:        "jane@example.org",
			expectedScore: 0,
		},
		{
			name:          "No display name",
			displayName:   "",
			sender:        "x@evil.ru",
			expectedScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DisplayNameCheck(tt.displayName, tt.sender, rules)

			assert.Equal(t, tt.expectedScore, result.Score)
			if tt.expectReason != "" {
				assert.Equal(t, []string{tt.expectReason}, result.Reasons)
			} else {
				assert.Empty(t, result.Reasons)
			}
		})
	}
}

func TestDisplayNameCheck_DisabledByDefault(t *testing.T) {
	rules := newTestRules([]string{"paypal.com"}, nil)

	result := DisplayNameCheck("PayPa1", "x@evil.ru", rules)

	assert.Zero(t, result.Score)
	assert.Empty(t, result.Reasons)
}

func TestLookalikeStrategy_CombinesDomainAndName(t *testing.T) {
	rules := newTestRules([]string{"paypal.com"}, nil)
	rules.Thresholds.DisplayNameLookalike = 4

	result := NewLookalikeStrategy().Detect(domain.EmailSample{
		Sender:     "service@paypa1.com",
		SenderName: "PayPa1",
	}, rules)

	assert.Equal(t, 9.0, result.Score)
	assert.Len(t, result.Reasons, 2)
}
