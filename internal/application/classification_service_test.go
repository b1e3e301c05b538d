package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phishguard/phish-detector/internal/domain"
	"github.com/phishguard/phish-detector/internal/domain/detection"
)

func newTestService(t *testing.T, workers int) (*ClassificationService, *RuleManager) {
	t.Helper()
	manager := NewRuleManager(&memoryRuleStore{}, nil)
	require.NoError(t, manager.Load(context.Background()))
	return NewClassificationService(manager, detection.NewEngine(nil), nil, workers), manager
}

func TestClassificationService_Classify(t *testing.T) {
	service, _ := newTestService(t, 0)

	tests := []struct {
		name          string
		sender        string
		subject       string
		body          string
		expectedLabel domain.Label
	}{
		{
			name:          "Lookalike phishing",
			sender:        "scammer@paypa1.com",
			subject:       "Urgent: Verify your account",
			body:          "Log in at http://192.168.0.1",
			expectedLabel: domain.LabelPhishing,
		},
		{
			name:          "Whitelisted sender",
			sender:        "support@paypal.com",
			subject:       "Urgent: Verify your account",
			body:          "Log in at http://192.168.0.1",
			expectedLabel: domain.LabelSafe,
		},
		{
			name:          "Empty input",
			expectedLabel: domain.LabelSafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := service.Classify(tt.sender, tt.subject, tt.body)
			assert.Equal(t, tt.expectedLabel, result.Label)
		})
	}
}

func TestClassificationService_UsesLatestRules(t *testing.T) {
	ctx := context.Background()
	service, manager := newTestService(t, 0)

	before := service.Classify("billing@contoso.com", "Invoice", "")
	assert.False(t, before.Whitelisted)

	_, err := manager.Add(ctx, domain.ListLegitDomains, "contoso.com")
	require.NoError(t, err)

	after := service.Classify("billing@contoso.com", "Invoice", "")
	assert.True(t, after.Whitelisted)
}

func TestClassificationService_ClassifyBatch(t *testing.T) {
	service, _ := newTestService(t, 4)

	samples := make([]domain.EmailSample, 0, 50)
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			samples = append(samples, domain.EmailSample{
				Sender:  fmt.Sprintf("user%d@paypal.com", i),
				Subject: "Receipt",
			})
		} else {
			samples = append(samples, domain.EmailSample{
				Sender:  fmt.Sprintf("user%d@paypa1.com", i),
				Subject: "Urgent: verify your password",
				Body:    "click http://10.0.0.1/login",
			})
		}
	}

	results, err := service.ClassifyBatch(context.Background(), samples)

	require.NoError(t, err)
	require.Len(t, results, len(samples))
	for i, r := range results {
		if i%2 == 0 {
			assert.Equal(t, domain.LabelSafe, r.Label, "sample %d", i)
			assert.True(t, r.Whitelisted, "sample %d", i)
		} else {
			assert.Equal(t, domain.LabelPhishing, r.Label, "sample %d", i)
		}
		// Results line up with the inputs
		assert.Equal(t, service.Classify(samples[i].Sender, samples[i].Subject, samples[i].Body), r)
	}
}

func TestClassificationService_ClassifyBatch_Empty(t *testing.T) {
	service, _ := newTestService(t, 2)

	results, err := service.ClassifyBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClassificationService_ClassifyBatch_Cancelled(t *testing.T) {
	service, _ := newTestService(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := service.ClassifyBatch(ctx, []domain.EmailSample{{Sender: "a@b.com"}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

// pinnedRules returns a fixed snapshot and counts calls
type pinnedRules struct {
	rules *domain.RuleConfig
	calls int
}

func (p *pinnedRules) Snapshot() *domain.RuleConfig {
	p.calls++
	return p.rules
}

func TestClassificationService_ClassifyBatch_SingleSnapshot(t *testing.T) {
	source := &pinnedRules{rules: domain.DefaultRuleConfig()}
	service := NewClassificationService(source, detection.NewEngine(nil), nil, 8)

	_, err := service.ClassifyBatch(context.Background(), make([]domain.EmailSample, 20))

	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
}
