package application

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phishguard/phish-detector/internal/domain"
	"github.com/phishguard/phish-detector/internal/domain/detection"
)

// RuleSource hands out immutable rule snapshots
type RuleSource interface {
	Snapshot() *domain.RuleConfig
}

// ClassificationService classifies emails against the current rules
type ClassificationService struct {
	rules   RuleSource
	engine  *detection.Engine
	logger  *zap.Logger
	workers int
}

// NewClassificationService creates a classification service. workers bounds
// batch parallelism; zero or less means one worker per CPU.
func NewClassificationService(
	rules RuleSource,
	engine *detection.Engine,
	logger *zap.Logger,
	workers int,
) *ClassificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &ClassificationService{
		rules:   rules,
		engine:  engine,
		logger:  logger,
		workers: workers,
	}
}

// Classify labels a single email using the current snapshot
func (s *ClassificationService) Classify(sender, subject, body string) domain.ClassificationResult {
	return s.ClassifySample(domain.EmailSample{
		Sender:  sender,
		Subject: subject,
		Body:    body,
	})
}

// ClassifySample is Classify for callers that also know the display name
func (s *ClassificationService) ClassifySample(sample domain.EmailSample) domain.ClassificationResult {
	return s.engine.Classify(s.rules.Snapshot(), sample)
}

// ClassifyBatch labels many emails concurrently. Every email is judged against
// the same snapshot, taken once at the start, even if the rules change while
// the batch runs. Results are returned in input order.
//
// Classification itself cannot fail; the only error is a cancelled context.
func (s *ClassificationService) ClassifyBatch(ctx context.Context, samples []domain.EmailSample) ([]domain.ClassificationResult, error) {
	rules := s.rules.Snapshot()
	results := make([]domain.ClassificationResult, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range samples {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.engine.Classify(rules, samples[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	phishing := 0
	for _, r := range results {
		if r.IsPhishing() {
			phishing++
		}
	}
	s.logger.Info("Batch classified",
		zap.Int("emails", len(samples)),
		zap.Int("phishing", phishing),
		zap.Int("workers", s.workers))

	return results, nil
}
