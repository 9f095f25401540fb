package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/analyzer"
	"github.com/pratik-mahalle/muscleai/internal/cache"
	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/domain/subscription"
	"github.com/pratik-mahalle/muscleai/internal/integrations"
	"github.com/pratik-mahalle/muscleai/internal/pkg/errors"
	"github.com/pratik-mahalle/muscleai/internal/pkg/logger"
	"github.com/pratik-mahalle/muscleai/internal/pkg/metrics"
	"github.com/pratik-mahalle/muscleai/internal/ratelimit"
)

// Analysis outcomes recorded in metrics
const (
	OutcomeOK               = "ok"
	OutcomeCached           = "cached"
	OutcomeSalvaged         = "salvaged"
	OutcomeFallback         = "fallback"
	OutcomeInvalid          = "invalid"
	OutcomeRateLimited      = "rate_limited"
	OutcomeQuotaExceeded    = "quota_exceeded"
	OutcomeNoSubscription   = "no_subscription"
	OutcomeLedgerError      = "ledger_unavailable"
	OutcomeLowQuality       = "low_quality"
	OutcomeModelUnavailable = "model_unavailable"
)

// QuotaLedger is the part of the subscription service the pipeline uses
type QuotaLedger interface {
	CheckAndConsume(ctx context.Context, userID string) (*subscription.QuotaStatus, error)
	PeekQuota(ctx context.Context, userID string) (*subscription.QuotaStatus, error)
	Release(ctx context.Context, userID string) error
}

// AnalyzeInput is one uploaded image
type AnalyzeInput struct {
	Image    []byte
	Filename string
	MIMEType string
	// UserID is empty for anonymous callers, who skip the quota gate.
	UserID string
}

// AnalysisResult is what the pipeline returns to the handler
type AnalysisResult struct {
	Analysis string
	Report   *analyzer.Report
	Cached   bool
	Model    string
	Attempts int
	Quota    *subscription.QuotaStatus
}

// ModelStep is one resolved entry of the fallback chain
type ModelStep struct {
	Provider string
	Model    string
	Prompt   string
	Client   integrations.VisionModel
}

// Name identifies the step in logs and metrics
func (m ModelStep) Name() string {
	return m.Provider + ":" + m.Model
}

// AnalysisService runs uploads through rate limiting, caching, quota and the models
type AnalysisService struct {
	ledger   QuotaLedger
	cache    *cache.Cache
	limiter  *ratelimit.Window
	chain    []ModelStep
	detector *analyzer.RefusalDetector
	cfg      config.AnalysisConfig
	logger   *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// ResolveModelChain pairs each configured model with a registered client.
// Entries whose provider is not registered are skipped.
func ResolveModelChain(specs []config.ModelSpec, registry *integrations.Registry, log *logger.Logger) ([]ModelStep, error) {
	var chain []ModelStep
	for _, spec := range specs {
		client, ok := registry.Get(spec.Provider)
		if !ok {
			log.WithFields(map[string]interface{}{
				"provider": spec.Provider,
				"model":    spec.Model,
			}).Warn("Skipping model: provider not configured")
			continue
		}
		if !analyzer.HasPrompt(spec.Prompt) {
			log.WithFields(map[string]interface{}{"prompt": spec.Prompt}).Warn("Unknown prompt variant, using default")
		}
		chain = append(chain, ModelStep{
			Provider: spec.Provider,
			Model:    spec.Model,
			Prompt:   spec.Prompt,
			Client:   client,
		})
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no vision model in the chain has a configured provider")
	}
	return chain, nil
}

// NewAnalysisService creates the pipeline
func NewAnalysisService(
	ledger QuotaLedger,
	c *cache.Cache,
	limiter *ratelimit.Window,
	chain []ModelStep,
	cfg config.AnalysisConfig,
	log *logger.Logger,
) *AnalysisService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &AnalysisService{
		ledger:   ledger,
		cache:    c,
		limiter:  limiter,
		chain:    chain,
		detector: analyzer.NewRefusalDetector(nil, cfg.RefusalWindow),
		cfg:      cfg,
		logger:   log,
		sleep:    sleepContext,
	}
}

// WithSleeper replaces the backoff sleep. Used by tests.
func (s *AnalysisService) WithSleeper(fn func(ctx context.Context, d time.Duration) error) *AnalysisService {
	s.sleep = fn
	return s
}

// WithRefusalDetector replaces the refusal phrase table
func (s *AnalysisService) WithRefusalDetector(d *analyzer.RefusalDetector) *AnalysisService {
	s.detector = d
	return s
}

// Analyze runs one upload through the pipeline
func (s *AnalysisService) Analyze(ctx context.Context, in AnalyzeInput) (*AnalysisResult, error) {
	start := time.Now()
	outcome := OutcomeOK
	defer func() {
		metrics.RecordAnalysis(outcome, time.Since(start))
	}()

	if len(in.Image) == 0 {
		outcome = OutcomeInvalid
		return nil, errors.InvalidInput("No image provided")
	}
	if s.cfg.MaxImageBytes > 0 && int64(len(in.Image)) > s.cfg.MaxImageBytes {
		outcome = OutcomeInvalid
		return nil, errors.InvalidInput(fmt.Sprintf("Image exceeds the %d MB upload limit", s.cfg.MaxImageBytes>>20))
	}

	if ok, retryAfter := s.limiter.Allow(); !ok {
		outcome = OutcomeRateLimited
		return nil, errors.TooManyRequests(int(math.Ceil(retryAfter.Seconds())))
	}

	log := s.logger.WithFields(map[string]interface{}{
		"user_id":  in.UserID,
		"filename": in.Filename,
		"bytes":    len(in.Image),
	})

	hash := cache.Hash(in.Image)
	if text, ok := s.cache.Get(ctx, hash); ok {
		outcome = OutcomeCached
		log.Debug("Serving analysis from cache")
		return &AnalysisResult{
			Analysis: text,
			Report:   analyzer.Parse(text),
			Cached:   true,
			Quota:    s.peekQuota(ctx, in.UserID),
		}, nil
	}

	quota, consumed, err := s.gate(ctx, in.UserID)
	if err != nil {
		switch {
		case errors.HasCode(err, errors.ErrCodeQuotaExceeded):
			outcome = OutcomeQuotaExceeded
		case errors.HasCode(err, errors.ErrCodeNoActiveSubscription):
			outcome = OutcomeNoSubscription
		default:
			outcome = OutcomeLedgerError
		}
		return nil, err
	}

	inv, err := s.invoke(ctx, in)
	if err != nil {
		outcome = OutcomeModelUnavailable
		if consumed {
			s.release(ctx, in.UserID)
		}
		log.ErrorWithErr(err, "All model attempts failed")
		return nil, errors.ModelUnavailable(err)
	}

	result := &AnalysisResult{
		Model:    inv.model,
		Attempts: inv.attempts,
		Quota:    quota,
	}

	switch {
	case inv.refused:
		if salvaged, ok := s.salvage(inv.refusals); ok {
			outcome = OutcomeSalvaged
			log.Warn("Model refused; returning content recovered before the refusal")
			result.Analysis = salvaged
			result.Report = analyzer.Parse(salvaged)
		} else {
			outcome = OutcomeFallback
			log.Warn("Model refused on every attempt; returning fallback analysis")
			// Generic guidance is not billed.
			if consumed {
				s.release(ctx, in.UserID)
				result.Quota = s.peekQuota(ctx, in.UserID)
			}
			result.Analysis = analyzer.FallbackAnalysis()
			result.Report = analyzer.FallbackReport()
		}
		return result, nil
	}

	normalized := analyzer.Normalize(inv.text)
	if analyzer.IsLowQuality(normalized) {
		outcome = OutcomeLowQuality
		return nil, errors.ImageQualityTooLow()
	}

	s.cache.Put(ctx, hash, normalized)

	result.Analysis = normalized
	result.Report = analyzer.Parse(normalized)
	return result, nil
}

// gate consumes one unit for identified callers. consumed reports whether a
// unit was actually taken, which is false for anonymous callers and when the
// ledger failed open.
func (s *AnalysisService) gate(ctx context.Context, userID string) (*subscription.QuotaStatus, bool, error) {
	if userID == "" {
		return nil, false, nil
	}

	status, err := s.ledger.CheckAndConsume(ctx, userID)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNoActiveSubscription) {
			return nil, false, err
		}
		if s.cfg.QuotaFailOpen {
			metrics.RecordQuotaFailOpen()
			s.logger.WithFields(map[string]interface{}{"user_id": userID}).
				WarnWithErr(err, "Quota ledger unavailable, continuing without metering")
			return nil, false, nil
		}
		if errors.HasCode(err, errors.ErrCodeLedgerUnavailable) {
			return nil, false, err
		}
		return nil, false, errors.LedgerUnavailable(err)
	}

	if !status.Allowed {
		return status, false, errors.QuotaExceeded(status)
	}
	return status, true, nil
}

// release returns a consumed unit even if the request context is already done
func (s *AnalysisService) release(ctx context.Context, userID string) {
	if err := s.ledger.Release(context.WithoutCancel(ctx), userID); err != nil {
		s.logger.WithFields(map[string]interface{}{"user_id": userID}).ErrorWithErr(err, "Failed to release quota unit")
	}
}

func (s *AnalysisService) peekQuota(ctx context.Context, userID string) *subscription.QuotaStatus {
	if userID == "" {
		return nil
	}
	status, err := s.ledger.PeekQuota(ctx, userID)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{"user_id": userID}).Debug("Quota lookup for cached response failed")
		return nil
	}
	return status
}

type invocation struct {
	text     string
	model    string
	attempts int
	refused  bool
	refusals []string
}

// invoke walks the model chain. Errors and empty answers are absorbed; a
// refusal moves on to the next model. It fails only when no attempt produced
// any text at all.
func (s *AnalysisService) invoke(ctx context.Context, in AnalyzeInput) (*invocation, error) {
	inv := &invocation{}
	var lastErr error

	for i := 0; i < s.cfg.MaxAttempts; i++ {
		step := s.chain[min(i, len(s.chain)-1)]

		if i > 0 {
			if err := s.sleep(ctx, s.cfg.BackoffBase*time.Duration(i)); err != nil {
				lastErr = err
				break
			}
		}

		inv.attempts = i + 1
		inv.model = step.Name()
		log := s.logger.WithFields(map[string]interface{}{
			"attempt": i + 1,
			"model":   step.Name(),
		})

		text, err := step.Client.Describe(ctx, integrations.VisionRequest{
			Model:    step.Model,
			Prompt:   analyzer.Prompt(step.Prompt),
			Image:    in.Image,
			MIMEType: in.MIMEType,
		})
		if err != nil {
			metrics.RecordModelAttempt(step.Name(), "error")
			log.WarnWithErr(err, "Model attempt failed")
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) == "" {
			metrics.RecordModelAttempt(step.Name(), "empty")
			lastErr = integrations.ErrEmptyResponse
			continue
		}
		if s.detector.IsRefusal(text) {
			metrics.RecordModelAttempt(step.Name(), "refused")
			log.Warn("Model refused the image")
			inv.refusals = append(inv.refusals, text)
			continue
		}

		metrics.RecordModelAttempt(step.Name(), "ok")
		inv.text = text
		inv.refused = false
		return inv, nil
	}

	if len(inv.refusals) > 0 {
		inv.refused = true
		return inv, nil
	}
	if lastErr == nil {
		lastErr = integrations.ErrEmptyResponse
	}
	return nil, lastErr
}

// salvage tries the most recent refused answer first
func (s *AnalysisService) salvage(refusals []string) (string, bool) {
	for i := len(refusals) - 1; i >= 0; i-- {
		if text, ok := analyzer.Salvage(refusals[i], s.detector); ok {
			return text, true
		}
	}
	return "", false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
