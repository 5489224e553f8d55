// Package ai assembles the classification stack from configuration.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/mindcare-ai/mindcare/backend/internal/analysis/risk"
	"github.com/mindcare-ai/mindcare/backend/internal/config"
	"github.com/mindcare-ai/mindcare/backend/internal/model/activity"
	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
	"github.com/mindcare-ai/mindcare/backend/internal/service/pipeline"
	"github.com/mindcare-ai/mindcare/backend/internal/service/retry"
	"github.com/mindcare-ai/mindcare/backend/internal/service/telemetry"
	"github.com/mindcare-ai/mindcare/backend/internal/service/upstream"
)

// Service holds the long-lived collaborators of the message pipeline.
type Service struct {
	Pipeline *pipeline.Pipeline
	Matcher  *risk.Matcher
	Catalog  *activity.Catalog
	sink     telemetry.Sink
}

// NewService builds the classifier, retry policy, telemetry sink and pipeline.
func NewService(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.Nop()
	}

	classifier, err := NewClassifier(ctx, cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream classifier: %w", err)
	}
	log.Info("upstream classifier ready", "backend", cfg.Upstream.Backend)

	matcher := risk.NewMatcher(nil, cfg.Pipeline.EscalationMessage)
	catalog := activity.NewCatalog(activity.Seed())
	sink := telemetry.Open(ctx, cfg.Telemetry, log)

	p, err := pipeline.New(pipeline.Deps{
		Classifier: classifier,
		Invoker:    NewInvoker(cfg.Retry, cfg.Upstream.AttemptTimeout, log),
		Matcher:    matcher,
		Suggester:  catalog,
		Recorder:   telemetry.NewRecorder(sink, telemetry.NewAnonymizer(cfg.Telemetry.AnonymizeSalt), log),
		Logger:     log,
	}, pipeline.Options{
		IncludeSuggestion:     cfg.Pipeline.IncludeSuggestion,
		SurfaceUpstreamErrors: cfg.Pipeline.SurfaceUpstreamErrors,
	})
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	return &Service{Pipeline: p, Matcher: matcher, Catalog: catalog, sink: sink}, nil
}

// Close releases the telemetry sink.
func (s *Service) Close() error {
	if s == nil || s.sink == nil {
		return nil
	}
	return s.sink.Close()
}

// NewClassifier returns the upstream client selected by cfg.Backend.
func NewClassifier(ctx context.Context, cfg config.UpstreamConfig) (upstream.Classifier, error) {
	switch cfg.Backend {
	case config.BackendArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		return upstream.NewModelClassifier(ctx, chatModel)
	case config.BackendChatCompletions, "":
		return upstream.NewChatCompletionClient(upstream.ClientConfig{
			URL:         cfg.URL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown upstream backend %q", cfg.Backend)
	}
}

// NewInvoker converts the retry configuration into a retry.Invoker.
func NewInvoker(cfg config.RetryConfig, attemptTimeout time.Duration, log *logger.Logger) *retry.Invoker {
	if log == nil {
		log = logger.Nop()
	}
	policy := retry.Policy{
		MaxRetries:     cfg.MaxRetries,
		BaseDelay:      cfg.BaseDelay,
		MaxDelay:       cfg.MaxDelay,
		Jitter:         cfg.Jitter,
		AttemptTimeout: attemptTimeout,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Warn("retrying upstream classifier", "attempt", attempt, "delay", delay, "error", err)
		},
	}
	if !cfg.RetryClientErrors {
		policy.Retryable = func(err error) bool { return !upstream.IsClientError(err) }
	}
	return retry.NewInvoker(policy)
}
