// Package pipeline orchestrates one inbound message: local risk check,
// upstream classification with retries, contract parsing, safety override
// and activity suggestion.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare-ai/mindcare/backend/internal/analysis/emotion"
	"github.com/mindcare-ai/mindcare/backend/internal/analysis/risk"
	"github.com/mindcare-ai/mindcare/backend/internal/model/activity"
	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
	"github.com/mindcare-ai/mindcare/backend/internal/service/contract"
	"github.com/mindcare-ai/mindcare/backend/internal/service/retry"
	"github.com/mindcare-ai/mindcare/backend/internal/service/telemetry"
	"github.com/mindcare-ai/mindcare/backend/internal/service/upstream"
)

// DegradedReply is returned when the upstream classifier stays unavailable.
const DegradedReply = "I'm having trouble understanding right now, but I'm here with you. Could you tell me a bit more?"

// Options toggles deployment-level behaviour.
type Options struct {
	IncludeSuggestion     bool
	SurfaceUpstreamErrors bool
}

// Deps groups the collaborators of a Pipeline. Classifier and Invoker are
// required; the rest default to the package defaults.
type Deps struct {
	Classifier upstream.Classifier
	Invoker    *retry.Invoker
	Matcher    *risk.Matcher
	Suggester  activity.Suggester
	Recorder   *telemetry.Recorder
	Logger     *logger.Logger
}

// Pipeline is immutable after New and safe for concurrent use.
type Pipeline struct {
	classifier upstream.Classifier
	invoker    *retry.Invoker
	matcher    *risk.Matcher
	suggester  activity.Suggester
	recorder   *telemetry.Recorder
	log        *logger.Logger
	opts       Options
	now        func() time.Time
}

// New wires a Pipeline.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Classifier == nil {
		return nil, errors.New("pipeline: classifier is required")
	}
	if deps.Invoker == nil {
		deps.Invoker = retry.NewInvoker(retry.Policy{MaxRetries: retry.DefaultMaxRetries})
	}
	if deps.Matcher == nil {
		deps.Matcher = risk.NewMatcher(nil, "")
	}
	if deps.Suggester == nil {
		deps.Suggester = activity.NewCatalog(activity.Seed())
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}

	return &Pipeline{
		classifier: deps.Classifier,
		invoker:    deps.Invoker,
		matcher:    deps.Matcher,
		suggester:  deps.Suggester,
		recorder:   deps.Recorder,
		log:        deps.Logger.With("component", "pipeline"),
		opts:       opts,
		now:        time.Now,
	}, nil
}

// Handle runs one message through the pipeline. The only errors returned are
// *ValidationError and, when SurfaceUpstreamErrors is set,
// *UpstreamUnavailableError.
func (p *Pipeline) Handle(ctx context.Context, msg wellbeing.InboundMessage) (wellbeing.Reply, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return wellbeing.Reply{}, &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	sessionID := strings.TrimSpace(msg.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	started := p.now()
	signal := p.matcher.Detect(msg.Text)

	attempts := 0
	raw, err := retry.Invoke(ctx, p.invoker, func(ctx context.Context) (string, error) {
		attempts++
		return p.classifier.Classify(ctx, text)
	})

	var result wellbeing.ClassificationResult
	degraded := false
	if err != nil {
		p.log.Warn("upstream classification failed",
			"session", sessionID,
			"attempts", attempts,
			"error", err,
		)
		if p.opts.SurfaceUpstreamErrors && !signal.IsHighRisk {
			p.record(ctx, sessionID, wellbeing.ClassificationResult{Emotion: emotion.Neutral}, false, true, attempts, started)
			return wellbeing.Reply{}, &UpstreamUnavailableError{Attempts: attempts, Err: err}
		}
		degraded = true
		result = wellbeing.ClassificationResult{
			Emotion: emotion.Neutral,
			Risk:    wellbeing.NewRiskSet(),
			Reply:   DegradedReply,
		}
	} else {
		result = contract.Parse(raw)
	}

	reply := wellbeing.Reply{
		SessionID: sessionID,
		Emotion:   result.Emotion,
		Risk:      result.Risk,
		Reply:     result.Reply,
		Degraded:  degraded,
	}
	if !reply.Emotion.Valid() {
		reply.Emotion = emotion.Neutral
	}
	if reply.Risk == nil {
		reply.Risk = wellbeing.NewRiskSet()
	}

	if signal.IsHighRisk {
		reply.Risk = reply.Risk.Union(risk.Tag)
		reply.Reply = signal.EscalationMessage
		reply.Escalated = true
		p.log.Warn("high-risk phrase detected, escalating",
			"session", sessionID,
			"phrase", signal.MatchedPhrase,
		)
	}

	if p.opts.IncludeSuggestion {
		suggestion := p.suggester.Suggest(reply.Emotion)
		reply.Suggestion = &suggestion
	}

	p.record(ctx, sessionID, wellbeing.ClassificationResult{Emotion: reply.Emotion, Risk: reply.Risk}, reply.Escalated, degraded, attempts, started)

	p.log.Debug("message handled",
		"session", sessionID,
		"emotion", reply.Emotion,
		"risk", []string(reply.Risk),
		"attempts", attempts,
		"degraded", degraded,
		"escalated", reply.Escalated,
	)
	return reply, nil
}

func (p *Pipeline) record(ctx context.Context, sessionID string, result wellbeing.ClassificationResult, escalated, degraded bool, attempts int, started time.Time) {
	if p.recorder == nil {
		return
	}
	p.recorder.Record(ctx, sessionID, telemetry.Event{
		Emotion:   result.Emotion.String(),
		Risk:      []string(result.Risk),
		Escalated: escalated,
		Degraded:  degraded,
		Attempts:  attempts,
		LatencyMs: p.now().Sub(started).Milliseconds(),
	})
}
