package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mindcare-ai/mindcare/backend/internal/analysis/emotion"
	"github.com/mindcare-ai/mindcare/backend/internal/analysis/risk"
	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
	"github.com/mindcare-ai/mindcare/backend/internal/service/retry"
	"github.com/mindcare-ai/mindcare/backend/internal/service/telemetry"
	"github.com/mindcare-ai/mindcare/backend/internal/service/upstream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubClassifier struct {
	calls atomic.Int32
	fn    func(ctx context.Context, text string) (string, error)
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (string, error) {
	s.calls.Add(1)
	return s.fn(ctx, text)
}

func replying(raw string) *stubClassifier {
	return &stubClassifier{fn: func(context.Context, string) (string, error) { return raw, nil }}
}

func failing(status int) *stubClassifier {
	return &stubClassifier{fn: func(context.Context, string) (string, error) {
		return "", &upstream.UpstreamError{StatusCode: status, Body: "boom"}
	}}
}

func fastInvoker(maxRetries int) *retry.Invoker {
	return retry.NewInvoker(retry.Policy{MaxRetries: maxRetries, BaseDelay: time.Millisecond})
}

func newPipeline(t *testing.T, classifier upstream.Classifier, opts Options) *Pipeline {
	t.Helper()
	p, err := New(Deps{Classifier: classifier, Invoker: fastInvoker(3)}, opts)
	require.NoError(t, err)
	return p
}

func TestHandleRejectsEmptyText(t *testing.T) {
	classifier := replying(`{"emotion":"happy","reply":"hi"}`)
	p := newPipeline(t, classifier, Options{})

	for _, text := range []string{"", "   \n\t"} {
		_, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: text})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "text", vErr.Field)
	}
	assert.Zero(t, classifier.calls.Load(), "validation failures must not reach the upstream")
}

func TestHandlePassesValidJSONThrough(t *testing.T) {
	p := newPipeline(t, replying(`{"emotion":"happy","reply":"Great!"}`), Options{})

	reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "I passed my exam", SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", reply.SessionID)
	assert.Equal(t, emotion.Happy, reply.Emotion)
	assert.Equal(t, "Great!", reply.Reply)
	assert.NotNil(t, reply.Risk)
	assert.Empty(t, reply.Risk)
	assert.False(t, reply.Degraded)
	assert.False(t, reply.Escalated)
	assert.Nil(t, reply.Suggestion)
}

func TestHandleProseUsesHeuristic(t *testing.T) {
	p := newPipeline(t, replying("  I think you're stressed today  "), Options{})

	reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "work is a lot"})
	require.NoError(t, err)
	assert.Equal(t, emotion.Stressed, reply.Emotion)
	assert.Equal(t, "I think you're stressed today", reply.Reply)
	assert.NotEmpty(t, reply.SessionID, "a session id is assigned when none is supplied")
}

func TestHandleEscalatesRegardlessOfUpstream(t *testing.T) {
	texts := []string{"I want to die", "i WANT to DIE!!!", "honestly... i want to die 😞", "I'm going to kill myself."}
	upstreams := map[string]*stubClassifier{
		"happy json": replying(`{"emotion":"happy","risk":["harassment"],"reply":"Great!"}`),
		"prose":      replying("sounds like a fun day"),
		"outage":     failing(500),
	}

	for name, classifier := range upstreams {
		p := newPipeline(t, classifier, Options{IncludeSuggestion: true})
		for _, text := range texts {
			reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: text})
			require.NoError(t, err, name)
			assert.Equal(t, risk.DefaultEscalationMessage, reply.Reply, "%s: %q", name, text)
			assert.True(t, reply.Escalated, name)
			assert.True(t, reply.Risk.Contains(risk.Tag), name)
			require.NotNil(t, reply.Suggestion, name)
		}
	}
}

func TestHandleEscalationKeepsUpstreamRisk(t *testing.T) {
	p := newPipeline(t, replying(`{"emotion":"depressed","risk":["harassment","self-harm"],"reply":"..."}`), Options{})

	reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "there is no reason to live"})
	require.NoError(t, err)
	assert.Equal(t, wellbeing.RiskSet{"harassment", "self-harm"}, reply.Risk)
	assert.Equal(t, emotion.Depressed, reply.Emotion)
}

func TestHandleCustomEscalationMessage(t *testing.T) {
	p, err := New(Deps{
		Classifier: replying(`{"emotion":"sad","reply":"ok"}`),
		Invoker:    fastInvoker(0),
		Matcher:    risk.NewMatcher(nil, "Please call your local helpline."),
	}, Options{})
	require.NoError(t, err)

	reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "I can't go on"})
	require.NoError(t, err)
	assert.Equal(t, "Please call your local helpline.", reply.Reply)
}

func TestHandleDegradesAfterPersistentFailure(t *testing.T) {
	classifier := failing(500)
	p := newPipeline(t, classifier, Options{IncludeSuggestion: true})

	reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, emotion.Neutral, reply.Emotion)
	assert.Equal(t, DegradedReply, reply.Reply)
	assert.NotNil(t, reply.Risk)
	assert.Empty(t, reply.Risk)
	assert.True(t, reply.Degraded)
	require.NotNil(t, reply.Suggestion)
	assert.Equal(t, "focus_reflection", reply.Suggestion.ID)
	assert.EqualValues(t, 4, classifier.calls.Load(), "1 initial call + 3 retries")
}

func TestHandleRecoversOnRetry(t *testing.T) {
	var n atomic.Int32
	classifier := &stubClassifier{fn: func(context.Context, string) (string, error) {
		if n.Add(1) < 3 {
			return "", &upstream.UpstreamError{StatusCode: 503}
		}
		return `{"emotion":"anxious","reply":"Let's breathe together."}`, nil
	}}
	p := newPipeline(t, classifier, Options{})

	reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "my heart is racing"})
	require.NoError(t, err)
	assert.Equal(t, emotion.Anxious, reply.Emotion)
	assert.False(t, reply.Degraded)
	assert.EqualValues(t, 3, classifier.calls.Load())
}

func TestHandleSurfacesUpstreamErrorsWhenConfigured(t *testing.T) {
	p := newPipeline(t, failing(502), Options{SurfaceUpstreamErrors: true})

	_, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))

	var unavailable *UpstreamUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 4, unavailable.Attempts)

	var upErr *upstream.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 502, upErr.StatusCode)
}

func TestHandleSurfacingNeverHidesEscalation(t *testing.T) {
	p := newPipeline(t, failing(500), Options{SurfaceUpstreamErrors: true})

	reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "I want to end it"})
	require.NoError(t, err)
	assert.Equal(t, risk.DefaultEscalationMessage, reply.Reply)
	assert.True(t, reply.Degraded)
}

func TestHandleAbandonsRetriesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	classifier := &stubClassifier{fn: func(context.Context, string) (string, error) {
		cancel()
		return "", errors.New("connection reset")
	}}
	p, err := New(Deps{
		Classifier: classifier,
		Invoker:    retry.NewInvoker(retry.Policy{MaxRetries: 3, BaseDelay: time.Hour}),
	}, Options{})
	require.NoError(t, err)

	done := make(chan wellbeing.Reply, 1)
	go func() {
		reply, _ := p.Handle(ctx, wellbeing.InboundMessage{Text: "hello"})
		done <- reply
	}()

	select {
	case reply := <-done:
		assert.True(t, reply.Degraded)
		assert.EqualValues(t, 1, classifier.calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("Handle did not return after cancellation")
	}
}

func TestHandleAlwaysReturnsClosedLabel(t *testing.T) {
	outputs := []string{
		`{"emotion":"ecstatic","reply":"wow"}`,
		`{"emotion":42}`,
		`[1,2,3]`,
		``,
		"```json\n{\"emotion\":\"sad\"}\n```",
		`{"risk":"bullying"}`,
	}
	for _, raw := range outputs {
		p := newPipeline(t, replying(raw), Options{IncludeSuggestion: true})
		reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "some text"})
		require.NoError(t, err, raw)
		assert.True(t, reply.Emotion.Valid(), "%q produced %q", raw, reply.Emotion)
		assert.NotNil(t, reply.Risk, raw)
		assert.NotEmpty(t, reply.Reply, raw)
		require.NotNil(t, reply.Suggestion, raw)
		assert.Positive(t, reply.Suggestion.DurationSeconds, raw)
	}
}

func TestHandleConcurrentRequests(t *testing.T) {
	p := newPipeline(t, replying(`{"emotion":"neutral","reply":"ok"}`), Options{IncludeSuggestion: true})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, err := p.Handle(context.Background(), wellbeing.InboundMessage{Text: "hi"})
			assert.NoError(t, err)
			assert.Equal(t, "ok", reply.Reply)
		}()
	}
	wg.Wait()
}

func TestHandleRecordsAnonymousTelemetry(t *testing.T) {
	sink, err := telemetry.NewSQLiteSink(filepath.Join(t.TempDir(), "events.db"), nil)
	require.NoError(t, err)
	defer sink.Close()

	anon := telemetry.NewAnonymizer("test-salt")
	p, err := New(Deps{
		Classifier: replying(`{"emotion":"sad","risk":["bullying"],"reply":"I'm sorry."}`),
		Invoker:    fastInvoker(3),
		Recorder:   telemetry.NewRecorder(sink, anon, nil),
	}, Options{})
	require.NoError(t, err)

	_, err = p.Handle(context.Background(), wellbeing.InboundMessage{Text: "they keep picking on me", SessionID: "session-42"})
	require.NoError(t, err)

	events, err := sink.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "sad", events[0].Emotion)
	assert.Equal(t, []string{"bullying"}, events[0].Risk)
	assert.Equal(t, anon.Hash("session-42"), events[0].SessionHash)
	assert.Equal(t, 1, events[0].Attempts)
	assert.False(t, events[0].Escalated)
}

func TestNewRequiresClassifier(t *testing.T) {
	_, err := New(Deps{}, Options{})
	assert.Error(t, err)
}
