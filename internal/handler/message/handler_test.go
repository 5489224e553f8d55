package message

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mindcare-ai/mindcare/backend/internal/analysis/risk"
	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
	chatservice "github.com/mindcare-ai/mindcare/backend/internal/service/chat"
	"github.com/mindcare-ai/mindcare/backend/internal/service/pipeline"
	"github.com/mindcare-ai/mindcare/backend/internal/service/retry"
	"github.com/mindcare-ai/mindcare/backend/internal/service/upstream"
	"github.com/mindcare-ai/mindcare/backend/pkg/utils"
)

type classifierFunc func(ctx context.Context, text string) (string, error)

func (f classifierFunc) Classify(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

func setupRouter(t *testing.T, classifier upstream.Classifier, opts pipeline.Options) (*chi.Mux, *chatservice.Service) {
	t.Helper()
	p, err := pipeline.New(pipeline.Deps{
		Classifier: classifier,
		Invoker:    retry.NewInvoker(retry.Policy{MaxRetries: 1, BaseDelay: time.Millisecond}),
	}, opts)
	if err != nil {
		t.Fatalf("pipeline.New err: %v", err)
	}
	sessions := chatservice.NewService()
	handler := New(p, sessions, nil)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, sessions
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/message", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestPostMessageReturnsReply(t *testing.T) {
	r, sessions := setupRouter(t, classifierFunc(func(context.Context, string) (string, error) {
		return `{"emotion":"happy","reply":"Great!"}`, nil
	}), pipeline.Options{IncludeSuggestion: true})

	resp := post(r, `{"text":"I passed!","sessionId":"abc"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var reply struct {
		SessionID  string   `json:"sessionId"`
		Emotion    string   `json:"emotion"`
		Risk       []string `json:"risk"`
		Reply      string   `json:"reply"`
		Suggestion *struct {
			ID string `json:"id"`
		} `json:"suggestion"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if reply.SessionID != "abc" || reply.Emotion != "happy" || reply.Reply != "Great!" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.Risk == nil {
		t.Fatal("risk must be an array, not null")
	}
	if reply.Suggestion == nil || reply.Suggestion.ID != "mood_reinforce" {
		t.Fatalf("unexpected suggestion: %+v", reply.Suggestion)
	}

	transcript, err := sessions.LoadTranscript(context.Background(), "abc")
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 2 {
		t.Fatalf("expected 2 stored turns, got %d", len(transcript))
	}
}

func TestPostMessageRiskIsEmptyArray(t *testing.T) {
	r, _ := setupRouter(t, classifierFunc(func(context.Context, string) (string, error) {
		return "just prose", nil
	}), pipeline.Options{})

	resp := post(r, `{"text":"hello"}`)
	if !strings.Contains(resp.Body.String(), `"risk":[]`) {
		t.Fatalf("expected empty risk array, got %s", resp.Body.String())
	}
}

func TestPostMessageMissingText(t *testing.T) {
	r, _ := setupRouter(t, classifierFunc(func(context.Context, string) (string, error) {
		t.Fatal("upstream must not be called")
		return "", nil
	}), pipeline.Options{})

	for _, body := range []string{`{}`, `{"text":"   "}`, `not json`} {
		resp := post(r, body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, resp.Code)
		}
	}
}

func TestPostMessageEscalates(t *testing.T) {
	r, _ := setupRouter(t, classifierFunc(func(context.Context, string) (string, error) {
		return `{"emotion":"happy","reply":"Sounds fun!"}`, nil
	}), pipeline.Options{})

	resp := post(r, `{"text":"I WANT TO DIE!!"}`)
	var reply wellbeing.Reply
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if reply.Reply != risk.DefaultEscalationMessage {
		t.Fatalf("expected escalation message, got %q", reply.Reply)
	}
}

func TestPostMessageDegradedIs200(t *testing.T) {
	r, _ := setupRouter(t, classifierFunc(func(context.Context, string) (string, error) {
		return "", &upstream.UpstreamError{StatusCode: http.StatusInternalServerError}
	}), pipeline.Options{})

	resp := post(r, `{"text":"hello"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), pipeline.DegradedReply) {
		t.Fatalf("expected degraded reply, got %s", resp.Body.String())
	}
}

func TestPostMessageSurfacesUpstreamError(t *testing.T) {
	r, _ := setupRouter(t, classifierFunc(func(context.Context, string) (string, error) {
		return "", &upstream.UpstreamError{StatusCode: http.StatusInternalServerError}
	}), pipeline.Options{SurfaceUpstreamErrors: true})

	resp := post(r, `{"text":"hello"}`)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
	var body utils.ErrorBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if body.Error == "" || body.Details == "" {
		t.Fatalf("expected error and details, got %+v", body)
	}
}
