package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	activityModel "github.com/mindcare-ai/mindcare/backend/internal/model/activity"
	chatService "github.com/mindcare-ai/mindcare/backend/internal/service/chat"
	"github.com/mindcare-ai/mindcare/backend/internal/service/pipeline"
)

type staticClassifier string

func (s staticClassifier) Classify(context.Context, string) (string, error) {
	return string(s), nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	p, err := pipeline.New(pipeline.Deps{Classifier: staticClassifier(`{"emotion":"sad","reply":"I'm here."}`)}, pipeline.Options{IncludeSuggestion: true})
	if err != nil {
		t.Fatalf("pipeline.New err: %v", err)
	}
	return NewRouter(Deps{
		Pipeline: p,
		Sessions: chatService.NewService(),
		Catalog:  activityModel.NewCatalog(activityModel.Seed()),
	})
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"ok"`) {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}
}

func TestMessageThenTranscript(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/message", bytes.NewReader([]byte(`{"text":"rough day"}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var reply struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil || reply.SessionID == "" {
		t.Fatalf("expected server-assigned sessionId, got %s (err %v)", resp.Body.String(), err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/"+reply.SessionID+"/messages", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "rough day") {
		t.Fatalf("expected user turn in transcript, got %s", resp.Body.String())
	}
}

func TestClientChosenSessionTranscriptNotServed(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/message", bytes.NewReader([]byte(`{"text":"rough day","sessionId":"flow-1"}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions/flow-1/messages", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestActivitiesRoute(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
