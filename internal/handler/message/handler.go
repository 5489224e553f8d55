package message

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
	chatService "github.com/mindcare-ai/mindcare/backend/internal/service/chat"
	"github.com/mindcare-ai/mindcare/backend/internal/service/pipeline"
	"github.com/mindcare-ai/mindcare/backend/pkg/utils"
)

const maxBodyBytes = 64 << 10

// Pipeline 是消息处理流水线的最小接口。
type Pipeline interface {
	Handle(ctx context.Context, msg wellbeing.InboundMessage) (wellbeing.Reply, error)
}

// Handler 处理 POST /api/message，并把往返消息写入会话记录。
type Handler struct {
	pipeline Pipeline
	sessions *chatService.Service
	log      *logger.Logger
}

// New 创建消息处理器。sessions 为 nil 时不记录会话。
func New(p Pipeline, sessions *chatService.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		pipeline: p,
		sessions: sessions,
		log:      log.With("component", "handler.message"),
	}
}

// RegisterRoutes 注册消息路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/message", h.handleMessage)
}

// Process resolves the session, runs the pipeline and stores the exchange.
// Shared by the HTTP and websocket transports.
func (h *Handler) Process(ctx context.Context, in wellbeing.InboundMessage) (wellbeing.Reply, error) {
	if strings.TrimSpace(in.Text) == "" {
		return wellbeing.Reply{}, &pipeline.ValidationError{Field: "text", Reason: "must not be empty"}
	}

	if h.sessions != nil {
		session, err := h.sessions.EnsureSession(ctx, in.SessionID)
		if err != nil {
			return wellbeing.Reply{}, &pipeline.ValidationError{Field: "sessionId", Reason: err.Error()}
		}
		in.SessionID = session.ID
	}

	reply, err := h.pipeline.Handle(ctx, in)
	if err != nil {
		return wellbeing.Reply{}, err
	}

	if h.sessions != nil {
		if err := h.sessions.RecordExchange(ctx, in.Text, reply); err != nil {
			h.log.Warn("failed to record exchange", "session", reply.SessionID, "error", err)
		}
	}
	return reply, nil
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload wellbeing.InboundMessage
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.Process(r.Context(), payload)
	if err != nil {
		status, body := ErrorResponse(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("message handling failed", "error", err)
		}
		utils.RespondJSON(w, status, body)
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

// ErrorResponse maps pipeline errors to an HTTP status and error body.
func ErrorResponse(err error) (int, utils.ErrorBody) {
	var vErr *pipeline.ValidationError
	switch {
	case errors.As(err, &vErr):
		if vErr.Field == "text" {
			return http.StatusBadRequest, utils.ErrorBody{Error: "text is required"}
		}
		return http.StatusBadRequest, utils.ErrorBody{Error: "invalid " + vErr.Field, Details: vErr.Reason}
	case errors.Is(err, pipeline.ErrUpstreamUnavailable):
		return http.StatusBadGateway, utils.ErrorBody{Error: "upstream classifier unavailable", Details: err.Error()}
	case errors.Is(err, context.Canceled):
		return 499, utils.ErrorBody{Error: "request cancelled"}
	default:
		return http.StatusInternalServerError, utils.ErrorBody{Error: "internal error"}
	}
}
