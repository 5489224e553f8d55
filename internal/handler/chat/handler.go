package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/mindcare-ai/mindcare/backend/internal/service/chat"
	"github.com/mindcare-ai/mindcare/backend/pkg/utils"
)

// Handler 会话服务的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建会话处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册会话相关的路由。
// 消息记录只对服务端签发的会话 ID 开放，客户端自定义的 ID 一律返回 404。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/{sessionID}/messages", h.handleTranscript)
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleTranscript 返回会话的消息记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.chatSvc.LoadIssuedTranscript(r.Context(), sessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  messages,
	})
}
