package activity

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mindcare-ai/mindcare/backend/internal/model/activity"
	"github.com/mindcare-ai/mindcare/backend/pkg/utils"
)

// Handler 活动目录的HTTP处理器
type Handler struct {
	catalog *activity.Catalog
}

// New 创建活动处理器
func New(catalog *activity.Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// RegisterRoutes 注册活动相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/activities", h.handleListActivities)
}

// handleListActivities 列出所有活动
func (h *Handler) handleListActivities(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.catalog.List())
}
