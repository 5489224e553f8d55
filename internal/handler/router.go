package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mindcare-ai/mindcare/backend/internal/handler/activity"
	"github.com/mindcare-ai/mindcare/backend/internal/handler/chat"
	"github.com/mindcare-ai/mindcare/backend/internal/handler/message"
	"github.com/mindcare-ai/mindcare/backend/internal/handler/ws"
	middlewarePkg "github.com/mindcare-ai/mindcare/backend/internal/middleware"
	activityModel "github.com/mindcare-ai/mindcare/backend/internal/model/activity"
	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
	chatService "github.com/mindcare-ai/mindcare/backend/internal/service/chat"
	"github.com/mindcare-ai/mindcare/backend/pkg/utils"
)

// Deps 路由所需的核心服务
type Deps struct {
	Pipeline       message.Pipeline
	Sessions       *chatService.Service
	Catalog        *activityModel.Catalog
	Logger         *logger.Logger
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	messageHandler := message.New(deps.Pipeline, deps.Sessions, deps.Logger)
	wsHandler := ws.New(messageHandler, deps.AllowedOrigins, deps.Logger)
	activityHandler := activity.New(deps.Catalog)
	sessionHandler := chat.New(deps.Sessions)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		messageHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		activityHandler.RegisterRoutes(api)
		sessionHandler.RegisterRoutes(api)
	})

	return r
}
