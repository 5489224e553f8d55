package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mindcare-ai/mindcare/backend/internal/handler/message"
	"github.com/mindcare-ai/mindcare/backend/internal/middleware"
	"github.com/mindcare-ai/mindcare/backend/internal/model/wellbeing"
	"github.com/mindcare-ai/mindcare/backend/internal/pkg/logger"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	maxFrameSize = 64 << 10
)

// Processor runs one inbound message end to end.
type Processor interface {
	Process(ctx context.Context, in wellbeing.InboundMessage) (wellbeing.Reply, error)
}

// Handler WebSocket消息处理器
type Handler struct {
	processor    Processor
	log          *logger.Logger
	upgrader     websocket.Upgrader
	readTimeout  time.Duration
	pingInterval time.Duration
}

// New 创建WebSocket处理器。allowedOrigins 与 CORS 中间件使用同一份白名单。
func New(processor Processor, allowedOrigins []string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		processor: processor,
		log:       log.With("component", "handler.ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     middleware.OriginChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readTimeout:  readTimeout,
		pingInterval: pingInterval,
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

type outgoingFrame struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn serialises writes; gorilla connections allow one concurrent writer.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer wsConn.Close()

	c := &conn{ws: wsConn}
	wsConn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = wsConn.SetReadDeadline(time.Now().Add(h.readTimeout))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go h.pingLoop(ctx, c)

	h.log.Debug("websocket connected", "remote", r.RemoteAddr)

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "error", err)
			}
			return
		}
		_ = wsConn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(c, "", "invalid frame", err.Error())
			continue
		}

		switch frame.Type {
		case "message", "":
			h.handleMessage(ctx, c, frame)
			// Pongs are not read while a message is processed, so a slow
			// upstream may have used up the deadline.
			_ = wsConn.SetReadDeadline(time.Now().Add(h.readTimeout))
		case "ping":
			_ = c.writeJSON(outgoingFrame{Type: "pong", Timestamp: time.Now().Unix()})
		default:
			h.sendError(c, frame.SessionID, "unsupported frame type", frame.Type)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *conn, frame inboundFrame) {
	reply, err := h.processor.Process(ctx, wellbeing.InboundMessage{Text: frame.Text, SessionID: frame.SessionID})
	if err != nil {
		_, body := message.ErrorResponse(err)
		h.sendError(c, frame.SessionID, body.Error, body.Details)
		return
	}

	if err := c.writeJSON(outgoingFrame{
		Type:      "reply",
		SessionID: reply.SessionID,
		Data:      reply,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		h.log.Warn("websocket write reply failed", "error", err)
	}
}

func (h *Handler) sendError(c *conn, sessionID, msg, details string) {
	payload := map[string]string{"error": msg}
	if details != "" {
		payload["details"] = details
	}
	if err := c.writeJSON(outgoingFrame{
		Type:      "error",
		SessionID: sessionID,
		Data:      payload,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		h.log.Warn("websocket write error failed", "error", err)
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
