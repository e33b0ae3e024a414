package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	chatservice "github.com/jobmate/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler WebSocket 聊天处理器，每个连接上的消息按顺序处理
type Handler struct {
	chatSvc  *chatservice.Service
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		log:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Text      string          `json:"text"`
	Data      json.RawMessage `json:"data"`
}

// text 取顶层 text，缺省时读取 data.text
func (m inboundMessage) text() string {
	if strings.TrimSpace(m.Text) != "" || len(m.Data) == 0 {
		return m.Text
	}
	var body TextMessage
	if err := json.Unmarshal(m.Data, &body); err != nil {
		return ""
	}
	return body.Text
}

// TextMessage 用户文本消息
type TextMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().Str("session", sessionID).Logger()
	log.Info().Msg("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go pingLoop(ctx, conn)

	h.send(conn, log, outgoingMessage{Type: "connected", SessionID: sessionID})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(conn, log, sessionID, "session mismatch")
			continue
		}

		switch msg.Type {
		case "message":
			text := msg.text()
			if strings.TrimSpace(text) == "" {
				h.sendError(conn, log, sessionID, "text is required")
				break
			}
			if !h.relay(ctx, conn, log, sessionID, text) {
				return
			}
		case "ping":
			h.send(conn, log, outgoingMessage{Type: "pong", SessionID: sessionID})
		default:
			h.sendError(conn, log, sessionID, "unsupported message type: "+msg.Type)
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

// relay 转发一次提交的回复，写入失败时返回 false
func (h *Handler) relay(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, sessionID, text string) bool {
	for frag := range h.chatSvc.Submit(ctx, sessionID, text) {
		if frag.Text != "" && frag.Err == nil {
			if !h.send(conn, log, outgoingMessage{
				Type:      "delta",
				SessionID: sessionID,
				Data:      map[string]string{"content": frag.Text},
			}) {
				return false
			}
		}
		if !frag.Final {
			continue
		}
		if frag.Err != nil {
			message := chatservice.ErrorNotice
			if errors.Is(frag.Err, chatservice.ErrSessionBusy) || errors.Is(frag.Err, chatservice.ErrSessionNotFound) {
				message = frag.Err.Error()
			}
			if !h.sendError(conn, log, sessionID, message) {
				return false
			}
		}
		return h.send(conn, log, outgoingMessage{
			Type:      "end",
			SessionID: sessionID,
			Data:      map[string]any{"recordId": frag.RecordID},
		})
	}
	return true
}

func (h *Handler) send(conn *websocket.Conn, log zerolog.Logger, msg outgoingMessage) bool {
	msg.Timestamp = time.Now().Unix()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Str("type", msg.Type).Msg("websocket write failed")
		return false
	}
	return true
}

func (h *Handler) sendError(conn *websocket.Conn, log zerolog.Logger, sessionID, message string) bool {
	return h.send(conn, log, outgoingMessage{
		Type:      "error",
		SessionID: sessionID,
		Data:      map[string]string{"message": message},
	})
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
