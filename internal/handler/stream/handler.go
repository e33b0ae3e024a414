package stream

import (
	"errors"
	"iter"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	chatService "github.com/jobmate/backend/internal/service/chat"
	"github.com/jobmate/backend/pkg/utils"
)

// Handler 通过 Server-Sent Events 推送助手回复
type Handler struct {
	chatSvc *chatService.Service
	log     zerolog.Logger
}

// New 创建流式处理器
func New(chatSvc *chatService.Service, logger zerolog.Logger) *Handler {
	return &Handler{chatSvc: chatSvc, log: logger}
}

// StreamResponse SSE 事件负载
type StreamResponse struct {
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	RecordID  int64  `json:"recordId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

// handleStream 提交用户消息并逐段推送回复
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	message := r.URL.Query().Get("message")
	if strings.TrimSpace(message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	next, stop := iter.Pull(h.chatSvc.Submit(r.Context(), sessionID, message))
	defer stop()

	// 会话不存在或正忙时仍可返回普通的 JSON 错误
	first, ok := next()
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "empty reply")
		return
	}
	if first.Final && first.Err != nil {
		if status, rejected := rejectionStatus(first.Err); rejected {
			utils.RespondError(w, status, first.Err.Error())
			return
		}
	}

	utils.SetupSSEHeaders(w)
	log := h.log.With().Str("session", sessionID).Logger()

	if err := utils.SendSSEEvent(w, flusher, "start", StreamResponse{SessionID: sessionID}); err != nil {
		return
	}

	var reply strings.Builder
	for frag := first; ; {
		if frag.Text != "" && frag.Err == nil {
			reply.WriteString(frag.Text)
			if err := utils.SendSSEEvent(w, flusher, "delta", StreamResponse{Content: frag.Text}); err != nil {
				log.Debug().Err(err).Msg("client went away")
				return
			}
		}
		if frag.Final {
			h.finish(w, flusher, sessionID, reply.String(), frag)
			return
		}
		if frag, ok = next(); !ok {
			return
		}
	}
}

func (h *Handler) finish(w http.ResponseWriter, flusher http.Flusher, sessionID, reply string, frag chatService.Fragment) {
	if frag.Err != nil {
		h.log.Warn().Err(frag.Err).Str("session", sessionID).Msg("reply incomplete")
		if err := utils.SendSSEEvent(w, flusher, "error", StreamResponse{
			SessionID: sessionID,
			Error:     chatService.ErrorNotice,
		}); err != nil {
			return
		}
	}

	if err := utils.SendSSEEvent(w, flusher, "message", StreamResponse{
		SessionID: sessionID,
		Content:   reply,
		RecordID:  frag.RecordID,
	}); err != nil {
		return
	}

	_ = utils.SendSSEEvent(w, flusher, "end", StreamResponse{
		SessionID: sessionID,
		RecordID:  frag.RecordID,
		Finished:  true,
	})
}

func rejectionStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, chatService.ErrSessionBusy):
		return http.StatusConflict, true
	case errors.Is(err, chatService.ErrEmptyMessage):
		return http.StatusBadRequest, true
	default:
		return 0, false
	}
}
