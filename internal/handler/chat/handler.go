package chat

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jobmate/backend/internal/model/profile"
	chatService "github.com/jobmate/backend/internal/service/chat"
	"github.com/jobmate/backend/internal/storage"
	"github.com/jobmate/backend/pkg/utils"
)

// Handler 会话与聊天记录的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
	store   storage.ChatStore
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, store storage.ChatStore) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		store:   store,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Delete("/session/{sessionID}", h.handleEndSession)
	r.Get("/session/{sessionID}/window", h.handleWindow)
	r.Get("/chats", h.handleListChats)
	r.Delete("/chats/{id}", h.handleDeleteChat)
}

// handleCreateSession 创建会话，profile 可选
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Profile *profile.Profile `json:"profile"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.Profile)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleEndSession 结束会话并丢弃窗口
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWindow 返回当前会话窗口
func (h *Handler) handleWindow(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.chatSvc.Window(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	state, _ := h.chatSvc.State(sessionID)

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"state":     state.String(),
		"turns":     turns,
	})
}

// handleListChats 列出聊天记录，target 默认为 all_chats
func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("target")
	if raw == "" {
		raw = string(storage.TargetAll)
	}
	target, err := storage.ParseTarget(raw)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	list := h.store.ListAll
	if target == storage.TargetRecent {
		list = h.store.ListRecent
	}
	records, err := list(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load chats")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"target":  target,
		"records": records,
	})
}

// handleDeleteChat 删除指定表中的一条记录
func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	target, err := storage.ParseTarget(r.URL.Query().Get("target"))
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	found, err := h.store.Delete(r.Context(), id, target)
	if err != nil {
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"target": target,
		"found":  found,
	})
}
