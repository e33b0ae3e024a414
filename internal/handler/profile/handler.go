package profile

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jobmate/backend/internal/model/profile"
	"github.com/jobmate/backend/pkg/utils"
)

// Handler 入职表单相关的HTTP处理器
type Handler struct{}

// New 创建profile处理器
func New() *Handler {
	return &Handler{}
}

// RegisterRoutes 注册profile相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile/levels", h.handleListLevels)
	r.Post("/profile/validate", h.handleValidate)
}

type levelOption struct {
	Value profile.ExperienceLevel `json:"value"`
	Label string                  `json:"label"`
}

// handleListLevels 列出表单可选的经验级别
func (h *Handler) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels := profile.Levels()
	options := make([]levelOption, 0, len(levels))
	for _, l := range levels {
		options = append(options, levelOption{Value: l, Label: l.Label()})
	}
	utils.RespondJSON(w, http.StatusOK, options)
}

// handleValidate 校验并规范化表单内容
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	normalized, err := p.Normalize()
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, normalized)
}
