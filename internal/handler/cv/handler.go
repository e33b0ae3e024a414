package cv

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	cvService "github.com/jobmate/backend/internal/service/cv"
	"github.com/jobmate/backend/pkg/utils"
)

const maxUploadBytes = 10 << 20

// Evaluator 简历评估服务
type Evaluator interface {
	Evaluate(ctx context.Context, document []byte) (cvService.Report, error)
}

// Handler 简历上传与评估处理器
type Handler struct {
	evaluator Evaluator
	log       zerolog.Logger
}

// New 创建简历处理器
func New(evaluator Evaluator, logger zerolog.Logger) *Handler {
	return &Handler{evaluator: evaluator, log: logger}
}

// RegisterRoutes 注册简历相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/cv", h.handleEvaluate)
}

// handleEvaluate 接收 multipart 表单中的 file 字段并返回评估报告
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	document, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	report, err := h.evaluator.Evaluate(r.Context(), document)
	if err != nil {
		h.log.Warn().Err(err).Str("file", header.Filename).Msg("cv evaluation failed")
		utils.RespondAppError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, report)
}
