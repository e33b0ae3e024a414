package feeds

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jobmate/backend/internal/model/feed"
	chatService "github.com/jobmate/backend/internal/service/chat"
	feedService "github.com/jobmate/backend/internal/service/feeds"
	"github.com/jobmate/backend/internal/storage"
	"github.com/jobmate/backend/pkg/utils"
)

// Catalog 本地职位与资讯目录
type Catalog interface {
	ListJobs(ctx context.Context, f storage.JobFilter) ([]feed.Job, error)
	ListArticles(ctx context.Context, skip, take int) ([]feed.Article, error)
	DeleteJob(ctx context.Context, id int64) (bool, error)
	DeleteArticle(ctx context.Context, id int64) (bool, error)
}

// Handler 职位与资讯的HTTP处理器
type Handler struct {
	catalog Catalog
	chatSvc *chatService.Service
}

// New 创建feeds处理器
func New(catalog Catalog, chatSvc *chatService.Service) *Handler {
	return &Handler{catalog: catalog, chatSvc: chatSvc}
}

// RegisterRoutes 注册职位与资讯路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/jobs", h.handleListJobs)
	r.Delete("/jobs/{id}", h.handleDeleteJob)
	r.Get("/news", h.handleListNews)
	r.Delete("/news/{id}", h.handleDeleteArticle)
	r.Get("/session/{sessionID}/jobs", h.handleRecommend)
}

// handleListJobs 按关键字和地点列出职位
func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jobs, err := h.catalog.ListJobs(r.Context(), storage.JobFilter{
		Keyword:  q.Get("keyword"),
		Location: q.Get("location"),
		Skip:     queryInt(r, "skip"),
		Take:     queryInt(r, "take"),
	})
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load jobs")
		return
	}
	utils.RespondJSON(w, http.StatusOK, jobs)
}

// handleListNews 按发布时间倒序列出资讯
func (h *Handler) handleListNews(w http.ResponseWriter, r *http.Request) {
	articles, err := h.catalog.ListArticles(r.Context(), queryInt(r, "skip"), queryInt(r, "take"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load news")
		return
	}
	utils.RespondJSON(w, http.StatusOK, articles)
}

// handleRecommend 根据会话的入职信息推荐职位
func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	if session.Profile == nil {
		utils.RespondJSON(w, http.StatusOK, []feed.Job{})
		return
	}

	jobs, err := feedService.Recommend(r.Context(), h.catalog, *session.Profile, queryInt(r, "take"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load jobs")
		return
	}
	utils.RespondJSON(w, http.StatusOK, jobs)
}

func (h *Handler) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	h.handleDelete(w, r, h.catalog.DeleteJob)
}

func (h *Handler) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	h.handleDelete(w, r, h.catalog.DeleteArticle)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, del func(context.Context, int64) (bool, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	found, err := del(r.Context(), id)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"id": id, "found": found})
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
