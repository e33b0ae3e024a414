package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/jobmate/backend/internal/handler/chat"
	"github.com/jobmate/backend/internal/handler/cv"
	"github.com/jobmate/backend/internal/handler/feeds"
	"github.com/jobmate/backend/internal/handler/profile"
	"github.com/jobmate/backend/internal/handler/stream"
	"github.com/jobmate/backend/internal/handler/ws"
	"github.com/jobmate/backend/internal/logging"
	middlewarePkg "github.com/jobmate/backend/internal/middleware"
	"github.com/jobmate/backend/internal/observability"
	chatService "github.com/jobmate/backend/internal/service/chat"
	"github.com/jobmate/backend/internal/storage"
	"github.com/jobmate/backend/pkg/utils"
)

// Dependencies 路由所需的服务。Evaluator 与 Catalog 可为空，对应路由不注册。
type Dependencies struct {
	Chat           *chatService.Service
	Store          storage.ChatStore
	Evaluator      cv.Evaluator
	Catalog        feeds.Catalog
	Metrics        *observability.Metrics
	Logger         zerolog.Logger
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logging.Component(deps.Logger, "http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		profile.New().RegisterRoutes(api)
		chat.New(deps.Chat, deps.Store).RegisterRoutes(api)
		stream.New(deps.Chat, logging.Component(deps.Logger, "stream")).RegisterRoutes(api)
		ws.New(deps.Chat, logging.Component(deps.Logger, "ws")).RegisterRoutes(api)

		if deps.Evaluator != nil {
			cv.New(deps.Evaluator, logging.Component(deps.Logger, "cv")).RegisterRoutes(api)
		}
		if deps.Catalog != nil {
			feeds.New(deps.Catalog, deps.Chat).RegisterRoutes(api)
		}
	})

	return r
}
