package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/interview-room/backend/internal/handler/room"
	vacancyHandler "github.com/zhouzirui/interview-room/backend/internal/handler/vacancy"
	"github.com/zhouzirui/interview-room/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/interview-room/backend/internal/middleware"
	"github.com/zhouzirui/interview-room/backend/internal/observability"
	"github.com/zhouzirui/interview-room/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. vacancies may be nil when
// vacancies come from a remote service that cannot be listed.
func NewRouter(rooms room.Rooms, vacancies vacancyHandler.Lister) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		room.New(rooms).RegisterRoutes(api)
		ws.New(rooms).RegisterRoutes(api)

		if vacancies != nil {
			vacancyHandler.New(vacancies).RegisterRoutes(api)
		}
	})

	return r
}
