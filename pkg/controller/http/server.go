package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opsmith-lab/taskmill/pkg/usecase"
)

type Server struct {
	router *chi.Mux
	uc     *usecase.UseCases
}

func New(uc *usecase.UseCases) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/tenants", s.createTenant)
		r.Post("/users", s.createUser)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.createTask)
			r.Patch("/{taskID}", s.updateTask)
			r.Delete("/{taskID}", s.deleteTask)
			r.Post("/{taskID}/share", s.shareTask)
			r.Get("/{taskID}/history", s.taskHistory)
		})

		r.Get("/users/{userID}/tasks", s.visibleTasks)
		r.Get("/tenants/{tenantID}/report", s.tenantReport)
		r.Get("/tenants/{tenantID}/statistics", s.tenantStatistics)

		r.Post("/archival/run", s.runArchival)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
