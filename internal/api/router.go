package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/camfleet/camfleet/internal/config"
	"github.com/camfleet/camfleet/internal/database"
	"github.com/camfleet/camfleet/internal/events"
	"github.com/camfleet/camfleet/internal/logging"
	"github.com/camfleet/camfleet/internal/repository"
)

// Deps are the services the router wires handlers to.
type Deps struct {
	Repo       repository.Repository
	Fleet      FleetService
	Config     *config.Config
	Dispatcher *events.Dispatcher
	DB         *database.DB
}

// NewRouter assembles the HTTP surface.
func NewRouter(deps Deps) (*chi.Mux, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := "healthy"
		if deps.DB != nil {
			if err := deps.DB.Health(req.Context()); err != nil {
				status = "degraded"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":%q,"cameras":%d}`, status, len(deps.Fleet.IDs()))
	})

	streams := NewStreamHandler(deps.Repo, deps.Fleet, deps.Config)
	r.Get("/video/{id}", streams.Video)
	r.Get("/snapshot/{id}", streams.Snapshot)
	r.Post("/screenshot/{id}", streams.Screenshot)

	logs := NewLogsHandler(logging.Default())
	r.Route("/api/v1", func(r chi.Router) {
		// JSON routes get the timeout middleware; the streaming
		// endpoints must not.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Mount("/cameras", NewCameraHandler(deps.Repo, deps.Fleet).Routes())
			r.Mount("/zones", NewZoneHandler(deps.Repo).Routes())
			r.Mount("/recording", NewRecordingHandler(deps.Fleet).Routes())
			r.Mount("/counter", NewCounterHandler(deps.Fleet).Routes())
			r.Get("/logs", logs.Recent)
		})
		r.Get("/logs/stream", logs.Stream)
	})

	hub := NewHub()
	go hub.Run()
	if deps.Dispatcher != nil {
		if err := hub.AttachDispatcher(deps.Dispatcher); err != nil {
			return nil, fmt.Errorf("failed to attach event feed: %w", err)
		}
	}
	r.Get("/ws/events", hub.HandleWebSocket)

	return r, nil
}
