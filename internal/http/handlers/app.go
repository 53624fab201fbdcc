package handlers

import (
	"encoding/json"
	"net/http"

	"storygen/internal/generation"
	"storygen/internal/infra"
	"storygen/internal/middleware"
	"storygen/internal/storage"
)

// App is the handler container; dependencies are injected once in main.
type App struct {
	Orchestrator *generation.Orchestrator
	Manager      *generation.Manager
	Store        *storage.FileStore
	Config       *infra.Config
	Logger       infra.Logger
}

func NewApp(orchestrator *generation.Orchestrator, manager *generation.Manager, store *storage.FileStore, cfg *infra.Config, logger infra.Logger) *App {
	return &App{
		Orchestrator: orchestrator,
		Manager:      manager,
		Store:        store,
		Config:       cfg,
		Logger:       logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"error": slug, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
