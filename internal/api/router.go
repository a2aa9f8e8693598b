package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App, scanHandlers *ScanHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	r.Route("/scan", func(r chi.Router) {
		r.Post("/", scanHandlers.StartScanHandler)
		r.Get("/{sessionID}", scanHandlers.GetSessionHandler)
		r.Get("/{sessionID}/stream", scanHandlers.ScanStreamHandler)
		r.Post("/{sessionID}/stop", scanHandlers.StopScanHandler)
		r.Post("/{sessionID}/confirm", scanHandlers.ConfirmHandler)
		r.Post("/{sessionID}/correct", scanHandlers.CorrectHandler)
	})

	r.Get("/photos/{filename}", app.PhotoHandler)

	return r
}
