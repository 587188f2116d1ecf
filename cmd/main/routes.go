package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func (app *Application) routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(cors.AllowAll().Handler)

	mux.Route("/api", func(r chi.Router) {
		r.Get("/health", app.handlers.HealthHandler)
		r.Get("/stats", app.handlers.StatsHandler)
		r.Post("/join-queue", app.handlers.JoinQueueHandler)
	})

	mux.Get("/ws", app.gateway.ServeWS)

	return mux
}
