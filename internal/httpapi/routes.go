package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", d.WS)
	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", CreateRoom(d))
		r.Get("/", ListRooms(d))
		r.Get("/{code}", GetRoom(d))
	})
	return r
}
