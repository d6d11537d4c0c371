package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func SetupRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/devices/{deviceID}/commands", h.ListDeviceCommands)
	r.Post("/commands/{commandID}/delivered", h.MarkDelivered)
	r.Post("/commands/{commandID}/cancel", h.CancelCommand)

	r.Get("/alerts/{severity}", h.ListAlertsBySeverity)
	r.Post("/alerts/{deviceID}/{timestamp}/acknowledge", h.AcknowledgeAlert)

	return r
}
