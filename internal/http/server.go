package http

import (
	"net/http"

	"unionmade-backend/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler, hub *ws.Hub) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/campaigns", handler.ListCampaigns)
	r.Get("/campaigns/{campaignId}", handler.GetCampaign)
	r.Post("/checkout", handler.CreateCheckout)
	r.Get("/orders", handler.ListMyOrders)
	r.Get("/notifications", handler.ListMyNotifications)
	r.Post("/notifications/{notificationId}/hide", handler.HideNotification)
	r.Get("/ws/notifications", handler.notificationSocket(hub))

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/campaigns", handler.CreateCampaign)
		r.Put("/campaigns/{campaignId}", handler.UpdateCampaign)
		r.Delete("/campaigns/{campaignId}", handler.DiscontinueCampaign)
		r.Get("/orders", handler.ListOrders)
		r.Post("/orders/{orderId}/refund", handler.RefundOrder)
		r.Post("/orders/{orderId}/status", handler.SetOrderStage)
	})

	return &Server{Router: r}
}

// Authentication lives upstream; the API only requires the forwarded admin
// identity header on admin routes.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-Id") == "" {
			writeError(w, http.StatusUnauthorized, "missing admin id")
			return
		}
		next.ServeHTTP(w, r)
	})
}
