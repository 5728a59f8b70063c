package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ombima56/TranspaCharity/internal/handler"
)

func SetupRoutes(
	r chi.Router,
	h *handler.DonationHandler,
	hub *handler.Hub,
	gatherer prometheus.Gatherer,
	allowedOrigins []string,
) chi.Router {
	// ---- Global Middleware ----
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// ---- Wallet ----
	r.Route("/wallet", func(wr chi.Router) {
		wr.Get("/state", h.GetState)
		wr.Post("/initialize", h.Initialize)
		wr.Post("/connect", h.Connect)
		wr.Post("/disconnect", h.Disconnect)
		wr.Get("/ws", hub.ServeWebSocket(upgrader))
	})

	// ---- Contract ----
	r.Get("/network", h.GetNetwork)
	r.Get("/charities", h.GetCharities)
	r.Route("/donations", func(dr chi.Router) {
		dr.Get("/", h.GetDonations)
		dr.Post("/usdc", h.DonateUSDC)
		dr.Post("/eth", h.DonateETH)
	})

	return r
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
