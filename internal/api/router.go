package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter constructs the chi router with all API endpoints registered.
func NewRouter(svc Settlement) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/user/{userId}/balance", h.GetBalanceHandler)
	r.Get("/user/{userId}/ledger", h.LedgerHandler)
	r.Post("/user/{userId}/bet", h.PlaceBetHandler)
	r.Post("/user/{userId}/admin-credit", h.AdminCreditHandler)
	r.Post("/round/{roundId}/resolve", h.ResolveHandler)

	return r
}
