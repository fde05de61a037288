package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/shopkeeper/internal/api/middleware"
	"github.com/dvloznov/shopkeeper/internal/metrics"
	"github.com/dvloznov/shopkeeper/internal/shop"
)

// NewRouter registers every endpoint and wraps the mux in the middleware
// chain. m may be nil, in which case /metrics is not served.
func NewRouter(s *shop.Shop, m *metrics.Metrics, log zerolog.Logger) http.Handler {
	sessions := NewSessionsHandler(s, log)
	products := NewProductsHandler(s, log)
	profile := NewProfileHandler(s)
	salesH := NewSalesHandler(s, log)
	assistantH := NewAssistantHandler(s)
	jobsH := NewJobsHandler(s.JobStore(), log)

	mux := http.NewServeMux()

	// Sessions
	mux.HandleFunc("POST /api/sessions", sessions.OpenManual)
	mux.HandleFunc("POST /api/sessions/audio", sessions.OpenFromAudio)
	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessions.GetSession(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/sessions/{id}/lines", func(w http.ResponseWriter, r *http.Request) {
		sessions.AddLines(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("PUT /api/sessions/{id}/lines/{productId}", func(w http.ResponseWriter, r *http.Request) {
		sessions.SetQuantity(w, r, r.PathValue("id"), r.PathValue("productId"))
	})
	mux.HandleFunc("POST /api/sessions/{id}/lines/{productId}/adjust", func(w http.ResponseWriter, r *http.Request) {
		sessions.AdjustQuantity(w, r, r.PathValue("id"), r.PathValue("productId"))
	})
	mux.HandleFunc("POST /api/sessions/{id}/lines/{productId}/toggle", func(w http.ResponseWriter, r *http.Request) {
		sessions.ToggleSelection(w, r, r.PathValue("id"), r.PathValue("productId"))
	})
	mux.HandleFunc("GET /api/sessions/{id}/misc", func(w http.ResponseWriter, r *http.Request) {
		sessions.ExplainMisc(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/sessions/{id}/confirm", func(w http.ResponseWriter, r *http.Request) {
		sessions.Confirm(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("POST /api/sessions/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		sessions.Cancel(w, r, r.PathValue("id"))
	})

	// Catalog and inventory
	mux.HandleFunc("GET /api/products", products.ListProducts)
	mux.HandleFunc("POST /api/products", products.AddProduct)
	mux.HandleFunc("PUT /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		products.UpdateProduct(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("DELETE /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		products.RemoveProduct(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /api/inventory", products.ListInventory)
	mux.HandleFunc("PUT /api/inventory/{id}", func(w http.ResponseWriter, r *http.Request) {
		products.UpdateStock(w, r, r.PathValue("id"))
	})

	// Profile
	mux.HandleFunc("GET /api/profile", profile.GetProfile)
	mux.HandleFunc("PUT /api/profile", profile.SetProfile)

	// Sales
	mux.HandleFunc("GET /api/dashboard", salesH.Dashboard)
	mux.HandleFunc("GET /api/revenue", salesH.Revenue)
	mux.HandleFunc("GET /api/transactions", salesH.ListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		salesH.GetTransaction(w, r, r.PathValue("id"))
	})
	mux.HandleFunc("GET /api/export", salesH.Export)

	// Assistant
	mux.HandleFunc("POST /api/chat", assistantH.Chat)

	// Jobs
	mux.HandleFunc("GET /api/jobs", jobsH.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		jobsH.GetJob(w, r, r.PathValue("id"))
	})

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "healthy",
			"time":          time.Now().Format(time.RFC3339),
			"open_sessions": s.OpenSessions(),
		})
	})

	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
	}
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
		chain = append(chain, middleware.Metrics(m))
	}
	chain = append(chain, middleware.CORS)

	return middleware.Chain(mux, chain...)
}
