package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/shopkeeper/internal/api/middleware"
	"github.com/dvloznov/shopkeeper/internal/export"
	"github.com/dvloznov/shopkeeper/internal/shop"
)

// SalesHandler handles dashboard, sales log and export endpoints.
type SalesHandler struct {
	shop *shop.Shop
	log  zerolog.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(s *shop.Shop, log zerolog.Logger) *SalesHandler {
	return &SalesHandler{shop: s, log: log}
}

// Dashboard handles GET /api/dashboard
func (h *SalesHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.shop.Dashboard())
}

// Revenue handles GET /api/revenue?days=7
func (h *SalesHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	days := 0
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		n, err := strconv.Atoi(daysStr)
		if err != nil || n <= 0 || n > 366 {
			middleware.WriteError(w, http.StatusBadRequest, "days must be between 1 and 366")
			return
		}
		days = n
	}
	middleware.WriteJSON(w, http.StatusOK, h.shop.Sales().RevenueSeries(days))
}

// ListTransactions handles GET /api/transactions?date=2006-01-02&type=upi
func (h *SalesHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := h.filters(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs := h.shop.Transactions(f)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
		"totals":       export.Summarize(txs),
	})
}

// GetTransaction handles GET /api/transactions/{id}
func (h *SalesHandler) GetTransaction(w http.ResponseWriter, r *http.Request, transactionID string) {
	tx, err := h.shop.Transaction(transactionID)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Export handles GET /api/export?date=2006-01-02&type=cash
func (h *SalesHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := h.filters(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := "sales.csv"
	if !f.Date.IsZero() {
		name = fmt.Sprintf("sales-%s.csv", f.Date.Format("2006-01-02"))
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if err := h.shop.Export(w, f); err != nil {
		h.log.Error().Err(err).Msg("Failed to write export")
	}
}

func (h *SalesHandler) filters(r *http.Request) (export.Filters, error) {
	query := r.URL.Query()
	f := export.Filters{Location: h.shop.Location()}

	typ, err := export.ParseType(query.Get("type"))
	if err != nil {
		return export.Filters{}, fmt.Errorf("invalid type %q", query.Get("type"))
	}
	f.Type = typ

	if dateStr := query.Get("date"); dateStr != "" {
		d, err := time.ParseInLocation("2006-01-02", dateStr, f.Location)
		if err != nil {
			return export.Filters{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", dateStr)
		}
		f.Date = d
	}
	return f, nil
}

// AssistantHandler handles the shop chat.
type AssistantHandler struct {
	shop *shop.Shop
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(s *shop.Shop) *AssistantHandler {
	return &AssistantHandler{shop: s}
}

// Chat handles POST /api/chat
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		middleware.WriteError(w, http.StatusBadRequest, "question is required")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"answer": h.shop.Ask(r.Context(), req.Question),
	})
}
