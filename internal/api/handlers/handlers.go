// Package handlers exposes the shop over HTTP.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/shopkeeper/internal/api/middleware"
	"github.com/dvloznov/shopkeeper/internal/domain"
	"github.com/dvloznov/shopkeeper/internal/shop"
)

// MaxAudioBytes caps the size of an uploaded payment alert.
const MaxAudioBytes = 10 << 20

// SessionsHandler handles reconciliation session endpoints.
type SessionsHandler struct {
	shop *shop.Shop
	log  zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(s *shop.Shop, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{shop: s, log: log}
}

// OpenManual handles POST /api/sessions
func (h *SessionsHandler) OpenManual(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.shop.OpenManual(r.Context(), req.Amount)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to open session")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, res)
}

// OpenFromAudio handles POST /api/sessions/audio
// The request body is the raw audio of the payment alert.
func (h *SessionsHandler) OpenFromAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxAudioBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read audio")
		return
	}

	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "audio/wav"
	}

	res, err := h.shop.OpenFromAudio(r.Context(), audio, mimeType)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to open session from audio")
		return
	}
	h.log.Info().
		Str("session_id", res.Session.ID).
		Int("bytes", len(audio)).
		Str("language", res.Transcription.Language).
		Msg("Payment alert transcribed")
	middleware.WriteJSON(w, http.StatusCreated, res)
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	v, err := h.shop.Session(sessionID)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to get session")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, v)
}

// SetQuantity handles PUT /api/sessions/{id}/lines/{productId}
func (h *SessionsHandler) SetQuantity(w http.ResponseWriter, r *http.Request, sessionID, productID string) {
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Quantity == nil {
		middleware.WriteError(w, http.StatusBadRequest, "quantity is required")
		return
	}

	v, err := h.shop.SetQuantity(r.Context(), sessionID, productID, *req.Quantity)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to set quantity")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, v)
}

// AdjustQuantity handles POST /api/sessions/{id}/lines/{productId}/adjust
func (h *SessionsHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request, sessionID, productID string) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	v, err := h.shop.AdjustQuantity(r.Context(), sessionID, productID, req.Delta)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to adjust quantity")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, v)
}

// ToggleSelection handles POST /api/sessions/{id}/lines/{productId}/toggle
func (h *SessionsHandler) ToggleSelection(w http.ResponseWriter, r *http.Request, sessionID, productID string) {
	v, err := h.shop.ToggleSelection(r.Context(), sessionID, productID)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to toggle selection")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, v)
}

// AddLines handles POST /api/sessions/{id}/lines
func (h *SessionsHandler) AddLines(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		ProductIDs []string `json:"product_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	v, err := h.shop.AddCandidateLines(r.Context(), sessionID, req.ProductIDs)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to add lines")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, v)
}

// ExplainMisc handles GET /api/sessions/{id}/misc
func (h *SessionsHandler) ExplainMisc(w http.ResponseWriter, r *http.Request, sessionID string) {
	suggestions, err := h.shop.ExplainMiscellaneous(sessionID)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to explain misc amount")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"count":       len(suggestions),
	})
}

// Confirm handles POST /api/sessions/{id}/confirm
func (h *SessionsHandler) Confirm(w http.ResponseWriter, r *http.Request, sessionID string) {
	tx, err := h.shop.Confirm(r.Context(), sessionID)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to confirm session")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// Cancel handles POST /api/sessions/{id}/cancel
func (h *SessionsHandler) Cancel(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.shop.Cancel(r.Context(), sessionID); err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to cancel session")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "discarded",
	})
}

// ProductsHandler handles catalog and inventory endpoints.
type ProductsHandler struct {
	shop *shop.Shop
	log  zerolog.Logger
}

// NewProductsHandler creates a new products handler.
func NewProductsHandler(s *shop.Shop, log zerolog.Logger) *ProductsHandler {
	return &ProductsHandler{shop: s, log: log}
}

// ListProducts handles GET /api/products
func (h *ProductsHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.shop.Products()
	if products == nil {
		products = []domain.Product{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// AddProduct handles POST /api/products
func (h *ProductsHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := decodeJSON(r, &p); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	added, err := h.shop.AddProduct(r.Context(), p)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to add product")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, added)
}

// UpdateProduct handles PUT /api/products/{id}
func (h *ProductsHandler) UpdateProduct(w http.ResponseWriter, r *http.Request, productID string) {
	var req struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.shop.UpdateProduct(r.Context(), productID, req.Name, req.Price)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to update product")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

// RemoveProduct handles DELETE /api/products/{id}
func (h *ProductsHandler) RemoveProduct(w http.ResponseWriter, r *http.Request, productID string) {
	if err := h.shop.RemoveProduct(r.Context(), productID); err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to remove product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListInventory handles GET /api/inventory
func (h *ProductsHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	items := h.shop.Inventory()
	if items == nil {
		items = []domain.StockItem{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// UpdateStock handles PUT /api/inventory/{id}
func (h *ProductsHandler) UpdateStock(w http.ResponseWriter, r *http.Request, productID string) {
	var req struct {
		Stock            int     `json:"stock"`
		ReorderThreshold int     `json:"reorder_threshold"`
		ExpiryDate       *string `json:"expiry_date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var expiry *time.Time
	if req.ExpiryDate != nil && *req.ExpiryDate != "" {
		t, err := time.ParseInLocation("2006-01-02", *req.ExpiryDate, h.shop.Location())
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid expiry_date format")
			return
		}
		expiry = &t
	}

	it, err := h.shop.UpdateStock(r.Context(), productID, req.Stock, req.ReorderThreshold, expiry)
	if err != nil {
		middleware.WriteDomainError(w, r, err, "Failed to update stock")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, it)
}

// ProfileHandler handles the shop profile.
type ProfileHandler struct {
	shop *shop.Shop
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(s *shop.Shop) *ProfileHandler {
	return &ProfileHandler{shop: s}
}

// GetProfile handles GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.shop.Profile())
}

// SetProfile handles PUT /api/profile
func (h *ProfileHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	var p domain.ShopProfile
	if err := decodeJSON(r, &p); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if p.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.shop.SetProfile(r.Context(), p))
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decodeJSON: %w", err)
	}
	return nil
}
