package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReorderThreshold is applied to stock items created for new products.
const DefaultReorderThreshold = 5

// Product is a sellable catalog entry. ID is stable for the life of the product.
// InitialStock and ReorderThreshold only seed the stock item created when the
// product first enters the catalog.
type Product struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	UnitPrice        decimal.Decimal `json:"price"`
	ImageRef         string          `json:"image,omitempty"`
	InitialStock     int             `json:"initial_stock,omitempty"`
	ReorderThreshold int             `json:"reorder_threshold,omitempty"`
}

// StockItem is the per-product inventory record.
type StockItem struct {
	ProductID        string          `json:"id"`
	Name             string          `json:"name"`
	UnitPrice        decimal.Decimal `json:"price"`
	Quantity         int             `json:"stock"`
	ReorderThreshold int             `json:"reorder_threshold"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
}

// ShopProfile is the onboarding information about the shop itself.
type ShopProfile struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
