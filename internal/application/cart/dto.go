package cart

import (
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
)

// AddItemRequest represents a request to add an item to the cart
type AddItemRequest struct {
	ItemID   int64 `json:"sku_id" binding:"required,gt=0"`
	Quantity int64 `json:"count" binding:"required,gte=1,lte=100000"`
	Selected *bool `json:"selected"`
}

// UpdateItemRequest represents a request to overwrite a cart line
type UpdateItemRequest struct {
	ItemID   int64 `json:"sku_id" binding:"required,gt=0"`
	Quantity int64 `json:"count" binding:"required,gte=1,lte=100000"`
	Selected *bool `json:"selected"`
}

// RemoveItemRequest represents a request to delete a cart line
type RemoveItemRequest struct {
	ItemID int64 `json:"sku_id" binding:"required,gt=0"`
}

// SelectionRequest toggles the selection of one line or of the whole cart
type SelectionRequest struct {
	Selected *bool `json:"selected" binding:"required"`
}

// selectedOrDefault returns the flag, defaulting to true on creation
func selectedOrDefault(p *bool) bool {
	if p == nil {
		return true
	}
	return *p
}

// LineResponse is one hydrated cart line
type LineResponse struct {
	ItemID   int64           `json:"id"`
	Name     string          `json:"name"`
	Image    string          `json:"default_image_url"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"count"`
	Selected bool            `json:"selected"`
	Amount   decimal.Decimal `json:"amount"`
}

// CartResponse is the hydrated cart returned to the storefront
type CartResponse struct {
	Lines          []LineResponse  `json:"lines"`
	TotalCount     int64           `json:"total_count"`
	SelectedCount  int64           `json:"selected_count"`
	SelectedAmount decimal.Decimal `json:"selected_amount"`
	// Unavailable lists stored lines hidden because the catalog no longer sells them
	Unavailable []int64 `json:"unavailable,omitempty"`
}

// LineStateResponse echoes the accepted line change
type LineStateResponse struct {
	ItemID   int64 `json:"sku_id"`
	Quantity int64 `json:"count"`
	Selected bool  `json:"selected"`
}

// SkippedLine is a merge line that could not be transferred
type SkippedLine struct {
	ItemID cart.ItemID `json:"sku_id"`
	Reason string      `json:"reason"`
}

// MergeResult reports the outcome of a cookie-to-account merge
type MergeResult struct {
	Merged  []cart.ItemID `json:"merged"`
	Skipped []SkippedLine `json:"skipped"`
	// ClearToken tells the caller to expire the cart cookie
	ClearToken bool `json:"-"`
}

// Partial reports whether some lines were skipped
func (r MergeResult) Partial() bool {
	return len(r.Skipped) > 0
}
