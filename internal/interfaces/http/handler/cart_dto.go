package handler

import (
	appcart "github.com/storefront/backend/internal/application/cart"
	"github.com/storefront/backend/internal/domain/cart"
)

// ItemIDURI binds the :id path segment
type ItemIDURI struct {
	ID int64 `uri:"id" binding:"required,gt=0"`
}

// SelectAllResponse echoes a select-all change
type SelectAllResponse struct {
	Selected bool `json:"selected"`
}

// MergeResponse reports which anonymous lines reached the account cart
type MergeResponse struct {
	Merged  []cart.ItemID         `json:"merged"`
	Skipped []appcart.SkippedLine `json:"skipped"`
	Partial bool                  `json:"partial"`
}

func toMergeResponse(r appcart.MergeResult) MergeResponse {
	return MergeResponse{
		Merged:  r.Merged,
		Skipped: r.Skipped,
		Partial: r.Partial(),
	}
}
