package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// AuthenticatedStore holds per-user carts as a quantity map plus a separate
// selected set. Implementations must keep the selected set a subset of the
// quantity map keys.
type AuthenticatedStore interface {
	// Add atomically increments the quantity of id, creating the line at qty
	Add(ctx context.Context, uid UserID, id ItemID, qty int64) error

	// Set atomically overwrites the quantity of an existing line.
	// Returns ErrLineNotFound when the line is absent.
	Set(ctx context.Context, uid UserID, id ItemID, qty int64) error

	// Update atomically overwrites the quantity and the selection of an
	// existing line. Returns ErrLineNotFound when the line is absent.
	Update(ctx context.Context, uid UserID, id ItemID, qty int64, selected bool) error

	// Remove deletes the quantity and the selection of id as one operation.
	// Returns ErrLineNotFound when there was no quantity entry.
	Remove(ctx context.Context, uid UserID, id ItemID) error

	// SetSelected changes set membership only.
	// Returns ErrLineNotFound when the line is absent.
	SetSelected(ctx context.Context, uid UserID, id ItemID, selected bool) error

	// SelectAll selects every present line, or clears the selection.
	// Not linearizable with a concurrent Add.
	SelectAll(ctx context.Context, uid UserID, selected bool) error

	// Read returns a snapshot of the whole cart
	Read(ctx context.Context, uid UserID) (Cart, error)

	// Ping checks backend connectivity
	Ping(ctx context.Context) error
}

// ItemView is the display data of a catalog item
type ItemView struct {
	ID        ItemID          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Available bool            `json:"available"`
}

// CatalogGateway resolves item ids for display. It is never consulted by
// cart mutations or merge.
type CatalogGateway interface {
	// LookupMany resolves several ids at once; misses are absent from the result
	LookupMany(ctx context.Context, ids []ItemID) (map[ItemID]*ItemView, error)
}
