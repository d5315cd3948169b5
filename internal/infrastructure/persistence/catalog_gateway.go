package persistence

import (
	"context"
	"fmt"
	"sort"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCatalogGateway implements cart.CatalogGateway over the catalog table
type GormCatalogGateway struct {
	db *gorm.DB
}

var _ cart.CatalogGateway = (*GormCatalogGateway)(nil)

// NewGormCatalogGateway creates a new GormCatalogGateway
func NewGormCatalogGateway(db *gorm.DB) *GormCatalogGateway {
	return &GormCatalogGateway{db: db}
}

// LookupMany fetches all ids in one query. Ids missing from the catalog are
// absent from the result map rather than reported as errors.
func (g *GormCatalogGateway) LookupMany(ctx context.Context, ids []cart.ItemID) (map[cart.ItemID]*cart.ItemView, error) {
	keys := uniqueIDs(ids)
	out := make(map[cart.ItemID]*cart.ItemView, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var rows []models.CatalogItemModel
	if err := g.db.WithContext(ctx).Where("id IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("catalog lookup of %d items: %w", len(keys), err)
	}
	for i := range rows {
		view := rows[i].ToItemView()
		out[view.ID] = view
	}
	return out, nil
}

// uniqueIDs drops duplicates and invalid ids and sorts the rest
func uniqueIDs(ids []cart.ItemID) []int64 {
	seen := make(map[cart.ItemID]struct{}, len(ids))
	keys := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, int64(id))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
