package models

import (
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
)

// CatalogItemStatus is the listing state of a catalog item
type CatalogItemStatus string

const (
	CatalogItemStatusActive   CatalogItemStatus = "active"
	CatalogItemStatusInactive CatalogItemStatus = "inactive"
)

// CatalogItemModel is the read model of a sellable catalog item (SKU).
// The table is owned by the catalog service.
type CatalogItemModel struct {
	ID    int64           `gorm:"primaryKey;autoIncrement:false"`
	Name  string          `gorm:"type:varchar(200);not null"`
	Price decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Image string          `gorm:"type:varchar(500)"`
	Stock int64           `gorm:"not null;default:0"`
	// Status gates visibility independently of stock
	Status CatalogItemStatus `gorm:"type:varchar(20);not null;default:'active'"`
	TimestampModel
}

// TableName returns the table name for GORM
func (CatalogItemModel) TableName() string {
	return "catalog_items"
}

// Available reports whether the item can currently be bought
func (m *CatalogItemModel) Available() bool {
	return m.Status == CatalogItemStatusActive && m.Stock > 0
}

// ToItemView converts the row into the view the cart hydrates lines with
func (m *CatalogItemModel) ToItemView() *cart.ItemView {
	return &cart.ItemView{
		ID:        cart.ItemID(m.ID),
		Name:      m.Name,
		Price:     m.Price,
		Image:     m.Image,
		Available: m.Available(),
	}
}
