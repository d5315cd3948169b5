package cart

import (
	"sort"
)

// ItemID identifies a catalog item (SKU) inside a cart
type ItemID int64

// UserID is the stable identifier of an authenticated customer
type UserID int64

// Line is one item's cart state
type Line struct {
	ItemID   ItemID `json:"item_id"`
	Quantity int64  `json:"quantity"`
	Selected bool   `json:"selected"`
}

// Cart maps item ids to their lines. A nil Cart is a valid empty cart.
type Cart map[ItemID]Line

// New returns an empty cart
func New() Cart {
	return Cart{}
}

// Len returns the number of lines
func (c Cart) Len() int {
	return len(c)
}

// IsEmpty reports whether the cart has no lines
func (c Cart) IsEmpty() bool {
	return len(c) == 0
}

// Get returns the line for id, if present
func (c Cart) Get(id ItemID) (Line, bool) {
	line, ok := c[id]
	return line, ok
}

// Clone returns a copy that shares no storage with c
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for id, line := range c {
		out[id] = line
	}
	return out
}

// IDs returns the item ids in ascending order
func (c Cart) IDs() []ItemID {
	ids := make([]ItemID, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Lines returns the lines ordered by item id
func (c Cart) Lines() []Line {
	lines := make([]Line, 0, len(c))
	for _, id := range c.IDs() {
		lines = append(lines, c[id])
	}
	return lines
}

// Selected returns the subset of lines marked for checkout
func (c Cart) Selected() Cart {
	out := make(Cart)
	for id, line := range c {
		if line.Selected {
			out[id] = line
		}
	}
	return out
}

// TotalQuantity sums quantities across all lines
func (c Cart) TotalQuantity() int64 {
	var total int64
	for _, line := range c {
		total += line.Quantity
	}
	return total
}

// Validate checks every line against the cart invariants
func (c Cart) Validate() error {
	for id, line := range c {
		if err := ValidateItemID(id); err != nil {
			return err
		}
		if line.ItemID != id {
			return ErrInvalidItemID
		}
		if err := ValidateQuantity(line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ValidateItemID rejects non-positive item ids
func ValidateItemID(id ItemID) error {
	if id <= 0 {
		return ErrInvalidItemID
	}
	return nil
}

// ValidateQuantity rejects quantities below one
func ValidateQuantity(qty int64) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	return nil
}
