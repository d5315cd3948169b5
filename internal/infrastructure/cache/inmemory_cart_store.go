package cache

import (
	"context"
	"sync"

	"github.com/storefront/backend/internal/domain/cart"
)

// userCart is one user's quantity map and selected set
type userCart struct {
	qty map[cart.ItemID]int64
	sel map[cart.ItemID]struct{}
}

// InMemoryCartStore implements cart.AuthenticatedStore in process memory.
// It is suitable for single-instance development and testing; state is not
// shared across instances and is lost on restart.
type InMemoryCartStore struct {
	mu    sync.Mutex
	carts map[cart.UserID]*userCart
}

var _ cart.AuthenticatedStore = (*InMemoryCartStore)(nil)

// NewInMemoryCartStore creates an empty in-memory store
func NewInMemoryCartStore() *InMemoryCartStore {
	return &InMemoryCartStore{
		carts: make(map[cart.UserID]*userCart),
	}
}

func (s *InMemoryCartStore) get(uid cart.UserID) *userCart {
	uc, ok := s.carts[uid]
	if !ok {
		uc = &userCart{
			qty: make(map[cart.ItemID]int64),
			sel: make(map[cart.ItemID]struct{}),
		}
		s.carts[uid] = uc
	}
	return uc
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return cart.NewBackendError(op, true, err)
	}
	return nil
}

// Add increments the quantity of id
func (s *InMemoryCartStore) Add(ctx context.Context, uid cart.UserID, id cart.ItemID, qty int64) error {
	if err := validateLine(id, qty); err != nil {
		return err
	}
	if err := checkContext(ctx, "add"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(uid).qty[id] += qty
	return nil
}

// Set overwrites an existing quantity
func (s *InMemoryCartStore) Set(ctx context.Context, uid cart.UserID, id cart.ItemID, qty int64) error {
	return s.setLine(ctx, "set", uid, id, qty, nil)
}

// Update overwrites quantity and selection of an existing line
func (s *InMemoryCartStore) Update(ctx context.Context, uid cart.UserID, id cart.ItemID, qty int64, selected bool) error {
	return s.setLine(ctx, "update", uid, id, qty, &selected)
}

// setLine leaves the selection alone when selected is nil
func (s *InMemoryCartStore) setLine(ctx context.Context, op string, uid cart.UserID, id cart.ItemID, qty int64, selected *bool) error {
	if err := validateLine(id, qty); err != nil {
		return err
	}
	if err := checkContext(ctx, op); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uc := s.get(uid)
	if _, ok := uc.qty[id]; !ok {
		return cart.ErrLineNotFound
	}
	uc.qty[id] = qty
	switch {
	case selected == nil:
	case *selected:
		uc.sel[id] = struct{}{}
	default:
		delete(uc.sel, id)
	}
	return nil
}

// Remove deletes the quantity and the selection of id
func (s *InMemoryCartStore) Remove(ctx context.Context, uid cart.UserID, id cart.ItemID) error {
	if err := cart.ValidateItemID(id); err != nil {
		return err
	}
	if err := checkContext(ctx, "remove"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uc := s.get(uid)
	_, existed := uc.qty[id]
	delete(uc.qty, id)
	delete(uc.sel, id)
	if !existed {
		return cart.ErrLineNotFound
	}
	return nil
}

// SetSelected changes set membership of an existing line
func (s *InMemoryCartStore) SetSelected(ctx context.Context, uid cart.UserID, id cart.ItemID, selected bool) error {
	if err := cart.ValidateItemID(id); err != nil {
		return err
	}
	if err := checkContext(ctx, "set_selected"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uc := s.get(uid)
	if _, ok := uc.qty[id]; !ok {
		delete(uc.sel, id)
		return cart.ErrLineNotFound
	}
	if selected {
		uc.sel[id] = struct{}{}
	} else {
		delete(uc.sel, id)
	}
	return nil
}

// SelectAll selects every present line, or clears the selection
func (s *InMemoryCartStore) SelectAll(ctx context.Context, uid cart.UserID, selected bool) error {
	if err := checkContext(ctx, "select_all"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uc := s.get(uid)
	if !selected {
		uc.sel = make(map[cart.ItemID]struct{})
		return nil
	}
	for id := range uc.qty {
		uc.sel[id] = struct{}{}
	}
	return nil
}

// Read returns a copy of the user's cart
func (s *InMemoryCartStore) Read(ctx context.Context, uid cart.UserID) (cart.Cart, error) {
	if err := checkContext(ctx, "read"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := cart.New()
	uc, ok := s.carts[uid]
	if !ok {
		return out, nil
	}
	for id, n := range uc.qty {
		_, selected := uc.sel[id]
		out[id] = cart.Line{ItemID: id, Quantity: n, Selected: selected}
	}
	return out, nil
}

// Ping always succeeds
func (s *InMemoryCartStore) Ping(ctx context.Context) error {
	return checkContext(ctx, "ping")
}
