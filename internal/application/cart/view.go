package cart

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// View returns the cart hydrated with catalog data. Lines whose item is
// missing from the catalog or no longer available are left out of Lines and
// listed in Unavailable; they stay in the stored cart.
func (s *Service) View(ctx context.Context, b cart.Backend) (*CartResponse, error) {
	c, err := s.Get(ctx, b)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, c)
}

// SelectedForCheckout returns the hydrated selected lines of an authenticated cart
func (s *Service) SelectedForCheckout(ctx context.Context, uid cart.UserID) (*CartResponse, error) {
	c, err := s.Get(ctx, cart.Authenticated(uid))
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, c.Selected())
}

func (s *Service) hydrate(ctx context.Context, c cart.Cart) (*CartResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "hydrate")
	defer span.End()

	resp := &CartResponse{
		Lines:          make([]LineResponse, 0, c.Len()),
		SelectedAmount: decimal.Zero,
	}
	if c.IsEmpty() {
		return resp, nil
	}

	ids := c.IDs()
	items, err := s.catalog.LookupMany(ctx, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Catalog lookup failed", zap.Int("items", len(ids)), zap.Error(err))
		return nil, err
	}

	for _, id := range ids {
		line := c[id]
		item, ok := items[id]
		if !ok || item == nil || !item.Available {
			resp.Unavailable = append(resp.Unavailable, int64(id))
			continue
		}
		amount := item.Price.Mul(decimal.NewFromInt(line.Quantity))
		resp.Lines = append(resp.Lines, LineResponse{
			ItemID:   int64(id),
			Name:     item.Name,
			Image:    item.Image,
			Price:    item.Price,
			Quantity: line.Quantity,
			Selected: line.Selected,
			Amount:   amount,
		})
		resp.TotalCount += line.Quantity
		if line.Selected {
			resp.SelectedCount += line.Quantity
			resp.SelectedAmount = resp.SelectedAmount.Add(amount)
		}
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrLines, len(resp.Lines))
	return resp, nil
}
