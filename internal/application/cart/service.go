package cart

import (
	"context"
	"errors"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Operation outcomes recorded on cart_operations_total
const (
	outcomeSuccess   = "success"
	outcomeNotFound  = "not_found"
	outcomeInvalid   = "invalid"
	outcomeTransient = "transient"
	outcomeError     = "error"
)

// Mutation is the result of a cart write. For anonymous backends Cart holds
// the updated cart that must be re-encoded into the response cookie.
type Mutation struct {
	Backend cart.BackendKind
	Cart    cart.Cart
}

// ClearCookie reports whether the anonymous cookie should be expired instead
// of rewritten
func (m Mutation) ClearCookie() bool {
	return m.Backend == cart.BackendAnonymous && m.Cart.IsEmpty()
}

// Service dispatches cart operations to the anonymous or authenticated store
type Service struct {
	store   cart.AuthenticatedStore
	catalog cart.CatalogGateway
	logger  *zap.Logger
	metrics *telemetry.CartMetrics
}

// NewService creates a new cart Service
func NewService(store cart.AuthenticatedStore, catalog cart.CatalogGateway, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		logger:  logger,
	}
}

// SetMetrics enables operation and merge metrics
func (s *Service) SetMetrics(m *telemetry.CartMetrics) {
	s.metrics = m
}

// Get returns the raw cart held by the backend
func (s *Service) Get(ctx context.Context, b cart.Backend) (cart.Cart, error) {
	ctx, span := s.startSpan(ctx, "get", b)
	defer span.End()

	var (
		out cart.Cart
		err error
	)
	switch b.Kind() {
	case cart.BackendAnonymous:
		out = b.Cart().Clone()
	case cart.BackendAuthenticated:
		out, err = s.store.Read(ctx, b.UserID())
	default:
		err = cart.ErrNoBackend
	}
	s.finish(ctx, span, b, "get", err)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrLines, out.Len())
	return out, nil
}

// Add increments a line. Anonymous adds replace the selected flag; authenticated
// adds select the item when requested and never deselect it.
func (s *Service) Add(ctx context.Context, b cart.Backend, req AddItemRequest) (Mutation, error) {
	ctx, span := s.startSpan(ctx, "add", b)
	defer span.End()
	id, qty, selected := cart.ItemID(req.ItemID), req.Quantity, selectedOrDefault(req.Selected)
	telemetry.SetAttributes(span, telemetry.SpanAttrItemID, req.ItemID, telemetry.SpanAttrQuantity, qty)

	m, err := s.mutate(ctx, b, "add", func(ctx context.Context, uid cart.UserID) error {
		if err := s.store.Add(ctx, uid, id, qty); err != nil {
			return err
		}
		if selected {
			return s.store.SetSelected(ctx, uid, id, true)
		}
		return nil
	}, func(c cart.Cart) (cart.Cart, error) {
		return cart.Add(c, id, qty, selected)
	})
	s.finish(ctx, span, b, "add", err)
	return m, err
}

// Update overwrites the quantity and selection of a line. Authenticated
// updates of an absent line report cart.ErrLineNotFound.
func (s *Service) Update(ctx context.Context, b cart.Backend, req UpdateItemRequest) (Mutation, error) {
	ctx, span := s.startSpan(ctx, "update", b)
	defer span.End()
	id, qty, selected := cart.ItemID(req.ItemID), req.Quantity, selectedOrDefault(req.Selected)
	telemetry.SetAttributes(span, telemetry.SpanAttrItemID, req.ItemID, telemetry.SpanAttrQuantity, qty)

	m, err := s.mutate(ctx, b, "update", func(ctx context.Context, uid cart.UserID) error {
		return s.store.Update(ctx, uid, id, qty, selected)
	}, func(c cart.Cart) (cart.Cart, error) {
		return cart.Set(c, id, qty, selected)
	})
	s.finish(ctx, span, b, "update", err)
	return m, err
}

// SetSelected changes the selection of one line
func (s *Service) SetSelected(ctx context.Context, b cart.Backend, id cart.ItemID, selected bool) (Mutation, error) {
	ctx, span := s.startSpan(ctx, "set_selected", b)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrItemID, int64(id))

	m, err := s.mutate(ctx, b, "set_selected", func(ctx context.Context, uid cart.UserID) error {
		return s.store.SetSelected(ctx, uid, id, selected)
	}, func(c cart.Cart) (cart.Cart, error) {
		return cart.SetSelected(c, id, selected)
	})
	s.finish(ctx, span, b, "set_selected", err)
	return m, err
}

// Remove deletes a line. Anonymous removal of an absent line is a no-op;
// authenticated removal reports cart.ErrLineNotFound.
func (s *Service) Remove(ctx context.Context, b cart.Backend, id cart.ItemID) (Mutation, error) {
	ctx, span := s.startSpan(ctx, "remove", b)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrItemID, int64(id))

	m, err := s.mutate(ctx, b, "remove", func(ctx context.Context, uid cart.UserID) error {
		return s.store.Remove(ctx, uid, id)
	}, func(c cart.Cart) (cart.Cart, error) {
		if err := cart.ValidateItemID(id); err != nil {
			return c, err
		}
		return cart.Remove(c, id), nil
	})
	s.finish(ctx, span, b, "remove", err)
	return m, err
}

// SelectAll selects or deselects every line. For authenticated carts a line
// added concurrently may miss the selection.
func (s *Service) SelectAll(ctx context.Context, b cart.Backend, selected bool) (Mutation, error) {
	ctx, span := s.startSpan(ctx, "select_all", b)
	defer span.End()

	m, err := s.mutate(ctx, b, "select_all", func(ctx context.Context, uid cart.UserID) error {
		return s.store.SelectAll(ctx, uid, selected)
	}, func(c cart.Cart) (cart.Cart, error) {
		return cart.SetAllSelected(c, selected), nil
	})
	s.finish(ctx, span, b, "select_all", err)
	return m, err
}

// mutate runs the authenticated or anonymous variant of a write. Store calls
// carry profiling labels for op.
func (s *Service) mutate(
	ctx context.Context,
	b cart.Backend,
	op string,
	authenticated func(ctx context.Context, uid cart.UserID) error,
	anonymous func(c cart.Cart) (cart.Cart, error),
) (Mutation, error) {
	m := Mutation{Backend: b.Kind()}
	switch b.Kind() {
	case cart.BackendAnonymous:
		out, err := anonymous(b.Cart())
		if err != nil {
			return m, err
		}
		m.Cart = out
		return m, nil
	case cart.BackendAuthenticated:
		var err error
		telemetry.WithCartProfilingLabels(ctx, b.Kind().String(), op, func(ctx context.Context) {
			err = authenticated(ctx, b.UserID())
		})
		return m, err
	default:
		return m, cart.ErrNoBackend
	}
}

func (s *Service) startSpan(ctx context.Context, op string, b cart.Backend) (context.Context, trace.Span) {
	opts := []telemetry.SpanOption{telemetry.WithAttribute(telemetry.SpanAttrBackend, b.Kind().String())}
	if b.Kind() == cart.BackendAuthenticated {
		opts = append(opts, telemetry.WithAttribute(telemetry.SpanAttrUserID, int64(b.UserID())))
	}
	return telemetry.StartServiceSpan(ctx, "cart", op, opts...)
}

// finish classifies err, records it on the span and the operation counter,
// and logs backend failures
func (s *Service) finish(ctx context.Context, span trace.Span, b cart.Backend, op string, err error) {
	outcome := classify(err)
	s.metrics.RecordOperation(ctx, b.Kind().String(), op, outcome)
	if err == nil {
		return
	}
	if outcome == outcomeTransient || outcome == outcomeError {
		telemetry.RecordError(span, err)
		logger.L(ctx).With(zap.String("cart.backend", b.Kind().String())).
			Error("cart operation failed", zap.String("cart.operation", op), zap.Error(err))
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, cart.ErrLineNotFound):
		return outcomeNotFound
	case cart.IsValidationError(err):
		return outcomeInvalid
	case cart.IsTransient(err):
		return outcomeTransient
	default:
		return outcomeError
	}
}
