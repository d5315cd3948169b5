package cart

import (
	"context"
	"errors"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReasonSelectionNotApplied marks a line whose quantity was merged but whose
// selection could not be written
const ReasonSelectionNotApplied = "SELECTION_NOT_APPLIED"

// Merge folds an anonymous cookie cart into the user's server-side cart.
// Quantities are added, and a selected anonymous line selects the
// authenticated line; unselected lines never deselect it. Lines are processed
// in ascending item id order, each independently. A failed line is reported
// in Skipped and does not abort the others. Merge never fails as a whole.
//
// present tells whether the request carried a cart cookie at all; the cookie
// must be cleared whenever it did, even if some lines were skipped.
func (s *Service) Merge(ctx context.Context, uid cart.UserID, anon cart.Cart, present bool) MergeResult {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "merge",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, int64(uid)),
		telemetry.WithAttribute(telemetry.SpanAttrLines, anon.Len()),
	)
	defer span.End()

	result := MergeResult{
		Merged:     []cart.ItemID{},
		Skipped:    []SkippedLine{},
		ClearToken: present,
	}

	telemetry.WithCartProfilingLabels(ctx, cart.BackendAuthenticated.String(), "merge", func(ctx context.Context) {
		for _, id := range anon.IDs() {
			line := anon[id]
			if reason, err := s.mergeLine(ctx, uid, line); err != nil {
				result.Skipped = append(result.Skipped, SkippedLine{ItemID: id, Reason: reason})
				s.metrics.RecordMergeLine(ctx, telemetry.MergeOutcomeSkipped)
				logger.L(ctx).Warn("Cart merge skipped line",
					zap.Int64("item_id", int64(id)),
					zap.Int64("quantity", line.Quantity),
					zap.String("reason", reason),
					zap.Error(err),
				)
				continue
			}
			result.Merged = append(result.Merged, id)
			s.metrics.RecordMergeLine(ctx, telemetry.MergeOutcomeMerged)
		}
	})

	telemetry.SetAttributes(span, telemetry.SpanAttrSkipped, len(result.Skipped))
	if result.Partial() {
		telemetry.AddEvent(span, "merge_partial", "skipped", len(result.Skipped))
	}
	s.logger.Info("Cart merged",
		zap.Int64("user_id", int64(uid)),
		zap.Int("merged", len(result.Merged)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result
}

// mergeLine transfers one anonymous line and returns a skip reason on failure
func (s *Service) mergeLine(ctx context.Context, uid cart.UserID, line cart.Line) (string, error) {
	if err := s.store.Add(ctx, uid, line.ItemID, line.Quantity); err != nil {
		return skipReason(err), err
	}
	if !line.Selected {
		return "", nil
	}
	if err := s.store.SetSelected(ctx, uid, line.ItemID, true); err != nil {
		return ReasonSelectionNotApplied, err
	}
	return "", nil
}

func skipReason(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return cart.CodeBackendFailure
}
