package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tokoban/backend/internal/costing"
	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

// AdjustInventory applies an operator stock correction. A cost reset with a
// zero delta changes the balance only and writes no ledger row.
func (s *Service) AdjustInventory(ctx context.Context, storeID string, req domain.AdjustmentRequest) (domain.AdjustmentResponse, error) {
	if err := requireStore(storeID); err != nil {
		return domain.AdjustmentResponse{}, err
	}
	productID := strings.ToLower(strings.TrimSpace(req.ProductID))
	if productID == "" {
		return domain.AdjustmentResponse{}, fmt.Errorf("%w: product_id is required", domain.ErrInvalidRequest)
	}
	if req.QtyDelta == 0 && !req.ResetAvgCost {
		return domain.AdjustmentResponse{}, fmt.Errorf("%w: qty_delta must not be 0 unless resetting avg cost", domain.ErrInvalidRequest)
	}
	if req.UnitCost != nil && *req.UnitCost < 0 {
		return domain.AdjustmentResponse{}, fmt.Errorf("%w: unit_cost must not be negative", domain.ErrInvalidRequest)
	}
	note := strings.TrimSpace(req.Note)

	var resp domain.AdjustmentResponse
	err := s.repo.RunInTx(ctx, func(tx store.Tx) error {
		positions, err := lockedBalances(ctx, tx, storeID, []string{productID})
		if err != nil {
			return err
		}
		prev := positions[productID]
		next, err := costing.Adjust(prev, req.QtyDelta, req.UnitCost, req.ResetAvgCost)
		if err != nil {
			return err
		}

		if req.QtyDelta == 0 {
			if err := tx.ApplyBalance(ctx, storeID, productID, 0, next.AvgCost); err != nil {
				return err
			}
		} else {
			unitCost := prev.AvgCost
			if req.QtyDelta > 0 && req.UnitCost != nil {
				unitCost = *req.UnitCost
			}
			err = s.moveStock(ctx, tx, storeID, productID, prev, next, domain.LedgerEntry{
				TxnType:   domain.TxnAdjust,
				UnitCost:  unitCost,
				RefType:   domain.RefManualAdjust,
				Note:      note,
				CreatedBy: actorID(ctx),
			})
			if err != nil {
				return err
			}
			resp.LedgerWritten = true
		}

		resp.Balance = domain.Balance{
			StoreID:     storeID,
			ProductID:   productID,
			QtyOnHand:   next.Qty,
			AvgUnitCost: next.AvgCost,
			UpdatedAt:   s.now(),
		}
		return nil
	})
	if err != nil {
		return domain.AdjustmentResponse{}, err
	}

	s.logger.Info("inventory adjusted",
		zap.String("store_id", storeID),
		zap.String("product_id", productID),
		zap.Int64("qty_delta", req.QtyDelta),
		zap.Bool("reset_avg_cost", req.ResetAvgCost),
		zap.Int64("qty_on_hand", resp.Balance.QtyOnHand),
	)
	return resp, nil
}
