package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tokoban/backend/internal/costing"
	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

const reversalNote = "reversal: sale edit"

// UpdateSale edits a sale in place. When items are supplied, every prior item
// movement is reversed before the new items are priced and stocked out, all
// under the sale lock and the balance locks of old and new products.
func (s *Service) UpdateSale(ctx context.Context, storeID string, saleID string, req domain.SaleUpdateRequest) (domain.Sale, error) {
	if err := requireStore(storeID); err != nil {
		return domain.Sale{}, err
	}
	if err := normalizeRefID("sale", &saleID); err != nil {
		return domain.Sale{}, err
	}
	if req.IsEmpty() {
		return domain.Sale{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidRequest)
	}

	var newItems []domain.SaleItemInput
	if req.Items != nil {
		items, err := normalizeSaleItems(*req.Items)
		if err != nil {
			return domain.Sale{}, err
		}
		newItems = items
	}

	var updated domain.Sale
	err := s.repo.RunInTx(ctx, func(tx store.Tx) error {
		sale, err := tx.LockSale(ctx, storeID, saleID)
		if err != nil {
			return err
		}
		if sale.ExpenseOnly && touchesRevenue(req) {
			return fmt.Errorf("%w: expense-only entries accept expense changes only", domain.ErrInvalidRequest)
		}
		previousTotal := sale.Total

		if req.PlateNo != nil {
			plate := normalizePlate(*req.PlateNo)
			if plate == "" {
				return fmt.Errorf("%w: plate_no must not be empty", domain.ErrInvalidRequest)
			}
			sale.PlateNo = plate
		}
		if req.Discount != nil {
			sale.Discount = *req.Discount
		}
		if req.ServiceFee != nil {
			sale.ServiceFee = *req.ServiceFee
		}
		if sale.Discount < 0 || sale.ServiceFee < 0 {
			return fmt.Errorf("%w: discount and service fee must not be negative", domain.ErrInvalidRequest)
		}
		if req.CustomItems != nil {
			custom, err := buildCustomItems(*req.CustomItems)
			if err != nil {
				return err
			}
			sale.CustomItems = custom
		}
		if req.Expenses != nil {
			expenses, err := buildExpenses(*req.Expenses)
			if err != nil {
				return err
			}
			if sale.ExpenseOnly && len(expenses) == 0 {
				return fmt.Errorf("%w: expense-only entry needs at least one expense", domain.ErrInvalidRequest)
			}
			sale.Expenses = expenses
		}

		replaceItems := req.Items != nil
		if replaceItems {
			if err := s.replaceSaleItems(ctx, tx, sale, newItems); err != nil {
				return err
			}
		}
		if !sale.ExpenseOnly && len(sale.Items) == 0 && len(sale.CustomItems) == 0 {
			return fmt.Errorf("%w: at least one product or custom item is required", domain.ErrInvalidRequest)
		}
		if err := computeTotals(sale); err != nil {
			return err
		}

		if !sale.ExpenseOnly {
			if err := settlePayments(sale, req, previousTotal); err != nil {
				return err
			}
			if req.PlateNo != nil {
				if err := tx.UpsertCustomer(ctx, storeID, sale.PlateNo); err != nil {
					return err
				}
			}
		}

		sale.UpdatedAt = s.now()
		if err := tx.UpdateSale(ctx, *sale, replaceItems); err != nil {
			return err
		}
		updated = *sale
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.refreshSale(ctx, storeID, saleID)
	s.logger.Info("sale updated",
		zap.String("store_id", storeID),
		zap.String("sale_id", saleID),
		zap.Int64("total", updated.Total),
		zap.Bool("items_replaced", req.Items != nil),
	)
	return withEmptySlices(updated), nil
}

// replaceSaleItems reverses the stock effect of sale.Items at their snapshot
// cost, then prices and stocks out items as a fresh sale would.
func (s *Service) replaceSaleItems(ctx context.Context, tx store.Tx, sale *domain.Sale, items []domain.SaleItemInput) error {
	ids := saleItemProductIDs(items)
	for _, item := range sale.Items {
		ids = append(ids, item.ProductID)
	}
	positions, err := lockedBalances(ctx, tx, sale.StoreID, ids)
	if err != nil {
		return err
	}

	for _, item := range sale.Items {
		prev := positions[item.ProductID]
		next, err := costing.Incoming(prev, item.Qty, item.UnitCost)
		if err != nil {
			return fmt.Errorf("reverse product %s: %w", item.ProductID, err)
		}
		err = s.moveStock(ctx, tx, sale.StoreID, item.ProductID, prev, next, domain.LedgerEntry{
			TxnType:   domain.TxnIn,
			UnitCost:  item.UnitCost,
			RefType:   domain.RefManualAdjust,
			RefID:     sale.ID,
			Note:      reversalNote,
			CreatedBy: actorID(ctx),
		})
		if err != nil {
			return err
		}
		positions[item.ProductID] = next
	}

	priced, err := priceItems(ctx, tx, sale.StoreID, items, positions)
	if err != nil {
		return err
	}
	sale.Items = priced
	return s.stockOutSaleItems(ctx, tx, *sale, positions)
}

// settlePayments applies explicit payments when supplied, otherwise adapts
// the stored ones to a changed total.
func settlePayments(sale *domain.Sale, req domain.SaleUpdateRequest, previousTotal int64) error {
	if req.Payments != nil || req.PaymentType != nil {
		var inputs []domain.PaymentInput
		if req.Payments != nil {
			inputs = *req.Payments
		}
		legacy := sale.PaymentType
		if req.PaymentType != nil {
			legacy = *req.PaymentType
		}
		if legacy == domain.PaymentMixed {
			legacy = ""
		}
		payments, summary, err := reconcilePayments(inputs, legacy, sale.Total)
		if err != nil {
			return err
		}
		sale.Payments = payments
		sale.PaymentType = summary
		return nil
	}

	if sale.Total == previousTotal && len(sale.Payments) > 0 {
		return nil
	}
	payments, summary, err := rebalancePayments(sale.Payments, sale.PaymentType, sale.Total)
	if err != nil {
		return err
	}
	sale.Payments = payments
	sale.PaymentType = summary
	return nil
}

func touchesRevenue(req domain.SaleUpdateRequest) bool {
	return req.Items != nil || req.CustomItems != nil || req.Payments != nil ||
		req.PaymentType != nil || req.Discount != nil || req.ServiceFee != nil
}
