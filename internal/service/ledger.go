package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"tokoban/backend/internal/costing"
	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

// ledgerWriter appends movement rows. Rows are never updated; a correction is
// a new offsetting row.
type ledgerWriter struct {
	now func() time.Time
}

func (w ledgerWriter) write(ctx context.Context, tx store.Tx, entry domain.LedgerEntry) error {
	if entry.QtyDelta == 0 {
		return fmt.Errorf("ledger movement for %s has zero quantity", entry.ProductID)
	}
	now := w.now()
	entry.ID = uuid.NewString()
	if entry.TxnAt.IsZero() {
		entry.TxnAt = now
	}
	entry.CreatedAt = now
	return tx.AppendLedger(ctx, entry)
}

// lockedBalances ensures and locks the balance rows for productIDs and returns
// their current positions. The ids are de-duplicated and sorted first.
func lockedBalances(ctx context.Context, tx store.Tx, storeID string, productIDs []string) (map[string]costing.Position, error) {
	ids := uniqueSorted(productIDs)
	if len(ids) == 0 {
		return map[string]costing.Position{}, nil
	}
	if err := tx.EnsureBalances(ctx, storeID, ids); err != nil {
		return nil, err
	}
	rows, err := tx.LockBalances(ctx, storeID, ids)
	if err != nil {
		return nil, err
	}

	positions := make(map[string]costing.Position, len(ids))
	for _, id := range ids {
		row, ok := rows[id]
		if !ok {
			return nil, fmt.Errorf("%w: store %s product %s", domain.ErrBalanceNotFound, storeID, id)
		}
		positions[id] = costing.Position{Qty: row.QtyOnHand, AvgCost: row.AvgUnitCost}
	}
	return positions, nil
}

// moveStock persists the transition from prev to next and records the ledger
// row describing it.
func (s *Service) moveStock(ctx context.Context, tx store.Tx, storeID string, productID string, prev costing.Position, next costing.Position, entry domain.LedgerEntry) error {
	if err := tx.ApplyBalance(ctx, storeID, productID, next.Qty-prev.Qty, next.AvgCost); err != nil {
		return err
	}
	entry.StoreID = storeID
	entry.ProductID = productID
	entry.QtyDelta = next.Qty - prev.Qty
	return s.ledger.write(ctx, tx, entry)
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
