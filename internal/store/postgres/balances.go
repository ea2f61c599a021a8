package postgres

import (
	"context"

	"tokoban/backend/internal/domain"
)

func (t *pgTx) EnsureBalances(ctx context.Context, storeID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO inventory_balances (store_id, product_id, qty_on_hand, avg_unit_cost, updated_at)
		SELECT $1, p.id, 0, 0, now()
		FROM unnest($2::uuid[]) AS p(id)
		ON CONFLICT (store_id, product_id) DO NOTHING
	`, storeID, productIDs)
	return err
}

func (t *pgTx) LockBalances(ctx context.Context, storeID string, productIDs []string) (map[string]domain.Balance, error) {
	out := make(map[string]domain.Balance, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT product_id::text, qty_on_hand, avg_unit_cost, updated_at
		FROM inventory_balances
		WHERE store_id = $1 AND product_id = ANY($2::uuid[])
		ORDER BY product_id
		FOR UPDATE
	`, storeID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		bal := domain.Balance{StoreID: storeID}
		if err := rows.Scan(&bal.ProductID, &bal.QtyOnHand, &bal.AvgUnitCost, &bal.UpdatedAt); err != nil {
			return nil, err
		}
		out[bal.ProductID] = bal
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *pgTx) ApplyBalance(ctx context.Context, storeID string, productID string, qtyDelta int64, avgUnitCost int64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE inventory_balances
		SET qty_on_hand = qty_on_hand + $3, avg_unit_cost = $4, updated_at = now()
		WHERE store_id = $1 AND product_id = $2
	`, storeID, productID, qtyDelta, avgUnitCost)
	if err != nil {
		return err
	}
	return expectAffected(res, domain.ErrBalanceNotFound)
}

func (t *pgTx) AppendLedger(ctx context.Context, entry domain.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO inventory_ledger (
			id, store_id, product_id, txn_type, qty_delta, unit_cost,
			ref_type, ref_id, note, txn_at, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, entry.ID, entry.StoreID, entry.ProductID, entry.TxnType, entry.QtyDelta, entry.UnitCost,
		entry.RefType, nullIfEmpty(entry.RefID), entry.Note, entry.TxnAt, nullIfEmpty(entry.CreatedBy), entry.CreatedAt)
	return err
}

func (t *pgTx) ActivePrices(ctx context.Context, storeID string, productIDs []string) (map[string]int64, error) {
	prices := make(map[string]int64, len(productIDs))
	if len(productIDs) == 0 {
		return prices, nil
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT product_id::text, sell_price
		FROM store_products
		WHERE store_id = $1 AND product_id = ANY($2::uuid[]) AND is_active
	`, storeID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			price     int64
		)
		if err := rows.Scan(&productID, &price); err != nil {
			return nil, err
		}
		prices[productID] = price
	}
	return prices, rows.Err()
}

func (s *Store) GetBalance(ctx context.Context, storeID string, productID string) (*domain.Balance, error) {
	bal := domain.Balance{StoreID: storeID, ProductID: productID}
	err := s.db.QueryRowContext(ctx, `
		SELECT qty_on_hand, avg_unit_cost, updated_at
		FROM inventory_balances
		WHERE store_id = $1 AND product_id = $2
	`, storeID, productID).Scan(&bal.QtyOnHand, &bal.AvgUnitCost, &bal.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &bal, nil
}

func (s *Store) ListInventory(ctx context.Context, storeID string, query string) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id::text, p.sku, p.name, p.brand, p.product_type, p.size,
			sp.sell_price, sp.is_active,
			COALESCE(b.qty_on_hand, 0), COALESCE(b.avg_unit_cost, 0), COALESCE(b.updated_at, sp.updated_at)
		FROM store_products sp
		JOIN products p ON p.id = sp.product_id
		LEFT JOIN inventory_balances b ON b.store_id = sp.store_id AND b.product_id = sp.product_id
		WHERE sp.store_id = $1
			AND ($2::text = ''
				OR p.sku ILIKE '%' || $2 || '%'
				OR p.name ILIKE '%' || $2 || '%'
				OR p.brand ILIKE '%' || $2 || '%'
				OR p.size ILIKE '%' || $2 || '%')
		ORDER BY p.brand, p.name, p.size, p.sku
	`, storeID, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 128)
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(
			&item.ProductID, &item.SKU, &item.Name, &item.Brand, &item.ProductType, &item.Size,
			&item.SellPrice, &item.Active,
			&item.QtyOnHand, &item.AvgUnitCost, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.StockValue = item.QtyOnHand * item.AvgUnitCost
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListLedger(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text, store_id, product_id::text, txn_type, qty_delta, unit_cost,
			ref_type, COALESCE(ref_id::text, ''), note, txn_at, COALESCE(created_by, ''), created_at
		FROM inventory_ledger
		WHERE store_id = $1 AND ($2::text = '' OR product_id::text = $2)
		ORDER BY txn_at DESC, created_at DESC
		LIMIT NULLIF($3::int, 0) OFFSET $4
	`, filter.StoreID, filter.ProductID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, 64)
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.StoreID, &e.ProductID, &e.TxnType, &e.QtyDelta, &e.UnitCost,
			&e.RefType, &e.RefID, &e.Note, &e.TxnAt, &e.CreatedBy, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.TxnAt = e.TxnAt.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
