package postgres

import (
	"context"
	"database/sql"
	"time"

	"tokoban/backend/internal/domain"
)

const saleColumns = `
	id::text, store_id, to_char(sale_date, 'YYYY-MM-DD'), payment_type, customer_plate_no, expense_only,
	subtotal, discount, service_fee, total, COALESCE(created_by, ''), created_at, updated_at, printed_first_at
`

func scanSale(row interface{ Scan(dest ...any) error }) (*domain.Sale, error) {
	var (
		sale    domain.Sale
		printed sql.NullTime
	)
	err := row.Scan(
		&sale.ID, &sale.StoreID, &sale.SaleDate, &sale.PaymentType, &sale.PlateNo, &sale.ExpenseOnly,
		&sale.Subtotal, &sale.Discount, &sale.ServiceFee, &sale.Total, &sale.CreatedBy, &sale.CreatedAt, &sale.UpdatedAt, &printed,
	)
	if err != nil {
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.UpdatedAt = sale.UpdatedAt.UTC()
	if printed.Valid {
		at := printed.Time.UTC()
		sale.PrintedFirstAt = &at
	}
	return &sale, nil
}

func (t *pgTx) UpsertCustomer(ctx context.Context, storeID string, plateNo string) error {
	if plateNo == "" {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO customers (store_id, plate_no, created_at)
		VALUES ($1,$2,now())
		ON CONFLICT (store_id, plate_no) DO NOTHING
	`, storeID, plateNo)
	return err
}

func (t *pgTx) InsertSale(ctx context.Context, sale domain.Sale) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, store_id, sale_date, payment_type, customer_plate_no, expense_only,
			subtotal, discount, service_fee, total, created_by, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, sale.ID, sale.StoreID, sale.SaleDate, sale.PaymentType, sale.PlateNo, sale.ExpenseOnly,
		sale.Subtotal, sale.Discount, sale.ServiceFee, sale.Total, nullIfEmpty(sale.CreatedBy), sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		return err
	}
	return insertSaleChildren(ctx, t.tx, sale, true)
}

func (t *pgTx) LockSale(ctx context.Context, storeID string, saleID string) (*domain.Sale, error) {
	sale, err := scanSale(t.tx.QueryRowContext(ctx, `SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1 AND store_id = $2
		FOR UPDATE
	`, saleID, storeID))
	if err != nil {
		return nil, notFound(err)
	}
	if err := loadSaleChildren(ctx, t.tx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (t *pgTx) UpdateSale(ctx context.Context, sale domain.Sale, replaceItems bool) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE sales
		SET payment_type = $2, customer_plate_no = $3, subtotal = $4, discount = $5,
			service_fee = $6, total = $7, updated_at = $8
		WHERE id = $1
	`, sale.ID, sale.PaymentType, sale.PlateNo, sale.Subtotal, sale.Discount, sale.ServiceFee, sale.Total, sale.UpdatedAt)
	if err != nil {
		return err
	}
	if err := expectAffected(res, domain.ErrReferenceNotFound); err != nil {
		return err
	}

	tables := []string{"sales_custom_items", "sales_payments", "sales_expenses"}
	if replaceItems {
		tables = append(tables, "sales_items")
	}
	for _, table := range tables {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE sale_id = $1`, sale.ID); err != nil {
			return err
		}
	}
	return insertSaleChildren(ctx, t.tx, sale, replaceItems)
}

func insertSaleChildren(ctx context.Context, q queryer, sale domain.Sale, withItems bool) error {
	if withItems {
		for i, item := range sale.Items {
			_, err := q.ExecContext(ctx, `
				INSERT INTO sales_items (id, sale_id, position, product_id, qty, sell_price, unit_cost, profit, line_total)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			`, item.ID, sale.ID, i, item.ProductID, item.Qty, item.SellPrice, item.UnitCost, item.Profit, item.LineTotal)
			if err != nil {
				return err
			}
		}
	}
	for i, item := range sale.CustomItems {
		_, err := q.ExecContext(ctx, `
			INSERT INTO sales_custom_items (id, sale_id, position, item_name, qty, price, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, sale.ID, i, item.Name, item.Qty, item.Price, item.LineTotal)
		if err != nil {
			return err
		}
	}
	for i, p := range sale.Payments {
		_, err := q.ExecContext(ctx, `
			INSERT INTO sales_payments (sale_id, position, payment_type, amount)
			VALUES ($1,$2,$3,$4)
		`, sale.ID, i, p.Method, p.Amount)
		if err != nil {
			return err
		}
	}
	for i, e := range sale.Expenses {
		_, err := q.ExecContext(ctx, `
			INSERT INTO sales_expenses (id, sale_id, position, item_name, amount)
			VALUES ($1,$2,$3,$4,$5)
		`, e.ID, sale.ID, i, e.Name, e.Amount)
		if err != nil {
			return err
		}
	}
	return nil
}

func loadSaleChildren(ctx context.Context, q queryer, sale *domain.Sale) error {
	rows, err := q.QueryContext(ctx, `
		SELECT si.id::text, si.product_id::text, p.sku, p.name, si.qty, si.sell_price, si.unit_cost, si.profit, si.line_total
		FROM sales_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1
		ORDER BY si.position
	`, sale.ID)
	if err != nil {
		return err
	}
	sale.Items = make([]domain.SaleItem, 0, 4)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.SKU, &item.Name, &item.Qty, &item.SellPrice, &item.UnitCost, &item.Profit, &item.LineTotal); err != nil {
			rows.Close()
			return err
		}
		sale.Items = append(sale.Items, item)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id::text, item_name, qty, price, line_total
		FROM sales_custom_items
		WHERE sale_id = $1
		ORDER BY position
	`, sale.ID)
	if err != nil {
		return err
	}
	sale.CustomItems = make([]domain.CustomItem, 0)
	for rows.Next() {
		var item domain.CustomItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Qty, &item.Price, &item.LineTotal); err != nil {
			rows.Close()
			return err
		}
		sale.CustomItems = append(sale.CustomItems, item)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT payment_type, amount
		FROM sales_payments
		WHERE sale_id = $1
		ORDER BY position
	`, sale.ID)
	if err != nil {
		return err
	}
	sale.Payments = make([]domain.Payment, 0, 2)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.Method, &p.Amount); err != nil {
			rows.Close()
			return err
		}
		sale.Payments = append(sale.Payments, p)
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id::text, item_name, amount
		FROM sales_expenses
		WHERE sale_id = $1
		ORDER BY position
	`, sale.ID)
	if err != nil {
		return err
	}
	sale.Expenses = make([]domain.Expense, 0)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Name, &e.Amount); err != nil {
			rows.Close()
			return err
		}
		sale.Expenses = append(sale.Expenses, e)
	}
	return closeRows(rows)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

func (s *Store) GetSale(ctx context.Context, storeID string, saleID string) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1 AND store_id = $2
	`, saleID, storeID))
	if err != nil {
		return nil, notFound(err)
	}
	if err := loadSaleChildren(ctx, s.db, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleListFilter) ([]domain.SaleSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text, to_char(sale_date, 'YYYY-MM-DD'), payment_type, customer_plate_no, expense_only, total, created_at
		FROM sales
		WHERE store_id = $1
			AND ($2::text = '' OR sale_date = $2::date)
			AND ($3::text = '' OR customer_plate_no ILIKE '%' || $3 || '%')
		ORDER BY created_at DESC, id
		LIMIT NULLIF($4::int, 0) OFFSET $5
	`, filter.StoreID, filter.Date, filter.Query, filter.Limit, filter.Offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]domain.SaleSummary, 0, 32)
	for rows.Next() {
		var sum domain.SaleSummary
		if err := rows.Scan(&sum.ID, &sum.SaleDate, &sum.PaymentType, &sum.PlateNo, &sum.ExpenseOnly, &sum.Total, &sum.CreatedAt); err != nil {
			return nil, err
		}
		sum.CreatedAt = sum.CreatedAt.UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkSalePrinted sets printed_first_at only when it is still empty and
// returns whichever value is stored afterwards.
func (s *Store) MarkSalePrinted(ctx context.Context, storeID string, saleID string, at time.Time) (time.Time, error) {
	var printed time.Time
	err := s.db.QueryRowContext(ctx, `
		UPDATE sales
		SET printed_first_at = COALESCE(printed_first_at, $3)
		WHERE id = $1 AND store_id = $2
		RETURNING printed_first_at
	`, saleID, storeID, at).Scan(&printed)
	if err != nil {
		return time.Time{}, notFound(err)
	}
	return printed.UTC(), nil
}
