package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tokoban/backend/internal/domain"
)

const invoiceColumns = `
	i.id::text, i.store_id, i.supplier_id::text, s.name, i.invoice_no,
	to_char(i.invoice_date, 'YYYY-MM-DD'), COALESCE(to_char(i.due_date, 'YYYY-MM-DD'), ''),
	i.note, i.total_amount, i.status, COALESCE(i.created_by, ''), i.created_at
`

func scanInvoice(row interface{ Scan(dest ...any) error }, extra ...any) (*domain.SupplierInvoice, error) {
	var inv domain.SupplierInvoice
	dest := []any{
		&inv.ID, &inv.StoreID, &inv.SupplierID, &inv.SupplierName, &inv.InvoiceNo,
		&inv.InvoiceDate, &inv.DueDate,
		&inv.Note, &inv.TotalAmount, &inv.Status, &inv.CreatedBy, &inv.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	return &inv, nil
}

func (t *pgTx) UpsertSupplier(ctx context.Context, storeID string, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: supplier name required", domain.ErrInvalidData)
	}

	// The no-op update makes RETURNING yield the existing id on conflict.
	var id string
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO suppliers (id, store_id, name, name_normalized, created_at)
		VALUES ($1,$2,$3,lower($3),now())
		ON CONFLICT (store_id, name_normalized)
		DO UPDATE SET name_normalized = EXCLUDED.name_normalized
		RETURNING id::text
	`, uuid.NewString(), storeID, name).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (t *pgTx) InsertSupplierInvoice(ctx context.Context, invoice domain.SupplierInvoice) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO supplier_invoices (
			id, store_id, supplier_id, invoice_no, invoice_date, due_date,
			note, total_amount, status, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, invoice.ID, invoice.StoreID, invoice.SupplierID, invoice.InvoiceNo, invoice.InvoiceDate, nullIfEmpty(invoice.DueDate),
		invoice.Note, invoice.TotalAmount, invoice.Status, nullIfEmpty(invoice.CreatedBy), invoice.CreatedAt)
	if err != nil {
		return err
	}

	for i, item := range invoice.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO supplier_invoice_items (id, invoice_id, position, product_id, qty, unit_cost, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, invoice.ID, i, item.ProductID, item.Qty, item.UnitCost, item.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) LockSupplierInvoice(ctx context.Context, storeID string, invoiceID string) (*domain.SupplierInvoice, error) {
	inv, err := scanInvoice(t.tx.QueryRowContext(ctx, `SELECT `+invoiceColumns+`
		FROM supplier_invoices i
		JOIN suppliers s ON s.id = i.supplier_id
		WHERE i.id = $1 AND i.store_id = $2
		FOR UPDATE OF i
	`, invoiceID, storeID))
	if err != nil {
		return nil, notFound(err)
	}
	if inv.Items, err = loadInvoiceItems(ctx, t.tx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (t *pgTx) InsertSupplierPayment(ctx context.Context, payment domain.SupplierPayment) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO supplier_payments (id, invoice_id, amount, payment_method, paid_at, note, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, payment.ID, payment.InvoiceID, payment.Amount, payment.Method, payment.PaidAt, payment.Note,
		nullIfEmpty(payment.CreatedBy), payment.CreatedAt)
	return err
}

func (t *pgTx) SumSupplierPayments(ctx context.Context, invoiceID string) (int64, error) {
	var total int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)::bigint
		FROM supplier_payments
		WHERE invoice_id = $1
	`, invoiceID).Scan(&total)
	return total, err
}

func (t *pgTx) SetSupplierInvoiceStatus(ctx context.Context, invoiceID string, status string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE supplier_invoices SET status = $2 WHERE id = $1
	`, invoiceID, status)
	if err != nil {
		return err
	}
	return expectAffected(res, domain.ErrReferenceNotFound)
}

func loadInvoiceItems(ctx context.Context, q queryer, invoiceID string) ([]domain.InvoiceItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id::text, product_id::text, qty, unit_cost, line_total
		FROM supplier_invoice_items
		WHERE invoice_id = $1
		ORDER BY position
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InvoiceItem, 0, 4)
	for rows.Next() {
		var item domain.InvoiceItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Qty, &item.UnitCost, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func loadSupplierPayments(ctx context.Context, q queryer, invoiceID string) ([]domain.SupplierPayment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id::text, invoice_id::text, amount, payment_method, to_char(paid_at, 'YYYY-MM-DD'),
			note, COALESCE(created_by, ''), created_at
		FROM supplier_payments
		WHERE invoice_id = $1
		ORDER BY created_at, id
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.SupplierPayment, 0, 2)
	for rows.Next() {
		var p domain.SupplierPayment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidAt, &p.Note, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

const paidAmountColumn = `,
	(SELECT COALESCE(SUM(p.amount), 0)::bigint FROM supplier_payments p WHERE p.invoice_id = i.id)
`

func (s *Store) GetSupplierInvoice(ctx context.Context, storeID string, invoiceID string) (*domain.SupplierInvoice, error) {
	var paid int64
	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+paidAmountColumn+`
		FROM supplier_invoices i
		JOIN suppliers s ON s.id = i.supplier_id
		WHERE i.id = $1 AND i.store_id = $2
	`, invoiceID, storeID), &paid)
	if err != nil {
		return nil, notFound(err)
	}
	inv.PaidAmount = paid

	if inv.Items, err = loadInvoiceItems(ctx, s.db, inv.ID); err != nil {
		return nil, err
	}
	if inv.Payments, err = loadSupplierPayments(ctx, s.db, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Store) ListSupplierInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.SupplierInvoice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+invoiceColumns+paidAmountColumn+`
		FROM supplier_invoices i
		JOIN suppliers s ON s.id = i.supplier_id
		WHERE i.store_id = $1 AND ($2::text = '' OR i.status = $2)
		ORDER BY i.invoice_date DESC, i.created_at DESC
		LIMIT NULLIF($3::int, 0) OFFSET $4
	`, filter.StoreID, filter.Status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SupplierInvoice, 0, 32)
	for rows.Next() {
		var paid int64
		inv, err := scanInvoice(rows, &paid)
		if err != nil {
			return nil, err
		}
		inv.PaidAmount = paid
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
