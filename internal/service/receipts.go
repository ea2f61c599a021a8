package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tokoban/backend/internal/costing"
	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

const voidNote = "void invoice"

// CreateSupplierInvoice records a supplier receipt and stocks in every line at
// its unit cost. Ledger rows carry the invoice date as txn_at.
func (s *Service) CreateSupplierInvoice(ctx context.Context, storeID string, req domain.SupplierInvoiceCreateRequest) (domain.SupplierInvoice, error) {
	if err := requireStore(storeID); err != nil {
		return domain.SupplierInvoice{}, err
	}
	supplierName := strings.Join(strings.Fields(req.SupplierName), " ")
	invoiceNo := strings.TrimSpace(req.InvoiceNo)
	if supplierName == "" || invoiceNo == "" {
		return domain.SupplierInvoice{}, fmt.Errorf("%w: supplier_name and invoice_no are required", domain.ErrInvalidRequest)
	}
	invoiceDate, err := s.parseLocalDate(req.InvoiceDate)
	if err != nil {
		return domain.SupplierInvoice{}, err
	}
	dueDate := strings.TrimSpace(req.DueDate)
	if dueDate != "" {
		if _, err := parseDate(dueDate); err != nil {
			return domain.SupplierInvoice{}, err
		}
	}
	if len(req.Items) == 0 {
		return domain.SupplierInvoice{}, fmt.Errorf("%w: invoice needs at least one item", domain.ErrInvalidRequest)
	}

	invoice := domain.SupplierInvoice{
		ID:          uuid.NewString(),
		StoreID:     storeID,
		InvoiceNo:   invoiceNo,
		InvoiceDate: invoiceDate.Format(domain.DateLayout),
		DueDate:     dueDate,
		Note:        strings.TrimSpace(req.Note),
		Status:      domain.InvoiceOpen,
		CreatedBy:   actorID(ctx),
		CreatedAt:   s.now(),
		Items:       make([]domain.InvoiceItem, 0, len(req.Items)),
	}
	for _, in := range req.Items {
		productID := strings.ToLower(strings.TrimSpace(in.ProductID))
		if productID == "" || in.Qty <= 0 || in.UnitCost < 0 {
			return domain.SupplierInvoice{}, fmt.Errorf("%w: invoice items need a product_id, a positive qty and a non-negative unit_cost", domain.ErrInvalidRequest)
		}
		line := domain.InvoiceItem{
			ID:        uuid.NewString(),
			ProductID: productID,
			Qty:       in.Qty,
			UnitCost:  in.UnitCost,
			LineTotal: in.Qty * in.UnitCost,
		}
		invoice.TotalAmount += line.LineTotal
		invoice.Items = append(invoice.Items, line)
	}

	err = s.repo.RunInTx(ctx, func(tx store.Tx) error {
		supplierID, err := tx.UpsertSupplier(ctx, storeID, supplierName)
		if err != nil {
			return err
		}
		invoice.SupplierID = supplierID
		if err := tx.InsertSupplierInvoice(ctx, invoice); err != nil {
			return err
		}

		ids := make([]string, 0, len(invoice.Items))
		for _, item := range invoice.Items {
			ids = append(ids, item.ProductID)
		}
		positions, err := lockedBalances(ctx, tx, storeID, ids)
		if err != nil {
			return err
		}
		for _, item := range invoice.Items {
			prev := positions[item.ProductID]
			next, err := costing.Incoming(prev, item.Qty, item.UnitCost)
			if err != nil {
				return fmt.Errorf("product %s: %w", item.ProductID, err)
			}
			err = s.moveStock(ctx, tx, storeID, item.ProductID, prev, next, domain.LedgerEntry{
				TxnType:   domain.TxnIn,
				UnitCost:  item.UnitCost,
				RefType:   domain.RefSupplierInvoice,
				RefID:     invoice.ID,
				Note:      invoice.InvoiceNo,
				TxnAt:     invoiceDate,
				CreatedBy: invoice.CreatedBy,
			})
			if err != nil {
				return err
			}
			positions[item.ProductID] = next
		}
		return nil
	})
	if err != nil {
		return domain.SupplierInvoice{}, err
	}

	invoice.SupplierName = supplierName
	invoice.Payments = []domain.SupplierPayment{}
	s.logger.Info("supplier invoice received",
		zap.String("store_id", storeID),
		zap.String("invoice_id", invoice.ID),
		zap.String("invoice_no", invoice.InvoiceNo),
		zap.Int64("total_amount", invoice.TotalAmount),
	)
	return invoice, nil
}

// PaySupplierInvoice records one payment under the invoice lock and re-derives
// the status from the cumulative paid amount.
func (s *Service) PaySupplierInvoice(ctx context.Context, storeID string, invoiceID string, req domain.SupplierPaymentRequest) (domain.SupplierPaymentResponse, error) {
	if err := requireStore(storeID); err != nil {
		return domain.SupplierPaymentResponse{}, err
	}
	if err := normalizeRefID("supplier invoice", &invoiceID); err != nil {
		return domain.SupplierPaymentResponse{}, err
	}
	if req.Amount <= 0 {
		return domain.SupplierPaymentResponse{}, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidRequest)
	}
	method := normalizeMethod(req.Method)
	if method == "" {
		return domain.SupplierPaymentResponse{}, fmt.Errorf("%w: payment_method is required", domain.ErrInvalidRequest)
	}
	paidAt := strings.TrimSpace(req.PaidAt)
	if paidAt == "" {
		paidAt = s.today()
	} else if _, err := parseDate(paidAt); err != nil {
		return domain.SupplierPaymentResponse{}, err
	}

	payment := domain.SupplierPayment{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
		Amount:    req.Amount,
		Method:    method,
		PaidAt:    paidAt,
		Note:      strings.TrimSpace(req.Note),
		CreatedBy: actorID(ctx),
		CreatedAt: s.now(),
	}

	var resp domain.SupplierPaymentResponse
	err := s.repo.RunInTx(ctx, func(tx store.Tx) error {
		invoice, err := tx.LockSupplierInvoice(ctx, storeID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == domain.InvoiceVoid {
			return fmt.Errorf("%w: %s", domain.ErrInvoiceVoided, invoice.InvoiceNo)
		}
		if err := tx.InsertSupplierPayment(ctx, payment); err != nil {
			return err
		}
		paid, err := tx.SumSupplierPayments(ctx, invoiceID)
		if err != nil {
			return err
		}
		status := deriveInvoiceStatus(paid, invoice.TotalAmount)
		if err := tx.SetSupplierInvoiceStatus(ctx, invoiceID, status); err != nil {
			return err
		}
		resp = domain.SupplierPaymentResponse{
			Payment:     payment,
			PaidAmount:  paid,
			TotalAmount: invoice.TotalAmount,
			Status:      status,
		}
		return nil
	})
	if err != nil {
		return domain.SupplierPaymentResponse{}, err
	}

	s.logger.Info("supplier invoice paid",
		zap.String("invoice_id", invoiceID),
		zap.Int64("amount", payment.Amount),
		zap.String("status", resp.Status),
	)
	return resp, nil
}

// VoidSupplierInvoice takes the received quantities back out of stock and
// marks the invoice VOID. Invoices with payments cannot be voided.
func (s *Service) VoidSupplierInvoice(ctx context.Context, storeID string, invoiceID string) (domain.SupplierInvoice, error) {
	if err := requireStore(storeID); err != nil {
		return domain.SupplierInvoice{}, err
	}
	if err := normalizeRefID("supplier invoice", &invoiceID); err != nil {
		return domain.SupplierInvoice{}, err
	}

	err := s.repo.RunInTx(ctx, func(tx store.Tx) error {
		invoice, err := tx.LockSupplierInvoice(ctx, storeID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == domain.InvoiceVoid {
			return fmt.Errorf("%w: %s", domain.ErrInvoiceVoided, invoice.InvoiceNo)
		}
		paid, err := tx.SumSupplierPayments(ctx, invoiceID)
		if err != nil {
			return err
		}
		if paid > 0 {
			return fmt.Errorf("%w: invoice %s already has payments", domain.ErrInvalidRequest, invoice.InvoiceNo)
		}

		ids := make([]string, 0, len(invoice.Items))
		for _, item := range invoice.Items {
			ids = append(ids, item.ProductID)
		}
		positions, err := lockedBalances(ctx, tx, storeID, ids)
		if err != nil {
			return err
		}
		for _, item := range invoice.Items {
			prev := positions[item.ProductID]
			next, err := costing.Outgoing(prev, item.Qty)
			if err != nil {
				return fmt.Errorf("product %s: %w", item.ProductID, err)
			}
			err = s.moveStock(ctx, tx, storeID, item.ProductID, prev, next, domain.LedgerEntry{
				TxnType:   domain.TxnOut,
				UnitCost:  prev.AvgCost,
				RefType:   domain.RefSupplierInvoice,
				RefID:     invoice.ID,
				Note:      voidNote,
				CreatedBy: actorID(ctx),
			})
			if err != nil {
				return err
			}
			positions[item.ProductID] = next
		}
		return tx.SetSupplierInvoiceStatus(ctx, invoiceID, domain.InvoiceVoid)
	})
	if err != nil {
		return domain.SupplierInvoice{}, err
	}

	s.logger.Info("supplier invoice voided", zap.String("store_id", storeID), zap.String("invoice_id", invoiceID))
	return s.GetSupplierInvoice(ctx, storeID, invoiceID)
}

func (s *Service) GetSupplierInvoice(ctx context.Context, storeID string, invoiceID string) (domain.SupplierInvoice, error) {
	if err := requireStore(storeID); err != nil {
		return domain.SupplierInvoice{}, err
	}
	if err := normalizeRefID("supplier invoice", &invoiceID); err != nil {
		return domain.SupplierInvoice{}, err
	}
	invoice, err := s.repo.GetSupplierInvoice(ctx, storeID, invoiceID)
	if err != nil {
		return domain.SupplierInvoice{}, err
	}
	if invoice.Payments == nil {
		invoice.Payments = []domain.SupplierPayment{}
	}
	return *invoice, nil
}

func (s *Service) ListSupplierInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.SupplierInvoice, error) {
	if err := requireStore(filter.StoreID); err != nil {
		return nil, err
	}
	filter.Status = strings.ToUpper(strings.TrimSpace(filter.Status))
	switch filter.Status {
	case "", domain.InvoiceOpen, domain.InvoicePartial, domain.InvoicePaid, domain.InvoiceVoid:
	default:
		return nil, fmt.Errorf("%w: unknown invoice status %q", domain.ErrInvalidRequest, filter.Status)
	}
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.repo.ListSupplierInvoices(ctx, filter)
}

// deriveInvoiceStatus maps the cumulative paid amount onto OPEN, PARTIAL or
// PAID. Overpayment stays PAID.
func deriveInvoiceStatus(paid int64, total int64) string {
	switch {
	case paid <= 0:
		return domain.InvoiceOpen
	case paid >= total:
		return domain.InvoicePaid
	default:
		return domain.InvoicePartial
	}
}

// parseLocalDate parses a YYYY-MM-DD date as midnight in the business timezone.
func (s *Service) parseLocalDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(value), s.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidRequest)
	}
	return parsed, nil
}
