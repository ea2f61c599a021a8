package domain

import "time"

const (
	RoleAdmin = "ADMIN"
	RoleStaff = "STAFF"
)

// Ledger movement kinds.
const (
	TxnIn     = "IN"
	TxnOut    = "OUT"
	TxnAdjust = "ADJUST"
)

// Ledger reference kinds.
const (
	RefSale            = "SALE"
	RefSupplierInvoice = "SUPPLIER_INVOICE"
	RefManualAdjust    = "MANUAL_ADJUST"
)

const (
	PaymentCash     = "CASH"
	PaymentTransfer = "TRANSFER"
	PaymentQRIS     = "QRIS"
	PaymentDebit    = "DEBIT"
	PaymentCredit   = "CREDIT"
	PaymentTempo    = "TEMPO"
	PaymentMixed    = "MIXED"
)

const (
	InvoiceOpen    = "OPEN"
	InvoicePartial = "PARTIAL"
	InvoicePaid    = "PAID"
	InvoiceVoid    = "VOID"
)

// ExpensePlateNo is the plate recorded on expense-only sales.
const ExpensePlateNo = "PENGELUARAN"

const DateLayout = "2006-01-02"

var PaymentMethods = []string{PaymentCash, PaymentTransfer, PaymentQRIS, PaymentDebit, PaymentCredit, PaymentTempo}

func IsPaymentMethod(method string) bool {
	for _, m := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Actor is the authenticated principal attached to a request.
type Actor struct {
	UserID   string
	Username string
	Role     string
	StoreID  string
}

type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	StoreID   string    `json:"store_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	StoreID     string `json:"store_id,omitempty"`
	ExpiresAt   string `json:"expires_at"`
}

type Balance struct {
	StoreID     string    `json:"store_id"`
	ProductID   string    `json:"product_id"`
	QtyOnHand   int64     `json:"qty_on_hand"`
	AvgUnitCost int64     `json:"avg_unit_cost"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type LedgerEntry struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	ProductID string    `json:"product_id"`
	TxnType   string    `json:"txn_type"`
	QtyDelta  int64     `json:"qty_delta"`
	UnitCost  int64     `json:"unit_cost"`
	RefType   string    `json:"ref_type"`
	RefID     string    `json:"ref_id,omitempty"`
	Note      string    `json:"note,omitempty"`
	TxnAt     time.Time `json:"txn_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type LedgerFilter struct {
	StoreID   string
	ProductID string
	Limit     int
	Offset    int
}

type Product struct {
	ID          string `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Brand       string `json:"brand"`
	ProductType string `json:"product_type"`
	Size        string `json:"size"`
	SellPrice   int64  `json:"sell_price"`
	Active      bool   `json:"is_active"`
}

type ProductCreateRequest struct {
	SKU             string `json:"sku" validate:"required,max=64"`
	Name            string `json:"name" validate:"required,max=100"`
	Brand           string `json:"brand" validate:"required,max=64"`
	ProductType     string `json:"product_type" validate:"required,max=64"`
	Size            string `json:"size" validate:"required,max=32"`
	SellPrice       int64  `json:"sell_price" validate:"gte=0"`
	InitialQty      int64  `json:"initial_qty" validate:"gte=0"`
	InitialUnitCost int64  `json:"initial_unit_cost" validate:"gte=0"`
	Active          *bool  `json:"is_active,omitempty"`
}

type StoreProductUpdateRequest struct {
	SellPrice int64 `json:"sell_price" validate:"gte=0"`
	Active    *bool `json:"is_active,omitempty"`
}

type InventoryItem struct {
	ProductID   string    `json:"product_id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	ProductType string    `json:"product_type"`
	Size        string    `json:"size"`
	Category    string    `json:"category"`
	SellPrice   int64     `json:"sell_price"`
	Active      bool      `json:"is_active"`
	QtyOnHand   int64     `json:"qty_on_hand"`
	AvgUnitCost int64     `json:"avg_unit_cost"`
	StockValue  int64     `json:"stock_value"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type InventoryFilter struct {
	StoreID  string
	Query    string
	Category string
	Limit    int
	Offset   int
}

type InventoryListResponse struct {
	Items []InventoryItem `json:"items"`
	Total int             `json:"total"`
}

type CategorySummary struct {
	Category   string `json:"category"`
	Products   int    `json:"products"`
	QtyOnHand  int64  `json:"qty_on_hand"`
	StockValue int64  `json:"stock_value"`
}

type AdjustmentRequest struct {
	ProductID    string `json:"product_id" validate:"required,uuid"`
	QtyDelta     int64  `json:"qty_delta"`
	UnitCost     *int64 `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	ResetAvgCost bool   `json:"reset_avg_cost"`
	Note         string `json:"note" validate:"max=200"`
}

type AdjustmentResponse struct {
	Balance       Balance `json:"balance"`
	LedgerWritten bool    `json:"ledger_written"`
}

type Sale struct {
	ID             string       `json:"id"`
	StoreID        string       `json:"store_id"`
	SaleDate       string       `json:"sale_date"`
	PaymentType    string       `json:"payment_type"`
	PlateNo        string       `json:"customer_plate_no"`
	ExpenseOnly    bool         `json:"expense_only"`
	Subtotal       int64        `json:"subtotal"`
	Discount       int64        `json:"discount"`
	ServiceFee     int64        `json:"service_fee"`
	Total          int64        `json:"total"`
	CreatedBy      string       `json:"created_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	PrintedFirstAt *time.Time   `json:"printed_first_at,omitempty"`
	Items          []SaleItem   `json:"items"`
	CustomItems    []CustomItem `json:"custom_items"`
	Payments       []Payment    `json:"payments"`
	Expenses       []Expense    `json:"expenses"`
}

type SaleItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	SKU       string `json:"sku,omitempty"`
	Name      string `json:"name,omitempty"`
	Qty       int64  `json:"qty"`
	SellPrice int64  `json:"sell_price"`
	UnitCost  int64  `json:"unit_cost"`
	Profit    int64  `json:"profit"`
	LineTotal int64  `json:"line_total"`
}

type CustomItem struct {
	ID        string `json:"id"`
	Name      string `json:"item_name"`
	Qty       int64  `json:"qty"`
	Price     int64  `json:"price"`
	LineTotal int64  `json:"line_total"`
}

type Payment struct {
	Method string `json:"payment_type"`
	Amount int64  `json:"amount"`
}

type Expense struct {
	ID     string `json:"id"`
	Name   string `json:"item_name"`
	Amount int64  `json:"amount"`
}

type SaleSummary struct {
	ID          string    `json:"id"`
	SaleDate    string    `json:"sale_date"`
	PaymentType string    `json:"payment_type"`
	PlateNo     string    `json:"customer_plate_no"`
	ExpenseOnly bool      `json:"expense_only"`
	Total       int64     `json:"total"`
	CreatedAt   time.Time `json:"created_at"`
}

type SaleListFilter struct {
	StoreID string
	Date    string
	Query   string
	Limit   int
	Offset  int
}

type SaleItemInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int64  `json:"qty" validate:"gt=0"`
}

type CustomItemInput struct {
	Name  string `json:"item_name" validate:"required,max=100"`
	Qty   int64  `json:"qty" validate:"gt=0"`
	Price int64  `json:"price" validate:"gte=0"`
}

type PaymentInput struct {
	Method string `json:"payment_type" validate:"required,max=16"`
	Amount int64  `json:"amount"`
}

type ExpenseInput struct {
	Name   string `json:"item_name" validate:"required,max=100"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

type SaleCreateRequest struct {
	SaleDate    string            `json:"sale_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentType string            `json:"payment_type" validate:"max=16"`
	Payments    []PaymentInput    `json:"payments" validate:"max=6,dive"`
	PlateNo     string            `json:"plate_no" validate:"max=20"`
	Items       []SaleItemInput   `json:"items" validate:"dive"`
	CustomItems []CustomItemInput `json:"custom_items" validate:"dive"`
	Discount    int64             `json:"discount" validate:"gte=0"`
	ServiceFee  int64             `json:"service_fee" validate:"gte=0"`
	Expenses    []ExpenseInput    `json:"expenses" validate:"dive"`
	ExpenseOnly bool              `json:"expense_only"`
}

// SaleUpdateRequest carries optional replacements; nil means "leave unchanged".
type SaleUpdateRequest struct {
	PaymentType *string            `json:"payment_type,omitempty" validate:"omitempty,max=16"`
	Payments    *[]PaymentInput    `json:"payments,omitempty" validate:"omitempty,max=6,dive"`
	PlateNo     *string            `json:"plate_no,omitempty" validate:"omitempty,min=1,max=20"`
	Discount    *int64             `json:"discount,omitempty" validate:"omitempty,gte=0"`
	ServiceFee  *int64             `json:"service_fee,omitempty" validate:"omitempty,gte=0"`
	Items       *[]SaleItemInput   `json:"items,omitempty" validate:"omitempty,dive"`
	CustomItems *[]CustomItemInput `json:"custom_items,omitempty" validate:"omitempty,dive"`
	Expenses    *[]ExpenseInput    `json:"expenses,omitempty" validate:"omitempty,dive"`
}

func (r SaleUpdateRequest) IsEmpty() bool {
	return r.PaymentType == nil && r.Payments == nil && r.PlateNo == nil && r.Discount == nil &&
		r.ServiceFee == nil && r.Items == nil && r.CustomItems == nil && r.Expenses == nil
}

type PrintedResponse struct {
	SaleID         string    `json:"sale_id"`
	PrintedFirstAt time.Time `json:"printed_first_at"`
}

type Supplier struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierInvoice struct {
	ID           string            `json:"id"`
	StoreID      string            `json:"store_id"`
	SupplierID   string            `json:"supplier_id"`
	SupplierName string            `json:"supplier_name,omitempty"`
	InvoiceNo    string            `json:"invoice_no"`
	InvoiceDate  string            `json:"invoice_date"`
	DueDate      string            `json:"due_date,omitempty"`
	Note         string            `json:"note,omitempty"`
	TotalAmount  int64             `json:"total_amount"`
	PaidAmount   int64             `json:"paid_amount"`
	Status       string            `json:"status"`
	CreatedBy    string            `json:"created_by,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Items        []InvoiceItem     `json:"items,omitempty"`
	Payments     []SupplierPayment `json:"payments,omitempty"`
}

type InvoiceItem struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"`
	UnitCost  int64  `json:"unit_cost"`
	LineTotal int64  `json:"line_total"`
}

type SupplierPayment struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"payment_method"`
	PaidAt    string    `json:"paid_at"`
	Note      string    `json:"note,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type InvoiceItemInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int64  `json:"qty" validate:"gt=0"`
	UnitCost  int64  `json:"unit_cost" validate:"gte=0"`
}

type SupplierInvoiceCreateRequest struct {
	SupplierName string             `json:"supplier_name" validate:"required,max=100"`
	InvoiceNo    string             `json:"invoice_no" validate:"required,max=100"`
	InvoiceDate  string             `json:"invoice_date" validate:"required,datetime=2006-01-02"`
	DueDate      string             `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Note         string             `json:"note" validate:"max=200"`
	Items        []InvoiceItemInput `json:"items" validate:"required,min=1,dive"`
}

type SupplierPaymentRequest struct {
	Amount int64  `json:"amount" validate:"gt=0"`
	Method string `json:"payment_method" validate:"required,max=30"`
	PaidAt string `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
	Note   string `json:"note" validate:"max=200"`
}

type SupplierPaymentResponse struct {
	Payment     SupplierPayment `json:"payment"`
	PaidAmount  int64           `json:"paid_amount"`
	TotalAmount int64           `json:"total_amount"`
	Status      string          `json:"status"`
}

type InvoiceListFilter struct {
	StoreID string
	Status  string
	Limit   int
	Offset  int
}
