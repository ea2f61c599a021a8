package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/service"
	"tokoban/backend/internal/store/memory"
)

const testSecret = "test-secret-key-with-at-least-32-chars"

// newTestAPI builds a full API over the seeded in-memory store so handler
// tests exercise the complete request path.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	repo := memory.NewSeeded(zap.NewNop())
	svc := service.New(repo, nil, zap.NewNop(), service.Options{DefaultStoreID: memory.SeedStoreID})
	auth := NewAuthManager(testSecret, time.Hour, repo, nil)
	api, err := New(svc, auth, Options{AllowedOrigin: "*"})
	require.NoError(t, err)
	return api.Handler()
}

func doJSON(t *testing.T, h http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, username string, password string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func tireSaleRequest() domain.SaleCreateRequest {
	return domain.SaleCreateRequest{
		PlateNo:     "b 1234 xyz",
		PaymentType: "cash",
		Items: []domain.SaleItemInput{
			{ProductID: memory.SeedTireID, Qty: 2},
			{ProductID: memory.SeedTire2ID, Qty: 1},
		},
		Discount:   5000,
		ServiceFee: 2000,
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
}

func TestHandleLogin(t *testing.T) {
	h := newTestAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "kasir", Password: "kasir123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[domain.LoginResponse](t, rec)
	assert.Equal(t, domain.RoleStaff, resp.Role)
	assert.Equal(t, memory.SeedStoreID, resp.StoreID)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "kasir", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "kasir"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSalesRequireBearerToken(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/sales", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/sales", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaffSaleLifecycle(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "kasir", "kasir123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/sales", token, tireSaleRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[struct {
		Sale domain.Sale `json:"sale"`
	}](t, rec).Sale
	assert.Equal(t, int64(130000), created.Subtotal)
	assert.Equal(t, int64(127000), created.Total)
	assert.Equal(t, "B 1234 XYZ", created.PlateNo)
	require.Len(t, created.Payments, 1)
	assert.Equal(t, domain.PaymentCash, created.Payments[0].Method)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/sales/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/v1/sales?all_dates=true&q=1234", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeBody[struct {
		Sales []domain.SaleSummary `json:"sales"`
	}](t, rec).Sales
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales/"+created.ID+"/printed", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody[domain.PrintedResponse](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales/"+created.ID+"/printed", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decodeBody[domain.PrintedResponse](t, rec)
	assert.True(t, first.PrintedFirstAt.Equal(again.PrintedFirstAt))

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/sales/"+created.ID, token, map[string]any{"discount": 0})
	assert.Equal(t, http.StatusForbidden, rec.Code, "staff may not edit sales")
}

func TestCreateSaleErrorStatuses(t *testing.T) {
	h := newTestAPI(t)
	token := login(t, h, "kasir", "kasir123")

	tooMany := tireSaleRequest()
	tooMany.Items[0].Qty = 999
	rec := doJSON(t, h, http.MethodPost, "/api/v1/sales", token, tooMany)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	dup := tireSaleRequest()
	dup.Items[1].ProductID = memory.SeedTireID
	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", token, dup)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	mismatch := tireSaleRequest()
	mismatch.PaymentType = domain.PaymentMixed
	mismatch.Payments = []domain.PaymentInput{{Method: "CASH", Amount: 100000}, {Method: "QRIS", Amount: 20000}}
	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", token, mismatch)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	invalid := tireSaleRequest()
	invalid.Items[0].Qty = 0
	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", token, invalid)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[struct {
		Fields []fieldError `json:"fields"`
	}](t, rec)
	require.NotEmpty(t, body.Fields)
	assert.Equal(t, "items[0].qty", body.Fields[0].Field)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/sales/6f1c3a52-0000-0000-0000-000000000000", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/sales/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminEditsSale(t *testing.T) {
	h := newTestAPI(t)
	admin := login(t, h, "admin", "admin123")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/sales", admin, tireSaleRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[struct {
		Sale domain.Sale `json:"sale"`
	}](t, rec).Sale

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/sales/"+created.ID, admin, map[string]any{"discount": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decodeBody[struct {
		Sale domain.Sale `json:"sale"`
	}](t, rec).Sale
	assert.Equal(t, int64(132000), edited.Total)
	require.Len(t, edited.Payments, 1)
	assert.Equal(t, int64(132000), edited.Payments[0].Amount)

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/sales/"+created.ID, admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoreResolution(t *testing.T) {
	h := newTestAPI(t)
	staff := login(t, h, "kasir", "kasir123")
	admin := login(t, h, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory", nil)
	req.Header.Set("Authorization", "Bearer "+staff)
	req.Header.Set("X-Store-Id", "branch-2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/inventory", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	own := decodeBody[domain.InventoryListResponse](t, rec)
	assert.Equal(t, 6, own.Total)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/inventory?store_id=branch-2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	other := decodeBody[domain.InventoryListResponse](t, rec)
	assert.Equal(t, 0, other.Total)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/inventory?category=BAN", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tires := decodeBody[domain.InventoryListResponse](t, rec)
	assert.Equal(t, 2, tires.Total)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/inventory?category=KNALPOT", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjustmentAndLedgerAreAdminOnly(t *testing.T) {
	h := newTestAPI(t)
	staff := login(t, h, "kasir", "kasir123")
	admin := login(t, h, "admin", "admin123")
	adjust := domain.AdjustmentRequest{ProductID: memory.SeedOilID, QtyDelta: -2, Note: "broken bottles"}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/inventory/adjust", staff, adjust)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/inventory/adjust", admin, adjust)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[domain.AdjustmentResponse](t, rec)
	assert.True(t, resp.LedgerWritten)
	assert.Equal(t, int64(38), resp.Balance.QtyOnHand)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/inventory/ledger?product_id="+memory.SeedOilID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[struct {
		Entries []domain.LedgerEntry `json:"entries"`
	}](t, rec).Entries
	require.Len(t, entries, 2)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/inventory/summary", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSupplierInvoiceEndpoints(t *testing.T) {
	h := newTestAPI(t)
	admin := login(t, h, "admin", "admin123")

	create := domain.SupplierInvoiceCreateRequest{
		SupplierName: "PT Sumber Oli",
		InvoiceNo:    "SO-1",
		InvoiceDate:  "2026-02-01",
		Items:        []domain.InvoiceItemInput{{ProductID: memory.SeedOilID, Qty: 2, UnitCost: 40000}},
	}
	rec := doJSON(t, h, http.MethodPost, "/api/v1/supplier-invoices", admin, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paid := decodeBody[struct {
		Invoice domain.SupplierInvoice `json:"invoice"`
	}](t, rec).Invoice
	assert.Equal(t, int64(80000), paid.TotalAmount)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/supplier-invoices/"+paid.ID+"/payments", admin,
		domain.SupplierPaymentRequest{Amount: 80000, Method: "transfer"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := decodeBody[domain.SupplierPaymentResponse](t, rec)
	assert.Equal(t, domain.InvoicePaid, payment.Status)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/supplier-invoices/"+paid.ID+"/void", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "invoices with payments cannot be voided")

	create.InvoiceNo = "SO-2"
	rec = doJSON(t, h, http.MethodPost, "/api/v1/supplier-invoices", admin, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	open := decodeBody[struct {
		Invoice domain.SupplierInvoice `json:"invoice"`
	}](t, rec).Invoice

	rec = doJSON(t, h, http.MethodPost, "/api/v1/supplier-invoices/"+open.ID+"/void", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doJSON(t, h, http.MethodPost, "/api/v1/supplier-invoices/"+open.ID+"/void", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/supplier-invoices?status=void", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	voided := decodeBody[struct {
		Invoices []domain.SupplierInvoice `json:"invoices"`
	}](t, rec).Invoices
	require.Len(t, voided, 1)
	assert.Equal(t, open.ID, voided[0].ID)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/supplier-invoices/"+paid.ID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProductEndpoints(t *testing.T) {
	h := newTestAPI(t)
	admin := login(t, h, "admin", "admin123")
	staff := login(t, h, "kasir", "kasir123")

	create := domain.ProductCreateRequest{
		SKU:             "irc-nf63-7090-17",
		Name:            "IRC NF63",
		Brand:           "IRC",
		ProductType:     "tt",
		Size:            "70/90-17",
		SellPrice:       185000,
		InitialQty:      4,
		InitialUnitCost: 150000,
	}
	rec := doJSON(t, h, http.MethodPost, "/api/v1/products", staff, create)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/products", admin, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeBody[struct {
		Product domain.Product `json:"product"`
	}](t, rec).Product
	assert.Equal(t, "IRC-NF63-7090-17", product.SKU)

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/products/"+product.ID, admin, map[string]any{"sell_price": 190000, "is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sale := domain.SaleCreateRequest{PlateNo: "B 9", PaymentType: "CASH", Items: []domain.SaleItemInput{{ProductID: product.ID, Qty: 1}}}
	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", staff, sale)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "inactive products are not sellable")

	rec = doJSON(t, h, http.MethodGet, "/api/v1/products", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products := decodeBody[struct {
		Products []domain.Product `json:"products"`
	}](t, rec).Products
	assert.Len(t, products, 7)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/sales", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
