package httpapi

import (
	"net/http"

	"tokoban/backend/internal/domain"
)

func (a *API) handleCreateSupplierInvoice(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.SupplierInvoiceCreateRequest
	if !a.bind(w, r, &req) {
		return
	}
	invoice, err := a.service.CreateSupplierInvoice(r.Context(), storeID, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
}

func (a *API) handleListSupplierInvoices(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	invoices, err := a.service.ListSupplierInvoices(r.Context(), domain.InvoiceListFilter{
		StoreID: storeID,
		Status:  r.URL.Query().Get("status"),
		Limit:   queryInt(r, "limit"),
		Offset:  queryInt(r, "offset"),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (a *API) handleGetSupplierInvoice(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	invoice, err := a.service.GetSupplierInvoice(r.Context(), storeID, r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}

func (a *API) handlePaySupplierInvoice(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.SupplierPaymentRequest
	if !a.bind(w, r, &req) {
		return
	}
	resp, err := a.service.PaySupplierInvoice(r.Context(), storeID, r.PathValue("id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleVoidSupplierInvoice(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	invoice, err := a.service.VoidSupplierInvoice(r.Context(), storeID, r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}
