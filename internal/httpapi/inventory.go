package httpapi

import (
	"net/http"

	"tokoban/backend/internal/domain"
)

func (a *API) handleListInventory(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	q := r.URL.Query()
	resp, err := a.service.ListInventory(r.Context(), domain.InventoryFilter{
		StoreID:  storeID,
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleInventorySummary(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	summary, err := a.service.InventorySummary(r.Context(), storeID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": summary})
}

func (a *API) handleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.AdjustmentRequest
	if !a.bind(w, r, &req) {
		return
	}
	resp, err := a.service.AdjustInventory(r.Context(), storeID, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListLedger(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	entries, err := a.service.ListLedger(r.Context(), domain.LedgerFilter{
		StoreID:   storeID,
		ProductID: r.URL.Query().Get("product_id"),
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	products, err := a.service.ListProducts(r.Context(), storeID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.ProductCreateRequest
	if !a.bind(w, r, &req) {
		return
	}
	product, err := a.service.CreateProduct(r.Context(), storeID, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.StoreProductUpdateRequest
	if !a.bind(w, r, &req) {
		return
	}
	product, err := a.service.UpdateStoreProduct(r.Context(), storeID, r.PathValue("id"), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}
