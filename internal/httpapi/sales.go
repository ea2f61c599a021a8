package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tokoban/backend/internal/domain"
)

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.SaleCreateRequest
	if !a.bind(w, r, &req) {
		return
	}

	sale, err := a.service.CreateSale(r.Context(), storeID, req)
	if err != nil {
		a.logger.Debug("sale rejected", zap.String("store_id", storeID), zap.Error(err))
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	q := r.URL.Query()
	allDates, _ := strconv.ParseBool(q.Get("all_dates"))

	sales, err := a.service.ListSales(r.Context(), domain.SaleListFilter{
		StoreID: storeID,
		Date:    strings.TrimSpace(q.Get("date")),
		Query:   q.Get("q"),
		Limit:   queryInt(r, "limit"),
		Offset:  queryInt(r, "offset"),
	}, allDates)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	sale, err := a.service.GetSale(r.Context(), storeID, r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleUpdateSale(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req domain.SaleUpdateRequest
	if !a.bind(w, r, &req) {
		return
	}

	sale, err := a.service.UpdateSale(r.Context(), storeID, r.PathValue("id"), req)
	if err != nil {
		a.logger.Debug("sale edit rejected", zap.String("sale_id", r.PathValue("id")), zap.Error(err))
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleSalePrinted(w http.ResponseWriter, r *http.Request) {
	storeID, err := a.resolveStore(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	resp, err := a.service.MarkSalePrinted(r.Context(), storeID, r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
