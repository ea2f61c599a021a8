package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ulule/limiter/v3"
	limitstore "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/service"
)

const maxBodyBytes = 1 << 20

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *limiter.Limiter
	validator     *validator.Validate
	logger        *zap.Logger
}

type Options struct {
	AllowedOrigin string
	// LoginRate uses the limiter format, e.g. "5-M" for five attempts a minute.
	LoginRate string
	Logger    *zap.Logger
}

func New(svc *service.Service, auth *AuthManager, opts Options) (*API, error) {
	if opts.LoginRate == "" {
		opts.LoginRate = "5-M"
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	rate, err := limiter.NewRateFromFormatted(opts.LoginRate)
	if err != nil {
		return nil, fmt.Errorf("login rate %q: %w", opts.LoginRate, err)
	}

	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		loginLimiter:  limiter.New(limitstore.NewStore(), rate),
		validator:     newValidator(),
		logger:        opts.Logger.Named("httpapi"),
	}, nil
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	staff := []string{domain.RoleStaff, domain.RoleAdmin}
	admin := []string{domain.RoleAdmin}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("GET /api/v1/sales", a.requireAuth(a.handleListSales, staff...))
	mux.HandleFunc("POST /api/v1/sales", a.requireAuth(a.handleCreateSale, staff...))
	mux.HandleFunc("GET /api/v1/sales/{id}", a.requireAuth(a.handleGetSale, staff...))
	mux.HandleFunc("PATCH /api/v1/sales/{id}", a.requireAuth(a.handleUpdateSale, admin...))
	mux.HandleFunc("POST /api/v1/sales/{id}/printed", a.requireAuth(a.handleSalePrinted, staff...))

	mux.HandleFunc("GET /api/v1/inventory", a.requireAuth(a.handleListInventory, staff...))
	mux.HandleFunc("GET /api/v1/inventory/summary", a.requireAuth(a.handleInventorySummary, staff...))
	mux.HandleFunc("POST /api/v1/inventory/adjust", a.requireAuth(a.handleAdjustInventory, admin...))
	mux.HandleFunc("GET /api/v1/inventory/ledger", a.requireAuth(a.handleListLedger, admin...))

	mux.HandleFunc("GET /api/v1/supplier-invoices", a.requireAuth(a.handleListSupplierInvoices, admin...))
	mux.HandleFunc("POST /api/v1/supplier-invoices", a.requireAuth(a.handleCreateSupplierInvoice, admin...))
	mux.HandleFunc("GET /api/v1/supplier-invoices/{id}", a.requireAuth(a.handleGetSupplierInvoice, admin...))
	mux.HandleFunc("POST /api/v1/supplier-invoices/{id}/payments", a.requireAuth(a.handlePaySupplierInvoice, admin...))
	mux.HandleFunc("POST /api/v1/supplier-invoices/{id}/void", a.requireAuth(a.handleVoidSupplierInvoice, admin...))

	mux.HandleFunc("GET /api/v1/products", a.requireAuth(a.handleListProducts, staff...))
	mux.HandleFunc("POST /api/v1/products", a.requireAuth(a.handleCreateProduct, admin...))
	mux.HandleFunc("PATCH /api/v1/products/{id}", a.requireAuth(a.handleUpdateProduct, admin...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}
		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// resolveStore picks the store a request acts on. Staff are pinned to their
// own store; admins choose with X-Store-Id or ?store_id and otherwise get the
// default store.
func (a *API) resolveStore(r *http.Request) (string, error) {
	requested := strings.TrimSpace(r.Header.Get("X-Store-Id"))
	if requested == "" {
		requested = strings.TrimSpace(r.URL.Query().Get("store_id"))
	}

	actor, ok := service.ActorFromContext(r.Context())
	if !ok {
		return "", fmt.Errorf("%w: no authenticated actor", domain.ErrForbidden)
	}
	if actor.Role != domain.RoleAdmin {
		if requested != "" && requested != actor.StoreID {
			return "", fmt.Errorf("%w: staff may only act on their own store", domain.ErrForbidden)
		}
		return actor.StoreID, nil
	}
	if requested == "" {
		return a.service.DefaultStoreID(), nil
	}
	return requested, nil
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	limit, err := a.loginLimiter.Get(r.Context(), clientKey(r))
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(limit.Remaining, 10))
	if limit.Reached {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if !a.bind(w, r, &req) {
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	switch {
	case errors.Is(err, errInvalidCredentials), errors.Is(err, errInactiveAccount):
		a.logger.Debug("login rejected", zap.String("username", req.Username), zap.Error(err))
		a.writeError(w, http.StatusUnauthorized, err)
		return
	case err != nil:
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Store-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)),
		)
	})
}

// bind decodes a JSON body into dest and validates it. On failure the error
// response is already written.
func (a *API) bind(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
			return false
		}
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed JSON body: %w", err))
		return false
	}
	if err := a.validate(dest); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func queryInt(r *http.Request, key string) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// statusFor maps service errors onto HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	var verr *validationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrReferenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInvoiceVoided):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrDuplicateProductReference),
		errors.Is(err, domain.ErrDuplicatePaymentMethod):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotSellable),
		errors.Is(err, domain.ErrPaymentMismatch),
		errors.Is(err, domain.ErrPaymentAdjustmentInvalid),
		errors.Is(err, domain.ErrInvalidData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(w http.ResponseWriter, err error) {
	a.writeError(w, statusFor(err), err)
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause goes to the log only.
	if status >= 500 {
		a.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
		writeJSON(w, status, map[string]any{"error": "internal server error"})
		return
	}

	body := map[string]any{"error": err.Error()}
	var verr *validationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
