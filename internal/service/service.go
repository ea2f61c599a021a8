package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tokoban/backend/internal/cache"
	"tokoban/backend/internal/domain"
	"tokoban/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	sales          cache.SaleCache
	saleCacheTTL   time.Duration
	logger         *zap.Logger
	ledger         ledgerWriter
	defaultStoreID string
	location       *time.Location
	now            func() time.Time
}

type Options struct {
	DefaultStoreID string
	Location       *time.Location
	SaleCacheTTL   time.Duration
}

func New(repo store.Repository, saleCache cache.SaleCache, logger *zap.Logger, opts Options) *Service {
	if opts.DefaultStoreID == "" {
		opts.DefaultStoreID = "main-store"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SaleCacheTTL <= 0 {
		opts.SaleCacheTTL = 2 * time.Minute
	}
	if saleCache == nil {
		saleCache = cache.NoopSaleCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	now := func() time.Time { return time.Now().UTC() }
	return &Service{
		repo:           repo,
		sales:          saleCache,
		saleCacheTTL:   opts.SaleCacheTTL,
		logger:         logger.Named("service"),
		ledger:         ledgerWriter{now: now},
		defaultStoreID: opts.DefaultStoreID,
		location:       opts.Location,
		now:            now,
	}
}

func (s *Service) DefaultStoreID() string {
	return s.defaultStoreID
}

// today is the current calendar date in the business timezone.
func (s *Service) today() string {
	return s.now().In(s.location).Format(domain.DateLayout)
}

func actorID(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	if actor.UserID != "" {
		return actor.UserID
	}
	return actor.Username
}

func requireStore(storeID string) error {
	if strings.TrimSpace(storeID) == "" {
		return fmt.Errorf("%w: store id required", domain.ErrInvalidRequest)
	}
	return nil
}

// normalizeRefID rewrites a sale or invoice id to its canonical form. Ids that
// are not uuids cannot exist, so they are reported as not found.
func normalizeRefID(kind string, id *string) error {
	raw := strings.TrimSpace(*id)
	parsed, err := uuid.Parse(raw)
	if err != nil || len(raw) != 36 {
		return fmt.Errorf("%w: %s %s", domain.ErrReferenceNotFound, kind, *id)
	}
	*id = parsed.String()
	return nil
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(domain.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidRequest)
	}
	return parsed, nil
}

func clampPage(limit int, offset int) (int, int) {
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
