package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"atenea/backend/internal/cache"
	"atenea/backend/internal/domain"
	"atenea/backend/internal/stock"
	"atenea/backend/internal/store"
)

var ErrForbidden = errors.New("owner role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Drafts          cache.DraftStore
	Logger          *zap.Logger
	VoucherValidity time.Duration
	LayawayValidity time.Duration
	DraftTTL        time.Duration
	Now             func() time.Time
}

// Snapshot is the last full read of the collections a checkout depends on.
type Snapshot struct {
	Sales     []domain.SaleLine
	Inventory []domain.InventoryItem
	Vouchers  []domain.Voucher
	Clients   []domain.Client
	LoadedAt  time.Time
}

type Service struct {
	repo     store.Repository
	ledger   *stock.Ledger
	drafts   cache.DraftStore
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time

	voucherValidity time.Duration
	layawayValidity time.Duration
	draftTTL        time.Duration

	mu       sync.RWMutex
	snapshot Snapshot
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Drafts == nil {
		opts.Drafts = cache.NewMemoryDraftStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.VoucherValidity <= 0 {
		opts.VoucherValidity = 90 * 24 * time.Hour
	}
	if opts.LayawayValidity <= 0 {
		opts.LayawayValidity = 90 * 24 * time.Hour
	}
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:            repo,
		ledger:          stock.NewLedger(repo),
		drafts:          opts.Drafts,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		logger:          opts.Logger.Named("service"),
		now:             func() time.Time { return opts.Now().UTC() },
		voucherValidity: opts.VoucherValidity,
		layawayValidity: opts.LayawayValidity,
		draftTTL:        opts.DraftTTL,
	}
}

// Reload re-reads sales, inventory, vouchers and clients in parallel and
// swaps the snapshot only when every read succeeds.
func (s *Service) Reload(ctx context.Context) error {
	var next Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		next.Sales, err = s.repo.ListSales(gctx)
		return err
	})
	g.Go(func() (err error) {
		next.Inventory, err = s.repo.ListInventory(gctx)
		return err
	})
	g.Go(func() (err error) {
		next.Vouchers, err = s.repo.ListVouchers(gctx, domain.VoucherStatusActive)
		return err
	})
	g.Go(func() (err error) {
		next.Clients, err = s.repo.ListClients(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reload collections: %w", err)
	}
	next.LoadedAt = s.now()

	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()
	return nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Sales:     slices.Clone(s.snapshot.Sales),
		Inventory: slices.Clone(s.snapshot.Inventory),
		Vouchers:  slices.Clone(s.snapshot.Vouchers),
		Clients:   slices.Clone(s.snapshot.Clients),
		LoadedAt:  s.snapshot.LoadedAt,
	}
}

// refresh reloads after a write. The write already happened, so a failed
// reload is only logged.
func (s *Service) refresh(ctx context.Context) {
	if err := s.Reload(ctx); err != nil {
		s.logger.Warn("reload after write failed", zap.Error(err))
	}
}

func requireOwner(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

func (s *Service) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return invalid(strings.Join(fields, "; "))
		}
		return invalid(err.Error())
	}
	return nil
}

func invalid(detail string) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidTransaction, detail)
}
