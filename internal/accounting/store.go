package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/events"
	"github.com/odyssey-erp/contractdesk/internal/observability"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// Config wires a Store's collaborators.
type Config struct {
	Publisher events.Publisher
	Gateway   erp.Gateway
	Cache     *Cache
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Money     erp.Money
	Now       func() time.Time
	NewID     func() string
}

// Store holds invoices, payments and parties.
type Store struct {
	mu       sync.RWMutex
	invoices map[string]*Invoice
	payments []*Payment
	parties  map[string]*Party
	syncing  map[string]struct{}

	publisher events.Publisher
	gateway   erp.Gateway
	cache     *Cache
	flight    singleflight.Group
	logger    *slog.Logger
	metrics   *observability.Metrics
	money     erp.Money
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
}

// NewStore builds an empty Store.
func NewStore(cfg Config) *Store {
	s := &Store{
		invoices:  make(map[string]*Invoice),
		parties:   make(map[string]*Party),
		syncing:   make(map[string]struct{}),
		publisher: cfg.Publisher,
		gateway:   cfg.Gateway,
		cache:     cfg.Cache,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		money:     cfg.Money,
		validate:  shared.NewValidator(),
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.money.IsZero() {
		s.money = erp.NewMoney("", "")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s
}

func partyKey(name string, role PartyRole) string {
	return string(role) + "|" + strings.ToLower(strings.TrimSpace(name))
}

// invalidate drops cached read models after a mutation.
func (s *Store) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.WarnContext(ctx, "accounting cache bump failed", slog.Any("error", err))
	}
}

// Invoice returns a copy of the invoice.
func (s *Store) Invoice(ctx context.Context, id string) (Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, fmt.Errorf("invoice %s: %w", id, ErrInvoiceNotFound)
	}
	return *inv, nil
}

// Invoices lists invoices newest first.
func (s *Store) Invoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, shared.Pagination) {
	return s.listInvoices(filter, nil)
}

// SalesInvoices lists invoices where the actor is the seller and the buyer has verified.
func (s *Store) SalesInvoices(ctx context.Context, actor shared.Actor, filter InvoiceFilter) ([]Invoice, shared.Pagination) {
	return s.listInvoices(filter, func(inv *Invoice) bool {
		return actor.Represents(inv.Seller) && inv.BuyerVerified
	})
}

// PurchaseInvoices lists invoices where the actor is the buyer.
func (s *Store) PurchaseInvoices(ctx context.Context, actor shared.Actor, filter InvoiceFilter) ([]Invoice, shared.Pagination) {
	return s.listInvoices(filter, func(inv *Invoice) bool {
		return inv.BuyerUserID == actor.UserID || actor.Represents(inv.Buyer)
	})
}

func (s *Store) listInvoices(filter InvoiceFilter, keep func(*Invoice) bool) ([]Invoice, shared.Pagination) {
	s.mu.RLock()
	out := make([]Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if !filter.match(inv) {
			continue
		}
		if keep != nil && !keep(inv) {
			continue
		}
		out = append(out, *inv)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number > out[j].Number
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return shared.Paginate(out, filter.Page, filter.PerPage)
}

// Payments lists payments in the order they were recorded. An empty invoiceID lists all.
func (s *Store) Payments(ctx context.Context, invoiceID string) []Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if invoiceID == "" || p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	return out
}

// Parties lists counterparties by name. An empty role lists both.
func (s *Store) Parties(ctx context.Context, role PartyRole) []Party {
	s.mu.RLock()
	out := make([]Party, 0, len(s.parties))
	for _, p := range s.parties {
		if role == "" || p.Role == role {
			out = append(out, *p)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Role < out[j].Role
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Seed loads records as-is. Derived invoice flags are recomputed.
func (s *Store) Seed(invoices []Invoice, payments []Payment, parties []Party) {
	s.mu.Lock()
	for i := range invoices {
		inv := invoices[i]
		if inv.SyncStatus == "" {
			inv.SyncStatus = erp.SyncNotSynced
		}
		inv.refresh()
		s.invoices[inv.ID] = &inv
	}
	for i := range payments {
		p := payments[i]
		s.payments = append(s.payments, &p)
	}
	for i := range parties {
		p := parties[i]
		s.parties[partyKey(p.Name, p.Role)] = &p
	}
	s.mu.Unlock()
	s.invalidate(context.Background())
}
