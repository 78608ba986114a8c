package contracts

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

	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/events"
	"github.com/odyssey-erp/contractdesk/internal/observability"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// Config wires a Store's collaborators.
type Config struct {
	Publisher events.Publisher
	Gateway   erp.Gateway
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	// Now and NewID default to time.Now and uuid strings.
	Now   func() time.Time
	NewID func() string
}

// Store holds contract postings. It is the single place quantity invariants are enforced.
type Store struct {
	mu        sync.RWMutex
	contracts map[string]*Contract

	publisher events.Publisher
	gateway   erp.Gateway
	logger    *slog.Logger
	metrics   *observability.Metrics
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
}

// NewStore builds an empty Store.
func NewStore(cfg Config) *Store {
	s := &Store{
		contracts: make(map[string]*Contract),
		publisher: cfg.Publisher,
		gateway:   cfg.Gateway,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		validate:  shared.NewValidator(),
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s
}

func (s *Store) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, evt)
}

// Post creates a Draft contract owned by the actor.
func (s *Store) Post(ctx context.Context, actor shared.Actor, input PostInput) (Contract, error) {
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Contract{}, fmt.Errorf("post contract: %w", err)
	}
	if err := input.check(); err != nil {
		return Contract{}, fmt.Errorf("post contract: %w", err)
	}
	now := s.now()
	c := &Contract{
		ID:                    s.newID(),
		Type:                  input.Type,
		ItemName:              strings.TrimSpace(input.ItemName),
		HSNCode:               input.HSNCode,
		Customer:              input.Customer,
		PostedBy:              actor.DisplayCompany(),
		PostedByUserID:        actor.UserID,
		PostedAt:              now,
		Description:           input.Description,
		Location:              input.Location,
		Terms:                 input.Terms,
		DeliveryDate:          input.DeliveryDate,
		AvailabilityDate:      input.AvailabilityDate,
		Quantity:              input.Quantity,
		Rate:                  input.Rate,
		AllowPartialPurchases: input.AllowPartialPurchases,
		MinSplitQuantity:      input.MinSplitQuantity,
		DocStatus:             DocDraft,
		SyncStatus:            erp.SyncNotSynced,
		ExecutionStatus:       ExecPending,
		Reservations:          make(map[string]Reservation),
		UpdatedAt:             now,
	}
	if c.Customer == "" {
		c.Customer = c.PostedBy
	}

	s.mu.Lock()
	s.contracts[c.ID] = c
	out := c.clone()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "contract posted", slog.String("contract_id", c.ID), slog.String("type", string(c.Type)), slog.String("user_id", actor.UserID))
	return out, nil
}

// Get returns a copy of the contract.
func (s *Store) Get(ctx context.Context, id string) (Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return Contract{}, fmt.Errorf("get %s: %w", id, ErrContractNotFound)
	}
	return c.clone(), nil
}

// List returns contracts newest first, narrowed by the filter.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Contract, shared.Pagination) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	s.mu.RLock()
	out := make([]Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.PostedBy != "" && !strings.EqualFold(c.PostedBy, filter.PostedBy) {
			continue
		}
		if filter.OpenOnly && !c.open() {
			continue
		}
		if search != "" && !c.matches(search) {
			continue
		}
		out = append(out, c.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].PostedAt.Equal(out[j].PostedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PostedAt.After(out[j].PostedAt)
	})
	return shared.Paginate(out, filter.Page, filter.PerPage)
}

func (c *Contract) open() bool {
	if c.DocStatus == DocCancelled {
		return false
	}
	if c.Unitless() {
		return c.ParticipantCount == 0
	}
	return c.AvailableQuantity() > 0
}

func (c *Contract) matches(search string) bool {
	for _, field := range []string{c.ItemName, c.Customer, c.PostedBy, c.Location, c.Description, c.HSNCode} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// Update patches descriptive fields.
func (s *Store) Update(ctx context.Context, actor shared.Actor, id string, input UpdateInput) (Contract, error) {
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Contract{}, fmt.Errorf("update %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return Contract{}, fmt.Errorf("update %s: %w", id, ErrContractNotFound)
	}
	if input.Description != nil {
		c.Description = *input.Description
	}
	if input.Location != nil {
		c.Location = *input.Location
	}
	if input.Terms != nil {
		c.Terms = *input.Terms
	}
	if input.DeliveryDate != nil {
		d := *input.DeliveryDate
		c.DeliveryDate = &d
	}
	if input.AvailabilityDate != nil {
		d := *input.AvailabilityDate
		c.AvailabilityDate = &d
	}
	c.UpdatedAt = s.now()
	return c.clone(), nil
}

// Withdraw cancels the posting itself. Existing ledger entries are kept.
func (s *Store) Withdraw(ctx context.Context, actor shared.Actor, id string) (Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return Contract{}, fmt.Errorf("withdraw %s: %w", id, ErrContractNotFound)
	}
	c.DocStatus = DocCancelled
	c.UpdatedAt = s.now()
	s.logger.InfoContext(ctx, "contract withdrawn", slog.String("contract_id", id), slog.String("user_id", actor.UserID))
	return c.clone(), nil
}

// Seed loads records as-is, recomputing ledger caches.
func (s *Store) Seed(records []Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		c := records[i].clone()
		if c.Reservations == nil {
			c.Reservations = make(map[string]Reservation)
		}
		if c.SyncStatus == "" {
			c.SyncStatus = erp.SyncNotSynced
		}
		if c.ExecutionStatus == "" {
			c.ExecutionStatus = ExecPending
		}
		c.recomputeCaches()
		s.contracts[c.ID] = &c
	}
}

// AuditLedger recomputes every contract's caches from its ledger and reports drift.
func (s *Store) AuditLedger(ctx context.Context) []LedgerDrift {
	s.mu.Lock()
	var drift []LedgerDrift
	for _, c := range s.contracts {
		qty, count := c.ledgerTotals()
		if qty == c.ReservedQuantity && count == c.ParticipantCount {
			continue
		}
		drift = append(drift, LedgerDrift{
			ContractID:        c.ID,
			CachedQuantity:    c.ReservedQuantity,
			LedgerQuantity:    qty,
			CachedParticipant: c.ParticipantCount,
			LedgerParticipant: count,
		})
		c.ReservedQuantity, c.ParticipantCount = qty, count
	}
	s.mu.Unlock()

	sort.Slice(drift, func(i, j int) bool { return drift[i].ContractID < drift[j].ContractID })
	for _, d := range drift {
		s.logger.WarnContext(ctx, "ledger cache drift corrected",
			slog.String("contract_id", d.ContractID),
			slog.Float64("cached_quantity", d.CachedQuantity),
			slog.Float64("ledger_quantity", d.LedgerQuantity))
	}
	return drift
}
