package contracts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/contractdesk/internal/events"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// Reserve writes the actor's ledger entry and raises ContractReserved.
// Quantity bounds are checked under the same lock as the write. Ownership is not checked here.
func (s *Store) Reserve(ctx context.Context, actor shared.Actor, id string, input ReserveInput) (string, error) {
	if actor.UserID == "" {
		return "", fmt.Errorf("reserve %s: %w", id, shared.ErrIdentityMissing)
	}
	evt, err := s.reserve(actor, id, input)
	if err != nil {
		return "", fmt.Errorf("reserve %s: %w", id, err)
	}

	s.metrics.ObserveReservation(evt.Contract.Type)
	s.logger.InfoContext(ctx, "contract reserved",
		slog.String("contract_id", id),
		slog.String("invoice_id", evt.InvoiceID),
		slog.String("user_id", actor.UserID),
		slog.Float64("quantity", evt.Quantity),
		slog.Float64("reservation_amount", evt.ReservationAmount))
	s.publish(ctx, evt)
	return evt.InvoiceID, nil
}

func (s *Store) reserve(actor shared.Actor, id string, input ReserveInput) (events.ContractReserved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return events.ContractReserved{}, ErrContractNotFound
	}
	if c.DocStatus == DocCancelled {
		return events.ContractReserved{}, ErrContractClosed
	}
	qty, err := c.resolveQuantity(actor.UserID, input.Quantity)
	if err != nil {
		return events.ContractReserved{}, err
	}

	now := s.now()
	amount := c.ReservationAmount(qty)
	invoiceID := s.newID()
	c.Reservations[actor.UserID] = Reservation{
		UserID:            actor.UserID,
		Quantity:          qty,
		ReservedAt:        now,
		InvoiceID:         invoiceID,
		Status:            ReservationActive,
		ReservationAmount: amount,
	}
	c.recomputeCaches()
	c.InvoiceGenerated = true
	c.InvoiceID = invoiceID
	c.ExecutionStatus = ExecPending
	c.UpdatedAt = now

	buyer := events.BuyerInfo{Name: actor.Name, Company: actor.DisplayCompany()}
	if buyer.Name == "" {
		buyer.Name = actor.UserID
	}
	if input.Buyer != nil {
		buyer = *input.Buyer
	}
	return events.ContractReserved{
		ContractID:        c.ID,
		InvoiceID:         invoiceID,
		UserID:            actor.UserID,
		Contract:          c.snapshot(),
		Quantity:          qty,
		Buyer:             buyer,
		IsFutureContract:  c.Type == TypeFuture,
		ReservationAmount: amount,
		OccurredAt:        now,
	}, nil
}

// resolveQuantity applies the default and the bounds for a reservation by userID.
func (c *Contract) resolveQuantity(userID string, requested *float64) (float64, error) {
	if c.Unitless() {
		if requested == nil {
			return 1, nil
		}
		if *requested <= 0 {
			return 0, fmt.Errorf("%w: %v must be positive", ErrInvalidQuantity, *requested)
		}
		return *requested, nil
	}

	avail := c.availableFor(userID)
	if avail <= 0 {
		return 0, fmt.Errorf("%w: nothing left to reserve", ErrInvalidQuantity)
	}
	if !c.AllowPartialPurchases {
		if avail < c.Quantity {
			return 0, fmt.Errorf("%w: contract does not allow partial purchases and is already reserved", ErrInvalidQuantity)
		}
		if requested != nil && *requested != c.Quantity {
			return 0, fmt.Errorf("%w: contract must be reserved whole (%v)", ErrInvalidQuantity, c.Quantity)
		}
		return c.Quantity, nil
	}

	qty := avail
	if requested != nil {
		qty = *requested
	}
	switch {
	case qty <= 0:
		return 0, fmt.Errorf("%w: %v must be positive", ErrInvalidQuantity, qty)
	case qty > avail:
		return 0, fmt.Errorf("%w: %v exceeds available %v", ErrInvalidQuantity, qty, avail)
	case qty < c.MinSplitQuantity:
		return 0, fmt.Errorf("%w: %v below minimum split %v", ErrInvalidQuantity, qty, c.MinSplitQuantity)
	}
	return qty, nil
}

// Cancel marks the actor's entry cancelled. The entry is retained and nothing is refunded.
func (s *Store) Cancel(ctx context.Context, actor shared.Actor, id string) (Contract, error) {
	s.mu.Lock()
	c, ok := s.contracts[id]
	if !ok {
		s.mu.Unlock()
		return Contract{}, fmt.Errorf("cancel %s: %w", id, ErrContractNotFound)
	}
	entry, ok := c.Reservations[actor.UserID]
	if !ok {
		s.mu.Unlock()
		return Contract{}, fmt.Errorf("cancel %s for %s: %w", id, actor.UserID, ErrReservationNotFound)
	}
	changed := entry.Status == ReservationActive
	if changed {
		now := s.now()
		entry.Status = ReservationCancelled
		entry.CancelledAt = &now
		c.Reservations[actor.UserID] = entry
		c.recomputeCaches()
		c.UpdatedAt = now
	}
	out := c.clone()
	s.mu.Unlock()

	if changed {
		s.logger.InfoContext(ctx, "reservation cancelled",
			slog.String("contract_id", id),
			slog.String("user_id", actor.UserID),
			slog.Float64("quantity", entry.Quantity),
			slog.Float64("forfeited_amount", entry.ReservationAmount))
	}
	return out, nil
}

// UserReservation returns the user's ledger entry, active or cancelled.
func (s *Store) UserReservation(ctx context.Context, id, userID string) (Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return Reservation{}, fmt.Errorf("reservation on %s: %w", id, ErrContractNotFound)
	}
	r, ok := c.Reservations[userID]
	if !ok {
		return Reservation{}, fmt.Errorf("reservation on %s for %s: %w", id, userID, ErrReservationNotFound)
	}
	return r, nil
}

// HasUserReserved reports whether the user holds an active entry.
func (s *Store) HasUserReserved(ctx context.Context, id, userID string) bool {
	r, err := s.UserReservation(ctx, id, userID)
	return err == nil && r.Status == ReservationActive
}
