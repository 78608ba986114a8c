package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/events"
)

// Listen subscribes the store to contract events. The returned func unsubscribes all.
func (s *Store) Listen(sub events.Subscriber) func() {
	stops := []func(){
		events.On(sub, s.OnContractReserved),
		events.On(sub, s.OnContractReadyForDelivery),
		events.On(sub, s.OnContractVerified),
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// OnContractReserved raises the invoice for a reservation, plus the advance payment when
// one was charged, and registers both counterparties.
func (s *Store) OnContractReserved(ctx context.Context, evt events.ContractReserved) error {
	if evt.InvoiceID == "" {
		return fmt.Errorf("contract %s reserved without invoice id", evt.ContractID)
	}
	now := s.now()
	rate := evt.Contract.RatePerUnit
	total := roundCents(evt.Quantity * rate)
	due := now.Add(defaultDue)
	if !evt.Contract.AvailabilityDate.IsZero() {
		due = evt.Contract.AvailabilityDate
	}
	buyer := strings.TrimSpace(evt.Buyer.DisplayName())
	if buyer == "" {
		buyer = evt.UserID
	}
	seller := evt.Contract.PostedBy

	inv := &Invoice{
		ID:                evt.InvoiceID,
		ContractID:        evt.ContractID,
		ContractTitle:     fmt.Sprintf("%s %s contract", evt.Contract.ItemName, evt.Contract.Type),
		ItemName:          evt.Contract.ItemName,
		HSNCode:           evt.Contract.HSNCode,
		Buyer:             buyer,
		BuyerUserID:       evt.UserID,
		Seller:            seller,
		Quantity:          evt.Quantity,
		Rate:              rate,
		TotalAmount:       total,
		ReservationAmount: evt.ReservationAmount,
		RemainingAmount:   total - evt.ReservationAmount,
		Status:            StatusFinal,
		CreatedAt:         now,
		DueDate:           due,
		SyncStatus:        erp.SyncNotSynced,
		PaymentStatus:     PaymentPending,
		UpdatedAt:         now,
	}
	if evt.ReservationAmount > 0 {
		inv.PaymentStatus = PaymentAdvancePaid
	}
	inv.refresh()

	s.mu.Lock()
	if _, exists := s.invoices[inv.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("invoice %s already raised", inv.ID)
	}
	inv.Number = documentNumber(invoicePrefix, now, len(s.invoices)+1)
	s.invoices[inv.ID] = inv
	if evt.ReservationAmount > 0 {
		s.payments = append(s.payments, &Payment{
			ID:              s.newID(),
			Number:          documentNumber(paymentPrefix, now, len(s.payments)+1),
			InvoiceID:       inv.ID,
			ContractID:      inv.ContractID,
			Amount:          evt.ReservationAmount,
			Type:            TypeAdvance,
			Method:          MethodBankTransfer,
			PaidAt:          now,
			Status:          PaymentStateCompleted,
			VerifiedByBuyer: true,
		})
	}
	s.touchParty(buyer, PartyBuyer, evt.Buyer.Email, evt.Buyer.Phone, total, now)
	s.touchParty(seller, PartySeller, "", "", total, now)
	number := inv.Number
	s.mu.Unlock()

	s.metrics.ObserveInvoiceGenerated()
	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "invoice generated",
		slog.String("invoice_id", inv.ID),
		slog.String("invoice_number", number),
		slog.String("contract_id", evt.ContractID),
		slog.Float64("total_amount", total),
		slog.Float64("reservation_amount", evt.ReservationAmount))
	return nil
}

// touchParty creates the party on first reference and accumulates its counters. Callers hold s.mu.
func (s *Store) touchParty(name string, role PartyRole, email, phone string, value float64, at time.Time) {
	if strings.TrimSpace(name) == "" {
		return
	}
	key := partyKey(name, role)
	p, ok := s.parties[key]
	if !ok {
		p = &Party{
			ID:                s.newID(),
			Name:              name,
			Company:           name,
			Role:              role,
			VerificationScore: defaultScore,
		}
		s.parties[key] = p
	}
	if p.Email == "" {
		p.Email = email
	}
	if p.Phone == "" {
		p.Phone = phone
	}
	p.TotalContracts++
	p.TotalValue = roundCents(p.TotalValue + value)
	p.LastActivity = at
}

// OnContractReadyForDelivery keeps the invoice Final unless it was already verified or cancelled.
func (s *Store) OnContractReadyForDelivery(ctx context.Context, evt events.ContractReadyForDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[evt.InvoiceID]
	if !ok {
		return fmt.Errorf("ready for delivery on contract %s: invoice %s: %w", evt.ContractID, evt.InvoiceID, ErrInvoiceNotFound)
	}
	if inv.Status != StatusVerified && inv.Status != StatusCancelled {
		inv.Status = StatusFinal
		inv.UpdatedAt = s.now()
		inv.refresh()
	}
	return nil
}

// OnContractVerified mirrors a contract-side verification onto the invoice.
func (s *Store) OnContractVerified(ctx context.Context, evt events.ContractVerified) error {
	s.mu.Lock()
	inv, ok := s.invoices[evt.InvoiceID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("verification on contract %s: invoice %s: %w", evt.ContractID, evt.InvoiceID, ErrInvoiceNotFound)
	}
	if evt.FullyVerified {
		// The contract already holds both confirmations.
		inv.BuyerVerified, inv.SellerVerified = true, true
	}
	inv.applyVerification(evt.Role)
	inv.UpdatedAt = s.now()
	s.mu.Unlock()

	s.invalidate(ctx)
	return nil
}
