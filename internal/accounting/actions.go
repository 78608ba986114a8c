package accounting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/events"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// UpdateStatus moves an invoice between Final, Verified and Cancelled. Cancelled is
// terminal, Verified needs both confirmations, and the status is frozen while an ERP
// push for the invoice is running.
func (s *Store) UpdateStatus(ctx context.Context, actor shared.Actor, id string, status InvoiceStatus) (Invoice, error) {
	if _, err := ParseInvoiceStatus(string(status)); err != nil {
		return Invoice{}, fmt.Errorf("update invoice %s: %w", id, err)
	}
	s.mu.Lock()
	inv, ok := s.invoices[id]
	if !ok {
		s.mu.Unlock()
		return Invoice{}, fmt.Errorf("update invoice %s: %w", id, ErrInvoiceNotFound)
	}
	if _, busy := s.syncing[id]; busy {
		s.mu.Unlock()
		return Invoice{}, fmt.Errorf("update invoice %s: %w", id, ErrSyncInProgress)
	}
	switch {
	case inv.Status == StatusCancelled && status != StatusCancelled:
		s.mu.Unlock()
		return Invoice{}, fmt.Errorf("update invoice %s: %w", id, ErrInvoiceCancelled)
	case status == StatusVerified && !(inv.BuyerVerified && inv.SellerVerified):
		s.mu.Unlock()
		return Invoice{}, fmt.Errorf("update invoice %s: %w", id, ErrNotFullyVerified)
	}
	prev := inv.Status
	inv.Status = status
	inv.UpdatedAt = s.now()
	inv.refresh()
	out := *inv
	s.mu.Unlock()

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "invoice status updated",
		slog.String("invoice_id", id),
		slog.String("from", string(prev)),
		slog.String("to", string(status)),
		slog.String("user_id", actor.UserID))
	return out, nil
}

// VerifyExecution records one side's confirmation and raises InvoiceVerified so the
// contract follows.
func (s *Store) VerifyExecution(ctx context.Context, actor shared.Actor, id string, role shared.Role) (Invoice, error) {
	if _, err := shared.ParseRole(string(role)); err != nil {
		return Invoice{}, fmt.Errorf("verify invoice %s: %w", id, err)
	}
	s.mu.Lock()
	inv, ok := s.invoices[id]
	if !ok {
		s.mu.Unlock()
		return Invoice{}, fmt.Errorf("verify invoice %s: %w", id, ErrInvoiceNotFound)
	}
	if inv.Status == StatusCancelled {
		s.mu.Unlock()
		return Invoice{}, fmt.Errorf("verify invoice %s: %w", id, ErrInvoiceCancelled)
	}
	full := inv.applyVerification(role)
	inv.UpdatedAt = s.now()
	out := *inv
	s.mu.Unlock()

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "invoice execution verified",
		slog.String("invoice_id", id),
		slog.String("role", string(role)),
		slog.String("user_id", actor.UserID),
		slog.Bool("fully_verified", full))
	if s.publisher != nil {
		s.publisher.Publish(ctx, events.InvoiceVerified{
			InvoiceID:     id,
			ContractID:    out.ContractID,
			Role:          role,
			FullyVerified: full,
		})
	}
	return out, nil
}

// AddPayment records a payment and recomputes the invoice payment status from all
// completed payments.
func (s *Store) AddPayment(ctx context.Context, actor shared.Actor, input PaymentInput) (Payment, error) {
	if err := shared.ValidateStruct(s.validate, input); err != nil {
		return Payment{}, fmt.Errorf("add payment: %w", err)
	}
	now := s.now()
	s.mu.Lock()
	inv, ok := s.invoices[input.InvoiceID]
	if !ok {
		s.mu.Unlock()
		return Payment{}, fmt.Errorf("add payment to %s: %w", input.InvoiceID, ErrInvoiceNotFound)
	}
	if inv.Status == StatusCancelled {
		s.mu.Unlock()
		return Payment{}, fmt.Errorf("add payment to %s: %w", input.InvoiceID, ErrInvoiceCancelled)
	}
	p := &Payment{
		ID:               s.newID(),
		Number:           documentNumber(paymentPrefix, now, len(s.payments)+1),
		InvoiceID:        inv.ID,
		ContractID:       inv.ContractID,
		Amount:           roundCents(input.Amount),
		Type:             input.Type,
		Method:           input.Method,
		PaidAt:           now,
		Status:           input.Status,
		VerifiedByBuyer:  inv.BuyerUserID == actor.UserID || actor.Represents(inv.Buyer),
		VerifiedBySeller: actor.Represents(inv.Seller),
		Reference:        strings.TrimSpace(input.Reference),
	}
	if input.PaidAt != nil {
		p.PaidAt = *input.PaidAt
	}
	if p.Status == "" {
		p.Status = PaymentStateCompleted
	}
	s.payments = append(s.payments, p)
	inv.PaymentStatus = s.paymentStatus(inv)
	inv.UpdatedAt = now
	inv.refresh()
	out := *p
	status := inv.PaymentStatus
	s.mu.Unlock()

	s.invalidate(ctx)
	s.logger.InfoContext(ctx, "payment recorded",
		slog.String("payment_id", out.ID),
		slog.String("invoice_id", out.InvoiceID),
		slog.Float64("amount", out.Amount),
		slog.String("payment_status", string(status)))
	return out, nil
}

// paymentStatus derives the status from completed payments. Callers hold s.mu.
func (s *Store) paymentStatus(inv *Invoice) PaymentStatus {
	paid := s.collected(inv.ID)
	switch {
	case paid > 0 && paid >= inv.TotalAmount-0.005:
		return PaymentFullyPaid
	case paid > 0:
		return PaymentAdvancePaid
	default:
		return PaymentPending
	}
}

// collected sums completed payments for the invoice. Callers hold s.mu.
func (s *Store) collected(invoiceID string) float64 {
	var sum float64
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID && p.Status == PaymentStateCompleted {
			sum += p.Amount
		}
	}
	return roundCents(sum)
}

// SyncToERP pushes the invoice to the external system. The gate is checked here, at call
// time: a closed gate returns ErrSyncNotAllowed without touching state or the gateway.
// It is checked again before the outcome is written. A push failure is recorded as
// Sync Failed and is not an error.
func (s *Store) SyncToERP(ctx context.Context, actor shared.Actor, id string) (erp.SyncStatus, error) {
	s.mu.Lock()
	inv, ok := s.invoices[id]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("sync invoice %s: %w", id, ErrInvoiceNotFound)
	}
	if blockers := inv.syncBlockers(); len(blockers) > 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("sync invoice %s: %w: %s", id, ErrSyncNotAllowed, strings.Join(blockers, ", "))
	}
	if inv.SyncStatus == erp.SyncSynced {
		s.mu.Unlock()
		return erp.SyncSynced, nil
	}
	if _, busy := s.syncing[id]; busy {
		s.mu.Unlock()
		return "", fmt.Errorf("sync invoice %s: %w", id, ErrSyncInProgress)
	}
	s.syncing[id] = struct{}{}
	doc := s.document(inv)
	s.mu.Unlock()

	var pushErr error
	if s.gateway == nil {
		pushErr = fmt.Errorf("no erp gateway configured: %w", erp.ErrRejected)
	} else {
		pushErr = s.gateway.PushInvoice(ctx, doc)
	}
	status := erp.Outcome(pushErr)
	s.metrics.ObserveERPSync("invoice", pushErr)

	s.mu.Lock()
	delete(s.syncing, id)
	inv, ok = s.invoices[id]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("sync invoice %s: %w", id, ErrInvoiceNotFound)
	}
	if blockers := inv.syncBlockers(); len(blockers) > 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("sync invoice %s: %w: %s", id, ErrSyncNotAllowed, strings.Join(blockers, ", "))
	}
	inv.SyncStatus = status
	inv.UpdatedAt = s.now()
	s.mu.Unlock()

	s.invalidate(ctx)
	if pushErr != nil {
		s.logger.WarnContext(ctx, "invoice sync failed", slog.String("invoice_id", id), slog.String("user_id", actor.UserID), slog.Any("error", pushErr))
	} else {
		s.logger.InfoContext(ctx, "invoice synced", slog.String("invoice_id", id), slog.String("user_id", actor.UserID))
	}
	return status, nil
}

// document builds the ERP sales invoice. Callers hold s.mu.
func (s *Store) document(inv *Invoice) erp.InvoiceDocument {
	paid := s.collected(inv.ID)
	outstanding := inv.TotalAmount - paid
	if outstanding < 0 {
		outstanding = 0
	}
	return erp.InvoiceDocument{
		Doctype:     "Sales Invoice",
		Name:        inv.Number,
		Customer:    inv.Buyer,
		Company:     inv.Seller,
		Currency:    s.money.Code(),
		PostingDate: inv.CreatedAt,
		DueDate:     inv.DueDate,
		Items: []erp.InvoiceItem{{
			ItemName: inv.ItemName,
			HSNCode:  inv.HSNCode,
			Qty:      inv.Quantity,
			Rate:     inv.Rate,
			Amount:   inv.TotalAmount,
		}},
		GrandTotal:        inv.TotalAmount,
		AdvancePaid:       paid,
		OutstandingAmount: roundCents(outstanding),
		Remarks:           fmt.Sprintf("Contract %s", inv.ContractID),
	}
}

// CheckSyncGate reports ErrSyncNotAllowed when the invoice could not be synced right now.
func (s *Store) CheckSyncGate(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok {
		return fmt.Errorf("sync invoice %s: %w", id, ErrInvoiceNotFound)
	}
	if blockers := inv.syncBlockers(); len(blockers) > 0 {
		return fmt.Errorf("sync invoice %s: %w: %s", id, ErrSyncNotAllowed, strings.Join(blockers, ", "))
	}
	return nil
}
