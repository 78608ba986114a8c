package contracts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/events"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// MarkReadyForDelivery moves execution to ready_for_delivery and raises ContractReadyForDelivery.
// A contract nobody has reserved has no invoice to follow and is refused with ErrNotReserved.
func (s *Store) MarkReadyForDelivery(ctx context.Context, actor shared.Actor, id string) (Contract, error) {
	s.mu.Lock()
	c, ok := s.contracts[id]
	if !ok {
		s.mu.Unlock()
		return Contract{}, fmt.Errorf("ready %s: %w", id, ErrContractNotFound)
	}
	if !c.InvoiceGenerated || c.InvoiceID == "" {
		s.mu.Unlock()
		return Contract{}, fmt.Errorf("ready %s: %w", id, ErrNotReserved)
	}
	c.ExecutionStatus = ExecReadyForDelivery
	c.UpdatedAt = s.now()
	out := c.clone()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "contract ready for delivery", slog.String("contract_id", id), slog.String("user_id", actor.UserID))
	s.publish(ctx, events.ContractReadyForDelivery{ContractID: id, InvoiceID: out.InvoiceID})
	return out, nil
}

// MarkDelivered records that goods reached the buyer. No event is raised.
func (s *Store) MarkDelivered(ctx context.Context, actor shared.Actor, id string) (Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[id]
	if !ok {
		return Contract{}, fmt.Errorf("delivered %s: %w", id, ErrContractNotFound)
	}
	if c.ExecutionStatus != ExecCompleted {
		c.ExecutionStatus = ExecDelivered
		c.UpdatedAt = s.now()
	}
	return c.clone(), nil
}

// VerifyExecution sets the role's flag and raises ContractVerified.
// Execution completes when the other side had already verified. Unreserved contracts
// are refused with ErrNotReserved.
func (s *Store) VerifyExecution(ctx context.Context, actor shared.Actor, id string, role shared.Role) (Contract, error) {
	if _, err := shared.ParseRole(string(role)); err != nil {
		return Contract{}, fmt.Errorf("verify %s: %w", id, err)
	}
	s.mu.Lock()
	c, ok := s.contracts[id]
	if !ok {
		s.mu.Unlock()
		return Contract{}, fmt.Errorf("verify %s: %w", id, ErrContractNotFound)
	}
	if !c.InvoiceGenerated || c.InvoiceID == "" {
		s.mu.Unlock()
		return Contract{}, fmt.Errorf("verify %s: %w", id, ErrNotReserved)
	}
	full := c.applyVerification(role)
	c.UpdatedAt = s.now()
	out := c.clone()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "contract execution verified",
		slog.String("contract_id", id),
		slog.String("role", string(role)),
		slog.String("user_id", actor.UserID),
		slog.Bool("fully_verified", full))
	s.publish(ctx, events.ContractVerified{
		ContractID:    id,
		InvoiceID:     out.InvoiceID,
		Role:          role,
		FullyVerified: full,
	})
	return out, nil
}

// applyVerification sets the flag for role and reports whether both sides have verified.
func (c *Contract) applyVerification(role shared.Role) bool {
	var other bool
	switch role {
	case shared.RoleBuyer:
		c.BuyerVerified = true
		other = c.SellerVerified
	case shared.RoleSeller:
		c.SellerVerified = true
		other = c.BuyerVerified
	}
	if other {
		c.ExecutionStatus = ExecCompleted
	}
	return other
}

// ApplyInvoiceVerification mirrors an accounting-side verification onto the contract.
func (s *Store) ApplyInvoiceVerification(ctx context.Context, evt events.InvoiceVerified) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[evt.ContractID]
	if !ok {
		return fmt.Errorf("apply invoice %s verification to %s: %w", evt.InvoiceID, evt.ContractID, ErrContractNotFound)
	}
	if full := c.applyVerification(evt.Role); evt.FullyVerified && !full {
		c.ExecutionStatus = ExecCompleted
	}
	c.UpdatedAt = s.now()
	return nil
}

// Listen subscribes the store to accounting events. The returned func unsubscribes.
func (s *Store) Listen(sub events.Subscriber) func() {
	return events.On(sub, s.ApplyInvoiceVerification)
}

// SyncExternally pushes the contract through the ERP gateway. The outcome is recorded on
// the contract. An unknown id or a withdrawn contract is an error; a push failure is not.
// Success promotes a Draft to Submitted and never reopens a withdrawn contract.
func (s *Store) SyncExternally(ctx context.Context, actor shared.Actor, id string) (erp.SyncStatus, error) {
	s.mu.RLock()
	c, ok := s.contracts[id]
	if !ok {
		s.mu.RUnlock()
		return "", fmt.Errorf("sync %s: %w", id, ErrContractNotFound)
	}
	if c.DocStatus == DocCancelled {
		s.mu.RUnlock()
		return "", fmt.Errorf("sync %s: %w", id, ErrContractClosed)
	}
	doc := c.document()
	s.mu.RUnlock()

	var pushErr error
	if s.gateway == nil {
		pushErr = fmt.Errorf("no erp gateway configured: %w", erp.ErrRejected)
	} else {
		pushErr = s.gateway.PushContract(ctx, doc)
	}
	status := erp.Outcome(pushErr)
	s.metrics.ObserveERPSync("contract", pushErr)

	s.mu.Lock()
	if c, ok = s.contracts[id]; ok {
		c.SyncStatus = status
		if status == erp.SyncSynced && c.DocStatus == DocDraft {
			c.DocStatus = DocSubmitted
		}
		c.UpdatedAt = s.now()
	}
	s.mu.Unlock()

	if pushErr != nil {
		s.logger.WarnContext(ctx, "contract sync failed", slog.String("contract_id", id), slog.String("user_id", actor.UserID), slog.Any("error", pushErr))
	} else {
		s.logger.InfoContext(ctx, "contract synced", slog.String("contract_id", id), slog.String("user_id", actor.UserID))
	}
	return status, nil
}
