package accounting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/contractdesk/internal/erp"
)

// DashboardSummary aggregates the book. Results are cached when a Redis cache is
// configured and concurrent builds collapse into one.
func (s *Store) DashboardSummary(ctx context.Context) (Dashboard, error) {
	key, err := s.cache.BuildKey(ctx, "dashboard")
	if err != nil {
		s.logger.WarnContext(ctx, "dashboard cache key unavailable, computing directly", slog.Any("error", err))
		return s.computeDashboard(), nil
	}
	// The build is shared by every waiter, so one caller's cancellation must not fail it.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		var out Dashboard
		err := s.cache.FetchJSON(buildCtx, key, &out, func(context.Context) (any, error) {
			return s.computeDashboard(), nil
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Dashboard{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Dashboard{}, fmt.Errorf("dashboard: %w", res.Err)
		}
		return res.Val.(Dashboard), nil
	}
}

func (s *Store) computeDashboard() Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := Dashboard{
		InvoiceCount:    len(s.invoices),
		PaymentCount:    len(s.payments),
		PartyCount:      len(s.parties),
		ByStatus:        make(map[InvoiceStatus]int),
		ByPaymentStatus: make(map[PaymentStatus]int),
	}
	for _, inv := range s.invoices {
		d.ByStatus[inv.Status]++
		d.ByPaymentStatus[inv.PaymentStatus]++
		if inv.SyncStatus == erp.SyncSynced {
			d.SyncedCount++
		}
		if inv.CanSyncToFrappe && inv.SyncStatus != erp.SyncSynced {
			d.ReadyToSync++
		}
		switch inv.Status {
		case StatusCancelled:
			continue
		case StatusVerified:
			d.VerifiedCount++
		case StatusFinal:
			d.PendingVerifications++
		}
		d.TotalSales += inv.TotalAmount
		d.TotalReservations += inv.ReservationAmount
	}
	for _, p := range s.payments {
		if p.Status == PaymentStateCompleted {
			d.CollectedAmount += p.Amount
		}
	}
	d.TotalSales = roundCents(d.TotalSales)
	d.TotalReservations = roundCents(d.TotalReservations)
	d.CollectedAmount = roundCents(d.CollectedAmount)
	d.EstimatedProfit = roundCents(d.TotalSales * profitMargin)
	if out := d.TotalSales - d.CollectedAmount; out > 0 {
		d.OutstandingAmount = roundCents(out)
	}
	return d
}
