package accounting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/events"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

var (
	sellerActor = shared.Actor{UserID: "seller-1", Name: "Asha", Company: "Green Valley Farms"}
	buyerActor  = shared.Actor{UserID: "buyer-a", Name: "Ravi", Company: "Metro Foods"}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type fixture struct {
	store     *Store
	publisher *recordingPublisher
	gateway   *erp.Recorder
	now       time.Time
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, cache *Cache) *fixture {
	t.Helper()
	f := &fixture{
		publisher: &recordingPublisher{},
		gateway:   &erp.Recorder{},
		now:       time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	var seq int
	var mu sync.Mutex
	f.store = NewStore(Config{
		Publisher: f.publisher,
		Gateway:   f.gateway,
		Cache:     cache,
		Logger:    quietLogger(),
		Money:     erp.NewMoney("INR", "en"),
		Now:       func() time.Time { return f.now },
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("gen-%d", seq)
		},
	})
	return f
}

func reservedEvent(invoiceID string, typ string, qty, rate, advance float64) events.ContractReserved {
	return events.ContractReserved{
		ContractID: "contract-" + invoiceID,
		InvoiceID:  invoiceID,
		UserID:     buyerActor.UserID,
		Contract: events.ContractSnapshot{
			ID:          "contract-" + invoiceID,
			ItemName:    "Basmati Rice",
			Type:        typ,
			HSNCode:     "1006",
			Quantity:    qty,
			Rate:        rate,
			RatePerUnit: rate / qty,
			PostedBy:    sellerActor.Company,
		},
		Quantity:          qty,
		Buyer:             events.BuyerInfo{Name: buyerActor.Name, Company: buyerActor.Company, Email: "ravi@metro.example"},
		IsFutureContract:  typ == "Future",
		ReservationAmount: advance,
	}
}

func (f *fixture) reserve(t *testing.T, evt events.ContractReserved) Invoice {
	t.Helper()
	require.NoError(t, f.store.OnContractReserved(context.Background(), evt))
	inv, err := f.store.Invoice(context.Background(), evt.InvoiceID)
	require.NoError(t, err)
	return inv
}

func requireTotals(t *testing.T, inv Invoice) {
	t.Helper()
	require.InDelta(t, inv.TotalAmount, inv.ReservationAmount+inv.RemainingAmount, 0.005)
}

func TestFutureReservationRaisesFinalInvoiceWithAdvance(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.reserve(t, reservedEvent("inv-1", "Future", 1000, 100000, 20000))

	require.Equal(t, "CI-2025-001", inv.Number)
	require.Equal(t, StatusFinal, inv.Status)
	require.Equal(t, PaymentAdvancePaid, inv.PaymentStatus)
	require.Equal(t, 100000.0, inv.TotalAmount)
	require.Equal(t, 20000.0, inv.ReservationAmount)
	require.Equal(t, 80000.0, inv.RemainingAmount)
	require.Equal(t, 100.0, inv.Rate)
	require.Equal(t, erp.SyncNotSynced, inv.SyncStatus)
	require.False(t, inv.CanSyncToFrappe)
	require.Equal(t, f.now.Add(30*24*time.Hour), inv.DueDate)
	requireTotals(t, inv)

	payments := f.store.Payments(context.Background(), inv.ID)
	require.Len(t, payments, 1)
	require.Equal(t, "CP-2025-001", payments[0].Number)
	require.Equal(t, TypeAdvance, payments[0].Type)
	require.Equal(t, PaymentStateCompleted, payments[0].Status)
	require.Equal(t, 20000.0, payments[0].Amount)
	require.True(t, payments[0].VerifiedByBuyer)
	require.False(t, payments[0].VerifiedBySeller)

	parties := f.store.Parties(context.Background(), "")
	require.Len(t, parties, 2)
	require.Equal(t, "Green Valley Farms", parties[0].Name)
	require.Equal(t, PartySeller, parties[0].Role)
	require.Equal(t, "Metro Foods", parties[1].Name)
	require.Equal(t, PartyBuyer, parties[1].Role)
	require.Equal(t, "ravi@metro.example", parties[1].Email)
	for _, p := range parties {
		require.Equal(t, 85, p.VerificationScore)
		require.False(t, p.IsVerified)
		require.Equal(t, 1, p.TotalContracts)
	}
}

func TestNonFutureReservationHasNoAdvance(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.reserve(t, reservedEvent("inv-1", "Sell", 500, 25000, 0))

	require.Equal(t, PaymentPending, inv.PaymentStatus)
	require.Zero(t, inv.ReservationAmount)
	require.Equal(t, 25000.0, inv.RemainingAmount)
	requireTotals(t, inv)
	require.Empty(t, f.store.Payments(context.Background(), ""))
}

func TestInvoiceDueDateFollowsAvailability(t *testing.T) {
	f := newFixture(t, nil)
	evt := reservedEvent("inv-1", "Future", 10, 1000, 200)
	evt.Contract.AvailabilityDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inv := f.reserve(t, evt)
	require.Equal(t, evt.Contract.AvailabilityDate, inv.DueDate)
}

func TestInvoiceNumbersAreSequential(t *testing.T) {
	f := newFixture(t, nil)
	first := f.reserve(t, reservedEvent("inv-1", "Sell", 10, 100, 0))
	second := f.reserve(t, reservedEvent("inv-2", "Future", 10, 100, 20))
	third := f.reserve(t, reservedEvent("inv-3", "Future", 10, 100, 20))

	require.Equal(t, "CI-2025-001", first.Number)
	require.Equal(t, "CI-2025-002", second.Number)
	require.Equal(t, "CI-2025-003", third.Number)
	payments := f.store.Payments(context.Background(), "")
	require.Equal(t, "CP-2025-001", payments[0].Number)
	require.Equal(t, "CP-2025-002", payments[1].Number)

	err := f.store.OnContractReserved(context.Background(), reservedEvent("inv-1", "Sell", 10, 100, 0))
	require.Error(t, err)
}

func TestPartiesAccumulate(t *testing.T) {
	f := newFixture(t, nil)
	f.reserve(t, reservedEvent("inv-1", "Sell", 10, 1000, 0))
	f.reserve(t, reservedEvent("inv-2", "Sell", 10, 500, 0))

	buyers := f.store.Parties(context.Background(), PartyBuyer)
	require.Len(t, buyers, 1)
	require.Equal(t, 2, buyers[0].TotalContracts)
	require.Equal(t, 1500.0, buyers[0].TotalValue)
}

func TestVerificationPromotesOnlyAfterBothSides(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.reserve(t, reservedEvent("inv-1", "Future", 1000, 100000, 20000))
	ctx := context.Background()

	got, err := f.store.VerifyExecution(ctx, buyerActor, inv.ID, shared.RoleBuyer)
	require.NoError(t, err)
	require.True(t, got.BuyerVerified)
	require.Equal(t, StatusFinal, got.Status)

	got, err = f.store.VerifyExecution(ctx, sellerActor, inv.ID, shared.RoleSeller)
	require.NoError(t, err)
	require.Equal(t, StatusVerified, got.Status)

	require.Equal(t, []events.Event{
		events.InvoiceVerified{InvoiceID: inv.ID, ContractID: inv.ContractID, Role: shared.RoleBuyer},
		events.InvoiceVerified{InvoiceID: inv.ID, ContractID: inv.ContractID, Role: shared.RoleSeller, FullyVerified: true},
	}, f.publisher.all())
}

func TestSyncRejectedUntilGateHolds(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.reserve(t, reservedEvent("inv-1", "Future", 1000, 100000, 20000))
	ctx := context.Background()

	_, err := f.store.VerifyExecution(ctx, buyerActor, inv.ID, shared.RoleBuyer)
	require.NoError(t, err)

	_, err = f.store.SyncToERP(ctx, sellerActor, inv.ID)
	require.ErrorIs(t, err, ErrSyncNotAllowed)
	require.ErrorIs(t, err, shared.ErrPrecondition)
	require.Empty(t, f.gateway.Invoices(), "gateway must not be called")
	got, _ := f.store.Invoice(ctx, inv.ID)
	require.Equal(t, erp.SyncNotSynced, got.SyncStatus)

	_, err = f.store.VerifyExecution(ctx, sellerActor, inv.ID, shared.RoleSeller)
	require.NoError(t, err)
	_, err = f.store.SyncToERP(ctx, sellerActor, inv.ID)
	require.ErrorIs(t, err, ErrSyncNotAllowed, "verified but only advance paid")
	require.Empty(t, f.gateway.Invoices())

	_, err = f.store.AddPayment(ctx, buyerActor, PaymentInput{InvoiceID: inv.ID, Amount: 80000, Type: TypeFinal, Method: MethodUPI})
	require.NoError(t, err)
	got, _ = f.store.Invoice(ctx, inv.ID)
	require.Equal(t, PaymentFullyPaid, got.PaymentStatus)
	require.True(t, got.CanSyncToFrappe)
	require.NoError(t, f.store.CheckSyncGate(ctx, inv.ID))

	status, err := f.store.SyncToERP(ctx, sellerActor, inv.ID)
	require.NoError(t, err)
	require.Equal(t, erp.SyncSynced, status)

	docs := f.gateway.Invoices()
	require.Len(t, docs, 1)
	require.Equal(t, "CI-2025-001", docs[0].Name)
	require.Equal(t, "Metro Foods", docs[0].Customer)
	require.Equal(t, "Green Valley Farms", docs[0].Company)
	require.Equal(t, "INR", docs[0].Currency)
	require.Equal(t, 100000.0, docs[0].GrandTotal)
	require.Equal(t, 100000.0, docs[0].AdvancePaid)
	require.Zero(t, docs[0].OutstandingAmount)

	status, err = f.store.SyncToERP(ctx, sellerActor, inv.ID)
	require.NoError(t, err)
	require.Equal(t, erp.SyncSynced, status)
	require.Len(t, f.gateway.Invoices(), 1, "already synced invoices are not pushed again")
}

func readyInvoice(t *testing.T, f *fixture) Invoice {
	t.Helper()
	inv := f.reserve(t, reservedEvent("inv-1", "Sell", 10, 1000, 0))
	ctx := context.Background()
	_, err := f.store.VerifyExecution(ctx, buyerActor, inv.ID, shared.RoleBuyer)
	require.NoError(t, err)
	_, err = f.store.VerifyExecution(ctx, sellerActor, inv.ID, shared.RoleSeller)
	require.NoError(t, err)
	_, err = f.store.AddPayment(ctx, buyerActor, PaymentInput{InvoiceID: inv.ID, Amount: 1000, Type: TypeFinal, Method: MethodCash})
	require.NoError(t, err)
	got, err := f.store.Invoice(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, got.CanSyncToFrappe)
	return got
}

func TestSyncFailureIsRecordedAndRetryable(t *testing.T) {
	f := newFixture(t, nil)
	inv := readyInvoice(t, f)
	ctx := context.Background()

	f.gateway.SetErr(erp.ErrRejected)
	status, err := f.store.SyncToERP(ctx, sellerActor, inv.ID)
	require.NoError(t, err)
	require.Equal(t, erp.SyncFailed, status)
	got, _ := f.store.Invoice(ctx, inv.ID)
	require.Equal(t, erp.SyncFailed, got.SyncStatus)

	f.gateway.SetErr(nil)
	status, err = f.store.SyncToERP(ctx, sellerActor, inv.ID)
	require.NoError(t, err)
	require.Equal(t, erp.SyncSynced, status)
	require.Len(t, f.gateway.Invoices(), 2)
}

func TestSyncUnknownInvoice(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.store.SyncToERP(context.Background(), sellerActor, "missing")
	require.ErrorIs(t, err, ErrInvoiceNotFound)
	require.ErrorIs(t, f.store.CheckSyncGate(context.Background(), "missing"), shared.ErrNotFound)
}

type blockingGateway struct {
	erp.Recorder
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) PushInvoice(ctx context.Context, doc erp.InvoiceDocument) error {
	close(g.entered)
	<-g.release
	return g.Recorder.PushInvoice(ctx, doc)
}

func TestConcurrentSyncIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	inv := readyInvoice(t, f)
	gw := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	f.store.gateway = gw

	done := make(chan error, 1)
	go func() {
		_, err := f.store.SyncToERP(context.Background(), sellerActor, inv.ID)
		done <- err
	}()
	<-gw.entered
	_, err := f.store.SyncToERP(context.Background(), sellerActor, inv.ID)
	require.ErrorIs(t, err, ErrSyncInProgress)
	close(gw.release)
	require.NoError(t, <-done)
	require.Len(t, gw.Invoices(), 1)
}

func TestStatusFrozenWhileSyncRuns(t *testing.T) {
	f := newFixture(t, nil)
	inv := readyInvoice(t, f)
	gw := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	f.store.gateway = gw
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.store.SyncToERP(ctx, sellerActor, inv.ID)
		done <- err
	}()
	<-gw.entered
	_, err := f.store.UpdateStatus(ctx, sellerActor, inv.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrSyncInProgress)
	close(gw.release)
	require.NoError(t, <-done)

	got, err := f.store.Invoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVerified, got.Status)
	require.Equal(t, erp.SyncSynced, got.SyncStatus)

	_, err = f.store.UpdateStatus(ctx, sellerActor, inv.ID, StatusCancelled)
	require.NoError(t, err)
}

func TestAddPayment(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.reserve(t, reservedEvent("inv-1", "Sell", 10, 1000, 0))
	ctx := context.Background()

	p, err := f.store.AddPayment(ctx, buyerActor, PaymentInput{InvoiceID: inv.ID, Amount: 400, Type: TypePartial, Method: MethodCheque, Status: PaymentStatePending})
	require.NoError(t, err)
	require.True(t, p.VerifiedByBuyer)
	require.False(t, p.VerifiedBySeller)
	got, _ := f.store.Invoice(ctx, inv.ID)
	require.Equal(t, PaymentPending, got.PaymentStatus, "pending payments are not counted")

	_, err = f.store.AddPayment(ctx, sellerActor, PaymentInput{InvoiceID: inv.ID, Amount: 400, Type: TypePartial, Method: MethodBankTransfer})
	require.NoError(t, err)
	got, _ = f.store.Invoice(ctx, inv.ID)
	require.Equal(t, PaymentAdvancePaid, got.PaymentStatus)

	_, err = f.store.AddPayment(ctx, buyerActor, PaymentInput{InvoiceID: inv.ID, Amount: 600, Type: TypeFinal, Method: MethodUPI})
	require.NoError(t, err)
	got, _ = f.store.Invoice(ctx, inv.ID)
	require.Equal(t, PaymentFullyPaid, got.PaymentStatus)

	_, err = f.store.AddPayment(ctx, buyerActor, PaymentInput{InvoiceID: "missing", Amount: 1, Type: TypeFinal, Method: MethodUPI})
	require.ErrorIs(t, err, ErrInvoiceNotFound)
	_, err = f.store.AddPayment(ctx, buyerActor, PaymentInput{InvoiceID: inv.ID, Amount: 0, Type: TypeFinal, Method: MethodUPI})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.store.AddPayment(ctx, buyerActor, PaymentInput{InvoiceID: inv.ID, Amount: 5, Type: "Gift", Method: MethodUPI})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateStatusRules(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.reserve(t, reservedEvent("inv-1", "Sell", 10, 1000, 0))
	ctx := context.Background()

	_, err := f.store.UpdateStatus(ctx, sellerActor, inv.ID, StatusVerified)
	require.ErrorIs(t, err, ErrNotFullyVerified)
	_, err = f.store.UpdateStatus(ctx, sellerActor, inv.ID, "Draft")
	require.ErrorIs(t, err, shared.ErrValidation)

	got, err := f.store.UpdateStatus(ctx, sellerActor, inv.ID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, got.Status)

	_, err = f.store.UpdateStatus(ctx, sellerActor, inv.ID, StatusFinal)
	require.ErrorIs(t, err, ErrInvoiceCancelled)
	_, err = f.store.VerifyExecution(ctx, buyerActor, inv.ID, shared.RoleBuyer)
	require.ErrorIs(t, err, ErrInvoiceCancelled)
	_, err = f.store.UpdateStatus(ctx, sellerActor, "missing", StatusFinal)
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestContractEventsMirrorOntoInvoice(t *testing.T) {
	f := newFixture(t, nil)
	bus := events.NewBus(quietLogger())
	stop := f.store.Listen(bus)
	defer stop()
	ctx := context.Background()

	evt := reservedEvent("inv-1", "Future", 1000, 100000, 20000)
	bus.Publish(ctx, evt)
	inv, err := f.store.Invoice(ctx, "inv-1")
	require.NoError(t, err)

	bus.Publish(ctx, events.ContractReadyForDelivery{ContractID: inv.ContractID, InvoiceID: inv.ID})
	inv, _ = f.store.Invoice(ctx, inv.ID)
	require.Equal(t, StatusFinal, inv.Status)

	bus.Publish(ctx, events.ContractVerified{ContractID: inv.ContractID, InvoiceID: inv.ID, Role: shared.RoleSeller})
	inv, _ = f.store.Invoice(ctx, inv.ID)
	require.True(t, inv.SellerVerified)
	require.False(t, inv.BuyerVerified)
	require.Equal(t, StatusFinal, inv.Status)

	bus.Publish(ctx, events.ContractVerified{ContractID: inv.ContractID, InvoiceID: inv.ID, Role: shared.RoleBuyer, FullyVerified: true})
	inv, _ = f.store.Invoice(ctx, inv.ID)
	require.Equal(t, StatusVerified, inv.Status)

	bus.Publish(ctx, events.ContractReadyForDelivery{ContractID: inv.ContractID, InvoiceID: inv.ID})
	inv, _ = f.store.Invoice(ctx, inv.ID)
	require.Equal(t, StatusVerified, inv.Status, "ready for delivery never demotes a verified invoice")

	require.ErrorIs(t, f.store.OnContractVerified(ctx, events.ContractVerified{InvoiceID: "missing", Role: shared.RoleBuyer}), ErrInvoiceNotFound)
	require.ErrorIs(t, f.store.OnContractReadyForDelivery(ctx, events.ContractReadyForDelivery{InvoiceID: "missing"}), ErrInvoiceNotFound)

	stop()
	require.Zero(t, bus.SubscriberCount(events.KindContractReserved))
}

func TestCanSellerClose(t *testing.T) {
	inv := Invoice{BuyerVerified: true, PaymentStatus: PaymentFullyPaid, Status: StatusFinal}
	require.True(t, CanSellerClose(inv))
	inv.SellerVerified = true
	require.False(t, CanSellerClose(inv))
	inv = Invoice{BuyerVerified: true, PaymentStatus: PaymentAdvancePaid, Status: StatusFinal}
	require.False(t, CanSellerClose(inv))
}

func TestSalesAndPurchaseViews(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.reserve(t, reservedEvent("inv-1", "Sell", 10, 1000, 0))
	f.now = f.now.Add(time.Minute)
	f.reserve(t, reservedEvent("inv-2", "Sell", 10, 2000, 0))

	sales, _ := f.store.SalesInvoices(ctx, sellerActor, InvoiceFilter{})
	require.Empty(t, sales, "sales view waits for buyer verification")

	_, err := f.store.VerifyExecution(ctx, buyerActor, first.ID, shared.RoleBuyer)
	require.NoError(t, err)
	sales, _ = f.store.SalesInvoices(ctx, sellerActor, InvoiceFilter{})
	require.Len(t, sales, 1)
	require.Equal(t, first.ID, sales[0].ID)

	purchases, page := f.store.PurchaseInvoices(ctx, buyerActor, InvoiceFilter{})
	require.Equal(t, 2, page.Total)
	require.Equal(t, "inv-2", purchases[0].ID, "newest first")

	other, _ := f.store.PurchaseInvoices(ctx, shared.Actor{UserID: "someone"}, InvoiceFilter{})
	require.Empty(t, other)

	filtered, _ := f.store.Invoices(ctx, InvoiceFilter{Search: "ci-2025-002"})
	require.Len(t, filtered, 1)
}

func TestPreviewRendersDocument(t *testing.T) {
	f := newFixture(t, nil)
	inv := f.reserve(t, reservedEvent("inv-1", "Future", 1000, 100000, 20000))

	p, err := f.store.Preview(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, "Sales Invoice", p.Document.Doctype)
	require.Equal(t, 20000.0, p.Document.AdvancePaid)
	require.Equal(t, 80000.0, p.Document.OutstandingAmount)
	require.Len(t, p.Payments, 1)
	require.Contains(t, p.HTML, "CI-2025-001")
	require.Contains(t, p.HTML, "INR 100,000.00")
	require.Contains(t, p.HTML, "Metro Foods")

	_, err = f.store.Preview(context.Background(), "missing")
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}
