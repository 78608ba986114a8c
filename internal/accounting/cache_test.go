package accounting

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/contractdesk/internal/shared"
)

func newTestCache(t *testing.T) (*Cache, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), client, mr
}

func TestCacheVersionAndKeys(t *testing.T) {
	cache, _, _ := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	key, err := cache.BuildKey(ctx, "dashboard")
	require.NoError(t, err)
	require.Equal(t, "accounting:dashboard:1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "dashboard")
	require.NoError(t, err)
	require.Equal(t, "accounting:dashboard:2", key)
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()
	key, err := cache.BuildKey(ctx, "dashboard")
	require.NoError(t, err)
	require.Equal(t, "accounting:dashboard", key)
	require.NoError(t, cache.Bump(ctx))

	calls := 0
	var out int
	for i := 0; i < 2; i++ {
		err = cache.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
			calls++
			return 42, nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 42, out)
	require.Equal(t, 2, calls)
}

func TestCacheFetchJSONStoresResult(t *testing.T) {
	cache, _, mr := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"invoices": 3}, nil
	}
	var out map[string]int
	require.NoError(t, cache.FetchJSON(ctx, "accounting:test:1", &out, loader))
	require.NoError(t, cache.FetchJSON(ctx, "accounting:test:1", &out, loader))
	require.Equal(t, 1, calls)
	require.Equal(t, 3, out["invoices"])
	require.True(t, mr.Exists("accounting:test:1"))
	require.Equal(t, time.Minute, mr.TTL("accounting:test:1"))
}

func TestCacheListenForInvalidation(t *testing.T) {
	cache, client, _ := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, cache.ListenForInvalidation(ctx))
	require.NoError(t, client.Publish(ctx, bumpChannel, "7").Err())
	require.Eventually(t, func() bool {
		ver, err := cache.Version(context.Background())
		return err == nil && ver == 7
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDashboardSummary(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	verified := readyInvoice(t, f)
	f.reserve(t, reservedEvent("inv-2", "Future", 1000, 100000, 20000))
	cancelled := f.reserve(t, reservedEvent("inv-3", "Sell", 10, 500, 0))
	_, err := f.store.UpdateStatus(ctx, sellerActor, cancelled.ID, StatusCancelled)
	require.NoError(t, err)
	_, err = f.store.SyncToERP(ctx, sellerActor, verified.ID)
	require.NoError(t, err)

	d, err := f.store.DashboardSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, d.InvoiceCount)
	require.Equal(t, 2, d.PaymentCount)
	require.Equal(t, 2, d.PartyCount)
	require.Equal(t, 101000.0, d.TotalSales)
	require.Equal(t, 20000.0, d.TotalReservations)
	require.Equal(t, 15150.0, d.EstimatedProfit)
	require.Equal(t, 21000.0, d.CollectedAmount)
	require.Equal(t, 80000.0, d.OutstandingAmount)
	require.Equal(t, 1, d.VerifiedCount)
	require.Equal(t, 1, d.PendingVerifications)
	require.Equal(t, 1, d.SyncedCount)
	require.Zero(t, d.ReadyToSync)
	require.Equal(t, map[InvoiceStatus]int{StatusVerified: 1, StatusFinal: 1, StatusCancelled: 1}, d.ByStatus)
	require.Equal(t, 1, d.ByPaymentStatus[PaymentFullyPaid])
}

func TestDashboardSummaryIsCachedUntilMutation(t *testing.T) {
	cache, _, _ := newTestCache(t)
	f := newFixture(t, cache)
	ctx := context.Background()
	inv := f.reserve(t, reservedEvent("inv-1", "Sell", 10, 1000, 0))

	first, err := f.store.DashboardSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1000.0, first.TotalSales)

	// A change that bypasses the store's invalidation stays invisible.
	f.store.mu.Lock()
	f.store.invoices[inv.ID].TotalAmount = 5000
	f.store.mu.Unlock()
	cached, err := f.store.DashboardSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1000.0, cached.TotalSales)

	_, err = f.store.VerifyExecution(ctx, shared.Actor{UserID: "buyer-a"}, inv.ID, shared.RoleBuyer)
	require.NoError(t, err)
	fresh, err := f.store.DashboardSummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 5000.0, fresh.TotalSales)
}

func TestDashboardBuildSurvivesCancelledCaller(t *testing.T) {
	cache, _, mr := newTestCache(t)
	f := newFixture(t, cache)
	f.reserve(t, reservedEvent("inv-1", "Sell", 10, 1000, 0))
	_, err := cache.Version(context.Background())
	require.NoError(t, err)
	base := mr.CommandCount()

	// Hold the book so the shared build blocks inside its loader.
	f.store.mu.Lock()
	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() {
		_, err := f.store.DashboardSummary(leaderCtx)
		leader <- err
	}()
	// version GET + dashboard GET
	require.Eventually(t, func() bool { return mr.CommandCount() >= base+2 }, time.Second, time.Millisecond)

	type result struct {
		d   Dashboard
		err error
	}
	follower := make(chan result, 1)
	go func() {
		d, err := f.store.DashboardSummary(context.Background())
		follower <- result{d, err}
	}()
	require.Eventually(t, func() bool { return mr.CommandCount() >= base+3 }, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-leader, context.Canceled)
	f.store.mu.Unlock()

	got := <-follower
	require.NoError(t, got.err)
	require.Equal(t, 1000.0, got.d.TotalSales)
	require.Eventually(t, func() bool { return mr.Exists("accounting:dashboard:1") }, time.Second, time.Millisecond)
}
