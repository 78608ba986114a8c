package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/contractdesk/internal/shared"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus(quietLogger())
	var seen []string
	bus.Subscribe(KindContractReserved, func(ctx context.Context, evt Event) error {
		seen = append(seen, "first:"+evt.(ContractReserved).InvoiceID)
		return nil
	})
	bus.Subscribe(KindContractReserved, func(ctx context.Context, evt Event) error {
		seen = append(seen, "second:"+evt.(ContractReserved).InvoiceID)
		return nil
	})

	bus.Publish(context.Background(), ContractReserved{InvoiceID: "a"})
	bus.Publish(context.Background(), ContractReserved{InvoiceID: "b"})

	require.Equal(t, []string{"first:a", "second:a", "first:b", "second:b"}, seen)
}

func TestBusIsolatesKinds(t *testing.T) {
	bus := NewBus(quietLogger())
	var verified int
	On(bus, func(ctx context.Context, evt ContractVerified) error {
		verified++
		require.Equal(t, shared.RoleSeller, evt.Role)
		return nil
	})

	bus.Publish(context.Background(), ContractReadyForDelivery{ContractID: "c-1"})
	bus.Publish(context.Background(), ContractVerified{ContractID: "c-1", Role: shared.RoleSeller})

	require.Equal(t, 1, verified)
}

func TestBusHandlerFailureDoesNotStopDelivery(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_events_total"}, []string{"kind", "outcome"})
	bus := NewBus(quietLogger(), WithPublishedCounter(counter))
	var delivered bool
	bus.Subscribe(KindInvoiceVerified, func(ctx context.Context, evt Event) error {
		return errors.New("listener down")
	})
	bus.Subscribe(KindInvoiceVerified, func(ctx context.Context, evt Event) error {
		panic("boom")
	})
	bus.Subscribe(KindInvoiceVerified, func(ctx context.Context, evt Event) error {
		delivered = true
		return nil
	})

	bus.Publish(context.Background(), InvoiceVerified{InvoiceID: "i-1"})

	require.True(t, delivered)
	require.Equal(t, 2.0, testutil.ToFloat64(counter.WithLabelValues(string(KindInvoiceVerified), "failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(string(KindInvoiceVerified), "delivered")))
}

func TestBusUnsubscribeAndClose(t *testing.T) {
	bus := NewBus(quietLogger())
	var calls int
	stop := bus.Subscribe(KindContractReadyForDelivery, func(ctx context.Context, evt Event) error {
		calls++
		return nil
	})
	keep := bus.Subscribe(KindContractReadyForDelivery, func(ctx context.Context, evt Event) error {
		calls += 10
		return nil
	})
	require.Equal(t, 2, bus.SubscriberCount(KindContractReadyForDelivery))

	stop()
	bus.Publish(context.Background(), ContractReadyForDelivery{})
	require.Equal(t, 10, calls)

	bus.Close()
	keep()
	bus.Publish(context.Background(), ContractReadyForDelivery{})
	require.Equal(t, 10, calls)
	require.Zero(t, bus.SubscriberCount(KindContractReadyForDelivery))

	bus.Subscribe(KindContractReadyForDelivery, func(ctx context.Context, evt Event) error {
		calls++
		return nil
	})
	require.Zero(t, bus.SubscriberCount(KindContractReadyForDelivery))
}

type impostor struct{}

func (impostor) Kind() Kind { return KindContractReserved }

func TestOnRejectsForeignPayload(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_foreign_total"}, []string{"kind", "outcome"})
	bus := NewBus(quietLogger(), WithPublishedCounter(counter))
	var calls int
	On(bus, func(ctx context.Context, evt ContractReserved) error {
		calls++
		return nil
	})

	bus.Publish(context.Background(), impostor{})
	bus.Publish(context.Background(), ContractReserved{ContractID: "x"})

	require.Equal(t, 1, calls)
	require.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(string(KindContractReserved), "failed")))
}
