package erp

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// SimulatedConfig tunes the simulated gateway.
type SimulatedConfig struct {
	Latency     time.Duration
	SuccessRate float64
	Seed        uint64
	Logger      *slog.Logger
}

// Simulated stands in for the external system: it waits a fixed latency and then
// accepts or rejects the document pseudo-randomly.
type Simulated struct {
	latency     time.Duration
	successRate float64
	logger      *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated constructs a Simulated gateway. A zero seed draws one from the clock.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rate := cfg.SuccessRate
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulated{
		latency:     cfg.Latency,
		successRate: rate,
		logger:      logger,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// PushContract simulates submitting a contract.
func (s *Simulated) PushContract(ctx context.Context, doc ContractDocument) error {
	return s.push(ctx, "contract", doc.Name)
}

// PushInvoice simulates submitting an invoice.
func (s *Simulated) PushInvoice(ctx context.Context, doc InvoiceDocument) error {
	return s.push(ctx, "invoice", doc.Name)
}

func (s *Simulated) push(ctx context.Context, kind, name string) error {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()
	if roll >= s.successRate {
		s.logger.Warn("erp push rejected", slog.String("kind", kind), slog.String("name", name))
		return fmt.Errorf("%s %s: %w", kind, name, ErrRejected)
	}
	s.logger.Info("erp push accepted", slog.String("kind", kind), slog.String("name", name))
	return nil
}

var _ Gateway = (*Simulated)(nil)
