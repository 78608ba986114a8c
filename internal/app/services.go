package app

import (
	"log/slog"

	"github.com/odyssey-erp/contractdesk/internal/accounting"
	"github.com/odyssey-erp/contractdesk/internal/contracts"
	"github.com/odyssey-erp/contractdesk/internal/erp"
	"github.com/odyssey-erp/contractdesk/internal/events"
	"github.com/odyssey-erp/contractdesk/internal/observability"
)

// ServicesConfig carries the collaborators shared by both stores.
type ServicesConfig struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Gateway erp.Gateway
	Cache   *accounting.Cache
	Money   erp.Money
}

// Services is the wired domain core: one bus and the two stores listening on it.
type Services struct {
	Bus        *events.Bus
	Contracts  *contracts.Store
	Accounting *accounting.Store

	stops []func()
}

// NewServices builds the bus and both stores and subscribes their listeners.
func NewServices(cfg ServicesConfig) *Services {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var opts []events.Option
	if cfg.Metrics != nil {
		opts = append(opts, events.WithPublishedCounter(cfg.Metrics.Events))
	}
	bus := events.NewBus(logger.With(slog.String("component", "events")), opts...)

	contractStore := contracts.NewStore(contracts.Config{
		Publisher: bus,
		Gateway:   cfg.Gateway,
		Logger:    logger.With(slog.String("component", "contracts")),
		Metrics:   cfg.Metrics,
	})
	accountingStore := accounting.NewStore(accounting.Config{
		Publisher: bus,
		Gateway:   cfg.Gateway,
		Cache:     cfg.Cache,
		Logger:    logger.With(slog.String("component", "accounting")),
		Metrics:   cfg.Metrics,
		Money:     cfg.Money,
	})

	return &Services{
		Bus:        bus,
		Contracts:  contractStore,
		Accounting: accountingStore,
		stops: []func(){
			accountingStore.Listen(bus),
			contractStore.Listen(bus),
		},
	}
}

// Close removes the listeners and closes the bus.
func (s *Services) Close() {
	if s == nil {
		return
	}
	for _, stop := range s.stops {
		stop()
	}
	s.Bus.Close()
}
