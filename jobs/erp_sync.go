package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/contractdesk/internal/erp"
	jobmetrics "github.com/odyssey-erp/contractdesk/internal/jobs"
	"github.com/odyssey-erp/contractdesk/internal/shared"
)

// InvoiceSyncer is the accounting side of an ERP sync.
type InvoiceSyncer interface {
	SyncToERP(ctx context.Context, actor shared.Actor, id string) (erp.SyncStatus, error)
}

// ContractSyncer is the contract side of an ERP sync.
type ContractSyncer interface {
	SyncExternally(ctx context.Context, actor shared.Actor, id string) (erp.SyncStatus, error)
}

// ERPSyncJob runs queued ERP pushes against the stores.
type ERPSyncJob struct {
	Invoices  InvoiceSyncer
	Contracts ContractSyncer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewERPSyncJob initialises the sync handlers.
func NewERPSyncJob(invoices InvoiceSyncer, contracts ContractSyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ERPSyncJob {
	return &ERPSyncJob{Invoices: invoices, Contracts: contracts, Logger: logger, Metrics: metrics}
}

// HandleInvoice processes TaskERPSyncInvoice tasks. A closed sync gate or unknown invoice
// is final; a push failure is already recorded as Sync Failed and is not a task error.
func (j *ERPSyncJob) HandleInvoice(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("erp sync: invoice handler not configured")
	}
	var payload SyncInvoicePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.InvoiceID == "" {
		return fmt.Errorf("erp sync invoice payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track("erp_sync_invoice")
	status, err := j.Invoices.SyncToERP(ctx, shared.Actor{UserID: payload.UserID}, payload.InvoiceID)
	if err != nil {
		j.logger().Warn("invoice sync refused", slog.String("invoice_id", payload.InvoiceID), slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
	}
	j.Metrics.ObserveSyncOutcome("invoice", string(status))
	j.logger().Info("invoice sync finished", slog.String("invoice_id", payload.InvoiceID), slog.String("status", string(status)))
	return tracker.End(nil)
}

// HandleContract processes TaskERPSyncContract tasks.
func (j *ERPSyncJob) HandleContract(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Contracts == nil {
		return errors.New("erp sync: contract handler not configured")
	}
	var payload SyncContractPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.ContractID == "" {
		return fmt.Errorf("erp sync contract payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track("erp_sync_contract")
	status, err := j.Contracts.SyncExternally(ctx, shared.Actor{UserID: payload.UserID}, payload.ContractID)
	if err != nil {
		j.logger().Warn("contract sync refused", slog.String("contract_id", payload.ContractID), slog.Any("error", err))
		return tracker.End(fmt.Errorf("%w: %v", asynq.SkipRetry, err))
	}
	j.Metrics.ObserveSyncOutcome("contract", string(status))
	j.logger().Info("contract sync finished", slog.String("contract_id", payload.ContractID), slog.String("status", string(status)))
	return tracker.End(nil)
}

func (j *ERPSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// Handlers returns the task registrations for the worker.
func (j *ERPSyncJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskERPSyncInvoice, Handler: j.HandleInvoice},
		{Type: TaskERPSyncContract, Handler: j.HandleContract},
	}
}
