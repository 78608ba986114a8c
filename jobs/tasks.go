package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskERPSyncInvoice pushes one invoice to the ERP.
	TaskERPSyncInvoice = "erp:sync_invoice"
	// TaskERPSyncContract pushes one contract to the ERP.
	TaskERPSyncContract = "erp:sync_contract"
	// TaskLedgerAudit recomputes reservation caches from every contract ledger.
	TaskLedgerAudit = "contracts:ledger_audit"
)

// SyncInvoicePayload identifies the invoice to push and who asked.
type SyncInvoicePayload struct {
	InvoiceID string `json:"invoice_id"`
	UserID    string `json:"user_id"`
}

// SyncContractPayload identifies the contract to push and who asked.
type SyncContractPayload struct {
	ContractID string `json:"contract_id"`
	UserID     string `json:"user_id"`
}

// Sync failures are recorded on the record and retried by hand, never by the queue.
var syncOptions = []asynq.Option{asynq.MaxRetry(0), asynq.Queue(QueueDefault)}

// NewSyncInvoiceTask constructs an invoice sync task.
func NewSyncInvoiceTask(payload SyncInvoicePayload) (*asynq.Task, error) {
	if payload.InvoiceID == "" {
		return nil, fmt.Errorf("sync invoice task: invoice id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskERPSyncInvoice, data, syncOptions...), nil
}

// NewSyncContractTask constructs a contract sync task.
func NewSyncContractTask(payload SyncContractPayload) (*asynq.Task, error) {
	if payload.ContractID == "" {
		return nil, fmt.Errorf("sync contract task: contract id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskERPSyncContract, data, syncOptions...), nil
}

// NewLedgerAuditTask constructs the periodic ledger audit task.
func NewLedgerAuditTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerAudit, nil, asynq.MaxRetry(1), asynq.Queue(QueueDefault))
}
