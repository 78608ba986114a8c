package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/contractdesk/internal/contracts"
	jobmetrics "github.com/odyssey-erp/contractdesk/internal/jobs"
)

// LedgerAuditor recomputes reservation caches and reports what it corrected.
type LedgerAuditor interface {
	AuditLedger(ctx context.Context) []contracts.LedgerDrift
}

// LedgerAuditJob checks every contract's cached totals against its reservation ledger.
type LedgerAuditJob struct {
	Auditor LedgerAuditor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerAuditJob initialises the audit handler.
func NewLedgerAuditJob(auditor LedgerAuditor, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerAuditJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerAuditJob{Auditor: auditor, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLedgerAudit tasks.
func (j *LedgerAuditJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Auditor == nil {
		return errors.New("ledger audit: handler not configured")
	}
	tracker := j.Metrics.Track(TaskLedgerAudit)
	drift := j.Auditor.AuditLedger(ctx)
	j.Metrics.AddLedgerDrift(len(drift))
	j.Logger.Info("ledger audit executed", slog.String("job", "ledger_audit"), slog.Int("corrected", len(drift)))
	return tracker.End(nil)
}
