package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/contractdesk/jobs"
)

// Enqueuer is the queue-side of the jobs client.
type Enqueuer interface {
	EnqueueInvoiceSync(ctx context.Context, invoiceID, userID string) (string, error)
	EnqueueContractSync(ctx context.Context, contractID, userID string) (string, error)
	EnqueueLedgerAudit(ctx context.Context) (string, error)
	Close() error
}

// Inspector is the subset of asynq.Inspector used by queue-stats.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for the ERP sync queue.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
}

// NewJobsCLI initialises the CLI helpers against the given Redis connection.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// NewJobsCLIWith builds the helpers from explicit collaborators.
func NewJobsCLIWith(client Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// EnqueueOptions defines the flags of the enqueue command.
type EnqueueOptions struct {
	Kind   string
	ID     string
	UserID string
	Stdout io.Writer
	Stderr io.Writer
}

// Enqueue queues one job and prints its task id. Kind is invoice, contract or audit.
func (c *JobsCLI) Enqueue(ctx context.Context, opts EnqueueOptions) int {
	stdout, stderr := writers(opts.Stdout, opts.Stderr)
	if c == nil || c.client == nil {
		_, _ = fmt.Fprintln(stderr, "enqueue: client not configured")
		return 1
	}
	var (
		taskID string
		err    error
	)
	switch opts.Kind {
	case "invoice":
		if opts.ID == "" {
			_, _ = fmt.Fprintln(stderr, "enqueue: --id is required")
			return 1
		}
		taskID, err = c.client.EnqueueInvoiceSync(ctx, opts.ID, opts.UserID)
	case "contract":
		if opts.ID == "" {
			_, _ = fmt.Fprintln(stderr, "enqueue: --id is required")
			return 1
		}
		taskID, err = c.client.EnqueueContractSync(ctx, opts.ID, opts.UserID)
	case "audit":
		taskID, err = c.client.EnqueueLedgerAudit(ctx)
	default:
		_, _ = fmt.Fprintf(stderr, "enqueue: unsupported kind %q (invoice, contract, audit)\n", opts.Kind)
		return 1
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "enqueue: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, taskID)
	return 0
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// StatsCommand prints queue stats as text or JSON.
func (c *JobsCLI) StatsCommand(ctx context.Context, jsonOutput bool, stdout, stderr io.Writer) int {
	stdout, stderr = writers(stdout, stderr)
	stats, err := c.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "queue-stats: %v\n", err)
		return 1
	}
	if jsonOutput {
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "queue-stats: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return 0
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
