// Command contractctl enqueues ERP sync jobs and inspects the job queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/contractdesk/cmd/contractctl/cli"
)

const usage = `usage: contractctl [--redis addr] <command> [flags]

commands:
  enqueue-sync --kind invoice|contract --id ID [--user USER]
  ledger-audit
  queue-stats [--json]
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	env, err := cli.LoadEnv()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return 2
	}
	global := flag.NewFlagSet("contractctl", flag.ContinueOnError)
	redisAddr := global.String("redis", env.RedisAddr, "redis address")
	global.Usage = func() { _, _ = fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobsCLI := cli.NewJobsCLI(env.RedisOpt(*redisAddr))
	defer func() { _ = jobsCLI.Close() }()

	switch rest[0] {
	case "enqueue-sync":
		fs := flag.NewFlagSet("enqueue-sync", flag.ContinueOnError)
		kind := fs.String("kind", "invoice", "invoice or contract")
		id := fs.String("id", "", "document id")
		user := fs.String("user", "", "requesting user id")
		if err := fs.Parse(rest[1:]); err != nil {
			return 2
		}
		return jobsCLI.Enqueue(ctx, cli.EnqueueOptions{Kind: *kind, ID: *id, UserID: *user})
	case "ledger-audit":
		return jobsCLI.Enqueue(ctx, cli.EnqueueOptions{Kind: "audit"})
	case "queue-stats":
		fs := flag.NewFlagSet("queue-stats", flag.ContinueOnError)
		jsonOutput := fs.Bool("json", false, "print JSON")
		if err := fs.Parse(rest[1:]); err != nil {
			return 2
		}
		return jobsCLI.StatsCommand(ctx, *jsonOutput, nil, nil)
	default:
		global.Usage()
		return 2
	}
}
