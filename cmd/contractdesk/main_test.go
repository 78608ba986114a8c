package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/contractdesk/internal/app"
)

func TestMain(m *testing.M) {
	_ = os.Setenv(app.TestModeEnv, "1")
	app.RefreshTestMode()
	os.Exit(m.Run())
}

func TestMainSkipsStartupInTestMode(t *testing.T) {
	main()
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := &app.Config{
		AppAddr:            "127.0.0.1:0",
		AppReadTimeout:     time.Second,
		AppWriteTimeout:    time.Second,
		ERPSuccessRate:     1,
		Currency:           "INR",
		Locale:             "en-IN",
		SeedSampleData:     true,
		JobsConcurrency:    1,
		RateLimitPerMinute: 60,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, app.NewLogger(cfg)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}
