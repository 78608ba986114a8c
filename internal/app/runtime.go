package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// TestModeEnv holds a boolean ("1", "true", ...) that keeps the binary from
// dialing Redis, starting the job worker or loading sample data.
const TestModeEnv = "CONTRACTDESK_TEST_MODE"

var testMode struct {
	once sync.Once
	on   atomic.Bool
}

func readTestMode() {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(TestModeEnv)))
	testMode.on.Store(err == nil && on)
}

// InTestMode reports whether startup side effects are disabled.
func InTestMode() bool {
	testMode.once.Do(readTestMode)
	return testMode.on.Load()
}

// RefreshTestMode re-reads TestModeEnv after the environment changed.
func RefreshTestMode() {
	testMode.once.Do(func() {})
	readTestMode()
}
