package swarm

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/ensemble/pkg/logger"
)

// SetupLogging sends log output to both the console and a file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "swarm_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		return err
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the swarm tool.
func ShowHelp() {
	os.Stdout.WriteString(`Ensemble Swarm
==============

Connects a swarm of headless bot clients to a relay, has every bot press
and release random keys, and checks that every other bot saw each event
and that every keyboard ends up released.

Usage:
  go run ./cmd/swarm [options]

Options:
  -relay string
        Websocket URL of the relay (default "ws://localhost:9080/ws")
  -http string
        Base HTTP URL of the relay for health and stats (default "http://localhost:9080")
  -bots int
        Number of bot clients (default 8)
  -presses int
        Press/release pairs per bot (default 50)
  -hold duration
        How long each key is held (default 5ms)
  -gap duration
        Pause between a release and the next press (default 2ms)
  -timeout duration
        Bound on connect and delivery waits (default 30s)
  -log string
        Log file for run output (default: swarm_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run ./cmd/swarm

  # Hammer a remote relay
  go run ./cmd/swarm -bots 32 -presses 200 -relay ws://10.0.0.5:9080/ws -http http://10.0.0.5:9080

  # Skip the HTTP checks
  go run ./cmd/swarm -http ""
`)
}
