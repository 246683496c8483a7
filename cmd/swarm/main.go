package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/ensemble/internal/swarm"
)

// Default configuration constants.
const (
	defaultBots     = 8
	defaultPresses  = 50
	defaultHold     = 5 * time.Millisecond
	defaultGap      = 2 * time.Millisecond
	defaultTimeout  = 30 * time.Second
	defaultRunLimit = 10 * time.Minute
)

func main() {
	var (
		relayURL = flag.String("relay", "ws://localhost:9080/ws", "Websocket URL of the relay")
		httpURL  = flag.String("http", "http://localhost:9080", "Base HTTP URL of the relay, empty to skip health and stats")
		bots     = flag.Int("bots", defaultBots, "Number of bot clients")
		presses  = flag.Int("presses", defaultPresses, "Press/release pairs per bot")
		hold     = flag.Duration("hold", defaultHold, "How long each key is held")
		gap      = flag.Duration("gap", defaultGap, "Pause between a release and the next press")
		timeout  = flag.Duration("timeout", defaultTimeout, "Bound on connect and delivery waits")
		logFile  = flag.String("log", "", "Log file for run output (default: swarm_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		swarm.ShowHelp()
		return
	}

	if err := swarm.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	config := &swarm.Config{
		RelayURL: *relayURL,
		HTTPURL:  *httpURL,
		Bots:     *bots,
		Presses:  *presses,
		Hold:     *hold,
		Gap:      *gap,
		Timeout:  *timeout,
		LogFile:  *logFile,
		Verbose:  *verbose,
	}

	if _, err := swarm.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Swarm failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
