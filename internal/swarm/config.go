package swarm

import "time"

// Config holds configuration for a swarm run
type Config struct {
	RelayURL string        // Websocket URL of the relay
	HTTPURL  string        // Base HTTP URL of the relay, optional
	Bots     int           // Number of bot clients
	Presses  int           // Press/release pairs per bot
	Hold     time.Duration // How long a bot holds each key
	Gap      time.Duration // Pause between a release and the next press
	Timeout  time.Duration // Bound on connect, settle and delivery waits
	LogFile  string        // Log file for run output
	Verbose  bool          // Enable verbose logging
}

// Stats holds run statistics
type Stats struct {
	Bots           int
	EventsSent     int64
	EventsExpected int64
	EventsReceived int64
	Undelivered    int // bots that saw fewer events than expected
	StuckKeys      int // keys still pressed after the run settled
	RelayPublished int64
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
