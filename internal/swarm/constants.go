package swarm

import "time"

// Polling constants.
const (
	pollInterval   = 20 * time.Millisecond
	reportInterval = time.Second
)

// File permission constants.
const (
	logFilePermission = 0600
)

// PercentageMultiplier converts a ratio to a percentage.
const PercentageMultiplier = 100
