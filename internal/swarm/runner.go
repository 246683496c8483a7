// Package swarm drives many headless clients against one relay and
// checks that the shared keyboard converges.
package swarm

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/ensemble/internal/domain/layout"
	"github.com/okian/ensemble/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Run executes a complete swarm run. The returned stats are filled in
// as far as the run got, even when an error is returned.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
		Bots:      config.Bots,
	}
	if config.Bots < 2 || config.Presses < 0 || config.Timeout <= 0 {
		return stats, fmt.Errorf("%w: need at least 2 bots, non negative presses and a timeout", ErrInvalidConfig)
	}

	logger.Get().Info(ctx, "starting ensemble swarm",
		logger.String("relay", config.RelayURL),
		logger.Int("bots", config.Bots),
		logger.Int("presses", config.Presses),
		logger.String("hold", config.Hold.String()),
		logger.String("timeout", config.Timeout.String()))

	// Step 1: Check relay health
	var hc *HTTPClient
	if config.HTTPURL != "" {
		hc = newHTTPClient(config.HTTPURL, config.Timeout)
		if err := hc.checkHealth(ctx); err != nil {
			return stats, err
		}
	}

	l, err := layout.New(layout.DefaultConfig())
	if err != nil {
		return stats, err
	}
	keys := playableKeys(l)

	// Step 2: Connect bots
	bots, err := startBots(ctx, config, l)
	if err != nil {
		return stats, fmt.Errorf("bot startup failed: %w", err)
	}
	defer stopBots(bots)

	// Step 3: Wait until every bot knows every other bot
	if err := waitSettled(ctx, config, bots); err != nil {
		return stats, err
	}

	// Step 4: Play
	if err := playAll(ctx, config, bots, keys); err != nil {
		return stats, fmt.Errorf("play failed: %w", err)
	}
	perBot := int64(config.Bots-1) * int64(config.Presses) * 2
	stats.EventsExpected = perBot * int64(config.Bots)
	for _, b := range bots {
		stats.EventsSent += b.sent.Load()
	}

	// Step 5: Wait for delivery; a shortfall is reported by verification
	waitDelivered(ctx, config, bots, perBot)
	for _, b := range bots {
		stats.EventsReceived += b.received.Load()
	}

	if hc != nil {
		if st, err := hc.stats(ctx); err != nil {
			logger.Get().Warn(ctx, "failed to fetch relay stats", logger.Error(err))
		} else {
			stats.RelayPublished = st.Published
		}
	}

	// Step 6: Verify
	verr := verifyResults(ctx, bots, perBot, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if verr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verr)
	}
	logger.Get().Info(ctx, "swarm completed successfully")
	return stats, nil
}

func startBots(ctx context.Context, config *Config, l *layout.Layout) ([]*bot, error) {
	bots := make([]*bot, 0, config.Bots)
	for i := 0; i < config.Bots; i++ {
		b := newBot(i, l, config)
		if err := b.start(ctx); err != nil {
			b.stop()
			stopBots(bots)
			return nil, fmt.Errorf("%s: %w", b.name, err)
		}
		bots = append(bots, b)
	}
	logger.Get().Info(ctx, "bots connected", logger.Int("bots", len(bots)))
	return bots, nil
}

func stopBots(bots []*bot) {
	for _, b := range bots {
		b.stop()
	}
}

// waitSettled waits until each bot has learned the colors of all others.
func waitSettled(ctx context.Context, config *Config, bots []*bot) error {
	want := len(bots) - 1
	return poll(ctx, config.Timeout, func() bool {
		for _, b := range bots {
			st, err := b.client.Synchronizer().Status(ctx)
			if err != nil || !st.Online || st.Peers < want {
				return false
			}
		}
		return true
	}, ErrNotSettled)
}

func playAll(ctx context.Context, config *Config, bots []*bot, keys []int) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bots {
		b := b
		g.Go(func() error {
			if err := b.play(gctx, keys, config.Presses, config.Hold, config.Gap); err != nil {
				return fmt.Errorf("%s: %w", b.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func waitDelivered(ctx context.Context, config *Config, bots []*bot, perBot int64) {
	lastReport := time.Now()
	_ = poll(ctx, config.Timeout, func() bool {
		var total int64
		done := true
		for _, b := range bots {
			n := b.received.Load()
			total += n
			if n < perBot {
				done = false
			}
		}
		if config.Verbose && time.Since(lastReport) >= reportInterval {
			lastReport = time.Now()
			logger.Get().Debug(ctx, "delivery progress",
				logger.Int64("received", total),
				logger.Int64("expected", perBot*int64(len(bots))))
		}
		return done
	}, ErrUndelivered)
}

// poll checks cond every pollInterval until it holds, ctx ends or
// timeout passes, in which case it returns onTimeout.
func poll(ctx context.Context, timeout time.Duration, cond func() bool, onTimeout error) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return onTimeout
		case <-tick.C:
		}
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var deliveryRate, eventsPerSecond float64

	if stats.EventsExpected > 0 {
		deliveryRate = float64(stats.EventsReceived) / float64(stats.EventsExpected) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("bots", stats.Bots),
		logger.Int64("eventsSent", stats.EventsSent),
		logger.Int64("eventsExpected", stats.EventsExpected),
		logger.Int64("eventsReceived", stats.EventsReceived),
		logger.Int64("relayPublished", stats.RelayPublished),
		logger.Int("undelivered", stats.Undelivered),
		logger.Int("stuckKeys", stats.StuckKeys),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("deliveryRate", deliveryRate),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
