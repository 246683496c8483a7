package swarm

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/ensemble/pkg/logger"
)

// verifyResults checks that every bot saw every peer event and that no
// keyboard still shows a held key.
func verifyResults(ctx context.Context, bots []*bot, perBot int64, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")

	var errs []error
	for _, b := range bots {
		if got := b.received.Load(); got < perBot {
			stats.Undelivered++
			logger.Get().Warn(ctx, "bot missed events",
				logger.String("bot", b.name),
				logger.Int64("received", got),
				logger.Int64("expected", perBot))
		}

		n, err := b.pressed(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
			continue
		}
		if n > 0 {
			stats.StuckKeys += n
			logger.Get().Warn(ctx, "bot keyboard not released",
				logger.String("bot", b.name),
				logger.Int("pressed", n))
		}
	}

	if stats.Undelivered > 0 {
		errs = append(errs, fmt.Errorf("%w: %d of %d bots", ErrUndelivered, stats.Undelivered, len(bots)))
	}
	if stats.StuckKeys > 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrStuckKeys, stats.StuckKeys))
	}
	if len(errs) == 0 {
		logger.Get().Info(ctx, "result verification completed")
	}
	return errors.Join(errs...)
}
