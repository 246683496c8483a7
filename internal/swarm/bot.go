package swarm

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	service "github.com/okian/ensemble/internal/app"
	"github.com/okian/ensemble/internal/adapters/session"
	"github.com/okian/ensemble/internal/adapters/sound"
	"github.com/okian/ensemble/internal/domain/keyboard"
	"github.com/okian/ensemble/internal/domain/layout"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/pkg/logger"
)

// bot is one headless client with a silent recorder for sound.
type bot struct {
	name     string
	client   *service.Client
	out      *sound.Recorder
	received atomic.Int64
	sent     atomic.Int64
}

func newBot(i int, l *layout.Layout, cfg *Config) *bot {
	b := &bot{
		name: fmt.Sprintf("bot-%02d", i),
		out:  sound.NewRecorder(),
	}
	log := logger.Get().Named(b.name)
	b.client = service.NewClient(keyboard.New(l, nil), b.out,
		service.WithRelayURL(cfg.RelayURL),
		service.WithClientLogger(log),
		service.WithSessionOptions(
			session.WithHandshakeTimeout(cfg.Timeout),
			session.WithLogger(log),
		),
		service.WithSynchronizerOptions(
			service.WithLogger(log),
			service.WithEventHook(func(model.WireEvent) { b.received.Add(1) }),
		),
	)
	return b
}

func (b *bot) start(ctx context.Context) error {
	if err := b.client.Start(ctx); err != nil {
		return err
	}
	return b.client.Connect(ctx)
}

// play presses and releases n random keys from keys, one at a time.
func (b *bot) play(ctx context.Context, keys []int, n int, hold, gap time.Duration) error {
	s := b.client.Synchronizer()
	for i := 0; i < n; i++ {
		key := keys[rand.Intn(len(keys))]
		s.LocalPress(key)
		b.sent.Add(1)
		if err := sleep(ctx, hold); err != nil {
			return err
		}
		s.LocalRelease(key)
		b.sent.Add(1)
		if err := sleep(ctx, gap); err != nil {
			return err
		}
	}
	return nil
}

// pressed counts keys this bot still shows as held.
func (b *bot) pressed(ctx context.Context) (int, error) {
	snap, err := b.client.Synchronizer().Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range snap {
		if k.Pressed {
			n++
		}
	}
	return n, nil
}

func (b *bot) stop() { b.client.Stop() }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// playableKeys lists the key indices that produce a note.
func playableKeys(l *layout.Layout) []int {
	var keys []int
	for _, e := range l.Entries() {
		if e.Playable() {
			keys = append(keys, e.Index)
		}
	}
	return keys
}
