package sound

import (
	"context"
	"time"
)

// Intro is the startup jingle: a C major scale, then a held C major chord.
type Intro struct {
	Base uint8         // first note of the scale
	Step time.Duration // length of each scale note
	Hold time.Duration // how long the chord rings
	Tail time.Duration // silence after the chord
}

// DefaultIntro starts on middle C.
func DefaultIntro() Intro {
	return Intro{Base: 60, Step: 100 * time.Millisecond, Hold: 3 * time.Second, Tail: 500 * time.Millisecond}
}

var majorScale = []uint8{0, 2, 4, 5, 7, 9, 11}

// Play runs the jingle on out. Cancelling ctx stops it early; all notes
// are silenced either way.
func (in Intro) Play(ctx context.Context, out Output, velocity uint8) (err error) {
	defer func() {
		if err != nil {
			_ = out.AllNotesOff()
		}
	}()

	for _, step := range majorScale {
		note := in.Base + step
		if err := out.NoteOn(note, velocity); err != nil {
			return err
		}
		if err := sleep(ctx, in.Step); err != nil {
			return err
		}
		if err := out.NoteOff(note); err != nil {
			return err
		}
	}

	for _, step := range []uint8{0, 4, 7} {
		if err := out.NoteOn(in.Base+step, velocity); err != nil {
			return err
		}
	}
	if err := sleep(ctx, in.Hold); err != nil {
		return err
	}
	if err := out.AllNotesOff(); err != nil {
		return err
	}
	return sleep(ctx, in.Tail)
}

// PlayIntro plays DefaultIntro.
func PlayIntro(ctx context.Context, out Output, velocity uint8) error {
	return DefaultIntro().Play(ctx, out, velocity)
}

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
