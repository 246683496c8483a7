package sound

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ccAllNotesOff is the channel mode message that silences every note.
const ccAllNotesOff = 123

// MIDIOutput plays notes on one channel of a MIDI out port.
type MIDIOutput struct {
	mu      sync.Mutex
	out     drivers.Out
	channel uint8
	closed  bool
}

// OpenMIDI opens the out port selected by port on drv. port is a port
// number, a case-insensitive name substring, or empty for the first port.
func OpenMIDI(drv drivers.Driver, port string, channel uint8) (*MIDIOutput, error) {
	if drv == nil {
		return nil, fmt.Errorf("%w: no midi driver", ErrDevice)
	}
	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("%w: list ports: %w", ErrDevice, err)
	}
	out, err := selectOut(outs, port)
	if err != nil {
		return nil, err
	}
	return NewMIDIOutput(out, channel)
}

// NewMIDIOutput wraps an out port, opening it if needed.
func NewMIDIOutput(out drivers.Out, channel uint8) (*MIDIOutput, error) {
	if channel > 15 {
		return nil, fmt.Errorf("%w: channel %d not in 0-15", ErrDevice, channel)
	}
	if !out.IsOpen() {
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("%w: open %q: %w", ErrDevice, out.String(), err)
		}
	}
	return &MIDIOutput{out: out, channel: channel}, nil
}

func selectOut(outs []drivers.Out, port string) (drivers.Out, error) {
	if len(outs) == 0 {
		return nil, fmt.Errorf("%w: no midi out ports", ErrDevice)
	}
	port = strings.TrimSpace(port)
	if port == "" {
		return outs[0], nil
	}
	if n, err := strconv.Atoi(port); err == nil {
		for _, o := range outs {
			if o.Number() == n {
				return o, nil
			}
		}
		return nil, fmt.Errorf("%w: no out port number %d", ErrDevice, n)
	}
	want := strings.ToLower(port)
	for _, o := range outs {
		if strings.Contains(strings.ToLower(o.String()), want) {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: no out port matching %q", ErrDevice, port)
}

// Port returns the name of the underlying port.
func (m *MIDIOutput) Port() string { return m.out.String() }

// NoteOn starts note at velocity.
func (m *MIDIOutput) NoteOn(note, velocity uint8) error {
	return m.send(midi.NoteOn(m.channel, note&0x7f, velocity&0x7f))
}

// NoteOff stops note.
func (m *MIDIOutput) NoteOff(note uint8) error {
	return m.send(midi.NoteOff(m.channel, note&0x7f))
}

// AllNotesOff silences the channel.
func (m *MIDIOutput) AllNotesOff() error {
	return m.send(midi.ControlChange(m.channel, ccAllNotesOff, 0))
}

// Close silences the channel and closes the port.
func (m *MIDIOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	_ = m.out.Send(midi.ControlChange(m.channel, ccAllNotesOff, 0).Bytes())
	m.closed = true
	if err := m.out.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrDevice, err)
	}
	return nil
}

func (m *MIDIOutput) send(msg midi.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: port closed", ErrDevice)
	}
	if err := m.out.Send(msg.Bytes()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDevice, msg.String(), err)
	}
	return nil
}
