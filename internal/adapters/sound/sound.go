// Package sound turns note ids into audible tone start and stop.
package sound

// Output is a note sink. Note ids and velocities are MIDI values (0-127).
type Output interface {
	NoteOn(note, velocity uint8) error
	NoteOff(note uint8) error
	AllNotesOff() error
	Close() error
}
