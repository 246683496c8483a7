// Package types contains common read shapes used across the application
package types

// KeyState is the visible state of one key
type KeyState struct {
	Index     int    `json:"index"`
	NoteID    int    `json:"note_id"`
	Pressed   bool   `json:"pressed"`
	PressedBy string `json:"pressed_by,omitempty"`
	Color     string `json:"color"`
}

// Peer describes one client connected to a relay
type Peer struct {
	ClientID string `json:"client_id"`
	Color    string `json:"color"`
}

// RelayStats is the relay's monitoring snapshot
type RelayStats struct {
	Started    bool   `json:"started"`
	Clients    int    `json:"clients"`
	Published  int64  `json:"published"`
	Dropped    int64  `json:"dropped"`
	Backplane  bool   `json:"backplane"`
	Peers      []Peer `json:"peers"`
	InstanceID string `json:"instance_id"`
}
