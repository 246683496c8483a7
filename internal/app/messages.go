package service

import (
	"github.com/okian/ensemble/internal/adapters/wire"
	"github.com/okian/ensemble/internal/domain/model"
	"github.com/okian/ensemble/internal/domain/types"
)

// Msg is anything the synchronizer loop accepts.
type Msg interface{ isMsg() }

// PressMsg is a local press intent.
type PressMsg struct{ Key int }

// ReleaseMsg is a local release intent.
type ReleaseMsg struct{ Key int }

// RemoteMsg carries a decoded relay message. Gen identifies the session
// it came from; zero means untracked.
type RemoteMsg struct {
	Message wire.Message
	Gen     uint64
}

// SessionUpMsg announces a connected session and the identity the relay
// assigned to this client.
type SessionUpMsg struct {
	SelfID model.ClientID
	Color  model.Color
	Sender Sender
	Gen    uint64
}

// SessionLostMsg announces that the session with Gen is gone.
type SessionLostMsg struct {
	Err error
	Gen uint64
}

type snapshotMsg struct{ reply chan []types.KeyState }

type statusMsg struct{ reply chan Status }

type redrawMsg struct{}

func (PressMsg) isMsg()       {}
func (ReleaseMsg) isMsg()     {}
func (RemoteMsg) isMsg()      {}
func (SessionUpMsg) isMsg()   {}
func (SessionLostMsg) isMsg() {}
func (snapshotMsg) isMsg()    {}
func (statusMsg) isMsg()      {}
func (redrawMsg) isMsg()      {}
