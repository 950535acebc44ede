package peer

import (
	"github.com/MrWong99/hfpag/pkg/audio"
	"github.com/MrWong99/hfpag/pkg/bearer"
	"github.com/MrWong99/hfpag/pkg/callmanager"
)

// Request is an inbound request from the parent or from the session's own
// helpers. The concrete types in this file are the complete set.
type Request interface {
	requestName() string
}

// ProfileConnected hands the session a freshly opened service level
// connection bearer. The session takes ownership of Channel.
type ProfileConnected struct {
	Channel bearer.Channel
}

// SearchResult reports that the peer was found by a service search.
type SearchResult struct {
	Params bearer.ConnectParams
}

// BackendEvent forwards an audio backend event scoped to this peer.
type BackendEvent struct {
	Event audio.Event
}

// ManagerConnected records which call-manager connection owns the session.
type ManagerConnected struct {
	ID string
}

// AttachCallManager installs a call manager, replacing any previous one. The
// session declines the handle if it fails to deliver an initial network
// snapshot.
type AttachCallManager struct {
	Manager callmanager.Manager
}

// BatteryLevel updates the gateway battery indicator (0–5).
type BatteryLevel struct {
	Level uint8
}

// UpdateBehavior replaces the connection-behavior policy.
type UpdateBehavior struct {
	Behavior ConnectionBehavior
}

// Shutdown ends the session.
type Shutdown struct{}

func (ProfileConnected) requestName() string  { return "profile_connected" }
func (SearchResult) requestName() string      { return "search_result" }
func (BackendEvent) requestName() string      { return "backend_event" }
func (ManagerConnected) requestName() string  { return "manager_connected" }
func (AttachCallManager) requestName() string { return "attach_call_manager" }
func (BatteryLevel) requestName() string      { return "battery_level" }
func (UpdateBehavior) requestName() string    { return "update_behavior" }
func (Shutdown) requestName() string          { return "shutdown" }
