// Package events defines the fleet's lifecycle events and the bus that
// fans them out to logging, stats and telemetry.
package events

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Fleet lifecycle events
	EventFleetStarted EventType = "fleet_started"
	EventFleetStopped EventType = "fleet_stopped"

	// Session events
	EventSessionConnecting EventType = "session_connecting"
	EventSessionJoined     EventType = "session_joined"
	EventSessionFailed     EventType = "session_failed"

	// Health events
	EventHealthAlert EventType = "health_alert"
)

// SessionTypes lists every per-session event type.
var SessionTypes = []EventType{
	EventSessionConnecting,
	EventSessionJoined,
	EventSessionFailed,
}

// Stage is how far a session got before its event was emitted.
type Stage int

const (
	StageDial Stage = iota
	StageJoin
	StagePlay
)

var stageStrings = map[Stage]string{
	StageDial: "dial",
	StageJoin: "join",
	StagePlay: "play",
}

// String returns the string representation of Stage.
func (s Stage) String() string {
	if str, ok := stageStrings[s]; ok {
		return str
	}
	return "unknown"
}

// MarshalJSON serializes Stage as a JSON string (e.g. "join").
func (s Stage) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// SessionPayload describes one clanker session. Error and ErrClass are only
// set on EventSessionFailed.
type SessionPayload struct {
	Slot     int    `json:"slot"`
	Name     string `json:"name"`
	Remote   string `json:"remote"`
	Stage    Stage  `json:"stage"`
	Error    string `json:"error,omitempty"`
	ErrClass string `json:"err_class,omitempty"`
}

// FleetPayload describes the fleet as a whole.
type FleetPayload struct {
	Destination string `json:"destination"`
	Sessions    int    `json:"sessions"`
}

// HealthPayload is a failed health check.
type HealthPayload struct {
	Check   string `json:"check"`
	Level   string `json:"level"`
	Message string `json:"message"`
}
