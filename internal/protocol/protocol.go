package protocol

// MessageType defines the type of a status-stream message
type MessageType string

const (
	// TypeStatus carries a full status snapshot, sent when a client connects
	TypeStatus MessageType = "status"

	// TypeModeChange is sent whenever the device mode changes
	TypeModeChange MessageType = "mode_change"

	// TypeAppLoaded is sent when a new app profile is pushed to the keys
	TypeAppLoaded MessageType = "app_loaded"

	// TypeFocus is sent when the host reports a new focused application
	TypeFocus MessageType = "focus"
)

// Message is the generic container for all status-stream messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ModeChangePayload is the payload for TypeModeChange
type ModeChangePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AppLoadedPayload is the payload for TypeAppLoaded
type AppLoadedPayload struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Fallback bool     `json:"fallback"` // true when the requested app was unknown
	Labels   []string `json:"labels"`
}

// FocusPayload is the payload for TypeFocus
type FocusPayload struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
}
