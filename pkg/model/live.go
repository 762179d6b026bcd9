package model

import "encoding/json"

// LiveCommand is a remote-control command in the vocabulary of the Live control server
type LiveCommand struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

const (
	LiveStatusSuccess = "success"
	LiveStatusError   = "error"
)

// LiveResponse is a reply from the Live control server
type LiveResponse struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Note is a MIDI note to be written into a clip
type Note struct {
	Pitch     int     `json:"pitch"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
	Velocity  int     `json:"velocity"`
	Mute      bool    `json:"mute"`
}
