package store

import "time"

type PlaySession struct {
	ID         string     `json:"id"`
	System     string     `json:"system"`
	Core       string     `json:"core"`
	Rom        string     `json:"rom"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	ExitSignal *string    `json:"exit_signal,omitempty"`
}

type Pairing struct {
	ID             string     `json:"id"`
	ControllerID   string     `json:"controller_id"`
	ScreenID       string     `json:"screen_id"`
	PlayerNum      int        `json:"player_num"`
	ConnectedAt    time.Time  `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}
