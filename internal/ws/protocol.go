package ws

import (
	"encoding/json"

	"retrocade/internal/nativerun"
	"retrocade/internal/presence"
)

// Inbound registration messages. Role is assigned exactly once per
// connection by a valid register message.

type RegisterScreenMessage struct {
	Type     string `json:"type"`
	ScreenID string `json:"screenId"`
}

type RegisterControllerMessage struct {
	Type          string `json:"type"`
	ControllerID  string `json:"controllerId"`
	ScreenID      string `json:"screenId"`
	RequestedSlot *int   `json:"requestedSlot,omitempty"`
}

// RegisteredMessage confirms a registration back to the sender.
type RegisteredMessage struct {
	Type         string `json:"type"`
	Role         string `json:"role"`
	ScreenID     string `json:"screenId,omitempty"`
	ControllerID string `json:"controllerId,omitempty"`
	PlayerNum    *int   `json:"playerNum,omitempty"`
}

// ErrorMessage is the single typed error envelope. Code carries a
// stable machine string; RequestedPlayer is the 1-indexed slot on
// slot conflicts.
type ErrorMessage struct {
	Type            string `json:"type"`
	Error           string `json:"error"`
	Code            string `json:"code"`
	RequestedPlayer int    `json:"requestedPlayer,omitempty"`
}

// Heartbeat echoes the client timestamp verbatim; it estimates RTT and
// never drives liveness.

type HeartbeatMessage struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type HeartbeatAck struct {
	Type       string          `json:"type"`
	Timestamp  json.RawMessage `json:"timestamp,omitempty"`
	ServerTime int64           `json:"serverTime"`
}

// WebRTC signaling. Offers travel controller -> screen, answers
// screen -> controller, candidates both ways.

type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type WebRTCOfferMessage struct {
	Type         string `json:"type"`
	ControllerID string `json:"controllerId,omitempty"`
	SDP          *SDP   `json:"sdp"`
}

type WebRTCAnswerMessage struct {
	Type             string `json:"type"`
	TargetController string `json:"targetController,omitempty"`
	SDP              *SDP   `json:"sdp"`
}

type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SdpMid        *string `json:"sdpMid,omitempty"`
	SdpMLineIndex *int    `json:"sdpMLineIndex,omitempty"`
}

type ICECandidateMessage struct {
	Type             string        `json:"type"`
	TargetController string        `json:"targetController,omitempty"`
	ControllerID     string        `json:"controllerId,omitempty"`
	Candidate        *ICECandidate `json:"candidate"`
}

// Native lifecycle messages.

type LaunchNativeMessage struct {
	Type    string            `json:"type"`
	System  string            `json:"system"`
	Rom     string            `json:"rom"`
	Options map[string]string `json:"options,omitempty"`
}

// NativeResultMessage replies to launchNative / quitNative directly to
// the sender.
type NativeResultMessage struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type NativeStateMessage struct {
	Type string `json:"type"`
	nativerun.Status
}

type NativeExitMessage struct {
	Type   string `json:"type"`
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
}

// Topology notifications pushed to screens and controllers.

type ControllerConnectedMessage struct {
	Type         string `json:"type"`
	ControllerID string `json:"controllerId"`
	PlayerNum    int    `json:"playerNum"`
}

type ControllerDisconnectedMessage struct {
	Type         string `json:"type"`
	ControllerID string `json:"controllerId"`
	PlayerNum    int    `json:"playerNum"`
}

type ScreenDisconnectedMessage struct {
	Type     string `json:"type"`
	ScreenID string `json:"screenId"`
}

type PlayerInfo struct {
	ControllerID string `json:"controllerId"`
	PlayerNum    int    `json:"playerNum"`
}

type PlayerListMessage struct {
	Type     string       `json:"type"`
	ScreenID string       `json:"screenId"`
	Players  []PlayerInfo `json:"players"`
}

type PresenceMessage struct {
	Type    string            `json:"type"`
	Devices []presence.Device `json:"devices"`
}
