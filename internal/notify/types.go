package notify

import "time"

// Target is one webhook destination from the targets config.
type Target struct {
	Platform       string   `json:"platform"`
	Endpoint       string   `json:"endpoint"`
	Secret         string   `json:"secret"`
	ScopeType      string   `json:"scope_type"`
	ScopeValue     string   `json:"scope_value"`
	EventAllowlist []string `json:"event_allowlist"`
	Enabled        bool     `json:"enabled"`
}

type Config struct {
	Enabled             bool
	ConfigPath          string
	ConfigReload        time.Duration
	Targets             []Target
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
}

// KioskEvent is a feed event flattened for routing and formatting.
type KioskEvent struct {
	EventID      string
	Kind         string
	ServerTS     int64
	ScreenID     string
	ControllerID string
	PlayerNum    *int
	System       string
	Rom          string
	Core         string
	ExitCode     *int
	ExitSignal   string
	Raw          map[string]any
}

type MessageField struct {
	Name   string
	Value  string
	Inline bool
}

type FormattedMessage struct {
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []MessageField
}

type pushJob struct {
	DeliveryID string
	Target     Target
	Event      KioskEvent
	Formatted  FormattedMessage
	Attempt    int
}

func (j pushJob) key() string {
	return targetKey(j.Target)
}

func targetKey(t Target) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.ScopeType + "|" + t.ScopeValue
}
