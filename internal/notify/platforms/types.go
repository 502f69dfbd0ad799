package platforms

import "context"

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is one delivery-ready notification. Chat platforms render
// the formatted fields; the generic webhook adapter forwards the raw
// event payload instead.
type Message struct {
	DeliveryID  string
	EventID     string
	Kind        string
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []Field
	Payload     map[string]any
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}
