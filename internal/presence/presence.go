// Package presence discovers nearby input devices so screens can show
// a "pick up a controller" hint before anyone pairs.
package presence

import "context"

// Device is one discovered device in a presence snapshot.
type Device struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	Address        string `json:"address"`
	Active         bool   `json:"active"`
	Kind           string `json:"kind"`
	SignalStrength *int   `json:"signalStrength,omitempty"`
}

// Source produces a point-in-time device snapshot.
type Source interface {
	Devices(ctx context.Context) ([]Device, error)
}
