package presence

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Poller reads the source on a fixed interval and hands each snapshot
// to the sink. Diffing against the previous snapshot is the sink
// owner's job; the poller only guarantees deterministic ordering.
type Poller struct {
	source   Source
	interval time.Duration
	sink     func([]Device)
}

func NewPoller(source Source, interval time.Duration, sink func([]Device)) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{source: source, interval: interval, sink: sink}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) {
	p.poll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	devices, err := p.source.Devices(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Msg("presence_poll_failed")
		return
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	p.sink(devices)
}
