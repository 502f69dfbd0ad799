package notify

import (
	"context"
	"errors"
	"time"

	"retrocade/internal/notify/platforms"
)

var errCircuitOpen = errors.New("circuit_open")

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case job := <-m.dispatchCh:
			m.processJob(ctx, job)
		}
	}
}

func (m *Manager) processJob(ctx context.Context, job pushJob) {
	adapter := m.adapters[job.Target.Platform]
	if adapter == nil {
		m.metrics.IncNotifyDropped()
		return
	}

	now := time.Now()
	if err := m.beforeSend(job.key(), now); err != nil {
		m.metrics.IncNotifyCircuitOpen()
		m.retryOrDrop(job)
		return
	}

	err := adapter.Send(ctx, job.Target.Endpoint, job.Target.Secret, toPlatformMessage(job))
	if err != nil {
		m.metrics.IncNotifyFailed()
		m.afterFailure(job.key(), time.Now())
		m.retryOrDrop(job)
		return
	}

	m.metrics.IncNotifyDelivered()
	m.afterSuccess(job.key())
}

func (m *Manager) retryOrDrop(job pushJob) {
	if job.Attempt >= m.cfg.RetryMax {
		m.metrics.IncNotifyDropped()
		return
	}
	job.Attempt++
	m.metrics.IncNotifyRetried()
	delay := m.cfg.RetryBase * time.Duration(1<<(job.Attempt-1))
	m.retryQ.Enqueue(job, delay)
}

func (m *Manager) beforeSend(key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (m *Manager) afterFailure(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= m.cfg.FailureThreshold {
		state.openUntil = now.Add(m.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	m.breakerByKey[key] = state
}

func (m *Manager) afterSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakerByKey[key] = breakerState{}
}

func toPlatformMessage(job pushJob) platforms.Message {
	msg := job.Formatted
	fields := make([]platforms.Field, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, platforms.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return platforms.Message{
		DeliveryID:  job.DeliveryID,
		EventID:     job.Event.EventID,
		Kind:        job.Event.Kind,
		Title:       msg.Title,
		Content:     msg.Content,
		Description: msg.Description,
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
		Footer:      msg.Footer,
		Fields:      fields,
		Payload:     job.Event.Raw,
	}
}
