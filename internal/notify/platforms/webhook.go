package platforms

import (
	"context"
	"strings"
)

// WebhookAdapter posts the raw event to any JSON-accepting endpoint.
// The secret, when set, is sent as a bearer token.
type WebhookAdapter struct {
	client *HTTPClient
}

func NewWebhookAdapter(client *HTTPClient) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Name() string {
	return "webhook"
}

func (a *WebhookAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	payload := map[string]any{
		"delivery_id": msg.DeliveryID,
		"event_id":    msg.EventID,
		"kind":        msg.Kind,
		"timestamp":   msg.Timestamp,
		"title":       msg.Title,
		"summary":     msg.Content,
		"data":        msg.Payload,
	}
	headers := map[string]string{"X-Delivery-Id": msg.DeliveryID}
	if s := strings.TrimSpace(secret); s != "" {
		headers["Authorization"] = "Bearer " + s
	}
	return a.client.PostJSON(ctx, endpoint, headers, payload)
}
