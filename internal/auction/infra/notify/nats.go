package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charitybid/auctioncore/internal/auction/domain"
	"github.com/nats-io/nats.go"
)

const sendSubject = "notify.send"

// NatsDispatcher implements domain.NotificationDispatcher by publishing
// notification payloads to NATS. Delivery is fire-and-forget: the worker that
// renders and sends messages subscribes outside this core.
type NatsDispatcher struct {
	nc *nats.Conn
}

func NewNatsDispatcher(nc *nats.Conn) *NatsDispatcher {
	return &NatsDispatcher{nc: nc}
}

type notificationPayload struct {
	Recipient string            `json:"recipient"`
	Template  string            `json:"template"`
	Context   map[string]string `json:"context,omitempty"`
}

func (d *NatsDispatcher) SendLater(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(notificationPayload{
		Recipient: n.Recipient,
		Template:  n.Template,
		Context:   n.Context,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := d.nc.Publish(sendSubject, payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
