// Package notify delivers customer notifications such as redemption codes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/config"
	"github.com/fairyhunter13/coupon-wallet/internal/queue"
)

// Sender delivers a message to a recipient.
type Sender interface {
	Send(ctx context.Context, recipient, message string) error
}

// Enqueuer defines the queue operation QueueDispatcher needs.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, payload queue.NotificationPayload, opts ...asynq.Option) error
}

// NewSender returns the direct transport for cfg: a Webhook when a URL is
// configured, otherwise a Log sender.
func NewSender(cfg config.NotifyConfig) Sender {
	if cfg.WebhookURL == "" {
		return Log{}
	}
	return NewWebhook(cfg.WebhookURL, cfg.Timeout)
}

// QueueDispatcher hands messages to the worker through the task queue.
type QueueDispatcher struct {
	queue Enqueuer
}

// NewQueueDispatcher creates a QueueDispatcher.
func NewQueueDispatcher(q Enqueuer) *QueueDispatcher {
	return &QueueDispatcher{queue: q}
}

// Send enqueues the message for asynchronous delivery.
func (d *QueueDispatcher) Send(ctx context.Context, recipient, message string) error {
	return d.queue.EnqueueNotification(ctx, queue.NotificationPayload{Recipient: recipient, Message: message})
}

// Log records that a message would have been sent. The message body is
// never written since it may carry a one-time code.
type Log struct{}

// Send logs the delivery.
func (Log) Send(_ context.Context, recipient, message string) error {
	log.Info().
		Str("recipient", recipient).
		Int("message_len", len(message)).
		Msg("notification delivered to log")
	return nil
}

// Webhook posts messages as JSON to an HTTP endpoint.
type Webhook struct {
	url     string
	timeout time.Duration
}

// NewWebhook creates a Webhook sender. A non-positive timeout defaults to
// five seconds.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{url: url, timeout: timeout}
}

type webhookBody struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// ErrDeliveryRejected is returned when the webhook answers with a non-2xx status.
var ErrDeliveryRejected = errors.New("notification rejected by webhook")

// Send posts the message and waits for a 2xx answer.
func (w *Webhook) Send(ctx context.Context, recipient, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.Post(w.url).
		JSON(webhookBody{Recipient: recipient, Message: message}).
		Timeout(w.timeout)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook delivery: %w", errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d", ErrDeliveryRejected, code)
	}
	return nil
}
