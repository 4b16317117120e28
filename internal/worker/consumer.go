package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-wallet/internal/notify"
	"github.com/fairyhunter13/coupon-wallet/internal/queue"
)

const defaultSweepBatch = 500

// ClaimExpirer defines the ledger operation the expiry sweep runs.
type ClaimExpirer interface {
	ExpireStale(ctx context.Context, batch int) (int, error)
}

// Consumer handles queued tasks.
type Consumer struct {
	sender  notify.Sender
	expirer ClaimExpirer
}

// NewConsumer creates a Consumer.
func NewConsumer(sender notify.Sender, expirer ClaimExpirer) *Consumer {
	return &Consumer{sender: sender, expirer: expirer}
}

// Register binds the task handlers on mux.
func (c *Consumer) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TaskNotificationSend, c.handleNotification)
	mux.HandleFunc(queue.TaskClaimsExpireSweep, c.handleExpireSweep)
}

func (c *Consumer) handleNotification(ctx context.Context, task *asynq.Task) error {
	var payload queue.NotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Warn().Err(err).Str("task", task.Type()).Msg("malformed notification payload")
		return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.Recipient) == "" {
		log.Debug().Str("task", task.Type()).Msg("notification without recipient skipped")
		return nil
	}

	if err := c.sender.Send(ctx, payload.Recipient, payload.Message); err != nil {
		log.Warn().Err(err).Str("recipient", payload.Recipient).Msg("notification delivery failed")
		return err
	}
	return nil
}

func (c *Consumer) handleExpireSweep(ctx context.Context, task *asynq.Task) error {
	payload := queue.ExpireSweepPayload{Batch: defaultSweepBatch}
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode sweep: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Batch <= 0 {
		payload.Batch = defaultSweepBatch
	}

	n, err := c.expirer.ExpireStale(ctx, payload.Batch)
	if err != nil {
		log.Error().Err(err).Int("expired", n).Msg("claim expiry sweep failed")
		return err
	}
	if n > 0 {
		log.Info().Int("expired", n).Msg("claim expiry sweep completed")
	}
	return nil
}
