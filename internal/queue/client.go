package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fairyhunter13/coupon-wallet/internal/config"
)

const (
	// DefaultQueue is used when no queue name is configured.
	DefaultQueue = "default"

	notificationMaxRetry = 5
	notificationTimeout  = 30 * time.Second
)

// Client wraps an asynq client. A disabled Client accepts every enqueue
// and drops it.
type Client struct {
	client       *asynq.Client
	enabled      bool
	defaultQueue string
}

// NewClient creates a queue client backed by the configured Redis.
func NewClient(redisCfg config.RedisConfig, queueCfg config.QueueConfig) *Client {
	name := QueueName(queueCfg)
	if !queueCfg.Enabled {
		return &Client{enabled: false, defaultQueue: name}
	}
	return &Client{
		client:       asynq.NewClient(RedisOpt(redisCfg)),
		enabled:      true,
		defaultQueue: name,
	}
}

// Enabled reports whether tasks are actually enqueued.
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close closes the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueNotification pushes a notification:send task.
func (c *Client) EnqueueNotification(ctx context.Context, payload NotificationPayload, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewNotificationTask(payload)
	if err != nil {
		return err
	}
	options := append([]asynq.Option{
		asynq.Queue(c.defaultQueue),
		asynq.MaxRetry(notificationMaxRetry),
		asynq.Timeout(notificationTimeout),
	}, opts...)
	if _, err := c.client.EnqueueContext(ctx, task, options...); err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskNotificationSend, err)
	}
	return nil
}

// BuildServerConfig returns the connection and server settings for a worker.
func BuildServerConfig(redisCfg config.RedisConfig, queueCfg config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	concurrency := 10
	if queueCfg.Concurrency > 0 {
		concurrency = queueCfg.Concurrency
	}
	return RedisOpt(redisCfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueName(queueCfg): 1},
	}
}

// RedisOpt converts the Redis settings into asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	return asynq.RedisClientOpt{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// QueueName returns the configured queue, falling back to DefaultQueue.
func QueueName(cfg config.QueueConfig) string {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return DefaultQueue
	}
	return name
}
