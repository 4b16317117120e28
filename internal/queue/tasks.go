package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// TaskNotificationSend delivers one customer notification.
	TaskNotificationSend = "notification:send"
	// TaskClaimsExpireSweep expires active claims whose coupon window closed.
	TaskClaimsExpireSweep = "claims:expire_sweep"
)

// NotificationPayload is the body of a notification:send task.
type NotificationPayload struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// ExpireSweepPayload is the body of a claims:expire_sweep task.
type ExpireSweepPayload struct {
	Batch int `json:"batch"`
}

// NewNotificationTask creates a notification:send task.
func NewNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationSend, body), nil
}

// NewExpireSweepTask creates a claims:expire_sweep task.
func NewExpireSweepTask(payload ExpireSweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskClaimsExpireSweep, body), nil
}
