package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TypeSendVerificationEmail = "email:send_verification"
	TypeSettleInvestments     = "investments:settle"
)

// Queue names, weighted in cmd/worker
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// TaskPayload is the common payload for all tasks
type TaskPayload struct {
	UserID string `json:"user_id,omitempty"`
}

// NewSendVerificationEmailTask creates a task to mail a verification link to a user
func NewSendVerificationEmailTask(userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TaskPayload{
		UserID: userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeSendVerificationEmail, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(5)), nil
}

// NewSettleInvestmentsTask creates a task that pays out all matured investments
func NewSettleInvestmentsTask() *asynq.Task {
	return asynq.NewTask(TypeSettleInvestments, nil, asynq.Queue(QueueDefault))
}

// ParseTaskPayload parses task payload from Asynq task
func ParseTaskPayload(task *asynq.Task) (TaskPayload, error) {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}

// Enqueuer is the subset of *asynq.Client used to schedule work
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
