package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeEmail is the task type for sending welcome emails to
	// freshly created staff accounts.
	TaskTypeWelcomeEmail = "mail:welcome"
	// TaskTypeExpirySweep is the task type for deactivating expired role
	// assignments and permission overrides.
	TaskTypeExpirySweep = "authz:expiry_sweep"
)

// WelcomeEmailPayload describes the information required to greet a new user.
type WelcomeEmailPayload struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// NewWelcomeEmailTask constructs an Asynq task.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeEmail, data), nil
}

// HandleWelcomeEmailTask processes TaskTypeWelcomeEmail tasks.
func HandleWelcomeEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with the practice's SMTP relay in phase 2.
	fmt.Printf("[jobs] welcome email to %s (%s)\n", payload.Email, payload.DisplayName)
	return nil
}

// ExpirySweepPayload configures one sweep run.
type ExpirySweepPayload struct {
	// BatchLimit caps how many rows a single run deactivates per table.
	// Zero means no cap.
	BatchLimit int `json:"batch_limit"`
}

// NewExpirySweepTask constructs an Asynq task.
func NewExpirySweepTask(payload ExpirySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeExpirySweep, data), nil
}
