package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskTouchDue = "automation.touch.due"

type TouchDuePayload struct {
	LeadID string    `json:"leadId"`
	DueAt  time.Time `json:"dueAt"`
}

func NewTouchDueTask(payload TouchDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTouchDue, data), nil
}

func ParseTouchDuePayload(task *asynq.Task) (TouchDuePayload, error) {
	var payload TouchDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TouchDuePayload{}, err
	}
	return payload, nil
}

// TouchDueTaskID identifies one scheduled touch of a lead.
func TouchDueTaskID(leadID uuid.UUID, dueAt time.Time) string {
	return fmt.Sprintf("touch:%s:%d", leadID, dueAt.UTC().Unix())
}
