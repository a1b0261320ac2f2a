package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskEmailDelivery = "messaging.email.delivery"

type EmailDeliveryPayload struct {
	MessageID string `json:"messageId"`
}

func NewEmailDeliveryTask(payload EmailDeliveryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailDelivery, data), nil
}

func ParseEmailDeliveryPayload(task *asynq.Task) (EmailDeliveryPayload, error) {
	var payload EmailDeliveryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EmailDeliveryPayload{}, err
	}
	return payload, nil
}
