package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskDeliverEvent is the asynq task type carrying one serialized event.
const TaskDeliverEvent = "events:deliver"

// AsynqScheduler pushes emitted events onto the asynq queue for delivery by
// the worker process.
type AsynqScheduler struct {
	Client *asynq.Client
}

// Schedule implements DeliveryScheduler.
func (s *AsynqScheduler) Schedule(_ context.Context, event Event) error {
	if s == nil || s.Client == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.Client.Enqueue(asynq.NewTask(TaskDeliverEvent, data), asynq.MaxRetry(5))
	return err
}

// DecodeTask unpacks a delivery task back into an Event.
func DecodeTask(t *asynq.Task) (Event, error) {
	var ev Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return Event{}, fmt.Errorf("decode event task: %w", err)
	}
	return ev, nil
}
