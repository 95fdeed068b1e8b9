package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"fleximart-etl/internal/models"
	"fleximart-etl/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing run events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishRunCompleted publishes RunCompleted event
func (ep *EventPublisher) PublishRunCompleted(ctx context.Context, event *models.RunCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, runKey(event.Pipeline), event)
}

// PublishRunFailed publishes RunFailed event
func (ep *EventPublisher) PublishRunFailed(ctx context.Context, event *models.RunFailedEvent) error {
	return ep.producer.PublishEvent(ctx, runKey(event.Pipeline), event)
}

// runKey keeps the events of one pipeline on one partition
func runKey(pipeline string) string {
	return fmt.Sprintf("pipeline-%s", pipeline)
}

// EventHandler handles incoming events
type EventHandler struct {
	onRunCompleted func(context.Context, *models.RunCompletedEvent) error
	onRunFailed    func(context.Context, *models.RunFailedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnRunCompleted registers a handler for RunCompleted events
func (eh *EventHandler) OnRunCompleted(handler func(context.Context, *models.RunCompletedEvent) error) {
	eh.onRunCompleted = handler
}

// OnRunFailed registers a handler for RunFailed events
func (eh *EventHandler) OnRunFailed(handler func(context.Context, *models.RunFailedEvent) error) {
	eh.onRunFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeRunCompleted:
		if eh.onRunCompleted != nil {
			var event models.RunCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RunCompleted event: %w", err)
			}
			return eh.onRunCompleted(ctx, &event)
		}

	case models.EventTypeRunFailed:
		if eh.onRunFailed != nil {
			var event models.RunFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RunFailed event: %w", err)
			}
			return eh.onRunFailed(ctx, &event)
		}

	default:
		logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
