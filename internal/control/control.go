// Package control publishes the per-task EVENT envelopes external
// subscribers watch at run milestones. MESSAGE envelopes on the same
// channel are published directly by the Task Store (ports.TaskStore.
// SendMessage); this package only adds the EVENT half.
package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/quantrail/internal/ports"
)

// Event names the driver emits.
const (
	EventStarted  = "backtesting_started"
	EventProgress = "backtesting_progress"
	EventComplete = "backtesting_completed"
	EventError    = "backtesting_error"
)

// envelope is the wire shape of an EVENT packet.
type envelope struct {
	Kind string `json:"kind"`

	Event       string  `json:"event"`
	Progress    float64 `json:"progress,omitempty"`
	DateStart   string  `json:"date_start,omitempty"`
	CurrentTime string  `json:"current_time,omitempty"`
	ResultID    string  `json:"result_id,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// Publisher publishes EVENT envelopes on one task's channel.
type Publisher struct {
	channel ports.ControlChannel
	taskID  int64
}

// New builds a Publisher bound to taskID.
func New(channel ports.ControlChannel, taskID int64) *Publisher {
	return &Publisher{channel: channel, taskID: taskID}
}

// Started publishes the backtesting_started EVENT.
func (p *Publisher) Started(ctx context.Context) error {
	return p.publish(ctx, envelope{Kind: "EVENT", Event: EventStarted})
}

// Progress publishes a backtesting_progress EVENT.
func (p *Publisher) Progress(ctx context.Context, progress float64, dateStart, currentTime, resultID string) error {
	return p.publish(ctx, envelope{
		Kind: "EVENT", Event: EventProgress,
		Progress: progress, DateStart: dateStart, CurrentTime: currentTime, ResultID: resultID,
	})
}

// Completed publishes the backtesting_completed EVENT.
func (p *Publisher) Completed(ctx context.Context) error {
	return p.publish(ctx, envelope{Kind: "EVENT", Event: EventComplete})
}

// Errored publishes the backtesting_error EVENT.
func (p *Publisher) Errored(ctx context.Context, text string) error {
	return p.publish(ctx, envelope{Kind: "EVENT", Event: EventError, Message: text})
}

func (p *Publisher) publish(ctx context.Context, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("control: marshal envelope: %w", err)
	}
	if err := p.channel.Publish(ctx, p.taskID, payload); err != nil {
		return fmt.Errorf("control: publish: %w", err)
	}
	return nil
}
