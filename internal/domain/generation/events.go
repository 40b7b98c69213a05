package generation

import (
	"github.com/elevare/server/internal/infra/events"
	"github.com/elevare/server/internal/model"
)

// Event types published by the generation domain.
const (
	EventGenerationCompleted = "generation.completed"
	EventCreditsLow          = "generation.credits_low"
)

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(event events.Event)
}

// CompletedEvent is published after a generation is charged and stored.
type CompletedEvent struct {
	events.BaseEvent
	Feature          model.FeatureType
	CreditsCharged   int64
	CreditsRemaining int64
}

// CreditsLowEvent is published when a charge leaves the balance at or below
// the low-credit threshold.
type CreditsLowEvent struct {
	events.BaseEvent
	CreditsRemaining int64
}
