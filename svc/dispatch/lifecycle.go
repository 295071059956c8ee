package dispatch

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/courier/pkg/statemachine"
)

// State is a delivery lifecycle state.
type State string

const (
	StateReceived     State = "received"
	StateProcessing   State = "processing"
	StateSent         State = "sent"
	StateSkipped      State = "skipped"
	StateDeadLettered State = "dead_lettered"
	StateRequeued     State = "requeued"
	StateRejected     State = "rejected"
)

// Event moves a delivery between states.
type Event string

const (
	EventDecoded   Event = "decoded"
	EventMalformed Event = "malformed"
	EventSkip      Event = "skip"
	EventDelivered Event = "delivered"
	EventExhausted Event = "exhausted"
	EventRequeue   Event = "requeue"
)

type lifecycle = statemachine.Machine[State, Event]

func newLifecycle(log *slog.Logger, id string) *lifecycle {
	return statemachine.MustNew(StateReceived,
		statemachine.WithTransition(StateReceived, EventDecoded, StateProcessing),
		statemachine.WithTransition(StateReceived, EventMalformed, StateRejected),
		statemachine.WithTransition(StateProcessing, EventSkip, StateSkipped),
		statemachine.WithTransition(StateProcessing, EventDelivered, StateSent),
		statemachine.WithTransition(StateProcessing, EventExhausted, StateDeadLettered),
		statemachine.WithTransition(StateProcessing, EventRequeue, StateRequeued),
		statemachine.WithTerminal[State, Event](StateSent, StateSkipped, StateDeadLettered, StateRequeued, StateRejected),
		statemachine.WithAction[State, Event](func(ctx context.Context, from, to State, event Event) error {
			log.DebugContext(ctx, "delivery transition",
				slog.String("message_id", id),
				slog.String("from", string(from)),
				slog.String("to", string(to)),
				slog.String("event", string(event)))
			return nil
		}),
	)
}
