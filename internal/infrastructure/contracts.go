package infrastructure

import (
	"context"

	"github.com/andreyxaxa/Photo-Pipeline/internal/dto"
	"github.com/google/uuid"
)

type (
	// StepDispatcher publishes one pipeline step to the queue named after
	// the procedure.
	StepDispatcher interface {
		Dispatch(ctx context.Context, msg dto.DispatchMessage) error
		Close() error
	}

	// Notifier fans an event out to the user's real-time channel.
	Notifier interface {
		Notify(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error
	}
)
