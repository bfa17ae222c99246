package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/Photo-Pipeline/internal/dto"
	"github.com/andreyxaxa/Photo-Pipeline/internal/entity"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/kafka/producer"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/segmentio/kafka-go"
)

// StepDispatcher routes a dispatch message to the per-procedure topic
// "<prefix>.<queue>". The procedure must exist in the registry; arbitrary
// names never reach the broker.
type StepDispatcher struct {
	*producer.Producer
	topicPrefix string
}

func NewStepDispatcher(producer *producer.Producer, topicPrefix string) *StepDispatcher {
	return &StepDispatcher{
		producer,
		topicPrefix,
	}
}

func (d *StepDispatcher) Dispatch(ctx context.Context, msg dto.DispatchMessage) error {
	proc, ok := entity.LookupProcedure(msg.Procedure)
	if !ok {
		return fmt.Errorf("StepDispatcher - Dispatch - %q: %w", msg.Procedure, errs.ErrUnknownProcedure)
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("StepDispatcher - Dispatch - json.Marshal: %w", err)
	}

	err = d.Writer.WriteMessages(ctx, kafka.Message{
		Topic: d.topicPrefix + "." + proc.Queue,
		Key:   []byte(msg.MessageID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("StepDispatcher - Dispatch - d.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (d *StepDispatcher) Close() error {
	err := d.Producer.Close()
	if err != nil {
		return fmt.Errorf("StepDispatcher - Close: %w", err)
	}

	return nil
}
