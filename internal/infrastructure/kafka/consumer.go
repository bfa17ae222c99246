package kafka

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Photo-Pipeline/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

// ResultConsumer reads the single results queue all workers answer on.
type ResultConsumer struct {
	*consumer.Consumer
}

func NewResultConsumer(consumer *consumer.Consumer) *ResultConsumer {
	return &ResultConsumer{consumer}
}

func (rc *ResultConsumer) ReadResult(ctx context.Context) (kafka.Message, error) {
	msg, err := rc.Reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("ResultConsumer - ReadResult - rc.Reader.FetchMessage: %w", err)
	}

	return msg, nil
}

func (rc *ResultConsumer) CommitResult(ctx context.Context, msg kafka.Message) error {
	err := rc.Reader.CommitMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("ResultConsumer - CommitResult - rc.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (rc *ResultConsumer) Close() error {
	err := rc.Consumer.Close()
	if err != nil {
		return fmt.Errorf("ResultConsumer - Close: %w", err)
	}

	return nil
}
