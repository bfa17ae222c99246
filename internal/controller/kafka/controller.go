package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Photo-Pipeline/internal/dto"
	kafkapc "github.com/andreyxaxa/Photo-Pipeline/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Photo-Pipeline/internal/usecase"
	"github.com/andreyxaxa/Photo-Pipeline/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// KafkaController drains the results queue and feeds worker answers back
// into the pipeline state machine.
type KafkaController struct {
	pipeline usecase.PipelineUseCase
	rc       *kafkapc.ResultConsumer
	logger   logger.Interface

	commitTimeout  time.Duration
	processTimeout time.Duration

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	pipeline usecase.PipelineUseCase,
	rc *kafkapc.ResultConsumer,
	l logger.Interface,
	commitTimeout time.Duration,
	processTimeout time.Duration,
	workers int,
) *KafkaController {
	return &KafkaController{
		pipeline:       pipeline,
		rc:             rc,
		logger:         l,
		commitTimeout:  commitTimeout,
		processTimeout: processTimeout,
		workers:        workers,
	}
}

func (c *KafkaController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start - controller already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	// канал для задач
	tasks := make(chan kafka.Message, c.workers*2)

	// запускаем воркеры
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(tasks)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(tasks)

		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				// 1. читаем из кафки
				msg, err := c.rc.ReadResult(c.ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						c.logger.Error(err, "KafkaController - Start - c.rc.ReadResult")
					}
					continue
				}

				// 2. отправляем в канал для воркеров
				select {
				case tasks <- msg:
				case <-c.ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func (c *KafkaController) processResult(ctx context.Context, msg kafka.Message) error {
	var result dto.ResultMessage
	err := json.Unmarshal(msg.Value, &result)
	if err != nil {
		return fmt.Errorf("KafkaController - processResult - json.Unmarshal: %w", err)
	}

	err = c.pipeline.HandleResult(ctx, result)
	if err != nil {
		return fmt.Errorf("KafkaController - processResult - c.pipeline.HandleResult: %w", err)
	}

	return nil
}

func (c *KafkaController) worker(tasks <-chan kafka.Message) {
	defer c.wg.Done()

	// читаем канал, пока не закроется
	for msg := range tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error(fmt.Errorf("panic %v", r), "KafkaController - worker - panic")
				}
			}()

			processCtx, processCancel := context.WithTimeout(c.ctx, c.processTimeout)
			err := c.processResult(processCtx, msg)
			processCancel()
			if err != nil {
				c.logger.Error(err, "KafkaController - worker - c.processResult")

				return
			}

			// коммитим после успешной обработки
			commitCtx, commitCancel := context.WithTimeout(c.ctx, c.commitTimeout)
			err = c.rc.CommitResult(commitCtx, msg)
			commitCancel()
			if err != nil {
				c.logger.Error(err, "KafkaController - worker - c.rc.CommitResult")
			}
		}()
	}
}

func (c *KafkaController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		c.rc.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}
