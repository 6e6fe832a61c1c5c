package queue

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

const popTimeout = 2 * time.Second

// Handler processes one message. Handlers never report errors to the broker;
// retry and escalation decisions are made inside the handler itself, so the
// message is considered consumed once the handler returns.
type Handler func(ctx context.Context, body []byte)

// ConsumerPool runs a fixed number of workers against one queue. Collaborator
// calls block the worker for their full duration, so the pool size bounds the
// stage's effective throughput.
type ConsumerPool struct {
	broker          *Broker
	queue           string
	numberOfWorkers int
	handler         Handler
	log             *zap.Logger
	wg              sync.WaitGroup
	cancel          context.CancelFunc
}

func NewConsumerPool(broker *Broker, queue string, nums int, handler Handler, log *zap.Logger) *ConsumerPool {
	return &ConsumerPool{
		broker:          broker,
		queue:           queue,
		numberOfWorkers: nums,
		handler:         handler,
		log:             log,
	}
}

func (cp *ConsumerPool) Start(ctx context.Context) {
	ctx, cp.cancel = context.WithCancel(ctx)
	for i := 0; i < cp.numberOfWorkers; i++ {
		cp.wg.Add(1)
		go cp.startWorker(ctx, i+1)
	}
	cp.log.Info("Consumer pool started",
		zap.String("queue", cp.queue),
		zap.Int("workers", cp.numberOfWorkers))
}

// Stop cancels the workers and waits for in-flight handlers to finish.
func (cp *ConsumerPool) Stop() {
	if cp.cancel != nil {
		cp.cancel()
	}
	cp.wg.Wait()
	cp.log.Info("Consumer pool stopped", zap.String("queue", cp.queue))
}

func (cp *ConsumerPool) startWorker(ctx context.Context, workerID int) {
	defer cp.wg.Done()
	cp.log.Info("Worker started", zap.String("queue", cp.queue), zap.Int("workerID", workerID))

	for {
		select {
		case <-ctx.Done():
			cp.log.Info("Worker received termination signal",
				zap.String("queue", cp.queue), zap.Int("workerID", workerID))
			return
		default:
		}

		cp.broker.drainDue(ctx, cp.queue)

		body, err := cp.broker.pop(ctx, cp.queue, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			cp.log.Error("Failed to pop message", zap.String("queue", cp.queue), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if body == nil {
			continue
		}
		cp.dispatch(ctx, body, workerID)
	}
}

// dispatch invokes the handler with panic recovery. A panicking handler gets
// its message requeued so delivery stays at-least-once.
func (cp *ConsumerPool) dispatch(ctx context.Context, body []byte, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			cp.log.Error("Panic recovered in worker",
				zap.String("queue", cp.queue),
				zap.Int("workerID", workerID),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			if err := cp.broker.rdb.LPush(ctx, queueKey(cp.queue), body).Err(); err != nil {
				cp.log.Error("Failed to requeue message after panic",
					zap.String("queue", cp.queue), zap.Error(err))
			}
		}
	}()
	cp.handler(ctx, body)
}
