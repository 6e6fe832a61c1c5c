package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	errorsx "github.com/sentra-ai/knowledge-backend/pkg/errors"
	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
)

// RetryPolicy bounds the redelivery of a failed stage message. A failed
// message is requeued with exponential backoff while its attempt counter is
// below MaxRetries; once the counter has reached MaxRetries the next failure
// routes to the stage's dead-letter exchange.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// BackoffFor returns the delay before redelivering a message that has already
// failed attempt+1 times.
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	d := b.NextBackOff()
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	if d == backoff.Stop || d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// failStage records the failure on the document and its content record, then
// either requeues the message with backoff or escalates it to the stage's
// dead-letter exchange. attempt is the zero-based counter carried by the
// failed message; remarshal produces the message body for a given counter.
func (w *Worker) failStage(ctx context.Context, st stage, documentID, kbID string, attempt int, remarshal func(attempt int) ([]byte, error), cause error) {
	logger, _ := log.GetZapLogger(ctx)
	fields := append(logFields(st, documentID, kbID, attempt), zap.Error(cause))

	errMsg := fmt.Sprintf("%s stage failed: %v", st.name, cause)
	if err := w.repository.SetDocumentError(ctx, documentID, errMsg); err != nil {
		logger.Error("record error on document", append(fields, zap.NamedError("updateError", err))...)
	}
	w.recordContentError(ctx, kbID, documentID, errMsg)

	if errorsx.IsTerminal(cause) || attempt >= w.retry.MaxRetries {
		body, err := remarshal(attempt)
		if err != nil {
			logger.Error("marshal dead-letter message", append(fields, zap.NamedError("marshalError", err))...)
			return
		}
		if err := w.publisher.Publish(ctx, st.deadLetterExchange, st.routingKey, body); err != nil {
			logger.Error("publish to dead-letter exchange", append(fields, zap.NamedError("publishError", err))...)
			return
		}
		logger.Warn("stage failure escalated to dead-letter exchange", fields...)
		return
	}

	next := attempt + 1
	body, err := remarshal(next)
	if err != nil {
		logger.Error("marshal retry message", append(fields, zap.NamedError("marshalError", err))...)
		return
	}
	delay := w.retry.BackoffFor(attempt)
	if err := w.publisher.PublishDelayed(ctx, st.exchange, st.routingKey, body, delay); err != nil {
		logger.Error("requeue stage message", append(fields, zap.NamedError("publishError", err))...)
		return
	}
	logger.Warn("stage failure requeued", append(fields, zap.Int("nextAttempt", next), zap.Duration("delay", delay))...)
}

// recordContentError mirrors the error text onto the content record when one
// exists. Absence is not an error here; OCR-stage failures routinely happen
// before the record is first written.
func (w *Worker) recordContentError(ctx context.Context, kbID, documentID, errMsg string) {
	logger, _ := log.GetZapLogger(ctx)
	record, err := w.contentStore.Get(ctx, kbID, documentID)
	if err != nil {
		return
	}
	record.ErrorMessage = errMsg
	record.UpdatedAt = time.Now().UTC()
	if err := w.contentStore.Save(ctx, record); err != nil {
		logger.Error("record error on content record",
			zap.String("documentID", documentID), zap.String("kbID", kbID), zap.Error(err))
	}
}
