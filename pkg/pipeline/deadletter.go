package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	errorsx "github.com/sentra-ai/knowledge-backend/pkg/errors"
	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
	"github.com/sentra-ai/knowledge-backend/pkg/repository"
)

// HandleOCRDeadLetter consumes messages whose OCR retry budget is exhausted.
func (w *Worker) HandleOCRDeadLetter(ctx context.Context, body []byte) {
	logger, _ := log.GetZapLogger(ctx)
	task, err := UnmarshalOcrTask(body)
	if err != nil {
		logger.Error("drop malformed ocr dead-letter message", zap.Error(err), zap.ByteString("body", body))
		return
	}
	w.handleDeadLetter(ctx, ocrStage, task.DocumentID, task.KBID, task.Attempt)
}

// HandleKBBuildDeadLetter consumes messages whose build retry budget is
// exhausted.
func (w *Worker) HandleKBBuildDeadLetter(ctx context.Context, body []byte) {
	logger, _ := log.GetZapLogger(ctx)
	task, err := UnmarshalKbBuildTask(body)
	if err != nil {
		logger.Error("drop malformed kb build dead-letter message", zap.Error(err), zap.ByteString("body", body))
		return
	}
	w.handleDeadLetter(ctx, kbBuildStage, task.DocumentID, task.KBID, task.Attempt)
}

// handleDeadLetter is the terminal sink of a stage: it pins the document to
// FAILED and compensates the partial side effects of the aborted run. A
// redelivered dead letter for an already-failed document is a no-op, so the
// sink is safe to replay.
func (w *Worker) handleDeadLetter(ctx context.Context, st stage, documentID, kbID string, attempt int) {
	logger, _ := log.GetZapLogger(ctx)
	fields := logFields(st, documentID, kbID, attempt)

	doc, err := w.repository.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, errorsx.ErrNotFound) {
			logger.Warn("drop dead letter for unknown document", fields...)
			return
		}
		logger.Error("load document for dead letter", append(fields, zap.Error(err))...)
		return
	}
	if doc.Status == repository.StatusFailed {
		logger.Warn("document already failed, dead letter ignored", fields...)
		return
	}

	logger.Error("failing document from dead letter", fields...)
	errMsg := errorsx.ErrRetryExhausted.Error() + " in " + st.name + " stage"
	if attempt < w.retry.MaxRetries {
		// terminal escalation: the budget was not spent, keep the recorded
		// cause as the audit record
		errMsg = "terminal failure in " + st.name + " stage"
		if doc.ErrorMessage != nil && *doc.ErrorMessage != "" {
			errMsg = *doc.ErrorMessage
		}
	}
	if err := w.repository.MarkDocumentFailed(ctx, documentID, errMsg); err != nil {
		logger.Error("mark document failed", append(fields, zap.Error(err))...)
	}
	w.markContentFailed(ctx, doc, errMsg)

	w.Compensate(ctx, doc)
}

func (w *Worker) markContentFailed(ctx context.Context, doc *repository.Document, errMsg string) {
	logger, _ := log.GetZapLogger(ctx)
	record, err := w.contentStore.Get(ctx, doc.KBID, doc.ID)
	if err != nil {
		return
	}
	record.Status = string(repository.StatusFailed)
	record.ErrorMessage = errMsg
	record.UpdatedAt = time.Now().UTC()
	if err := w.contentStore.Save(ctx, record); err != nil {
		logger.Error("mark content record failed",
			zap.String("documentID", doc.ID), zap.String("kbID", doc.KBID), zap.Error(err))
	}
}
