package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sentra-ai/knowledge-backend/pkg/contentstore"
	errorsx "github.com/sentra-ai/knowledge-backend/pkg/errors"
	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
	"github.com/sentra-ai/knowledge-backend/pkg/repository"
)

// HandleOCRTask consumes one OCR stage message. The body is the JSON-encoded
// OcrTask; malformed bodies and messages for unknown or already-terminal
// documents are dropped, every other failure goes through the retry policy.
func (w *Worker) HandleOCRTask(ctx context.Context, body []byte) {
	logger, _ := log.GetZapLogger(ctx)

	task, err := UnmarshalOcrTask(body)
	if err != nil {
		logger.Error("drop malformed ocr message", zap.Error(err), zap.ByteString("body", body))
		return
	}
	fields := logFields(ocrStage, task.DocumentID, task.KBID, task.Attempt)

	doc, err := w.repository.GetDocument(ctx, task.DocumentID)
	if err != nil {
		if errors.Is(err, errorsx.ErrNotFound) {
			logger.Warn("drop ocr message for unknown document", fields...)
			return
		}
		w.failStage(ctx, ocrStage, task.DocumentID, task.KBID, task.Attempt, task.remarshal, err)
		return
	}
	if doc.Status.IsTerminal() {
		logger.Warn("skip ocr message for terminal document", append(fields, zap.String("status", string(doc.Status)))...)
		return
	}

	logger.Info("ocr stage started", fields...)
	if err := w.runOCR(ctx, task, doc); err != nil {
		w.failStage(ctx, ocrStage, task.DocumentID, task.KBID, task.Attempt, task.remarshal, err)
		return
	}
	logger.Info("ocr stage completed", fields...)
}

func (t *OcrTask) remarshal(attempt int) ([]byte, error) {
	next := *t
	next.Attempt = attempt
	return next.Marshal()
}

func (w *Worker) runOCR(ctx context.Context, task *OcrTask, doc *repository.Document) error {
	if err := w.repository.UpdateDocumentProgress(ctx, doc.ID, repository.StatusParsing, 10); err != nil {
		return fmt.Errorf("mark document parsing: %w", err)
	}

	data, err := w.fileTransport.Fetch(ctx, task.RemoteFilePath)
	if err != nil {
		return fmt.Errorf("fetch source file %q: %w", task.RemoteFilePath, err)
	}
	tmpPath, err := stageToTempFile(task.Filename, data)
	if err != nil {
		return fmt.Errorf("stage source file: %w", err)
	}
	defer os.Remove(tmpPath)

	if err := w.repository.UpdateDocumentProgress(ctx, doc.ID, repository.StatusParsing, 30); err != nil {
		return fmt.Errorf("update parse progress: %w", err)
	}

	outputDir := task.OutputDir
	if outputDir == "" {
		outputDir = w.ocrOutputDir
	}
	src, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("open staged source file: %w", err)
	}
	defer src.Close()
	resp, err := w.ocr.ParsePDF(ctx, task.Filename, src, outputDir)
	if err != nil {
		return fmt.Errorf("call ocr service: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("ocr service rejected document: %s", resp.ErrorMessage)
	}

	if err := w.repository.UpdateDocumentProgress(ctx, doc.ID, repository.StatusParsing, 70); err != nil {
		return fmt.Errorf("update parse progress: %w", err)
	}

	now := time.Now().UTC()
	record := &contentstore.ContentRecord{
		DocumentID: doc.ID,
		KBID:       doc.KBID,
		TenantID:   doc.TenantID,
		Filename:   doc.Filename,
		FileSize:   doc.FileSize,
		FileType:   doc.FileType,
		MdContent:  resp.MdContent,
		Status:     string(repository.StatusParsing),
		Progress:   70,
		ParsedAt:   &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := w.contentStore.Save(ctx, record); err != nil {
		return fmt.Errorf("save extracted content: %w", err)
	}
	if err := w.repository.UpdateDocumentProgress(ctx, doc.ID, repository.StatusParsing, 80); err != nil {
		return fmt.Errorf("update parse progress: %w", err)
	}

	newMd, err := w.knowledge.ParseMarkdown(ctx, doc.ID, doc.KBID, resp.MdContent)
	if err != nil {
		return fmt.Errorf("restructure markdown: %w", err)
	}
	restructuredAt := time.Now().UTC()
	record.NewMdContent = newMd
	record.Progress = 90
	record.RestructuredAt = &restructuredAt
	record.UpdatedAt = restructuredAt
	if err := w.contentStore.Save(ctx, record); err != nil {
		return fmt.Errorf("save restructured content: %w", err)
	}
	if err := w.repository.UpdateDocumentProgress(ctx, doc.ID, repository.StatusParsing, 90); err != nil {
		return fmt.Errorf("update parse progress: %w", err)
	}

	ocrResultPath := filepath.Join(outputDir, doc.ID+".json")
	if err := w.repository.SetDocumentOCRResult(ctx, doc.ID, ocrResultPath); err != nil {
		return fmt.Errorf("record ocr result path: %w", err)
	}
	if err := w.repository.UpdateDocumentProgress(ctx, doc.ID, repository.StatusReady, 100); err != nil {
		return fmt.Errorf("mark document ready: %w", err)
	}

	next := &KbBuildTask{
		DocumentID:          doc.ID,
		KBID:                doc.KBID,
		TenantID:            doc.TenantID,
		RestructuredContent: newMd,
		Attempt:             0,
	}
	nextBody, err := next.Marshal()
	if err != nil {
		return fmt.Errorf("marshal kb build message: %w", err)
	}
	if err := w.publisher.Publish(ctx, kbBuildStage.exchange, kbBuildStage.routingKey, nextBody); err != nil {
		return fmt.Errorf("publish kb build message: %w", err)
	}
	return nil
}

// stageToTempFile writes the fetched bytes to a scoped temporary file that
// becomes the upload source for the OCR call. The caller owns removal.
func stageToTempFile(filename string, data []byte) (string, error) {
	f, err := os.CreateTemp("", "ocr_*"+filepath.Ext(filename))
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
