package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	httpclient "github.com/sentra-ai/knowledge-backend/pkg/client/http"
	errorsx "github.com/sentra-ai/knowledge-backend/pkg/errors"
	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
	"github.com/sentra-ai/knowledge-backend/pkg/repository"
)

// HandleKBBuildTask consumes one knowledge-base build stage message. A
// missing document or missing content record is a violated precondition, not
// a transient fault: the message is dropped without touching the retry
// budget.
func (w *Worker) HandleKBBuildTask(ctx context.Context, body []byte) {
	logger, _ := log.GetZapLogger(ctx)

	task, err := UnmarshalKbBuildTask(body)
	if err != nil {
		logger.Error("drop malformed kb build message", zap.Error(err), zap.ByteString("body", body))
		return
	}
	fields := logFields(kbBuildStage, task.DocumentID, task.KBID, task.Attempt)

	doc, err := w.repository.GetDocument(ctx, task.DocumentID)
	if err != nil {
		if errors.Is(err, errorsx.ErrNotFound) {
			logger.Warn("drop kb build message for unknown document", fields...)
			return
		}
		w.failStage(ctx, kbBuildStage, task.DocumentID, task.KBID, task.Attempt, task.remarshal, err)
		return
	}
	if doc.Status.IsTerminal() {
		logger.Warn("skip kb build message for terminal document", append(fields, zap.String("status", string(doc.Status)))...)
		return
	}

	logger.Info("kb build stage started", fields...)
	if err := w.runKBBuild(ctx, task, doc); err != nil {
		if errors.Is(err, errorsx.ErrContentMissing) {
			logger.Warn("drop kb build message without content record", append(fields, zap.Error(err))...)
			return
		}
		w.failStage(ctx, kbBuildStage, task.DocumentID, task.KBID, task.Attempt, task.remarshal, err)
		return
	}
	logger.Info("kb build stage completed", fields...)
}

func (t *KbBuildTask) remarshal(attempt int) ([]byte, error) {
	next := *t
	next.Attempt = attempt
	return next.Marshal()
}

func (w *Worker) runKBBuild(ctx context.Context, task *KbBuildTask, doc *repository.Document) error {
	if _, err := w.repository.GetKnowledgeBase(ctx, doc.KBID); err != nil {
		if errors.Is(err, errorsx.ErrNotFound) {
			return errorsx.Terminalf("knowledge base %q not found", doc.KBID)
		}
		return fmt.Errorf("load knowledge base: %w", err)
	}

	if err := w.repository.UpdateDocumentProgress(ctx, doc.ID, repository.StatusKBBuilding, 95); err != nil {
		return fmt.Errorf("mark document kb building: %w", err)
	}

	record, err := w.contentStore.Get(ctx, doc.KBID, doc.ID)
	if err != nil {
		if errors.Is(err, errorsx.ErrNotFound) {
			return fmt.Errorf("%w: document %s", errorsx.ErrContentMissing, doc.ID)
		}
		return fmt.Errorf("load content record: %w", err)
	}

	content := task.RestructuredContent
	if content == "" {
		content = record.NewMdContent
	}
	if content == "" {
		return errorsx.Terminalf("document %s has no restructured content", doc.ID)
	}

	entityTypes, entityTypesDes, err := w.resolveEntityTypes(ctx, doc)
	if err != nil {
		return fmt.Errorf("resolve entity types: %w", err)
	}

	resp, err := w.knowledge.BuildKnowledgeBase(ctx, &httpclient.KBPipelineRequest{
		DocID:          doc.ID,
		KBID:           doc.KBID,
		Content:        content,
		Title:          doc.Filename,
		EntityTypes:    entityTypes,
		EntityTypesDes: entityTypesDes,
	})
	if err != nil {
		return fmt.Errorf("call kb pipeline: %w", err)
	}

	uniqueID := resp.DocumentUniqueID
	if uniqueID == "" {
		uniqueID = doc.ID
	}
	if err := w.repository.SetDocumentUniqueID(ctx, doc.ID, uniqueID); err != nil {
		return fmt.Errorf("record document unique id: %w", err)
	}

	now := time.Now().UTC()
	record.DocumentUniqueID = uniqueID
	record.Status = string(repository.StatusCompleted)
	record.Progress = 100
	record.ErrorMessage = ""
	record.KBBuiltAt = &now
	record.UpdatedAt = now
	if err := w.contentStore.Save(ctx, record); err != nil {
		return fmt.Errorf("save completed content record: %w", err)
	}
	if err := w.repository.UpdateDocumentProgress(ctx, doc.ID, repository.StatusCompleted, 100); err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}

	logger, _ := log.GetZapLogger(ctx)
	logger.Info("knowledge graph built",
		zap.String("documentID", doc.ID),
		zap.String("kbID", doc.KBID),
		zap.String("documentUniqueID", uniqueID),
		zap.Int("totalChunks", resp.TotalChunks),
		zap.Int("totalEntities", resp.TotalEntities),
		zap.Int("totalEdges", resp.TotalEdges))
	return nil
}

// resolveEntityTypes walks the template chain: the template pinned on the
// document, then the tenant default, then the configured system template. A
// dangling reference falls through to the next level instead of failing the
// stage. An empty result is valid and lets the pipeline derive types itself.
func (w *Worker) resolveEntityTypes(ctx context.Context, doc *repository.Document) ([]string, map[string]string, error) {
	logger, _ := log.GetZapLogger(ctx)

	templateID := ""
	if doc.EntityTemplateID != "" {
		tpl, err := w.repository.GetEntityTypeTemplate(ctx, doc.EntityTemplateID)
		switch {
		case err == nil:
			templateID = tpl.ID
		case errors.Is(err, errorsx.ErrNotFound):
			logger.Warn("document references missing entity template",
				zap.String("documentID", doc.ID), zap.String("templateID", doc.EntityTemplateID))
		default:
			return nil, nil, err
		}
	}
	if templateID == "" {
		tpl, err := w.repository.GetTenantDefaultTemplate(ctx, doc.TenantID)
		switch {
		case err == nil:
			templateID = tpl.ID
		case errors.Is(err, errorsx.ErrNotFound):
		default:
			return nil, nil, err
		}
	}
	if templateID == "" && w.defaultTemplateName != "" {
		tpl, err := w.repository.GetSystemTemplateByName(ctx, w.defaultTemplateName)
		switch {
		case err == nil:
			templateID = tpl.ID
		case errors.Is(err, errorsx.ErrNotFound):
		default:
			return nil, nil, err
		}
	}
	if templateID == "" {
		return nil, nil, nil
	}

	defs, err := w.repository.ListEntityTypeDefinitions(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	types := make([]string, 0, len(defs))
	descriptions := make(map[string]string, len(defs))
	for _, def := range defs {
		types = append(types, def.EntityCode)
		descriptions[def.EntityCode] = def.EntityDescription
	}
	return types, descriptions, nil
}
