package pipeline

import (
	"context"

	"go.uber.org/zap"

	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
	"github.com/sentra-ai/knowledge-backend/pkg/repository"
)

// Compensate removes the side effects a document run left behind in the
// content store, the remote file store, the graph artifact tree, the graph
// database and the vector store. Every step is attempted exactly once and a
// failed step never blocks the remaining ones; what could not be removed is
// logged for the operator. The relational row is kept as the audit record of
// the failure.
func (w *Worker) Compensate(ctx context.Context, doc *repository.Document) {
	logger, _ := log.GetZapLogger(ctx)
	fields := []zap.Field{
		zap.String("documentID", doc.ID),
		zap.String("kbID", doc.KBID),
	}
	logger.Info("compensating document side effects", fields...)

	if doc.RemoteFilePath != "" {
		if _, err := w.fileTransport.Delete(ctx, doc.RemoteFilePath); err != nil {
			logger.Error("compensation: delete remote source file",
				append(fields, zap.String("path", doc.RemoteFilePath), zap.Error(err))...)
		}
	}
	if doc.OcrResultPath != "" {
		// the artifact may live outside the source bucket; a miss is a no-op
		if _, err := w.fileTransport.Delete(ctx, doc.OcrResultPath); err != nil {
			logger.Error("compensation: delete ocr result artifact",
				append(fields, zap.String("path", doc.OcrResultPath), zap.Error(err))...)
		}
	}

	// Graph-side artifacts only exist once the build pipeline assigned a
	// unique id. A document that never got past OCR has nothing to remove.
	if doc.DocumentUniqueID != "" {
		if err := w.graphFS.DeleteDocumentArtifacts(ctx, doc.KBID, doc.DocumentUniqueID); err != nil {
			logger.Error("compensation: delete graph artifact tree", append(fields, zap.Error(err))...)
		}
		if err := w.graphDB.DeleteDocumentGraph(ctx, doc.KBID, doc.DocumentUniqueID); err != nil {
			logger.Error("compensation: delete graph nodes", append(fields, zap.Error(err))...)
		}
		if err := w.vectorDB.DeleteDocumentEmbeddings(ctx, doc.KBID, doc.DocumentUniqueID); err != nil {
			logger.Error("compensation: delete embeddings", append(fields, zap.Error(err))...)
		}
	}

	if err := w.contentStore.Delete(ctx, doc.KBID, doc.ID); err != nil {
		logger.Error("compensation: delete content record", append(fields, zap.Error(err))...)
	}

	logger.Info("compensation finished", fields...)
}

// DeleteDocument removes a document on explicit request: the same
// compensation steps as a failed run, plus the relational row itself.
func (w *Worker) DeleteDocument(ctx context.Context, documentID string) error {
	doc, err := w.repository.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	w.Compensate(ctx, doc)
	return w.repository.DeleteDocument(ctx, documentID)
}

// DeleteKnowledgeBase removes every document of a knowledge base and then
// drops the whole graph in one sweep. Per-document cleanup runs first so the
// content records and object-store artifacts are gone even when a document
// never produced graph nodes.
func (w *Worker) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	logger, _ := log.GetZapLogger(ctx)

	docs, err := w.repository.ListKBDocuments(ctx, kbID)
	if err != nil {
		return err
	}
	for i := range docs {
		doc := &docs[i]
		w.Compensate(ctx, doc)
		if err := w.repository.DeleteDocument(ctx, doc.ID); err != nil {
			logger.Error("delete document row",
				zap.String("documentID", doc.ID), zap.String("kbID", kbID), zap.Error(err))
		}
	}
	if err := w.graphDB.DeleteKnowledgeBaseGraph(ctx, kbID); err != nil {
		return err
	}
	logger.Info("knowledge base deleted", zap.String("kbID", kbID), zap.Int("documents", len(docs)))
	return nil
}
