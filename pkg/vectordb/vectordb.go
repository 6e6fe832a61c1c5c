package vectordb

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.uber.org/zap"

	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
)

// VectorDBI removes the embeddings the graph-build collaborator stored for a
// document. Used only by the compensation path.
type VectorDBI interface {
	DeleteDocumentEmbeddings(ctx context.Context, kbID, documentUniqueID string) error
	Close()
}

type VectorDB struct {
	c client.Client
}

const fieldDocumentUniqueID = "document_unique_id"

func NewVectorDB(ctx context.Context, host, port string) (*VectorDB, error) {
	c, err := client.NewGrpcClient(ctx, host+":"+port)
	if err != nil {
		return nil, err
	}
	return &VectorDB{c: c}, nil
}

// GetKnowledgeBaseCollectionName returns the collection name for a knowledge base
func (v *VectorDB) GetKnowledgeBaseCollectionName(kbID string) string {
	return "kb_" + strings.ReplaceAll(kbID, "-", "_")
}

// DeleteDocumentEmbeddings deletes all embeddings tagged with the document's
// unique ID from the knowledge base collection. A missing collection counts
// as already cleaned up.
func (v *VectorDB) DeleteDocumentEmbeddings(ctx context.Context, kbID, documentUniqueID string) error {
	logger, _ := log.GetZapLogger(ctx)
	collection := v.GetKnowledgeBaseCollectionName(kbID)

	expr := fmt.Sprintf("%s == '%s'", fieldDocumentUniqueID, documentUniqueID)
	err := v.c.Delete(ctx, collection, "", expr)
	if err != nil {
		if strings.Contains(err.Error(), "can't find collection") {
			logger.Info("Collection not found (already cleaned up) in vector db",
				zap.String("collection", collection))
			return nil
		}
		return err
	}

	logger.Info("Deleted document embeddings from vector db",
		zap.String("collection", collection),
		zap.String("documentUniqueID", documentUniqueID))
	return nil
}

func (v *VectorDB) Close() {
	_ = v.c.Close()
}
