package graphdb

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
)

// GraphDBI is the narrow graph-database contract the pipeline consumes:
// nodes and edges are tagged with (kbId, documentUniqueId) by the graph-build
// collaborator and deleted here by the same keys.
type GraphDBI interface {
	DeleteDocumentGraph(ctx context.Context, kbID, documentUniqueID string) error
	DeleteKnowledgeBaseGraph(ctx context.Context, kbID string) error
	Close(ctx context.Context) error
}

type GraphDB struct {
	driver neo4j.DriverWithContext
}

func NewGraphDB(ctx context.Context, uri, username, password string) (*GraphDB, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	return &GraphDB{driver: driver}, nil
}

// DeleteDocumentGraph detach-deletes every node tagged with the knowledge
// base and document unique ID, taking the document's edges with it.
func (g *GraphDB) DeleteDocumentGraph(ctx context.Context, kbID, documentUniqueID string) error {
	logger, _ := log.GetZapLogger(ctx)

	cypher := `
		MATCH (n)
		WHERE n.kbId = $kbId AND n.documentUniqueId = $documentUniqueId
		DETACH DELETE n`
	_, err := neo4j.ExecuteQuery(ctx, g.driver, cypher,
		map[string]any{"kbId": kbID, "documentUniqueId": documentUniqueID},
		neo4j.EagerResultTransformer)
	if err != nil {
		return err
	}

	logger.Info("Deleted document nodes from graph database",
		zap.String("kbID", kbID),
		zap.String("documentUniqueID", documentUniqueID))
	return nil
}

// DeleteKnowledgeBaseGraph removes every node belonging to a knowledge base.
func (g *GraphDB) DeleteKnowledgeBaseGraph(ctx context.Context, kbID string) error {
	cypher := `
		MATCH (n)
		WHERE n.kbId = $kbId
		DETACH DELETE n`
	_, err := neo4j.ExecuteQuery(ctx, g.driver, cypher,
		map[string]any{"kbId": kbID},
		neo4j.EagerResultTransformer)
	return err
}

func (g *GraphDB) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}
