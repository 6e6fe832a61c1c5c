package pipeline

import (
	"context"
	"io"

	"go.uber.org/zap"

	httpclient "github.com/sentra-ai/knowledge-backend/pkg/client/http"
	"github.com/sentra-ai/knowledge-backend/pkg/contentstore"
	"github.com/sentra-ai/knowledge-backend/pkg/filetransport"
	"github.com/sentra-ai/knowledge-backend/pkg/graphdb"
	"github.com/sentra-ai/knowledge-backend/pkg/graphfs"
	"github.com/sentra-ai/knowledge-backend/pkg/queue"
	"github.com/sentra-ai/knowledge-backend/pkg/repository"
	"github.com/sentra-ai/knowledge-backend/pkg/vectordb"
)

// OCRProviderI is the slice of the OCR collaborator the pipeline needs.
type OCRProviderI interface {
	ParsePDF(ctx context.Context, filename string, content io.Reader, outputDir string) (*httpclient.OCRResponse, error)
}

// KnowledgeProviderI is the slice of the knowledge collaborator the pipeline
// needs: markdown restructuring and the knowledge-base build pipeline.
type KnowledgeProviderI interface {
	ParseMarkdown(ctx context.Context, documentID, kbID, mdContent string) (string, error)
	BuildKnowledgeBase(ctx context.Context, req *httpclient.KBPipelineRequest) (*httpclient.KBPipelineResponse, error)
}

// Worker owns the stage handlers of the document pipeline. All state lives in
// the backing stores; the worker itself is stateless and safe for concurrent
// use by the consumer pools.
type Worker struct {
	repository    repository.RepositoryI
	contentStore  contentstore.ContentStoreI
	fileTransport filetransport.FileTransportI
	ocr           OCRProviderI
	knowledge     KnowledgeProviderI
	publisher     queue.PublisherI
	graphFS       graphfs.GraphFSI
	graphDB       graphdb.GraphDBI
	vectorDB      vectordb.VectorDBI

	retry               RetryPolicy
	ocrOutputDir        string
	defaultTemplateName string
}

// WorkerParams collects the dependencies of a Worker.
type WorkerParams struct {
	Repository    repository.RepositoryI
	ContentStore  contentstore.ContentStoreI
	FileTransport filetransport.FileTransportI
	OCR           OCRProviderI
	Knowledge     KnowledgeProviderI
	Publisher     queue.PublisherI
	GraphFS       graphfs.GraphFSI
	GraphDB       graphdb.GraphDBI
	VectorDB      vectordb.VectorDBI

	Retry               RetryPolicy
	OCROutputDir        string
	DefaultTemplateName string
}

func NewWorker(p WorkerParams) *Worker {
	return &Worker{
		repository:          p.Repository,
		contentStore:        p.ContentStore,
		fileTransport:       p.FileTransport,
		ocr:                 p.OCR,
		knowledge:           p.Knowledge,
		publisher:           p.Publisher,
		graphFS:             p.GraphFS,
		graphDB:             p.GraphDB,
		vectorDB:            p.VectorDB,
		retry:               p.Retry,
		ocrOutputDir:        p.OCROutputDir,
		defaultTemplateName: p.DefaultTemplateName,
	}
}

// stage groups the broker coordinates of one pipeline stage.
type stage struct {
	name               string
	exchange           string
	routingKey         string
	deadLetterExchange string
}

var (
	ocrStage = stage{
		name:               "ocr",
		exchange:           queue.OCRExchange,
		routingKey:         queue.OCRRoutingKey,
		deadLetterExchange: queue.OCRDeadLetterExchange,
	}
	kbBuildStage = stage{
		name:               "kb_build",
		exchange:           queue.KBBuildExchange,
		routingKey:         queue.KBBuildRoutingKey,
		deadLetterExchange: queue.KBBuildDeadLetterExchange,
	}
)

func logFields(st stage, documentID, kbID string, attempt int) []zap.Field {
	return []zap.Field{
		zap.String("stage", st.name),
		zap.String("documentID", documentID),
		zap.String("kbID", kbID),
		zap.Int("attempt", attempt),
	}
}
