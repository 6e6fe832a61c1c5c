package httpclient

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sentra-ai/knowledge-backend/config"
	"github.com/sentra-ai/knowledge-backend/pkg/logger"
)

// KnowledgeClient talks to the knowledge service: Markdown restructuring
// (mdParse) and knowledge-graph building (kbPipeline).
type KnowledgeClient struct {
	*resty.Client
}

// NewKnowledgeClient returns an initialized knowledge service client.
func NewKnowledgeClient(ctx context.Context) *KnowledgeClient {
	l, _ := logger.GetZapLogger(ctx)
	cfg := config.Config.Knowledge

	r := resty.New().
		SetLogger(l.Sugar()).
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)

	return &KnowledgeClient{Client: r}
}

type mdParseRequest struct {
	DocumentID string `json:"documentId"`
	KBID       string `json:"kbId"`
	MdContent  string `json:"md_content"`
}

type mdParseResponse struct {
	Status       string `json:"status"`
	NewMdContent string `json:"new_md_content"`
}

// ParseMarkdown restructures raw OCR Markdown into section-aware Markdown.
func (c *KnowledgeClient) ParseMarkdown(ctx context.Context, documentID, kbID, mdContent string) (string, error) {
	l, _ := logger.GetZapLogger(ctx)
	l.Info("Calling mdParse",
		zap.String("documentID", documentID),
		zap.String("kbID", kbID))

	var resp mdParseResponse
	r, err := c.R().SetContext(ctx).
		SetBody(mdParseRequest{DocumentID: documentID, KBID: kbID, MdContent: mdContent}).
		SetResult(&resp).
		Post("/sentra/v1/knowledge/mdParse")
	if err != nil {
		return "", fmt.Errorf("couldn't connect with knowledge service: %w", err)
	}
	if r.StatusCode() != 200 {
		return "", fmt.Errorf("mdParse returned HTTP %d", r.StatusCode())
	}
	if resp.NewMdContent == "" {
		return "", fmt.Errorf("mdParse returned empty content")
	}
	return resp.NewMdContent, nil
}

// KBPipelineRequest is the graph-build request payload.
type KBPipelineRequest struct {
	DocID          string            `json:"docID"`
	KBID           string            `json:"kbID"`
	Content        string            `json:"content"`
	Title          string            `json:"title"`
	EntityTypes    []string          `json:"entityTypes"`
	EntityTypesDes map[string]string `json:"entityTypesDes"`
}

// KBPipelineResponse carries the aggregate build counts and, depending on
// the collaborator version, a document-unique identifier.
type KBPipelineResponse struct {
	Status           string `json:"status"`
	TotalChunks      int    `json:"totalChunks"`
	TotalEntities    int    `json:"totalEntities"`
	TotalEdges       int    `json:"totalEdges"`
	DocumentUniqueID string `json:"documentUniqueId"`
}

// BuildKnowledgeBase runs the graph-build pipeline for one document.
func (c *KnowledgeClient) BuildKnowledgeBase(ctx context.Context, req *KBPipelineRequest) (*KBPipelineResponse, error) {
	l, _ := logger.GetZapLogger(ctx)
	l.Info("Calling kbPipeline",
		zap.String("docID", req.DocID),
		zap.String("kbID", req.KBID),
		zap.Int("entityTypes", len(req.EntityTypes)))

	var resp KBPipelineResponse
	r, err := c.R().SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post("/sentra/v1/knowledge/kbPipeline")
	if err != nil {
		return nil, fmt.Errorf("couldn't connect with knowledge service: %w", err)
	}
	if r.StatusCode() != 200 {
		return nil, fmt.Errorf("kbPipeline returned HTTP %d", r.StatusCode())
	}

	l.Info("kbPipeline succeeded",
		zap.String("docID", req.DocID),
		zap.Int("totalChunks", resp.TotalChunks),
		zap.Int("totalEntities", resp.TotalEntities),
		zap.Int("totalEdges", resp.TotalEdges))
	return &resp, nil
}
