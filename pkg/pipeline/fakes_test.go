package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	httpclient "github.com/sentra-ai/knowledge-backend/pkg/client/http"
	"github.com/sentra-ai/knowledge-backend/pkg/contentstore"
	errorsx "github.com/sentra-ai/knowledge-backend/pkg/errors"
	"github.com/sentra-ai/knowledge-backend/pkg/repository"
)

// The fakes keep the same write semantics as the real stores: progress
// updates respect the status ordering, the unique id is write-once and
// MarkDocumentFailed is a no-op on an already-failed document.

type progressUpdate struct {
	Status   repository.DocumentStatus
	Progress int
}

type fakeRepository struct {
	mu        sync.Mutex
	docs      map[string]*repository.Document
	kbs       map[string]*repository.KnowledgeBase
	templates map[string]*repository.EntityTypeTemplate
	defs      map[string][]repository.EntityTypeDefinition

	progressLog    []progressUpdate
	errorLog       []string
	failedLog      []string
	uniqueIDCalls  int
	deletedDocs    []string
	getDocumentErr error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		docs:      map[string]*repository.Document{},
		kbs:       map[string]*repository.KnowledgeBase{},
		templates: map[string]*repository.EntityTypeTemplate{},
		defs:      map[string][]repository.EntityTypeDefinition{},
	}
}

func (r *fakeRepository) GetDocument(_ context.Context, documentID string) (*repository.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getDocumentErr != nil {
		return nil, r.getDocumentErr
	}
	doc, ok := r.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, errorsx.ErrNotFound)
	}
	cp := *doc
	return &cp, nil
}

func (r *fakeRepository) ListKBDocuments(_ context.Context, kbID string) ([]repository.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var docs []repository.Document
	for _, doc := range r.docs {
		if doc.KBID == kbID {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

func (r *fakeRepository) UpdateDocumentProgress(_ context.Context, documentID string, status repository.DocumentStatus, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, errorsx.ErrNotFound)
	}
	if !doc.Status.CanTransition(status) {
		return nil
	}
	r.progressLog = append(r.progressLog, progressUpdate{status, progress})
	doc.Status = status
	if progress > doc.Progress {
		doc.Progress = progress
	}
	return nil
}

func (r *fakeRepository) SetDocumentOCRResult(_ context.Context, documentID, ocrResultPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[documentID]; ok {
		doc.OcrResultPath = ocrResultPath
	}
	return nil
}

func (r *fakeRepository) SetDocumentUniqueID(_ context.Context, documentID, uniqueID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uniqueIDCalls++
	if doc, ok := r.docs[documentID]; ok && doc.DocumentUniqueID == "" {
		doc.DocumentUniqueID = uniqueID
	}
	return nil
}

func (r *fakeRepository) SetDocumentError(_ context.Context, documentID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorLog = append(r.errorLog, errMsg)
	if doc, ok := r.docs[documentID]; ok {
		doc.ErrorMessage = &errMsg
	}
	return nil
}

func (r *fakeRepository) MarkDocumentFailed(_ context.Context, documentID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok || doc.Status == repository.StatusFailed {
		return nil
	}
	r.failedLog = append(r.failedLog, errMsg)
	doc.Status = repository.StatusFailed
	doc.ErrorMessage = &errMsg
	return nil
}

func (r *fakeRepository) DeleteDocument(_ context.Context, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, documentID)
	r.deletedDocs = append(r.deletedDocs, documentID)
	return nil
}

func (r *fakeRepository) GetKnowledgeBase(_ context.Context, kbID string) (*repository.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kb, ok := r.kbs[kbID]
	if !ok {
		return nil, fmt.Errorf("knowledge base %s: %w", kbID, errorsx.ErrNotFound)
	}
	return kb, nil
}

func (r *fakeRepository) GetEntityTypeTemplate(_ context.Context, templateID string) (*repository.EntityTypeTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl, ok := r.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", templateID, errorsx.ErrNotFound)
	}
	return tpl, nil
}

func (r *fakeRepository) GetTenantDefaultTemplate(_ context.Context, tenantID string) (*repository.EntityTypeTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tpl := range r.templates {
		if tpl.TenantID == tenantID && tpl.IsDefault {
			return tpl, nil
		}
	}
	return nil, fmt.Errorf("tenant %s default template: %w", tenantID, errorsx.ErrNotFound)
}

func (r *fakeRepository) GetSystemTemplateByName(_ context.Context, name string) (*repository.EntityTypeTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tpl := range r.templates {
		if tpl.IsSystem && tpl.Name == name {
			return tpl, nil
		}
	}
	return nil, fmt.Errorf("system template %s: %w", name, errorsx.ErrNotFound)
}

func (r *fakeRepository) ListEntityTypeDefinitions(_ context.Context, templateID string) ([]repository.EntityTypeDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defs[templateID], nil
}

type fakeContentStore struct {
	mu      sync.Mutex
	records map[string]*contentstore.ContentRecord
	deleted []string
	saveErr error
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{records: map[string]*contentstore.ContentRecord{}}
}

func contentKey(kbID, documentID string) string { return kbID + "/" + documentID }

func (s *fakeContentStore) Save(_ context.Context, record *contentstore.ContentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *record
	s.records[contentKey(record.KBID, record.DocumentID)] = &cp
	return nil
}

func (s *fakeContentStore) Get(_ context.Context, kbID, documentID string) (*contentstore.ContentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[contentKey(kbID, documentID)]
	if !ok {
		return nil, fmt.Errorf("content %s/%s: %w", kbID, documentID, errorsx.ErrNotFound)
	}
	cp := *record
	return &cp, nil
}

func (s *fakeContentStore) Delete(_ context.Context, kbID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, contentKey(kbID, documentID))
	s.deleted = append(s.deleted, contentKey(kbID, documentID))
	return nil
}

type fakeFileTransport struct {
	mu       sync.Mutex
	files    map[string][]byte
	deleted  []string
	fetchErr error
}

func newFakeFileTransport() *fakeFileTransport {
	return &fakeFileTransport{files: map[string][]byte{}}
}

func (t *fakeFileTransport) Fetch(_ context.Context, remotePath string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fetchErr != nil {
		return nil, t.fetchErr
	}
	data, ok := t.files[remotePath]
	if !ok {
		return nil, fmt.Errorf("remote file %s: %w", remotePath, errorsx.ErrNotFound)
	}
	return data, nil
}

func (t *fakeFileTransport) Delete(_ context.Context, remotePath string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.files[remotePath]
	delete(t.files, remotePath)
	t.deleted = append(t.deleted, remotePath)
	return ok, nil
}

var (
	ocrSuccess  = httpclient.OCRResponse{Success: true, MdContent: "raw markdown"}
	ocrRejected = httpclient.OCRResponse{Success: false, ErrorMessage: "scrambled pages"}
)

type fakeOCR struct {
	mu       sync.Mutex
	calls    int
	uploaded []byte
	resp     *httpclient.OCRResponse
	err      error
}

func (o *fakeOCR) ParsePDF(_ context.Context, _ string, content io.Reader, _ string) (*httpclient.OCRResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	uploaded, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	o.uploaded = uploaded
	if o.err != nil {
		return nil, o.err
	}
	return o.resp, nil
}

type fakeKnowledge struct {
	mu           sync.Mutex
	parseCalls   int
	buildCalls   int
	parseResult  string
	parseErr     error
	buildResult  *httpclient.KBPipelineResponse
	buildErr     error
	lastBuildReq *httpclient.KBPipelineRequest
}

func (k *fakeKnowledge) ParseMarkdown(_ context.Context, _, _, _ string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.parseCalls++
	return k.parseResult, k.parseErr
}

func (k *fakeKnowledge) BuildKnowledgeBase(_ context.Context, req *httpclient.KBPipelineRequest) (*httpclient.KBPipelineResponse, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.buildCalls++
	k.lastBuildReq = req
	if k.buildErr != nil {
		return nil, k.buildErr
	}
	return k.buildResult, nil
}

type publishedMessage struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	Delay      time.Duration
	Delayed    bool
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *fakePublisher) Publish(_ context.Context, exchange, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{Exchange: exchange, RoutingKey: routingKey, Body: body})
	return nil
}

func (p *fakePublisher) PublishDelayed(_ context.Context, exchange, routingKey string, body []byte, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{Exchange: exchange, RoutingKey: routingKey, Body: body, Delay: delay, Delayed: true})
	return nil
}

type graphCall struct{ KBID, DocumentUniqueID string }

type fakeGraphFS struct {
	mu    sync.Mutex
	calls []graphCall
}

func (g *fakeGraphFS) ArtifactDir(kbID, documentUniqueID string) string {
	return "/tmp/" + kbID + "/graph_" + kbID + "_" + documentUniqueID
}

func (g *fakeGraphFS) ArtifactPaths(kbID, documentUniqueID string) []string {
	return []string{g.ArtifactDir(kbID, documentUniqueID) + "/graphml"}
}

func (g *fakeGraphFS) DeleteDocumentArtifacts(_ context.Context, kbID, documentUniqueID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, graphCall{kbID, documentUniqueID})
	return nil
}

type fakeGraphDB struct {
	mu      sync.Mutex
	calls   []graphCall
	kbCalls []string
}

func (g *fakeGraphDB) DeleteDocumentGraph(_ context.Context, kbID, documentUniqueID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, graphCall{kbID, documentUniqueID})
	return nil
}

func (g *fakeGraphDB) DeleteKnowledgeBaseGraph(_ context.Context, kbID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.kbCalls = append(g.kbCalls, kbID)
	return nil
}

func (g *fakeGraphDB) Close(_ context.Context) error { return nil }

type fakeVectorDB struct {
	mu    sync.Mutex
	calls []graphCall
}

func (v *fakeVectorDB) DeleteDocumentEmbeddings(_ context.Context, kbID, documentUniqueID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, graphCall{kbID, documentUniqueID})
	return nil
}

func (v *fakeVectorDB) Close() {}

type workerFixture struct {
	worker    *Worker
	repo      *fakeRepository
	content   *fakeContentStore
	transport *fakeFileTransport
	ocr       *fakeOCR
	knowledge *fakeKnowledge
	publisher *fakePublisher
	graphFS   *fakeGraphFS
	graphDB   *fakeGraphDB
	vectorDB  *fakeVectorDB
}

func newWorkerFixture() *workerFixture {
	f := &workerFixture{
		repo:      newFakeRepository(),
		content:   newFakeContentStore(),
		transport: newFakeFileTransport(),
		ocr:       &fakeOCR{},
		knowledge: &fakeKnowledge{},
		publisher: &fakePublisher{},
		graphFS:   &fakeGraphFS{},
		graphDB:   &fakeGraphDB{},
		vectorDB:  &fakeVectorDB{},
	}
	f.worker = NewWorker(WorkerParams{
		Repository:    f.repo,
		ContentStore:  f.content,
		FileTransport: f.transport,
		OCR:           f.ocr,
		Knowledge:     f.knowledge,
		Publisher:     f.publisher,
		GraphFS:       f.graphFS,
		GraphDB:       f.graphDB,
		VectorDB:      f.vectorDB,
		Retry: RetryPolicy{
			MaxRetries:     3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     2 * time.Minute,
		},
		OCROutputDir:        "/data/ocr",
		DefaultTemplateName: "contract-domain",
	})
	return f
}
