package pipeline

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/sentra-ai/knowledge-backend/pkg/queue"
	"github.com/sentra-ai/knowledge-backend/pkg/repository"
)

func seedDocument(f *workerFixture, status repository.DocumentStatus) *repository.Document {
	doc := &repository.Document{
		ID:             "doc-1",
		KBID:           "kb-1",
		TenantID:       "tenant-1",
		Filename:       "contract.pdf",
		FileSize:       1024,
		FileType:       "pdf",
		RemoteFilePath: "uploads/tenant-1/contract.pdf",
		Status:         status,
	}
	f.repo.docs[doc.ID] = doc
	return doc
}

func seedOCRTaskBody(c *qt.C, attempt int) []byte {
	task := &OcrTask{
		DocumentID:     "doc-1",
		KBID:           "kb-1",
		TenantID:       "tenant-1",
		RemoteFilePath: "uploads/tenant-1/contract.pdf",
		Filename:       "contract.pdf",
		Attempt:        attempt,
	}
	body, err := task.Marshal()
	c.Assert(err, qt.IsNil)
	return body
}

func TestHandleOCRTask_HappyPath(t *testing.T) {
	c := qt.New(t)
	f := newWorkerFixture()
	seedDocument(f, repository.StatusUploaded)
	f.transport.files["uploads/tenant-1/contract.pdf"] = []byte("%PDF-1.4")
	f.ocr.resp = &ocrSuccess
	f.knowledge.parseResult = "# Contract\n\nrestructured"

	f.worker.HandleOCRTask(context.Background(), seedOCRTaskBody(c, 0))

	c.Assert(f.repo.progressLog, qt.DeepEquals, []progressUpdate{
		{repository.StatusParsing, 10},
		{repository.StatusParsing, 30},
		{repository.StatusParsing, 70},
		{repository.StatusParsing, 80},
		{repository.StatusParsing, 90},
		{repository.StatusReady, 100},
	})

	doc := f.repo.docs["doc-1"]
	c.Assert(doc.Status, qt.Equals, repository.StatusReady)
	c.Assert(doc.OcrResultPath, qt.Equals, "/data/ocr/doc-1.json")

	// the staged copy of the fetched file is what gets uploaded
	c.Assert(string(f.ocr.uploaded), qt.Equals, "%PDF-1.4")

	record, err := f.content.Get(context.Background(), "kb-1", "doc-1")
	c.Assert(err, qt.IsNil)
	c.Assert(record.MdContent, qt.Equals, "raw markdown")
	c.Assert(record.NewMdContent, qt.Equals, "# Contract\n\nrestructured")
	c.Assert(record.Progress, qt.Equals, 90)
	c.Assert(record.ParsedAt, qt.IsNotNil)
	c.Assert(record.RestructuredAt, qt.IsNotNil)

	c.Assert(f.publisher.messages, qt.HasLen, 1)
	msg := f.publisher.messages[0]
	c.Assert(msg.Exchange, qt.Equals, queue.KBBuildExchange)
	c.Assert(msg.RoutingKey, qt.Equals, queue.KBBuildRoutingKey)
	c.Assert(msg.Delayed, qt.IsFalse)
	next, err := UnmarshalKbBuildTask(msg.Body)
	c.Assert(err, qt.IsNil)
	c.Assert(next.DocumentID, qt.Equals, "doc-1")
	c.Assert(next.RestructuredContent, qt.Equals, "# Contract\n\nrestructured")
	c.Assert(next.Attempt, qt.Equals, 0)
}

func TestHandleOCRTask_UnknownDocumentDropped(t *testing.T) {
	c := qt.New(t)
	f := newWorkerFixture()

	f.worker.HandleOCRTask(context.Background(), seedOCRTaskBody(c, 0))

	c.Assert(f.publisher.messages, qt.HasLen, 0)
	c.Assert(f.repo.errorLog, qt.HasLen, 0)
	c.Assert(f.ocr.calls, qt.Equals, 0)
}

func TestHandleOCRTask_TerminalDocumentSkipped(t *testing.T) {
	c := qt.New(t)
	f := newWorkerFixture()
	seedDocument(f, repository.StatusFailed)

	f.worker.HandleOCRTask(context.Background(), seedOCRTaskBody(c, 0))

	c.Assert(f.ocr.calls, qt.Equals, 0)
	c.Assert(f.publisher.messages, qt.HasLen, 0)
	c.Assert(f.repo.progressLog, qt.HasLen, 0)
}

func TestHandleOCRTask_MalformedBodyDropped(t *testing.T) {
	c := qt.New(t)
	f := newWorkerFixture()
	seedDocument(f, repository.StatusUploaded)

	f.worker.HandleOCRTask(context.Background(), []byte("{not json"))

	c.Assert(f.publisher.messages, qt.HasLen, 0)
	c.Assert(f.repo.progressLog, qt.HasLen, 0)
}

func TestHandleOCRTask_RedeliveryAfterReady(t *testing.T) {
	// A redelivered message for a document that already moved past the
	// stage must not drag it backwards.
	c := qt.New(t)
	f := newWorkerFixture()
	doc := seedDocument(f, repository.StatusKBBuilding)
	doc.Progress = 95
	f.transport.files["uploads/tenant-1/contract.pdf"] = []byte("%PDF-1.4")
	f.ocr.resp = &ocrSuccess
	f.knowledge.parseResult = "restructured"

	f.worker.HandleOCRTask(context.Background(), seedOCRTaskBody(c, 0))

	c.Assert(doc.Status, qt.Equals, repository.StatusKBBuilding)
	c.Assert(doc.Progress, qt.Equals, 95)
	c.Assert(f.repo.progressLog, qt.HasLen, 0)
}
