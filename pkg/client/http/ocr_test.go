package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/sentra-ai/knowledge-backend/config"
)

func newOCRTestClient(t *testing.T, handler http.HandlerFunc) *OCRClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	config.Config.OCR.APIURL = srv.URL
	config.Config.OCR.Backend = "pipeline"
	config.Config.OCR.Timeout = 5 * time.Second
	return NewOCRClient(context.Background())
}

func TestOCRClient_ParsePDF_Success(t *testing.T) {
	c := qt.New(t)

	client := newOCRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodPost)
		err := r.ParseMultipartForm(1 << 20)
		c.Assert(err, qt.IsNil)
		c.Check(r.FormValue("backend"), qt.Equals, "pipeline")
		c.Check(r.FormValue("output_dir"), qt.Equals, "/tmp/out")

		file, _, err := r.FormFile("files")
		c.Assert(err, qt.IsNil)
		defer file.Close()
		uploaded, err := io.ReadAll(file)
		c.Assert(err, qt.IsNil)
		c.Check(string(uploaded), qt.Equals, "%PDF-1.7")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"contract.pdf":{"md_content":"# Contract\n\nBody"}}}`))
	})

	resp, err := client.ParsePDF(context.Background(), "contract.pdf", strings.NewReader("%PDF-1.7"), "/tmp/out")
	c.Assert(err, qt.IsNil)
	c.Check(resp.Success, qt.IsTrue)
	c.Check(resp.MdContent, qt.Equals, "# Contract\n\nBody")
}

func TestOCRClient_ParsePDF_MissingMdContent(t *testing.T) {
	c := qt.New(t)

	client := newOCRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"contract.pdf":{}}}`))
	})

	resp, err := client.ParsePDF(context.Background(), "contract.pdf", strings.NewReader("%PDF-1.7"), "/tmp/out")
	c.Assert(err, qt.IsNil)
	c.Check(resp.Success, qt.IsFalse)
	c.Check(resp.ErrorMessage, qt.Contains, "md_content")
}

func TestOCRClient_ParsePDF_HTTPError(t *testing.T) {
	c := qt.New(t)

	client := newOCRTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	resp, err := client.ParsePDF(context.Background(), "contract.pdf", strings.NewReader("%PDF-1.7"), "/tmp/out")
	c.Assert(err, qt.IsNil)
	c.Check(resp.Success, qt.IsFalse)
	c.Check(resp.ErrorMessage, qt.Contains, "500")
}
