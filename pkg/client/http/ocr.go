package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sentra-ai/knowledge-backend/config"
	"github.com/sentra-ai/knowledge-backend/pkg/logger"
)

// OCRResponse carries the extracted Markdown or a structured failure.
type OCRResponse struct {
	Success      bool
	MdContent    string
	ErrorMessage string
}

// OCRClient calls the OCR HTTP API (MinerU-compatible multipart endpoint).
type OCRClient struct {
	*resty.Client
	apiURL  string
	backend string
}

// NewOCRClient returns an initialized OCR HTTP client.
func NewOCRClient(ctx context.Context) *OCRClient {
	l, _ := logger.GetZapLogger(ctx)
	cfg := config.Config.OCR

	r := resty.New().
		SetLogger(l.Sugar()).
		SetTimeout(cfg.Timeout)

	return &OCRClient{Client: r, apiURL: cfg.APIURL, backend: cfg.Backend}
}

// ocrResult is the per-file payload inside the OCR API response.
type ocrResult struct {
	MdContent string `json:"md_content"`
}

type ocrAPIResponse struct {
	Results map[string]ocrResult `json:"results"`
}

// ParsePDF uploads the document and extracts the Markdown content from the
// first file result. A non-2xx response or a malformed body is reported as a
// structured failure rather than an error so the handler can distinguish a
// collaborator "no" from a transport problem.
func (c *OCRClient) ParsePDF(ctx context.Context, filename string, content io.Reader, outputDir string) (*OCRResponse, error) {
	l, _ := logger.GetZapLogger(ctx)
	l.Info("Sending document to OCR service", zap.String("filename", filename))

	resp, err := c.R().SetContext(ctx).
		SetFileReader("files", filename, content).
		SetFormData(map[string]string{
			"output_dir":          outputDir,
			"backend":             c.backend,
			"return_middle_json":  "true",
			"return_model_output": "true",
			"return_content_list": "true",
			"formula_enable":      "true",
			"table_enable":        "true",
			"return_images":       "true",
		}).
		Post(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("couldn't connect with OCR service: %w", err)
	}
	if resp.StatusCode() != 200 {
		return &OCRResponse{
			Success:      false,
			ErrorMessage: fmt.Sprintf("OCR API returned HTTP %d", resp.StatusCode()),
		}, nil
	}

	var body ocrAPIResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return &OCRResponse{Success: false, ErrorMessage: "OCR response is not valid JSON"}, nil
	}
	if len(body.Results) == 0 {
		return &OCRResponse{Success: false, ErrorMessage: "OCR response has no results field"}, nil
	}
	for _, result := range body.Results {
		if result.MdContent == "" {
			return &OCRResponse{Success: false, ErrorMessage: "OCR response has no md_content field"}, nil
		}
		l.Info("OCR extraction succeeded", zap.Int("mdLength", len(result.MdContent)))
		return &OCRResponse{Success: true, MdContent: result.MdContent}, nil
	}
	return &OCRResponse{Success: false, ErrorMessage: "OCR response has no file result"}, nil
}
