package pipeline

import "encoding/json"

// Stage messages are the only trigger for a stage. They carry the broker
// attempt counter but are not the source of truth for document state; the
// relational store is. Field names are shared with the producing services
// and must stay stable.

// OcrTask triggers the OCR stage for one document.
type OcrTask struct {
	DocumentID     string `json:"documentId"`
	KBID           string `json:"kbId"`
	TenantID       string `json:"tenantId"`
	RemoteFilePath string `json:"remoteFilePath"`
	Filename       string `json:"filename"`
	OutputDir      string `json:"ocrOutputDir"`
	Attempt        int    `json:"retryCount"`
}

// KbBuildTask triggers the knowledge-graph build stage for one document.
type KbBuildTask struct {
	DocumentID          string `json:"documentId"`
	KBID                string `json:"kbId"`
	TenantID            string `json:"tenantId"`
	RestructuredContent string `json:"newMdContent"`
	Attempt             int    `json:"retryCount"`
}

func (t *OcrTask) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

func (t *KbBuildTask) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

func UnmarshalOcrTask(body []byte) (*OcrTask, error) {
	var t OcrTask
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func UnmarshalKbBuildTask(body []byte) (*KbBuildTask, error) {
	var t KbBuildTask
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
