package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	errorsx "github.com/sentra-ai/knowledge-backend/pkg/errors"
)

type DocumentI interface {
	GetDocument(ctx context.Context, documentID string) (*Document, error)
	ListKBDocuments(ctx context.Context, kbID string) ([]Document, error)
	UpdateDocumentProgress(ctx context.Context, documentID string, status DocumentStatus, progress int) error
	SetDocumentOCRResult(ctx context.Context, documentID string, ocrResultPath string) error
	SetDocumentUniqueID(ctx context.Context, documentID string, uniqueID string) error
	SetDocumentError(ctx context.Context, documentID string, errMsg string) error
	MarkDocumentFailed(ctx context.Context, documentID string, errMsg string) error
	DeleteDocument(ctx context.Context, documentID string) error
}

type Document struct {
	ID               string         `gorm:"column:id;size:64;primaryKey" json:"id"`
	KBID             string         `gorm:"column:kb_id;size:64;not null;index" json:"kb_id"`
	TenantID         string         `gorm:"column:tenant_id;size:64;not null;index" json:"tenant_id"`
	Filename         string         `gorm:"column:filename;size:255;not null" json:"filename"`
	FileSize         int64          `gorm:"column:file_size" json:"file_size"`
	FileType         string         `gorm:"column:file_type;size:50" json:"file_type"`
	RemoteFilePath   string         `gorm:"column:remote_file_path;size:512" json:"remote_file_path"`
	OcrResultPath    string         `gorm:"column:ocr_result_path;size:512" json:"ocr_result_path"`
	DocumentUniqueID string         `gorm:"column:document_unique_id;size:64;index" json:"document_unique_id"`
	Status           DocumentStatus `gorm:"column:status;size:32;not null" json:"status"`
	Progress         int            `gorm:"column:progress;not null;default:0" json:"progress"`
	ErrorMessage     *string        `gorm:"column:error_message;size:1024" json:"error_message"`
	EntityTemplateID string         `gorm:"column:entity_template_id;size:64" json:"entity_template_id"`
	CreateTime       *time.Time     `gorm:"column:create_time;not null;default:CURRENT_TIMESTAMP" json:"create_time"`
	UpdateTime       *time.Time     `gorm:"column:update_time;not null;autoUpdateTime" json:"update_time"`
}

func (Document) TableName() string {
	return "t_document"
}

// table columns map
type DocumentColumns struct {
	ID               string
	KBID             string
	TenantID         string
	Status           string
	Progress         string
	OcrResultPath    string
	DocumentUniqueID string
	ErrorMessage     string
	UpdateTime       string
}

var DocumentColumn = DocumentColumns{
	ID:               "id",
	KBID:             "kb_id",
	TenantID:         "tenant_id",
	Status:           "status",
	Progress:         "progress",
	OcrResultPath:    "ocr_result_path",
	DocumentUniqueID: "document_unique_id",
	ErrorMessage:     "error_message",
	UpdateTime:       "update_time",
}

func (r *Repository) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	var doc Document
	if err := r.db.WithContext(ctx).First(&doc, DocumentColumn.ID+" = ?", documentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorsx.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *Repository) ListKBDocuments(ctx context.Context, kbID string) ([]Document, error) {
	var docs []Document
	if err := r.db.WithContext(ctx).
		Where(DocumentColumn.KBID+" = ?", kbID).
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateDocumentProgress advances the document's status and progress. The
// update is guarded so that FAILED is never left, a redelivered message
// cannot regress the status to an earlier stage, and progress never
// decreases.
func (r *Repository) UpdateDocumentProgress(ctx context.Context, documentID string, status DocumentStatus, progress int) error {
	doc, err := r.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !doc.Status.CanTransition(status) {
		// stale delivery for an already-advanced or failed document
		return nil
	}
	if progress < doc.Progress {
		progress = doc.Progress
	}
	return r.db.WithContext(ctx).Model(&Document{}).
		Where(DocumentColumn.ID+" = ?", documentID).
		Updates(map[string]any{
			DocumentColumn.Status:   status,
			DocumentColumn.Progress: progress,
		}).Error
}

func (r *Repository) SetDocumentOCRResult(ctx context.Context, documentID string, ocrResultPath string) error {
	return r.db.WithContext(ctx).Model(&Document{}).
		Where(DocumentColumn.ID+" = ?", documentID).
		Update(DocumentColumn.OcrResultPath, ocrResultPath).Error
}

// SetDocumentUniqueID assigns the cross-store artifact key. It is set at
// most once: an already-assigned ID is never overwritten.
func (r *Repository) SetDocumentUniqueID(ctx context.Context, documentID string, uniqueID string) error {
	return r.db.WithContext(ctx).Model(&Document{}).
		Where(DocumentColumn.ID+" = ?", documentID).
		Where(DocumentColumn.DocumentUniqueID + " IS NULL OR " + DocumentColumn.DocumentUniqueID + " = ''").
		Update(DocumentColumn.DocumentUniqueID, uniqueID).Error
}

// SetDocumentError records the latest failure text without touching the
// status, so that an attempt that will still be retried stays observable.
func (r *Repository) SetDocumentError(ctx context.Context, documentID string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Document{}).
		Where(DocumentColumn.ID+" = ?", documentID).
		Update(DocumentColumn.ErrorMessage, errMsg).Error
}

// MarkDocumentFailed moves the document into the absorbing FAILED state.
func (r *Repository) MarkDocumentFailed(ctx context.Context, documentID string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Document{}).
		Where(DocumentColumn.ID+" = ?", documentID).
		Where(DocumentColumn.Status+" <> ?", StatusFailed).
		Updates(map[string]any{
			DocumentColumn.Status:       StatusFailed,
			DocumentColumn.ErrorMessage: errMsg,
		}).Error
}

// DeleteDocument removes the relational record. Only the explicit deletion
// flow calls this; the failure path keeps the record for auditing.
func (r *Repository) DeleteDocument(ctx context.Context, documentID string) error {
	return r.db.WithContext(ctx).Delete(&Document{}, DocumentColumn.ID+" = ?", documentID).Error
}
