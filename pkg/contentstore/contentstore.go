package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/sentra-ai/knowledge-backend/config"
	errorsx "github.com/sentra-ai/knowledge-backend/pkg/errors"
	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
)

// ContentRecord mirrors the relational document plus its extracted text. It
// is keyed by (KBID, DocumentID) with a fixed object layout instead of a
// collection-per-knowledge-base schema.
type ContentRecord struct {
	DocumentID       string     `json:"documentId"`
	KBID             string     `json:"kbId"`
	TenantID         string     `json:"tenantId"`
	Filename         string     `json:"filename"`
	FileSize         int64      `json:"fileSize"`
	FileType         string     `json:"fileType"`
	MdContent        string     `json:"mdContent"`
	NewMdContent     string     `json:"newMdContent"`
	OcrResultPath    string     `json:"ocrResultPath"`
	DocumentUniqueID string     `json:"documentUniqueId"`
	Status           string     `json:"status"`
	Progress         int        `json:"progress"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`
	ParsedAt         *time.Time `json:"parsedAt,omitempty"`
	RestructuredAt   *time.Time `json:"restructuredAt,omitempty"`
	KBBuiltAt        *time.Time `json:"kbBuiltAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type ContentStoreI interface {
	Save(ctx context.Context, record *ContentRecord) error
	Get(ctx context.Context, kbID, documentID string) (*ContentRecord, error)
	Delete(ctx context.Context, kbID, documentID string) error
}

type ContentStore struct {
	client *minio.Client
	bucket string
}

func NewContentStoreAndInitBucket(ctx context.Context) (*ContentStore, error) {
	cfg := config.Config.Minio
	logger, err := log.GetZapLogger(ctx)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Host+":"+cfg.Port, &minio.Options{
		Creds: credentials.NewStaticV4(cfg.RootUser, cfg.RootPwd, ""),
	})
	if err != nil {
		logger.Error("cannot connect to minio",
			zap.String("host:port", cfg.Host+":"+cfg.Port), zap.Error(err))
		return nil, err
	}
	exists, err := client.BucketExists(ctx, cfg.ContentBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.ContentBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		logger.Info("Successfully created bucket", zap.String("bucket", cfg.ContentBucket))
	}
	return &ContentStore{client: client, bucket: cfg.ContentBucket}, nil
}

// Save writes the record at its composite key, overwriting any previous
// version. Duplicate stage deliveries therefore converge on the latest write.
func (s *ContentStore) Save(ctx context.Context, record *ContentRecord) error {
	record.UpdatedAt = time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, RecordPath(record.KBID, record.DocumentID),
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (s *ContentStore) Get(ctx context.Context, kbID, documentID string) (*ContentRecord, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, RecordPath(kbID, documentID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	payload, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, errorsx.ErrNotFound
		}
		return nil, err
	}
	var record ContentRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *ContentStore) Delete(ctx context.Context, kbID, documentID string) error {
	return s.client.RemoveObject(ctx, s.bucket, RecordPath(kbID, documentID), minio.RemoveObjectOptions{})
}
