// package filetransport moves uploaded source files between the object
// store and the worker's local disk. It fills the transport contract the
// pipeline consumes: fetch bytes by remote path, delete by remote path.
package filetransport

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/sentra-ai/knowledge-backend/config"
	log "github.com/sentra-ai/knowledge-backend/pkg/logger"
)

type FileTransportI interface {
	Fetch(ctx context.Context, remotePath string) ([]byte, error)
	Delete(ctx context.Context, remotePath string) (bool, error)
}

type FileTransport struct {
	client *minio.Client
	bucket string
}

func NewFileTransport(ctx context.Context) (*FileTransport, error) {
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
	return &FileTransport{client: client, bucket: cfg.SourceBucket}, nil
}

func (t *FileTransport) Fetch(ctx context.Context, remotePath string) ([]byte, error) {
	obj, err := t.client.GetObject(ctx, t.bucket, remotePath, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (t *FileTransport) Delete(ctx context.Context, remotePath string) (bool, error) {
	if err := t.client.RemoveObject(ctx, t.bucket, remotePath, minio.RemoveObjectOptions{}); err != nil {
		return false, err
	}
	return true, nil
}
