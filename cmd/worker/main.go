package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sentra-ai/knowledge-backend/config"
	httpclient "github.com/sentra-ai/knowledge-backend/pkg/client/http"
	"github.com/sentra-ai/knowledge-backend/pkg/contentstore"
	database "github.com/sentra-ai/knowledge-backend/pkg/db"
	"github.com/sentra-ai/knowledge-backend/pkg/filetransport"
	"github.com/sentra-ai/knowledge-backend/pkg/graphdb"
	"github.com/sentra-ai/knowledge-backend/pkg/graphfs"
	"github.com/sentra-ai/knowledge-backend/pkg/pipeline"
	"github.com/sentra-ai/knowledge-backend/pkg/queue"
	"github.com/sentra-ai/knowledge-backend/pkg/repository"
	"github.com/sentra-ai/knowledge-backend/pkg/vectordb"

	logx "github.com/sentra-ai/knowledge-backend/pkg/logger"
)

const gracefulShutdownWaitPeriod = 15 * time.Second

func main() {
	if err := config.Init(config.ParseConfigFlag()); err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, _ := logx.GetZapLogger(ctx)
	defer func() {
		// can't handle the error due to https://github.com/uber-go/zap/issues/880
		_ = logger.Sync()
	}()

	redisClient, db, contentStore, fileTransport, graphDB, vectorDB, closeClients := newClients(ctx, logger)
	defer closeClients()

	broker := queue.NewBroker(redisClient, logger)
	worker := pipeline.NewWorker(pipeline.WorkerParams{
		Repository:    repository.NewRepository(db),
		ContentStore:  contentStore,
		FileTransport: fileTransport,
		OCR:           httpclient.NewOCRClient(ctx),
		Knowledge:     httpclient.NewKnowledgeClient(ctx),
		Publisher:     broker,
		GraphFS:       graphfs.NewGraphFS(config.Config.Storage.GraphPath),
		GraphDB:       graphDB,
		VectorDB:      vectorDB,
		Retry: pipeline.RetryPolicy{
			MaxRetries:     config.Config.Queue.MaxRetries,
			InitialBackoff: config.Config.Queue.InitialBackoff,
			MaxBackoff:     config.Config.Queue.MaxBackoff,
		},
		OCROutputDir:        config.Config.OCR.OutputDir,
		DefaultTemplateName: config.Config.EntityTypes.DefaultTemplateName,
	})

	pools := []*queue.ConsumerPool{
		queue.NewConsumerPool(broker, queue.OCRQueue, config.Config.Queue.OCRWorkers, worker.HandleOCRTask, logger),
		queue.NewConsumerPool(broker, queue.KBBuildQueue, config.Config.Queue.KBBuildWorkers, worker.HandleKBBuildTask, logger),
		queue.NewConsumerPool(broker, queue.OCRDeadLetterQueue, 1, worker.HandleOCRDeadLetter, logger),
		queue.NewConsumerPool(broker, queue.KBBuildDeadLetterQueue, 1, worker.HandleKBBuildDeadLetter, logger),
	}
	for _, p := range pools {
		p.Start(ctx)
	}
	logger.Info("document pipeline worker started",
		zap.Int("ocrWorkers", config.Config.Queue.OCRWorkers),
		zap.Int("kbBuildWorkers", config.Config.Queue.KBBuildWorkers))

	quitSig := make(chan os.Signal, 1)
	signal.Notify(quitSig, syscall.SIGINT, syscall.SIGTERM)
	<-quitSig

	logger.Info("shutdown signal received, draining in-flight messages")
	time.Sleep(gracefulShutdownWaitPeriod)
	for _, p := range pools {
		p.Stop()
	}
	logger.Info("worker stopped")
}

// newClients initializes all external service clients and returns a cleanup
// function.
func newClients(ctx context.Context, logger *zap.Logger) (
	*redis.Client,
	*gorm.DB,
	contentstore.ContentStoreI,
	filetransport.FileTransportI,
	graphdb.GraphDBI,
	vectordb.VectorDBI,
	func(),
) {
	closeFuncs := map[string]func() error{}

	db := database.GetSharedConnection()
	closeFuncs["database"] = func() error {
		database.Close(db)
		return nil
	}

	redisClient := redis.NewClient(&config.Config.Queue.Redis.RedisOptions)
	closeFuncs["redis"] = redisClient.Close

	contentStore, err := contentstore.NewContentStoreAndInitBucket(ctx)
	if err != nil {
		logger.Fatal("failed to create content store", zap.Error(err))
	}

	fileTransport, err := filetransport.NewFileTransport(ctx)
	if err != nil {
		logger.Fatal("failed to create file transport", zap.Error(err))
	}

	graphDB, err := graphdb.NewGraphDB(ctx, config.Config.Neo4j.URI, config.Config.Neo4j.Username, config.Config.Neo4j.Password)
	if err != nil {
		logger.Fatal("failed to create graph database client", zap.Error(err))
	}
	closeFuncs["graphdb"] = func() error {
		return graphDB.Close(context.Background())
	}

	vectorDB, err := vectordb.NewVectorDB(ctx, config.Config.Milvus.Host, config.Config.Milvus.Port)
	if err != nil {
		logger.Fatal("failed to create vector database client", zap.Error(err))
	}
	closeFuncs["vectordb"] = func() error {
		vectorDB.Close()
		return nil
	}

	closer := func() {
		for name, fn := range closeFuncs {
			if err := fn(); err != nil {
				logger.Error("failed to close client", zap.String("client", name), zap.Error(err))
			}
		}
	}
	return redisClient, db, contentStore, fileTransport, graphDB, vectorDB, closer
}
