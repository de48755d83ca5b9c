package main

import (
	"context"
	"log"

	"document-query-platform/internal/ai"
	"document-query-platform/internal/config"
	"document-query-platform/internal/logger"
	"document-query-platform/internal/queue"
	"document-query-platform/internal/store"
	"document-query-platform/internal/vectorstore"
	"document-query-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())

	vectorStore, err := vectorstore.New(cfg, ai.EmbeddingFunc(cfg))
	if err != nil {
		log.Fatal("Failed to open vector store:", err)
	}

	registry := store.NewDocumentStore(mongoClient, cfg)
	ocrClient := services.NewOCRClient(cfg)
	extractor := services.NewTextExtractor(cfg, ocrClient)
	docProcessor := services.NewDocumentProcessor(extractor, registry, vectorStore)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(docProcessor)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskDocumentProcess, processor.ProcessDocument)

	logger.Info("Starting worker", "redis", redisOpt.Addr)
	if err := server.Run(mux); err != nil {
		log.Fatal("Worker stopped:", err)
	}
}
