package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"document-query-platform/internal/ai"
	"document-query-platform/internal/config"
	"document-query-platform/internal/logger"
	"document-query-platform/internal/store"
	"document-query-platform/internal/telemetry"
	"document-query-platform/internal/vectorstore"
	"document-query-platform/middleware"
	"document-query-platform/routes"
	"document-query-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("document-query-platform", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	vectorStore, err := vectorstore.New(cfg, ai.EmbeddingFunc(cfg))
	if err != nil {
		log.Fatal("Failed to open vector store:", err)
	}

	geminiClient, err := ai.NewGeminiClient(cfg)
	if err != nil {
		log.Fatal("Failed to create Gemini client:", err)
	}
	defer geminiClient.Close()

	registry := store.NewDocumentStore(mongoClient, cfg)
	engine := services.NewQueryEngine(vectorStore, geminiClient, registry, cfg)

	ocrClient := services.NewOCRClient(cfg)
	extractor := services.NewTextExtractor(cfg, ocrClient)
	processor := services.NewDocumentProcessor(extractor, registry, vectorStore)

	var asynqClient *asynq.Client
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, async processing and rate limiting disabled", "error", err)
	} else {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisClient.Options().Addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer asynqClient.Close()
	}

	sweeper := services.NewReindexSweeper(processor, registry)
	if err := sweeper.Start(cfg.ReindexSweepMinutes); err != nil {
		logger.Warn("Re-index sweep not started", "error", err)
	}
	defer sweeper.Stop()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware("document-query-platform"))
	router.Use(middleware.EnrichTrace())
	if redisClient != nil {
		router.Use(middleware.RateLimitMiddleware(redisClient, cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupQueryRoutes(router, engine)
	routes.SetupDocumentRoutes(router, cfg, processor, registry, engine, asynqClient)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
