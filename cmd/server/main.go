// Package main is the application entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"finrag-go/internal/chunker"
	"finrag-go/internal/config"
	"finrag-go/internal/handler"
	"finrag-go/internal/middleware"
	"finrag-go/internal/model"
	"finrag-go/internal/pipeline"
	"finrag-go/internal/repository"
	"finrag-go/internal/service"
	"finrag-go/internal/tracker"
	"finrag-go/pkg/database"
	"finrag-go/pkg/embedding"
	"finrag-go/pkg/es"
	"finrag-go/pkg/extract"
	"finrag-go/pkg/kafka"
	"finrag-go/pkg/llm"
	"finrag-go/pkg/log"
	"finrag-go/pkg/storage"
	"finrag-go/pkg/token"
)

func main() {
	// 1. Load configuration
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. Initialise the logger
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialised successfully")

	// 3. Initialise infrastructure clients
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("elasticsearch initialisation failed: %v", err)
	}

	kafkaEnabled := cfg.Kafka.Brokers != ""
	if kafkaEnabled {
		kafka.InitProducer(cfg.Kafka)
	}

	// 4. Migrate the tables backing the tracker and the query log
	if err := database.DB.AutoMigrate(&model.ProcessedFile{}, &model.QueryLog{}); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	// 5. Wire the ingestion pipeline
	fileTracker := newTracker(cfg.Tracker)
	extractor := newExtractor(cfg.Extraction)
	embeddingClient := embedding.NewCachedClient(
		embedding.NewClient(cfg.Embedding),
		database.RDB,
		cfg.Embedding.Model,
		time.Duration(cfg.Embedding.CacheTTLMinutes)*time.Minute,
	)
	ingestor := pipeline.NewIngestor(
		extractor,
		chunker.New(cfg.Ingestion.ChunkSize),
		embeddingClient,
		esClient,
		fileTracker,
		pipeline.NewMinioSource(cfg.MinIO.BucketName),
		cfg.Ingestion,
	)

	// 6. Wire the retrieval and answer services
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenExpireHours)
	llmClient := llm.NewClient(cfg.LLM)
	queryLogRepo := repository.NewQueryLogRepository(database.DB)
	searchService := service.NewSearchService(esClient, embeddingClient, cfg.Search)
	answerService := service.NewAnswerService(searchService, llmClient, queryLogRepo)

	// 7. Start the async ingestion consumer
	if kafkaEnabled {
		go kafka.StartConsumer(cfg.Kafka, ingestor)
	}

	// 8. Build the router
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/health", handler.NewHealthHandler().Health)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/token", handler.NewAuthHandler(jwtManager, cfg.JWT).Token)
		}

		query := apiV1.Group("/query")
		{
			query.POST("", handler.NewSearchHandler(searchService).Search)
		}

		answer := apiV1.Group("/answer")
		{
			answer.POST("", handler.NewAnswerHandler(answerService).Answer)
		}

		// Operator routes, JWT protected
		ingest := apiV1.Group("/ingest")
		ingest.Use(middleware.AuthMiddleware(jwtManager))
		{
			ingestHandler := handler.NewIngestHandler(ingestor, kafkaEnabled)
			ingest.POST("/file", ingestHandler.Upload)
			ingest.POST("/folder", ingestHandler.IngestFolder)
			ingest.POST("/bucket", ingestHandler.IngestBucket)
		}

		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager))
		{
			adminHandler := handler.NewAdminHandler(fileTracker, esClient, queryLogRepo)
			admin.POST("/tracker/reset", adminHandler.ResetTracker)
			admin.POST("/index/recreate", adminHandler.RecreateIndex)
			admin.GET("/index/info", adminHandler.IndexInfo)
			admin.GET("/stats", adminHandler.Stats)
		}
	}

	// 9. Serve with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}
	log.Info("server stopped")
}

// newTracker selects the processed-file tracker backend.
func newTracker(cfg config.TrackerConfig) tracker.Tracker {
	if cfg.Driver == "file" {
		t, err := tracker.NewFileTracker(cfg.Path)
		if err != nil {
			log.Fatalf("file tracker initialisation failed: %v", err)
		}
		return t
	}
	return repository.NewProcessedFileRepository(database.DB)
}

// newExtractor selects the text-extraction engine.
func newExtractor(cfg config.ExtractionConfig) extract.Extractor {
	if cfg.Engine == "tika" {
		return extract.NewTikaExtractor(cfg.TikaServerURL)
	}
	return extract.NewPDFExtractor()
}
