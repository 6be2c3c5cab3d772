// Package main wires together the crawlchat service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/crawlchat/crawlchat/internal/agent"
	"github.com/crawlchat/crawlchat/internal/api"
	gcsblob "github.com/crawlchat/crawlchat/internal/blob/gcs"
	memoryblob "github.com/crawlchat/crawlchat/internal/blob/memory"
	"github.com/crawlchat/crawlchat/internal/config"
	"github.com/crawlchat/crawlchat/internal/crawl"
	openaiembed "github.com/crawlchat/crawlchat/internal/embed/openai"
	"github.com/crawlchat/crawlchat/internal/hash/sha256"
	memoryindex "github.com/crawlchat/crawlchat/internal/index/memory"
	qdrantindex "github.com/crawlchat/crawlchat/internal/index/qdrant"
	"github.com/crawlchat/crawlchat/internal/logging"
	"github.com/crawlchat/crawlchat/internal/metrics"
	memorypublisher "github.com/crawlchat/crawlchat/internal/publisher/memory"
	pubsubpublisher "github.com/crawlchat/crawlchat/internal/publisher/pubsub"
	"github.com/crawlchat/crawlchat/internal/safety"
	memorystore "github.com/crawlchat/crawlchat/internal/store/memory"
	postgresstore "github.com/crawlchat/crawlchat/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	var store crawl.DocumentStore
	if cfg.DB.DSN != "" {
		pgStore, err := postgresstore.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatal("postgres connect failed", zap.Error(err))
		}
		defer pgStore.Close()
		store = pgStore
		logger.Info("using postgres document store")
	} else {
		store = memorystore.NewStore()
		logger.Info("using in-memory document store")
	}

	var index crawl.VectorIndex
	if cfg.Qdrant.Host != "" {
		qIndex, err := qdrantindex.New(qdrantindex.Config{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
			VectorSize: cfg.Qdrant.VectorSize,
		})
		if err != nil {
			logger.Fatal("qdrant connect failed", zap.Error(err))
		}
		defer func() {
			if closeErr := qIndex.Close(); closeErr != nil {
				logger.Warn("qdrant close failed", zap.Error(closeErr))
			}
		}()
		index = qIndex
		logger.Info("using qdrant vector index", zap.String("collection", cfg.Qdrant.Collection))
	} else {
		index = memoryindex.NewIndex()
		logger.Info("using in-memory vector index")
	}

	var blobs crawl.BlobStore
	if cfg.Storage.GCSBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			logger.Fatal("storage client init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := storageClient.Close(); closeErr != nil {
				logger.Warn("storage client close failed", zap.Error(closeErr))
			}
		}()
		gcsStore, err := gcsblob.New(storageClient, gcsblob.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(err))
		}
		blobs = gcsStore
		logger.Info("archiving snapshots to gcs", zap.String("bucket", cfg.Storage.GCSBucket))
	} else {
		blobs = memoryblob.NewBlobStore()
	}

	var publisher crawl.Publisher
	if cfg.PubSub.ProjectID != "" {
		pubsubClient, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		psPublisher := pubsubpublisher.New(pubsubClient)
		defer psPublisher.Stop()
		publisher = psPublisher
		logger.Info("publishing run summaries", zap.String("topic", cfg.PubSub.Topic))
	} else {
		publisher = memorypublisher.New()
	}

	var checker safety.Checker
	if cfg.Safety.SafeBrowsingAPIKey != "" {
		sbChecker, err := safety.NewSafeBrowsingChecker(ctx, cfg.Safety.SafeBrowsingAPIKey, logger.Named("safety"))
		if err != nil {
			logger.Fatal("safe browsing init failed", zap.Error(err))
		}
		checker = sbChecker
		logger.Info("safe browsing checks enabled")
	} else {
		checker = safety.NewHeuristicChecker()
	}

	registry := crawl.NewRegistry()
	status := crawl.NewStatus()
	hasher := sha256.New()

	fetcher := crawl.NewPageFetcher(crawl.FetcherConfig{
		Timeout:     cfg.FetchTimeout(),
		UserAgent:   cfg.Crawler.UserAgent,
		BlobPrefix:  cfg.Storage.Prefix,
		ContentType: cfg.Storage.ContentType,
	}, registry, store, blobs, hasher, logger.Named("fetcher"))

	embedder := openaiembed.New(openaiembed.Config{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
	})
	ingestor := crawl.NewIngestor(store, embedder, index, status, logger.Named("ingest"))

	orchestrator := crawl.NewOrchestrator(crawl.OrchestratorConfig{
		MaxWorkers: cfg.Crawler.MaxWorkers,
		URLLimit:   cfg.Crawler.URLLimit,
		BatchSize:  cfg.Ingest.BatchSize,
		Topic:      cfg.PubSub.Topic,
	}, fetcher, registry, status, store, index, ingestor, publisher, logger.Named("crawl"))

	chat := agent.NewOpenAIChat(agent.ChatConfig{
		BaseURL:     cfg.Chat.BaseURL,
		APIKey:      cfg.Chat.APIKey,
		Model:       cfg.Chat.Model,
		MaxTokens:   cfg.Chat.MaxTokens,
		Temperature: cfg.Chat.Temperature,
	})
	answerer := agent.New(embedder, index, chat, logger.Named("agent"))

	apiServer := api.NewServer(orchestrator, status, registry, checker, answerer, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
