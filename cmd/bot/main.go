package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nad-devs/Recall-sub000/internal/bot"
	"github.com/nad-devs/Recall-sub000/internal/classifier"
	"github.com/nad-devs/Recall-sub000/internal/concepts"
	"github.com/nad-devs/Recall-sub000/internal/keywords"
	"github.com/nad-devs/Recall-sub000/internal/relations"
	"github.com/nad-devs/Recall-sub000/internal/storage"
	"github.com/nad-devs/Recall-sub000/pkg/config"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	logger := newLogger(cfg.Log.Mode)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	similarity := storage.SimilarityOptions{
		Limit:     cfg.Relations.SimilarityLimit,
		Threshold: cfg.Relations.SimilarityThreshold,
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage(similarity)
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
		store, err = storage.NewPostgresStorage(ctx, dbConfig.ConnString(), similarity, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Without an API key the bot still works: no delegate, no embeddings.
	var (
		delegate classifier.Delegate
		analyzer bot.Analyzer
		embedder classifier.Embedder
	)
	if cfg.OpenAI.APIKey != "" {
		gpt := classifier.NewGPTClassifier(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.BaseURL,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			logger,
		)
		delegate, analyzer = gpt, gpt
		embedder = classifier.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, running without delegate classification and embeddings")
	}

	learner := keywords.NewLearner(store, cfg.Classifier.CorpusLimit, logger)
	var source keywords.Source = learner
	if cfg.Classifier.CacheKeywords {
		source = keywords.NewCache(learner, store, cfg.Classifier.CacheTTL, logger)
	}

	resolver := classifier.NewResolver(delegate, store, classifier.Options{
		Umbrella:       cfg.Classifier.UmbrellaLabel,
		MaxLabelLength: cfg.Classifier.MaxLabelLength,
	}, logger)

	service := concepts.NewService(store, source, resolver, embedder, logger)
	reconciler := relations.NewReconciler(store, store, cfg.Relations.MaxRetries, logger)

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, service, reconciler, analyzer, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Bot stopped")
}

func newLogger(mode string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if mode == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
