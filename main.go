package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"vidgenius/internal/analysis"
	"vidgenius/internal/api"
	"vidgenius/internal/config"
	"vidgenius/internal/logging"
	"vidgenius/internal/media"
	"vidgenius/internal/metrics"
	"vidgenius/internal/service/ai"
	"vidgenius/internal/worker"
)

func main() {
	// A missing .env is fine; the environment may already carry the key.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("VIDGENIUS_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	err = run(cfg, logger)
	_ = logger.Sync()
	if err != nil {
		log.Fatalf("vidgenius: %v", err)
	}
}

// run owns every resource with cleanup, so its defers always execute.
func run(cfg *config.Config, logger *zap.Logger) error {
	collector := metrics.NewCollector("vidgenius")

	store, err := media.NewStore(cfg.BasicConfig.UploadDir, cfg.TempFileTTL(), cfg.MaxUploadBytes(),
		media.WithLogger(logger), media.WithMetrics(collector))
	if err != nil {
		return fmt.Errorf("init media store: %w", err)
	}
	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	store.StartTempFileCleaner(cleanCtx, cfg.TempCleanInterval())

	var remote analysis.Remote
	svc, err := ai.NewService(context.Background(), cfg.Provider(), cfg.WebSearchEnabled(), cfg.Analysis.Search, logger)
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Warn("GOOGLE_API_KEY not set; analyses will fail until it is configured")
		remote = ai.Unconfigured{}
	case err != nil:
		return fmt.Errorf("init ai service: %w", err)
	default:
		remote = svc
	}

	orchestrator := analysis.NewOrchestrator(remote,
		analysis.WithPollPolicy(analysis.PollPolicy{
			Interval:    cfg.PollInterval(),
			MaxAttempts: cfg.Analysis.MaxPollAttempts,
			MaxDuration: cfg.MaxPollDuration(),
		}),
		analysis.WithLogger(logger),
		analysis.WithMetrics(collector),
	)

	handlers := api.NewHandler(store, orchestrator, worker.NewGate(cfg.BasicConfig.MaxConcurrentAnalyses), collector, logger)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	logger.Info("server listening", zap.String("addr", addr), zap.String("upload_dir", cfg.BasicConfig.UploadDir))
	if err := router.Run(addr); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}
