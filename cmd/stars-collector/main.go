// Command stars-collector gathers metadata for the most-starred GitHub
// repositories, prints an aggregate report, and writes the records to the
// configured sinks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/github-stars-collector/pkg/cache"
	"github.com/Sternrassler/github-stars-collector/pkg/config"
	"github.com/Sternrassler/github-stars-collector/pkg/credentials"
	"github.com/Sternrassler/github-stars-collector/pkg/export"
	"github.com/Sternrassler/github-stars-collector/pkg/github"
	"github.com/Sternrassler/github-stars-collector/pkg/logging"
	"github.com/Sternrassler/github-stars-collector/pkg/pagination"
	"github.com/Sternrassler/github-stars-collector/pkg/quota"
	"github.com/Sternrassler/github-stars-collector/pkg/stats"
)

func main() {
	configPath := flag.String("config", "", "path to the config file (searches ., ./config, /etc/stars-collector when empty)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "stars-collector: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.NewViperLoader(configPath).Load()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.Log.Level)
	logCfg.Pretty = cfg.Log.Pretty
	logging.Setup(logCfg)
	logger := logging.NewLogger("main")

	pool, err := credentials.NewPool(cfg.Github.Tokens)
	if err != nil {
		return fmt.Errorf("credential pool: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clientCfg := cfg.ClientConfig()
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, running without page cache")
		} else {
			clientCfg.Cache = cache.NewManager(redisClient)
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("Page cache enabled")
		}
	}

	client, err := github.NewClient(clientCfg)
	if err != nil {
		return fmt.Errorf("github client: %w", err)
	}

	engine, err := pagination.New(pool, quota.NewTracker(), client, cfg.EngineConfig())
	if err != nil {
		return fmt.Errorf("pagination engine: %w", err)
	}

	result, runErr := engine.Run(ctx)
	if runErr != nil {
		logger.Error().Err(runErr).Int("collected", len(result.Records)).Msg("Run failed, exporting what was collected")
	}

	now := time.Now()
	summary := stats.Summarize(result.Records, now)
	fmt.Print(stats.RenderRepositories(result.Records, now))
	fmt.Print(stats.Render(summary))

	// Export runs on its own context so partial results still land on disk
	// after a signal cancelled the run.
	exportCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	exportErr := exportResults(exportCtx, cfg, logger, result.Records, summary)
	if exportErr != nil {
		logger.Error().Err(exportErr).Msg("Export failed")
	}

	if runErr != nil {
		return runErr
	}
	return exportErr
}

// exportResults writes the run to every enabled sink: CSV and JSON files, the
// MySQL store, and the Kafka topic.
func exportResults(ctx context.Context, cfg *config.Config, logger zerolog.Logger, records []github.Repository, summary *stats.Summary) error {
	if cfg.Export.CSVPath != "" {
		if err := export.WriteCSVFile(cfg.Export.CSVPath, records); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		logger.Info().Str("path", cfg.Export.CSVPath).Int("records", len(records)).Msg("CSV export written")
	}
	if cfg.Export.JSONPath != "" {
		if err := export.WriteJSONFile(cfg.Export.JSONPath, records); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
		logger.Info().Str("path", cfg.Export.JSONPath).Int("records", len(records)).Msg("JSON export written")
	}
	if cfg.Export.SummaryPath != "" {
		if err := export.WriteJSONFile(cfg.Export.SummaryPath, summary); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		logger.Info().Str("path", cfg.Export.SummaryPath).Msg("Summary written")
	}

	if cfg.Mysql.Enabled {
		store := export.NewStore(cfg.StoreConfig())
		defer store.Close()
		if err := store.Migrate(); err != nil {
			return fmt.Errorf("migrate store: %w", err)
		}
		if err := store.SaveRecords(ctx, records, time.Now()); err != nil {
			return fmt.Errorf("save records: %w", err)
		}
	}

	if cfg.Kafka.Enabled {
		publisher, err := export.NewPublisher(cfg.PublisherConfig())
		if err != nil {
			return fmt.Errorf("kafka publisher: %w", err)
		}
		defer publisher.Close()
		if err := publisher.PublishRecords(ctx, records); err != nil {
			return fmt.Errorf("publish records: %w", err)
		}
		if err := publisher.PublishSummary(ctx, summary); err != nil {
			return fmt.Errorf("publish summary: %w", err)
		}
	}
	return nil
}
