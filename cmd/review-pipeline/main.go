package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joelkehle/review-refinery/internal/catalog"
	"github.com/joelkehle/review-refinery/internal/config"
	"github.com/joelkehle/review-refinery/internal/enrich"
	"github.com/joelkehle/review-refinery/internal/ingest"
	"github.com/joelkehle/review-refinery/internal/logger"
	"github.com/joelkehle/review-refinery/internal/pipeline"
	"github.com/joelkehle/review-refinery/internal/store"
)

func main() {
	dataset := flag.String("dataset", "", "Path to the review corpus (.parquet, .jsonl or .csv)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	skipEnrich := flag.Bool("skip-enrich", false, "Skip catalog enrichment")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New("pipeline")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dataset != "" {
		cfg.Dataset = *dataset
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}
	if cfg.Dataset == "" {
		log.Fatal("no dataset: pass -dataset or set REVIEW_DATASET")
	}

	loaded, err := ingest.NewLoader(cfg.Dataset, logg).Load()
	if err != nil {
		log.Fatalf("load dataset: %v", err)
	}
	logg.Info("dataset loaded", "reviews", len(loaded.Reviews), "skipped", loaded.Skipped)

	var source enrich.Source
	if !*skipEnrich {
		client, err := catalog.NewClient(catalog.Config{
			BaseURL:         cfg.Catalog.BaseURL,
			RateLimitPerSec: cfg.Catalog.RateLimitPerSec,
			MatchThreshold:  cfg.Catalog.MatchThreshold,
		})
		if err != nil {
			log.Fatalf("catalog client: %v", err)
		}
		defer client.Close()
		source = client
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := pipeline.New(cfg, source, st, logg)
	res, err := p.RunWithProgress(ctx, loaded.Reviews, func(stage, message string) {
		logg.Info(message, "stage", stage)
	})
	if err != nil {
		log.Fatalf("%s failed: %v", pipeline.StageNameFromError(err), err)
	}

	rep := res.Report
	logg.Info("run complete",
		"run_id", rep.RunID,
		"processed", rep.ReviewsProcessed,
		"duplicates", rep.DuplicatesFound,
		"books", rep.BooksTotal,
		"enriched", rep.BooksEnriched,
		"unenriched", rep.BooksUnenriched,
		"flagged", rep.ReviewsFlagged,
		"users", rep.UsersAggregated,
	)
}
