package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joelkehle/review-refinery/internal/config"
	"github.com/joelkehle/review-refinery/internal/logger"
	"github.com/joelkehle/review-refinery/internal/normalize"
	"github.com/joelkehle/review-refinery/internal/report"
	"github.com/joelkehle/review-refinery/internal/review"
	"github.com/joelkehle/review-refinery/internal/store"
	"github.com/joelkehle/review-refinery/internal/summary"
)

func main() {
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	title := flag.String("title", "", "Book title to summarize")
	out := flag.String("out", "", "Output file (default stdout for md/html)")
	format := flag.String("format", "md", "Output format: md, html or pdf")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New("summary")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}
	if *title == "" {
		log.Fatal("pass -title")
	}
	if *format != "md" && *format != "html" && *format != "pdf" {
		log.Fatalf("unsupported format %q", *format)
	}
	if *format == "pdf" && *out == "" {
		log.Fatal("pdf output requires -out")
	}

	canonical, ok := normalize.Normalize(*title)
	if !ok {
		log.Fatalf("title %q normalizes to nothing", *title)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	summarizer, err := summary.NewAnthropicSummarizerFromEnv()
	if err != nil {
		log.Fatalf("summarizer: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agg, err := st.BookAggregate(ctx, canonical)
	if err != nil {
		log.Fatalf("load aggregate: %v", err)
	}
	if agg == nil {
		log.Fatalf("no aggregate for %q; run the pipeline first", *title)
	}
	reviews, err := st.ReviewsByTitle(ctx, canonical)
	if err != nil {
		log.Fatalf("load reviews: %v", err)
	}

	d := summary.NewDispatcher(summarizer, summary.Config{
		MaxSamples:     cfg.Summary.MaxSamples,
		MaxSampleChars: cfg.Summary.MaxSampleChars,
		Workers:        cfg.Summary.Workers,
	}, logg)
	es := d.SummarizeBook(ctx, agg, reviews)

	var book *review.BookRecord
	if rec, err := st.GetBook(ctx, canonical); err == nil {
		book = &rec
	}

	md := report.BuildMarkdown(agg, book, es)
	var blob []byte
	switch *format {
	case "md":
		blob = []byte(md)
	case "html":
		html, err := report.RenderHTML(md)
		if err != nil {
			log.Fatalf("render html: %v", err)
		}
		blob = []byte(html)
	case "pdf":
		pdf, err := report.NewChromiumPDFRenderer().Render(ctx, md)
		if err != nil {
			log.Fatalf("render pdf: %v", err)
		}
		blob = pdf
	}

	if *out == "" {
		fmt.Print(string(blob))
		return
	}
	if err := os.WriteFile(*out, blob, 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	logg.Info("report written", "path", *out, "format", *format, "buckets", len(es.Buckets))
}
