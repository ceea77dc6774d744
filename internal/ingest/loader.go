// Package ingest loads the raw review corpus from disk. The source dataset
// ships as Parquet; JSONL and CSV are accepted for smaller extracts and test
// fixtures. Rows missing both a title and text are skipped, not fatal.
package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/joelkehle/review-refinery/internal/review"
)

// RawReview mirrors one row of the source dataset. Field tags cover all
// three formats; the Parquet schema is derived from the struct.
type RawReview struct {
	ID        string `parquet:"review_id" json:"review_id"`
	Title     string `parquet:"title" json:"title"`
	UserID    string `parquet:"user_id" json:"user_id"`
	Text      string `parquet:"text" json:"text"`
	CreatedAt int64  `parquet:"created_at" json:"created_at"`
}

type Loader struct {
	path string
	log  *slog.Logger
}

func NewLoader(path string, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{path: path, log: log}
}

// Result carries the loaded reviews plus how many rows were dropped for
// missing identity fields.
type Result struct {
	Reviews []review.Review
	Skipped int
}

// Load reads the whole corpus, sniffing the format from the file extension.
func (l *Loader) Load() (Result, error) {
	ext := strings.ToLower(filepath.Ext(l.path))
	var raw []RawReview
	var err error
	switch ext {
	case ".parquet":
		raw, err = l.loadParquet()
	case ".jsonl", ".json":
		raw, err = l.loadJSONL()
	case ".csv":
		raw, err = l.loadCSV()
	default:
		return Result{}, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl, .csv)", ext)
	}
	if err != nil {
		return Result{}, err
	}
	return convert(raw), nil
}

func convert(raw []RawReview) Result {
	var res Result
	seq := 0
	for _, r := range raw {
		if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Text) == "" {
			res.Skipped++
			continue
		}
		seq++
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("row-%d", seq)
		}
		rv := review.Review{
			ID:     id,
			Title:  r.Title,
			UserID: r.UserID,
			Text:   r.Text,
		}
		if r.CreatedAt > 0 {
			rv.CreatedAt = time.Unix(r.CreatedAt, 0).UTC()
		}
		res.Reviews = append(res.Reviews, rv)
	}
	return res
}

func (l *Loader) loadParquet() ([]RawReview, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	l.log.Debug("parquet opened", "path", l.path, "rows", pf.NumRows(), "row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[RawReview](pf)
	defer reader.Close()

	var records []RawReview
	rows := make([]RawReview, 128)
	for {
		n, err := reader.Read(rows)
		if n > 0 {
			records = append(records, rows[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet after %d rows: %w", len(records), err)
		}
	}
	return records, nil
}

func (l *Loader) loadJSONL() ([]RawReview, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	var records []RawReview
	scanner := bufio.NewScanner(file)
	const maxCapacity = 10 * 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record RawReview
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parse line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return records, nil
}

func (l *Loader) loadCSV() ([]RawReview, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []RawReview
	lineNum := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("parse csv line %d: %w", lineNum, err)
		}
		rec := RawReview{
			ID:     field(row, "review_id"),
			Title:  field(row, "title"),
			UserID: field(row, "user_id"),
			Text:   field(row, "text"),
		}
		if ts := field(row, "created_at"); ts != "" {
			if v, err := strconv.ParseInt(ts, 10, 64); err == nil {
				rec.CreatedAt = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
