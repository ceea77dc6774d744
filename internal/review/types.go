package review

import "time"

type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// Review is a single book review as it moves through the pipeline.
// Ingestion fills the identity fields; TextNormalizer adds NormalizedText,
// SentimentValidator adds Label/Compound and the discrepancy fields, and
// DeduplicationEngine writes GroupID. Nothing else mutates a review.
type Review struct {
	ID             string
	Title          string
	CanonicalTitle string
	UserID         string
	Text           string
	NormalizedText string
	Label          Label
	Compound       float64
	Flagged        bool
	Severity       Severity
	Discrepancy    float64
	GroupID        string
	CreatedAt      time.Time
}

// Severity ranks a label/compound disagreement. SeverityNone means the label
// and score agree.
type Severity string

const (
	SeverityNone   Severity = ""
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DuplicateGroup is a set of near-identical reviews with one canonical member.
// Every review belongs to exactly one group; a singleton group is the common
// case. The group ID is the canonical member's review ID.
type DuplicateGroup struct {
	ID        string
	Canonical string
	Members   []string
}

type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "unenriched"
)

// BookRecord is the canonical identity of a book plus whatever metadata
// enrichment managed to fetch. Enrichment fields may stay empty when the
// catalog has no match; that never blocks other records.
type BookRecord struct {
	Title            string
	DisplayTitle     string
	Authors          []string
	Publisher        string
	Categories       []string
	PublishedYear    int
	Enrichment       EnrichmentStatus
	EnrichmentReason string
	MatchedTitle     string
	MatchSimilarity  float64
}

// BookAggregate is a per-book rollup recomputed from canonical reviews.
type BookAggregate struct {
	Title          string
	ReviewCount    int
	PositiveCount  int
	NegativeCount  int
	NeutralCount   int
	NegativePct    float64
	MeanCompound   float64
	Authors        []string
	Categories     []string
	ProblemScore   float64
	Risk           string
	ROIEstimate    float64
	Recommendation string
}

// UserAggregate is a per-user rollup feeding diversity scoring.
type UserAggregate struct {
	UserID             string
	ReviewCount        int
	DistinctLabels     int
	DistinctCategories int
	PositiveCount      int
	NegativeCount      int
	NeutralCount       int
	MeanCompound       float64
	DiversityScore     float64
	Segment            string
}

// RunReport summarizes one pipeline run so an operator can judge run quality
// without reprocessing.
type RunReport struct {
	RunID            string
	StartedAt        time.Time
	CompletedAt      time.Time
	ReviewsIngested  int
	ReviewsSkipped   int
	ReviewsProcessed int
	DuplicateGroups  int
	DuplicatesFound  int
	BooksTotal       int
	BooksEnriched    int
	BooksUnenriched  int
	ReviewsFlagged   int
	UsersAggregated  int
}
