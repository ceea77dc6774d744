// Package report renders a book's executive summary as markdown, HTML, and
// PDF. Rendering is presentation only; it never recomputes scores.
package report

import (
	"fmt"
	"strings"

	"github.com/joelkehle/review-refinery/internal/review"
	"github.com/joelkehle/review-refinery/internal/summary"
)

// BuildMarkdown assembles the executive report for one book. Buckets whose
// summarization failed render as an explicit note rather than disappearing;
// a silently missing section would read as "no reviews of this polarity".
func BuildMarkdown(agg *review.BookAggregate, book *review.BookRecord, es summary.ExecutiveSummary) string {
	var b strings.Builder

	title := es.Title
	if book != nil && book.DisplayTitle != "" {
		title = book.DisplayTitle
	}
	fmt.Fprintf(&b, "# Review Summary: %s\n\n", title)

	if book != nil {
		if len(book.Authors) > 0 {
			fmt.Fprintf(&b, "**Authors:** %s\n\n", strings.Join(book.Authors, ", "))
		}
		if book.Publisher != "" || book.PublishedYear > 0 {
			line := book.Publisher
			if book.PublishedYear > 0 {
				if line != "" {
					line += ", "
				}
				line += fmt.Sprintf("%d", book.PublishedYear)
			}
			fmt.Fprintf(&b, "**Published:** %s\n\n", line)
		}
		if len(book.Categories) > 0 {
			fmt.Fprintf(&b, "**Categories:** %s\n\n", strings.Join(book.Categories, ", "))
		}
	}

	if len(es.Insights) > 0 {
		b.WriteString("## Key Insights\n\n")
		for _, in := range es.Insights {
			fmt.Fprintf(&b, "- %s\n", in)
		}
		b.WriteString("\n")
	}

	if agg != nil && agg.ReviewCount > 0 {
		b.WriteString("## Metrics\n\n")
		b.WriteString("| Metric | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Reviews | %d |\n", agg.ReviewCount)
		fmt.Fprintf(&b, "| Positive / Negative / Neutral | %d / %d / %d |\n",
			agg.PositiveCount, agg.NegativeCount, agg.NeutralCount)
		fmt.Fprintf(&b, "| Mean compound | %.3f |\n", agg.MeanCompound)
		fmt.Fprintf(&b, "| Problem score | %.1f (%s risk) |\n", agg.ProblemScore, agg.Risk)
		fmt.Fprintf(&b, "| ROI estimate | %.2f |\n", agg.ROIEstimate)
		if agg.Recommendation != "" {
			fmt.Fprintf(&b, "| Recommendation | %s |\n", agg.Recommendation)
		}
		b.WriteString("\n")
	}

	for _, bucket := range es.Buckets {
		fmt.Fprintf(&b, "## %s Reviews (%d)\n\n", titleCase(string(bucket.Label)), bucket.ReviewCount)
		if bucket.Absent {
			fmt.Fprintf(&b, "_Summary unavailable: %s_\n\n", bucket.Reason)
			continue
		}
		fmt.Fprintf(&b, "%s\n\n", bucket.Text)
	}

	if !es.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "---\n\nGenerated %s\n", es.GeneratedAt.Format("January 2, 2006 15:04 MST"))
	}
	return b.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
