package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// scoreBuckets are the histogram edges for the report's score
// distribution.
var scoreBuckets = []float64{0.2, 0.4, 0.6, 0.8, 1.01}

// FormatReport generates a human-readable run report.
func FormatReport(result *Result) string {
	var b strings.Builder

	b.WriteString("# Scoring Run Report\n")
	if result.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", result.RunID)
	}
	fmt.Fprintf(&b, "Duration: %s\n\n", result.Duration.Round(time.Millisecond))

	// Summary.
	s := result.Summary
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Posts processed: %d\n", s.Posts)
	fmt.Fprintf(&b, "- Immediate alerts: %d\n", s.Immediate)
	fmt.Fprintf(&b, "- Digest entries: %d\n", s.Digest)
	fmt.Fprintf(&b, "- Dropped: %d\n", s.Dropped)
	fmt.Fprintf(&b, "- Failed: %d\n\n", s.Failed)

	// Score distribution.
	b.WriteString("## Score Distribution\n")
	counts := make([]int, len(scoreBuckets))
	for _, rec := range result.Records {
		for i, edge := range scoreBuckets {
			if rec.Score < edge {
				counts[i]++
				break
			}
		}
	}
	lower := 0.0
	for i, edge := range scoreBuckets {
		upper := edge
		if upper > 1 {
			upper = 1
		}
		fmt.Fprintf(&b, "- %.1f-%.1f: %d\n", lower, upper, counts[i])
		lower = edge
	}
	b.WriteString("\n")

	// Top records by score.
	b.WriteString("## Top Records\n")
	if len(result.Records) == 0 {
		b.WriteString("No records.\n")
	} else {
		records := make([]int, len(result.Records))
		for i := range records {
			records[i] = i
		}
		sort.SliceStable(records, func(a, c int) bool {
			return result.Records[records[a]].Score > result.Records[records[c]].Score
		})
		limit := 10
		if len(records) < limit {
			limit = len(records)
		}
		for _, idx := range records[:limit] {
			rec := result.Records[idx]
			line := fmt.Sprintf("- %s: score %.3f", rec.PostID, rec.Score)
			if rec.ROIScore != nil {
				line += fmt.Sprintf(", ROI %.1f/h", *rec.ROIScore)
			}
			if len(rec.KeywordMatches) > 0 {
				line += fmt.Sprintf(" [%s]", strings.Join(rec.KeywordMatches, ", "))
			}
			b.WriteString(line + "\n")
		}
	}

	// Failures.
	if len(result.Failures) > 0 {
		b.WriteString("\n## Failures\n")
		for _, f := range result.Failures {
			fmt.Fprintf(&b, "- %s: %s\n", f.PostID, f.Reason)
		}
	}

	return b.String()
}
