// Package export writes collected runs to their sinks: CSV and JSON files,
// a MySQL table, and a Kafka topic.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/github-stars-collector/pkg/github"
)

var csvHeader = []string{
	"name_with_owner",
	"url",
	"stars",
	"primary_language",
	"created_at",
	"pushed_at",
	"merged_pull_requests",
	"releases",
	"total_issues",
	"closed_issues",
}

// WriteCSV writes the records as CSV with a header row. Timestamps are
// RFC 3339 in UTC; zero timestamps stay empty.
func WriteCSV(w io.Writer, records []github.Repository) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.NameWithOwner,
			r.URL,
			strconv.Itoa(r.Stars),
			r.PrimaryLanguage,
			formatTime(r.CreatedAt),
			formatTime(r.PushedAt),
			strconv.Itoa(r.MergedPullRequests),
			strconv.Itoa(r.Releases),
			strconv.Itoa(r.TotalIssues),
			strconv.Itoa(r.ClosedIssues),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %s: %w", r.NameWithOwner, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the records to a CSV file, replacing any existing one.
func WriteCSVFile(path string, records []github.Repository) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
