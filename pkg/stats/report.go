package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/github-stars-collector/pkg/github"
)

// RenderRepositories lists every collected repository with its metrics, in
// collection order. Timestamps the API never reported are left out of the
// entry rather than shown as zero values.
func RenderRepositories(records []github.Repository, now time.Time) string {
	var b strings.Builder

	for i, r := range records {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, r.NameWithOwner)
		fmt.Fprintf(&b, "    URL:                  %s\n", r.URL)
		fmt.Fprintf(&b, "    Stars:                %d\n", r.Stars)
		if !r.CreatedAt.IsZero() {
			fmt.Fprintf(&b, "    Created:              %s (%.0f days old)\n",
				r.CreatedAt.Format("2006-01-02"), wholeDays(now.Sub(r.CreatedAt)))
		}
		if !r.PushedAt.IsZero() {
			fmt.Fprintf(&b, "    Last push:            %s (%.0f days ago)\n",
				r.PushedAt.Format("2006-01-02"), wholeDays(now.Sub(r.PushedAt)))
		}
		language := r.PrimaryLanguage
		if language == "" {
			language = UnknownLanguage
		}
		fmt.Fprintf(&b, "    Primary language:     %s\n", language)
		fmt.Fprintf(&b, "    Merged pull requests: %d\n", r.MergedPullRequests)
		fmt.Fprintf(&b, "    Releases:             %d\n", r.Releases)
		if r.TotalIssues > 0 {
			fmt.Fprintf(&b, "    Issues closed/total:  %d/%d (ratio %.4f)\n",
				r.ClosedIssues, r.TotalIssues, float64(r.ClosedIssues)/float64(r.TotalIssues))
		} else {
			fmt.Fprintf(&b, "    Issues closed/total:  %d/%d (ratio n/a)\n", r.ClosedIssues, r.TotalIssues)
		}
		b.WriteByte('\n')
	}

	return b.String()
}

// Render formats the summary as a plain-text report for terminal output.
func Render(summary *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Collected repositories: %d\n", summary.Repositories)
	if summary.Repositories == 0 {
		return b.String()
	}

	fmt.Fprintf(&b, "Median stars:                  %.0f\n", summary.MedianStars)
	fmt.Fprintf(&b, "Median age:                    %.0f days\n", summary.MedianAgeDays)
	fmt.Fprintf(&b, "Median merged pull requests:   %.1f\n", summary.MedianMergedPullRequests)
	fmt.Fprintf(&b, "Median releases:               %.1f\n", summary.MedianReleases)
	fmt.Fprintf(&b, "Median days since last update: %.0f\n", summary.MedianDaysSinceUpdate)
	if summary.MedianClosedIssuesRatio != nil {
		fmt.Fprintf(&b, "Median closed issues ratio:    %.2f\n", *summary.MedianClosedIssuesRatio)
	}

	if len(summary.Languages) > 0 {
		b.WriteString("\nBy primary language:\n")
		for _, lang := range summary.Languages {
			fmt.Fprintf(&b, "  %-16s %4d repos  %6.1f merged PRs  %5.1f releases  %5.0f days since update\n",
				lang.Language,
				lang.Repositories,
				lang.MedianMergedPullRequests,
				lang.MedianReleases,
				lang.MedianDaysSinceUpdate,
			)
		}
	}

	return b.String()
}
