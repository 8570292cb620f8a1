// Package stats computes summary metrics over a collected repository set:
// medians for age, activity, and popularity, plus per-language breakdowns.
package stats

import (
	"sort"
	"time"

	"github.com/Sternrassler/github-stars-collector/pkg/github"
)

// UnknownLanguage groups repositories without a primary language.
const UnknownLanguage = "Unknown"

// Summary holds the aggregated metrics of one collected set.
type Summary struct {
	// Repositories is the number of records aggregated.
	Repositories int `json:"repositories"`

	// MedianStars is the median stargazer count.
	MedianStars float64 `json:"median_stars"`

	// MedianAgeDays is the median whole-day age since creation.
	MedianAgeDays float64 `json:"median_age_days"`

	// MedianMergedPullRequests is the median count of merged pull requests.
	MedianMergedPullRequests float64 `json:"median_merged_pull_requests"`

	// MedianReleases is the median release count.
	MedianReleases float64 `json:"median_releases"`

	// MedianDaysSinceUpdate is the median whole-day gap since the last push.
	MedianDaysSinceUpdate float64 `json:"median_days_since_update"`

	// LanguageCounts maps each primary language to its repository count.
	LanguageCounts map[string]int `json:"language_counts"`

	// MedianClosedIssuesRatio is the median closed/total issues ratio.
	// Repositories without issues carry no ratio; when none has issues the
	// field is absent.
	MedianClosedIssuesRatio *float64 `json:"median_closed_issues_ratio,omitempty"`

	// Languages breaks the activity metrics down per language, ordered by
	// repository count descending.
	Languages []LanguageSummary `json:"languages"`
}

// LanguageSummary holds the per-language slice of the metrics.
type LanguageSummary struct {
	Language                 string  `json:"language"`
	Repositories             int     `json:"repositories"`
	MedianMergedPullRequests float64 `json:"median_merged_pull_requests"`
	MedianReleases           float64 `json:"median_releases"`
	MedianDaysSinceUpdate    float64 `json:"median_days_since_update"`
}

type languageAccumulator struct {
	count     int
	prs       []float64
	releases  []float64
	staleness []float64
}

// Summarize computes the summary over records as of now. It is a pure
// function over its inputs; records missing a field are skipped from that
// statistic instead of failing the aggregation.
func Summarize(records []github.Repository, now time.Time) *Summary {
	summary := &Summary{
		Repositories:   len(records),
		LanguageCounts: make(map[string]int),
		Languages:      []LanguageSummary{},
	}

	var (
		stars     []float64
		ages      []float64
		prs       []float64
		releases  []float64
		staleness []float64
		ratios    []float64
	)
	byLanguage := make(map[string]*languageAccumulator)

	for _, repo := range records {
		language := repo.PrimaryLanguage
		if language == "" {
			language = UnknownLanguage
		}
		summary.LanguageCounts[language]++

		acc := byLanguage[language]
		if acc == nil {
			acc = &languageAccumulator{}
			byLanguage[language] = acc
		}
		acc.count++

		stars = append(stars, float64(repo.Stars))
		prs = append(prs, float64(repo.MergedPullRequests))
		releases = append(releases, float64(repo.Releases))
		acc.prs = append(acc.prs, float64(repo.MergedPullRequests))
		acc.releases = append(acc.releases, float64(repo.Releases))

		if !repo.CreatedAt.IsZero() {
			ages = append(ages, wholeDays(now.Sub(repo.CreatedAt)))
		}
		if !repo.PushedAt.IsZero() {
			days := wholeDays(now.Sub(repo.PushedAt))
			staleness = append(staleness, days)
			acc.staleness = append(acc.staleness, days)
		}
		if repo.TotalIssues > 0 {
			ratios = append(ratios, float64(repo.ClosedIssues)/float64(repo.TotalIssues))
		}
	}

	summary.MedianStars = median(stars)
	summary.MedianAgeDays = median(ages)
	summary.MedianMergedPullRequests = median(prs)
	summary.MedianReleases = median(releases)
	summary.MedianDaysSinceUpdate = median(staleness)
	if len(ratios) > 0 {
		ratio := median(ratios)
		summary.MedianClosedIssuesRatio = &ratio
	}

	summary.Languages = languageSummaries(byLanguage)
	return summary
}

// languageSummaries orders the per-language breakdown by repository count
// descending, names ascending on ties.
func languageSummaries(byLanguage map[string]*languageAccumulator) []LanguageSummary {
	out := make([]LanguageSummary, 0, len(byLanguage))
	for language, acc := range byLanguage {
		out = append(out, LanguageSummary{
			Language:                 language,
			Repositories:             acc.count,
			MedianMergedPullRequests: median(acc.prs),
			MedianReleases:           median(acc.releases),
			MedianDaysSinceUpdate:    median(acc.staleness),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Repositories != out[j].Repositories {
			return out[i].Repositories > out[j].Repositories
		}
		return out[i].Language < out[j].Language
	})
	return out
}

// wholeDays truncates a duration to whole days.
func wholeDays(d time.Duration) float64 {
	return float64(int(d.Hours() / 24))
}

// median returns the middle value, averaging the two middles for even-sized
// input. Empty input yields zero.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
