package github

import (
	"time"

	"github.com/Sternrassler/github-stars-collector/pkg/quota"
)

// Repository is one collected repository record. The pagination engine treats
// it as opaque; only the aggregation and export layers read its fields.
type Repository struct {
	NameWithOwner string `json:"nameWithOwner"`
	URL           string `json:"url"`
	Stars         int    `json:"stars"`

	CreatedAt time.Time `json:"createdAt"`
	PushedAt  time.Time `json:"pushedAt"`

	// PrimaryLanguage is empty when GitHub reports none.
	PrimaryLanguage string `json:"primaryLanguage,omitempty"`

	MergedPullRequests int `json:"mergedPullRequests"`
	Releases           int `json:"releases"`
	TotalIssues        int `json:"totalIssues"`
	ClosedIssues       int `json:"closedIssues"`
}

// Page is one batch of search results.
type Page struct {
	// Repositories holds the records in API order.
	Repositories []Repository `json:"repositories"`

	// EndCursor continues pagination after this page. Cursors are
	// credential-agnostic: a cursor obtained under one token replays under
	// another.
	EndCursor string `json:"endCursor"`

	// HasNextPage is false on the final page.
	HasNextPage bool `json:"hasNextPage"`

	// RateLimit is the quota observed on the credential used for this call.
	// Nil when the response carried no rate-limit headers or the page was
	// replayed from cache.
	RateLimit *quota.State `json:"rateLimit,omitempty"`

	// FromCache marks pages replayed from the page cache; they spent no
	// quota.
	FromCache bool `json:"-"`
}
