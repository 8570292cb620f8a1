package github

import (
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the GitHub GraphQL API endpoint.
	DefaultEndpoint = "https://api.github.com/graphql"

	// DefaultSearchQuery selects public repositories ordered by stars,
	// descending.
	DefaultSearchQuery = "stars:>1 sort:stars-desc is:public"

	// MaxPageSize is the largest page the search API serves per call.
	MaxPageSize = 100

	// SearchResultCap is the deepest the search API paginates for a single
	// query; results beyond it are unreachable regardless of credentials.
	SearchResultCap = 1000
)

// searchDocument is the GraphQL query executed for every page.
const searchDocument = `
query ($searchQuery: String!, $first: Int!, $after: String) {
  search(query: $searchQuery, type: REPOSITORY, first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    nodes {
      ... on Repository {
        nameWithOwner
        url
        stargazerCount
        createdAt
        pushedAt
        primaryLanguage {
          name
        }
        pullRequests(states: MERGED, first: 1) {
          totalCount
        }
        releases(first: 1) {
          totalCount
        }
        totalIssues: issues(first: 1) {
          totalCount
        }
        closedIssues: issues(states: CLOSED, first: 1) {
          totalCount
        }
      }
    }
  }
}
`

// graphqlRequest is the POST body sent to the GraphQL endpoint.
type graphqlRequest struct {
	Query     string          `json:"query"`
	Variables searchVariables `json:"variables"`
}

type searchVariables struct {
	SearchQuery string  `json:"searchQuery"`
	First       int     `json:"first"`
	After       *string `json:"after"`
}

// graphqlResponse is the wire shape of a search response. GraphQL reports
// errors in-band with HTTP 200, so both fields can be present.
type graphqlResponse struct {
	Data   *searchData    `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type graphqlError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type searchData struct {
	Search struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Nodes []*repositoryNode `json:"nodes"`
	} `json:"search"`
}

type repositoryNode struct {
	NameWithOwner   string    `json:"nameWithOwner"`
	URL             string    `json:"url"`
	StargazerCount  int       `json:"stargazerCount"`
	CreatedAt       time.Time `json:"createdAt"`
	PushedAt        time.Time `json:"pushedAt"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
	PullRequests countField `json:"pullRequests"`
	Releases     countField `json:"releases"`
	TotalIssues  countField `json:"totalIssues"`
	ClosedIssues countField `json:"closedIssues"`
}

type countField struct {
	TotalCount int `json:"totalCount"`
}

// toRepository flattens the wire shape into the public record.
func (n *repositoryNode) toRepository() Repository {
	repo := Repository{
		NameWithOwner:      n.NameWithOwner,
		URL:                n.URL,
		Stars:              n.StargazerCount,
		CreatedAt:          n.CreatedAt,
		PushedAt:           n.PushedAt,
		MergedPullRequests: n.PullRequests.TotalCount,
		Releases:           n.Releases.TotalCount,
		TotalIssues:        n.TotalIssues.TotalCount,
		ClosedIssues:       n.ClosedIssues.TotalCount,
	}
	if n.PrimaryLanguage != nil {
		repo.PrimaryLanguage = n.PrimaryLanguage.Name
	}
	return repo
}

// isRateLimitError reports whether a GraphQL error list signals rate
// limiting. GitHub uses the RATE_LIMITED type; the message check covers
// older and secondary-limit phrasings.
func isRateLimitError(errs []graphqlError) bool {
	for _, e := range errs {
		if e.Type == "RATE_LIMITED" {
			return true
		}
		if strings.Contains(strings.ToLower(e.Message), "rate limit") {
			return true
		}
	}
	return false
}

// joinErrorMessages flattens GraphQL errors into one message string.
func joinErrorMessages(errs []graphqlError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Type != "" {
			msgs = append(msgs, e.Type+": "+e.Message)
			continue
		}
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}
