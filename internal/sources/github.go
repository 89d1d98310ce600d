package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
)

const (
	// DefaultGitHubBaseURL is the production GitHub REST API root.
	DefaultGitHubBaseURL = "https://api.github.com"

	// listPageSize is the repositories-per-page request size; a page
	// shorter than this signals exhaustion.
	listPageSize = 100

	githubAcceptHeader  = "application/vnd.github+json"
	githubAPIVersion    = "2022-11-28"
	headerAccept        = "Accept"
	headerGitHubVersion = "X-GitHub-Api-Version"
)

// GitHub is the paginated-listing adapter. A selector is first treated as
// an owner whose repositories are enumerated page by page; a not-found
// answer means the selector does not designate a listable owner and the
// adapter falls back to a singular repository lookup. Only when every
// fallback fails does the target fail hard.
//
// Each listed repository yields three snapshot records dated today: star,
// fork, and open-issue counts. Snapshots capture current state and are not
// reconstructable historically.
type GitHub struct {
	client  *client
	baseURL string
	token   string
	now     func() time.Time

	// expanded caches one run's listings keyed by selector, so the
	// coordinator's expansion phase and the fetch that follows share a
	// single API walk. Discarded with the adapter at run end.
	expanded map[string][]repoCounts
}

var (
	_ Fetcher  = (*GitHub)(nil)
	_ Expander = (*GitHub)(nil)
)

// NewGitHub creates the adapter. An empty baseURL selects production; an
// empty token sends unauthenticated requests (lower rate limits, public
// objects only).
func NewGitHub(baseURL, token string) *GitHub {
	if baseURL == "" {
		baseURL = DefaultGitHubBaseURL
	}

	return &GitHub{
		client:   newClient(),
		baseURL:  baseURL,
		token:    token,
		now:      time.Now,
		expanded: make(map[string][]repoCounts),
	}
}

// Kind identifies the adapter.
func (g *GitHub) Kind() Kind {
	return KindGitHub
}

// repoCounts mirrors the repository fields the snapshots need.
type repoCounts struct {
	FullName   string `json:"full_name"`
	Stars      int64  `json:"stargazers_count"`
	Forks      int64  `json:"forks_count"`
	OpenIssues int64  `json:"open_issues_count"`
}

// Expand resolves a selector to concrete repository names, walking the
// owner listing or falling back to the singular lookup. Results are cached
// for the run.
func (g *GitHub) Expand(ctx context.Context, selector string) ([]string, error) {
	repos, expandErr := g.expand(ctx, selector)
	if expandErr != nil {
		return nil, expandErr
	}

	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.FullName)
	}

	return names, nil
}

// Fetch emits the three snapshot records per repository, dated today.
func (g *GitHub) Fetch(ctx context.Context, tgt Target) (Result, error) {
	repos, expandErr := g.expand(ctx, tgt.Selector)
	if expandErr != nil {
		return Result{}, expandErr
	}

	today := dataset.DayOf(g.now())
	records := make([]dataset.Record, 0, 3*len(repos))

	for _, repo := range repos {
		records = append(records,
			dataset.Record{Day: today, Entity: repo.FullName, Source: dataset.SourceGitHubStars, Value: repo.Stars},
			dataset.Record{Day: today, Entity: repo.FullName, Source: dataset.SourceGitHubForks, Value: repo.Forks},
			dataset.Record{Day: today, Entity: repo.FullName, Source: dataset.SourceGitHubIssues, Value: repo.OpenIssues},
		)
	}

	return Result{Records: records, Entities: len(repos)}, nil
}

func (g *GitHub) expand(ctx context.Context, selector string) ([]repoCounts, error) {
	if repos, ok := g.expanded[selector]; ok {
		return repos, nil
	}

	repos, listErr := g.listOwnerRepos(ctx, selector)
	if errors.Is(listErr, ErrNotFound) {
		// Not a listable owner; the selector may name a single repository.
		repo, lookupErr := g.lookupRepo(ctx, selector)
		if lookupErr != nil {
			return nil, fmt.Errorf("github %s: every fallback failed: %w", selector, lookupErr)
		}

		repos = []repoCounts{repo}
		listErr = nil
	}

	if listErr != nil {
		return nil, fmt.Errorf("github %s: %w", selector, listErr)
	}

	g.expanded[selector] = repos

	return repos, nil
}

// listOwnerRepos walks numbered pages until one comes back short.
func (g *GitHub) listOwnerRepos(ctx context.Context, owner string) ([]repoCounts, error) {
	var repos []repoCounts

	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/users/%s/repos?per_page=%d&page=%d", g.baseURL, owner, listPageSize, page)

		var batch []repoCounts

		getErr := g.client.getJSON(ctx, endpoint, g.header(), &batch)
		if getErr != nil {
			return nil, getErr
		}

		repos = append(repos, batch...)

		if len(batch) < listPageSize {
			return repos, nil
		}
	}
}

func (g *GitHub) lookupRepo(ctx context.Context, fullName string) (repoCounts, error) {
	endpoint := fmt.Sprintf("%s/repos/%s", g.baseURL, fullName)

	var repo repoCounts

	getErr := g.client.getJSON(ctx, endpoint, g.header(), &repo)
	if getErr != nil {
		return repoCounts{}, getErr
	}

	return repo, nil
}

func (g *GitHub) header() http.Header {
	header := http.Header{}
	header.Set(headerAccept, githubAcceptHeader)
	header.Set(headerGitHubVersion, githubAPIVersion)

	if g.token != "" {
		header.Set(headerAuthorization, "Bearer "+g.token)
	}

	return header
}
