package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traction/internal/dataset"
)

// githubTestNow fixes the snapshot day to 2024-03-10.
func githubTestNow() time.Time {
	return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func newGitHubForTest(t *testing.T, handler http.Handler, token string) *GitHub {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter := NewGitHub(srv.URL, token)
	adapter.now = githubTestNow

	return adapter
}

func writeRepoPage(w http.ResponseWriter, start, count int) {
	repos := make([]map[string]any, 0, count)

	for i := range count {
		repos = append(repos, map[string]any{
			"full_name":         fmt.Sprintf("acme/repo-%d", start+i),
			"stargazers_count":  start + i,
			"forks_count":       1,
			"open_issues_count": 2,
		})
	}

	json.NewEncoder(w).Encode(repos)
}

func TestGitHub_Fetch_ListsOwnerAcrossPages(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, githubAcceptHeader, r.Header.Get(headerAccept))
		assert.Equal(t, githubAPIVersion, r.Header.Get(headerGitHubVersion))
		assert.Equal(t, strconv.Itoa(listPageSize), r.URL.Query().Get("per_page"))

		switch r.URL.Query().Get("page") {
		case "1":
			writeRepoPage(w, 0, listPageSize)
		case "2":
			writeRepoPage(w, listPageSize, 3)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	adapter := newGitHubForTest(t, mux, "")

	res, err := adapter.Fetch(context.Background(), Target{Kind: KindGitHub, Selector: "acme"})
	require.NoError(t, err)

	assert.Equal(t, listPageSize+3, res.Entities)
	require.Len(t, res.Records, 3*(listPageSize+3), "three snapshots per repository")

	first := res.Records[0]
	assert.Equal(t, dataset.Day("2024-03-10"), first.Day, "snapshots are dated today")
	assert.Equal(t, "acme/repo-0", first.Entity)
	assert.Equal(t, dataset.SourceGitHubStars, first.Source)
}

func TestGitHub_Fetch_NotListableFallsBackToSingularLookup(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/bob/tool", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"full_name": "bob/tool", "stargazers_count": 7, "forks_count": 3, "open_issues_count": 1}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	adapter := newGitHubForTest(t, mux, "")

	res, err := adapter.Fetch(context.Background(), Target{Kind: KindGitHub, Selector: "bob/tool"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Entities)
	require.Len(t, res.Records, 3)

	wantDay := dataset.Day("2024-03-10")
	assert.Equal(t, dataset.Record{Day: wantDay, Entity: "bob/tool", Source: dataset.SourceGitHubStars, Value: 7}, res.Records[0])
	assert.Equal(t, dataset.Record{Day: wantDay, Entity: "bob/tool", Source: dataset.SourceGitHubForks, Value: 3}, res.Records[1])
	assert.Equal(t, dataset.Record{Day: wantDay, Entity: "bob/tool", Source: dataset.SourceGitHubIssues, Value: 2}, res.Records[2])
}

func TestGitHub_Fetch_EveryFallbackExhaustedFailsHard(t *testing.T) {
	t.Parallel()

	adapter := newGitHubForTest(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), "")

	_, err := adapter.Fetch(context.Background(), Target{Kind: KindGitHub, Selector: "nobody"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "every fallback failed")
}

func TestGitHub_Fetch_RateLimitFailsTarget(t *testing.T) {
	t.Parallel()

	adapter := newGitHubForTest(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerRateLimitRemaining, "0")
		w.WriteHeader(http.StatusForbidden)
	}), "")

	_, err := adapter.Fetch(context.Background(), Target{Kind: KindGitHub, Selector: "acme"})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestGitHub_TokenIsSentAsBearer(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_sekrit", r.Header.Get(headerAuthorization))

		writeRepoPage(w, 0, 1)
	})

	adapter := newGitHubForTest(t, mux, "ghp_sekrit")

	_, err := adapter.Fetch(context.Background(), Target{Kind: KindGitHub, Selector: "acme"})
	require.NoError(t, err)
}

func TestGitHub_Expand_CachesListingForTheRun(t *testing.T) {
	t.Parallel()

	requests := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/users/acme/repos", func(w http.ResponseWriter, _ *http.Request) {
		requests++

		writeRepoPage(w, 0, 2)
	})

	adapter := newGitHubForTest(t, mux, "")

	names, err := adapter.Expand(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/repo-0", "acme/repo-1"}, names)

	// The fetch that follows expansion reuses the cached walk.
	_, err = adapter.Fetch(context.Background(), Target{Kind: KindGitHub, Selector: "acme"})
	require.NoError(t, err)

	assert.Equal(t, 1, requests, "one API walk per selector per run")
}
