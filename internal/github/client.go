// Package github fetches commit activity from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"commitclock/internal/model"
)

const defaultBaseURL = "https://api.github.com"

// pageSize is the GitHub API maximum per_page value.
const pageSize = 100

// fetchConcurrency bounds the parallel per-repository commit fetches.
const fetchConcurrency = 4

// Options selects whose repositories are scanned.
type Options struct {
	// Org scans all repositories of an organization. Takes precedence
	// over User.
	Org string
	// User scans all repositories of a user.
	User string
	// BaseURL overrides the API endpoint, for tests and GHE.
	BaseURL string
}

// Client is an authenticated GitHub API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	opts       Options
	logger     *zap.Logger
}

// NewClient creates a GitHub client. ts may be nil for anonymous access
// (public repositories only, low rate limit).
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts Options, logger *zap.Logger) (*Client, error) {
	if opts.Org == "" && opts.User == "" {
		return nil, fmt.Errorf("github: either an organization or a user must be configured")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: oauth2.NewClient(ctx, ts),
		baseURL:    opts.BaseURL,
		opts:       opts,
		logger:     logger,
	}, nil
}

// repoResponse is the subset of the repository object the client needs.
type repoResponse struct {
	FullName string `json:"full_name"`
}

// commitResponse is the subset of the commit object the client needs.
type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author struct {
			Name  string    `json:"name"`
			Email string    `json:"email"`
			Date  time.Time `json:"date"`
		} `json:"author"`
		Message string `json:"message"`
	} `json:"commit"`
}

// getPage fetches one API page into out and reports the HTTP status code.
func (c *Client) getPage(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("github API request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("github API error %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding github response: %w", err)
	}
	return resp.StatusCode, nil
}

// Repos lists the full names of all repositories for the configured org or
// user. A missing account or an exhausted rate limit yields an empty list
// rather than an error.
func (c *Client) Repos(ctx context.Context) ([]string, error) {
	target := fmt.Sprintf("%s/orgs/%s/repos", c.baseURL, url.PathEscape(c.opts.Org))
	if c.opts.Org == "" {
		target = fmt.Sprintf("%s/users/%s/repos", c.baseURL, url.PathEscape(c.opts.User))
	}

	var repos []string
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s?type=all&per_page=%d&page=%d", target, pageSize, page)
		var batch []repoResponse
		status, err := c.getPage(ctx, endpoint, &batch)
		if status == http.StatusNotFound || status == http.StatusForbidden {
			c.logger.Warn("repository listing unavailable",
				zap.Int("status", status), zap.Error(err))
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, r := range batch {
			repos = append(repos, r.FullName)
		}
		if len(batch) < pageSize {
			return repos, nil
		}
	}
}

// Commits fetches commits of one repository within [since, until]. An empty
// repository (HTTP 409) yields an empty list.
func (c *Client) Commits(ctx context.Context, repo string, since, until time.Time) ([]model.Commit, error) {
	var commits []model.Commit
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("%s/repos/%s/commits?since=%s&until=%s&per_page=%d&page=%d",
			c.baseURL, repo,
			url.QueryEscape(since.Format(time.RFC3339)),
			url.QueryEscape(until.Format(time.RFC3339)),
			pageSize, page)

		var batch []commitResponse
		status, err := c.getPage(ctx, endpoint, &batch)
		if status == http.StatusConflict {
			// Empty repository.
			return commits, nil
		}
		if err != nil {
			return nil, err
		}
		for _, raw := range batch {
			commits = append(commits, model.Commit{
				SHA:       raw.SHA,
				Author:    raw.Commit.Author.Name,
				Repo:      repo,
				Timestamp: raw.Commit.Author.Date,
				Message:   raw.Commit.Message,
			})
		}
		if len(batch) < pageSize {
			return commits, nil
		}
	}
}

// FetchAll lists the configured repositories and fetches their commits
// within [since, until], a few repositories at a time. Per-repository
// failures are logged and skipped so one broken repository cannot block
// the rest of the feed.
func (c *Client) FetchAll(ctx context.Context, since, until time.Time) ([]model.Commit, error) {
	repos, err := c.Repos(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("fetching commits",
		zap.Int("repos", len(repos)),
		zap.Time("since", since), zap.Time("until", until))

	var (
		mu  sync.Mutex
		all []model.Commit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, repo := range repos {
		g.Go(func() error {
			commits, err := c.Commits(gctx, repo, since, until)
			if err != nil {
				c.logger.Warn("skipping repository",
					zap.String("repo", repo), zap.Error(err))
				return nil
			}
			mu.Lock()
			all = append(all, commits...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.logger.Info("commits fetched", zap.Int("count", len(all)))
	return all, nil
}
