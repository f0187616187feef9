// Package github implements the RepositorySearcher port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_secondary_ratelimit"

	"github.com/ericfisherdev/kubehub/internal/domain/model"
	"github.com/ericfisherdev/kubehub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepositorySearcher = (*Client)(nil)

// PageSize is the number of items requested per search page (GitHub's maximum).
const PageSize = 100

// DefaultBaseURL is the public GitHub REST API endpoint.
const DefaultBaseURL = "https://api.github.com/"

// Client implements the driven.RepositorySearcher port using the go-github library.
type Client struct {
	gh     *gh.Client
	pacer  Pacer
	logger *slog.Logger
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (rate limit detection, never sleeps or retries)
//  3. go-github (GitHub REST API client, PAT auth when token is non-empty)
//
// A secondary rate limit response is passed straight through to go-github, so
// callers see ErrRateLimited on the first 403/429 instead of a blocked retry.
// baseURL may be empty to use DefaultBaseURL.
func NewClient(token, baseURL string, pacer Pacer, logger *slog.Logger) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	// WithNoSleep in v2.0.2 discards its option, so the zero limit is set directly.
	rateLimitClient := github_ratelimit.NewClient(cacheTransport,
		github_secondary_ratelimit.WithSingleSleepLimit(0, nil),
	)

	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	if baseURL != "" && baseURL != DefaultBaseURL {
		if err := setBaseURL(client, baseURL); err != nil {
			return nil, err
		}
	}

	return &Client{gh: client, pacer: pacer, logger: logger}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, pacer Pacer, logger *slog.Logger) (*Client, error) {
	client := gh.NewClient(httpClient)
	if err := setBaseURL(client, baseURL); err != nil {
		return nil, err
	}

	return &Client{gh: client, pacer: pacer, logger: logger}, nil
}

func setBaseURL(client *gh.Client, baseURL string) error {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return nil
}

// SearchByTopic searches repositories tagged with topic. It keeps requesting
// pages while fewer than minCount repositories have been collected (or always,
// when minCount is zero) and GitHub reports a next page. The pacer is consulted
// before every request.
func (c *Client) SearchByTopic(ctx context.Context, topic string, minCount int) ([]model.Repository, error) {
	query := "topic:" + topic
	opts := &gh.SearchOptions{
		ListOptions: gh.ListOptions{PerPage: PageSize},
	}

	c.logger.Debug("searching github repositories", "topic", topic, "min_count", minCount)

	var allRepos []model.Repository

	for {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting to search %q (page %d): %w", query, opts.Page, err)
		}

		result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
		if err != nil {
			return nil, classifyError(fmt.Sprintf("searching %q (page %d)", query, opts.Page), err)
		}

		c.logRateLimit(resp, query, opts.Page, len(result.Repositories))

		for _, r := range result.Repositories {
			repo, err := mapRepository(r)
			if err != nil {
				return nil, fmt.Errorf("searching %q (page %d): %w", query, opts.Page, err)
			}
			allRepos = append(allRepos, repo)
		}

		if minCount > 0 && len(allRepos) >= minCount {
			break
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allRepos == nil {
		allRepos = []model.Repository{}
	}

	return allRepos, nil
}

// classifyError maps go-github errors onto the driven port's error taxonomy.
// 403 and 429 are both treated as rate limiting; GitHub uses either depending
// on whether the primary or secondary limit tripped.
func classifyError(op string, err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: %w: %w", op, driven.ErrRateLimited, err)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		status := respErr.Response.StatusCode
		if status == http.StatusForbidden || status == http.StatusTooManyRequests {
			return fmt.Errorf("%s: %w: %w", op, driven.ErrRateLimited, err)
		}
		return fmt.Errorf("%s: %w", op, &driven.UpstreamError{StatusCode: status, Err: err})
	}

	return fmt.Errorf("%s: %w", op, err)
}

// mapRepository projects a go-github Repository onto model.Repository.
// Every field except Language is required.
func mapRepository(r *gh.Repository) (model.Repository, error) {
	missing := func(field string) error {
		return fmt.Errorf("repository %d: %w: %s", r.GetID(), driven.ErrMissingField, field)
	}

	switch {
	case r.ID == nil:
		return model.Repository{}, missing("id")
	case r.Name == nil:
		return model.Repository{}, missing("name")
	case r.FullName == nil:
		return model.Repository{}, missing("full_name")
	case r.HTMLURL == nil:
		return model.Repository{}, missing("html_url")
	case r.UpdatedAt == nil:
		return model.Repository{}, missing("updated_at")
	case r.PushedAt == nil:
		return model.Repository{}, missing("pushed_at")
	case r.StargazersCount == nil:
		return model.Repository{}, missing("stargazers_count")
	}

	var language *string
	if r.Language != nil {
		lang := r.GetLanguage()
		language = &lang
	}

	return model.Repository{
		ID:              r.GetID(),
		Name:            r.GetName(),
		FullName:        r.GetFullName(),
		HTMLURL:         r.GetHTMLURL(),
		Language:        language,
		UpdatedAt:       r.GetUpdatedAt().UTC(),
		PushedAt:        r.GetPushedAt().UTC(),
		StargazersCount: r.GetStargazersCount(),
	}, nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func (c *Client) logRateLimit(resp *gh.Response, query string, page, count int) {
	if resp == nil {
		return
	}

	c.logger.Debug("github api call",
		"query", query,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 5 {
		c.logger.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
