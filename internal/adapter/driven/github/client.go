// Package github implements the ActivityClient port using the go-github library.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ActivityClient = (*Client)(nil)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com/"

// pushActionName matches the action name GitLab reports for branch pushes so
// both providers describe pushes the same way.
const pushActionName = "pushed to"

// Client implements the driven.ActivityClient port against the GitHub REST API.
// Repositories play the role of projects and PushEvents the role of push events.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// A baseURL other than DefaultBaseURL selects a GitHub Enterprise server.
func NewClient(token, baseURL string, timeout time.Duration) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	rateLimitClient.Timeout = timeout

	client := gh.NewClient(rateLimitClient).WithAuthToken(token)
	if baseURL != "" && strings.TrimSuffix(baseURL, "/") != strings.TrimSuffix(DefaultBaseURL, "/") {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing enterprise base URL: %w", err)
		}
	}

	return &Client{gh: client}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient).WithAuthToken(token)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// CurrentUser returns the account the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*model.UserMeta, error) {
	u, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, translateError("get current user", err)
	}
	logRateLimit(resp, "user", 0, 1)

	return &model.UserMeta{
		ID:       u.GetID(),
		Username: u.GetLogin(),
		Name:     u.GetName(),
		State:    "active",
		WebURL:   u.GetHTMLURL(),
		Email:    u.GetEmail(),
	}, nil
}

// GetUserEvents retrieves the user's PushEvents created strictly between the
// days of after and before. GitHub returns events newest first, so paging
// stops once a page reaches the lower bound.
func (c *Client) GetUserEvents(ctx context.Context, userRef string, after, before time.Time) ([]model.RawEvent, error) {
	lower := dayStart(after).AddDate(0, 0, 1)
	upper := dayStart(before)

	opts := &gh.ListOptions{PerPage: 100}
	var allEvents []model.RawEvent

	for {
		events, resp, err := c.gh.Activity.ListEventsPerformedByUser(ctx, userRef, false, opts)
		if err != nil {
			return nil, translateError(fmt.Sprintf("list events for %s (page %d)", userRef, opts.Page), err)
		}

		logRateLimit(resp, "users/"+userRef+"/events", opts.Page, len(events))

		reachedLower := false
		for _, ev := range events {
			created := ev.GetCreatedAt().Time
			if created.Before(lower) {
				reachedLower = true
				continue
			}
			if !created.Before(upper) || ev.GetType() != "PushEvent" {
				continue
			}

			raw, err := mapPushEvent(ev)
			if err != nil {
				slog.Warn("skipping malformed push event", "event_id", ev.GetID(), "error", err)
				continue
			}
			allEvents = append(allEvents, raw)
		}

		if reachedLower || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if allEvents == nil {
		allEvents = []model.RawEvent{}
	}

	return allEvents, nil
}

// GetProject returns repository metadata for the given repository id.
func (c *Client) GetProject(ctx context.Context, projectID int64) (*model.ProjectMeta, error) {
	repo, resp, err := c.gh.Repositories.GetByID(ctx, projectID)
	if err != nil {
		return nil, translateError(fmt.Sprintf("get repository %d", projectID), err)
	}
	logRateLimit(resp, "repositories/id", 0, 1)

	return mapRepository(repo), nil
}

// GetProjectCommits lists the repository's commits matching q. GitHub lists
// a single branch per call, so q.All is not honored: RefName or the default
// branch is listed. An empty repository yields an empty slice.
func (c *Client) GetProjectCommits(ctx context.Context, projectID int64, q driven.CommitQuery) ([]model.RawCommit, error) {
	project, err := c.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	owner, repo, err := splitRepo(project.PathWithNamespace)
	if err != nil {
		return nil, err
	}

	author := q.AuthorLogin
	if author == "" {
		author = q.Author
	}
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 100
	}

	opts := &gh.CommitsListOptions{
		SHA:         q.RefName,
		Author:      author,
		Since:       q.Since,
		Until:       q.Until,
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	allCommits := []model.RawCommit{}

	for {
		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, repo, opts)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusConflict {
				// Empty repository.
				return []model.RawCommit{}, nil
			}
			return nil, translateError(fmt.Sprintf("list commits for %s (page %d)", project.PathWithNamespace, opts.Page), err)
		}

		logRateLimit(resp, project.PathWithNamespace+"/commits", opts.Page, len(commits))

		for _, rc := range commits {
			allCommits = append(allCommits, mapCommit(rc))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allCommits, nil
}

// pushPayload is the subset of a PushEvent payload the report uses. It is
// decoded from the raw payload so commit summaries are read when GitHub
// still sends them and silently absent when it does not.
type pushPayload struct {
	Ref     string `json:"ref"`
	Head    string `json:"head"`
	Before  string `json:"before"`
	Size    int    `json:"size"`
	Commits []struct {
		Message string `json:"message"`
	} `json:"commits"`
}

// mapPushEvent converts a go-github PushEvent to a domain RawEvent.
func mapPushEvent(ev *gh.Event) (model.RawEvent, error) {
	var p pushPayload
	if ev.RawPayload != nil {
		if err := json.Unmarshal(*ev.RawPayload, &p); err != nil {
			return model.RawEvent{}, fmt.Errorf("decoding push payload: %w", err)
		}
	}

	// The last listed commit is the newest one, which is what GitLab
	// reports as the push's commit title.
	var title string
	if n := len(p.Commits); n > 0 {
		title, _, _ = strings.Cut(p.Commits[n-1].Message, "\n")
	}

	count := p.Size
	if count == 0 {
		count = len(p.Commits)
	}

	return model.RawEvent{
		ID:         ev.GetID(),
		ProjectID:  ev.GetRepo().GetID(),
		ActionName: pushActionName,
		CreatedAt:  ev.GetCreatedAt().Time,
		Author: model.EventAuthor{
			ID:       ev.GetActor().GetID(),
			Username: ev.GetActor().GetLogin(),
		},
		PushData: &model.PushData{
			CommitCount: count,
			Action:      "pushed",
			RefType:     "branch",
			CommitFrom:  p.Before,
			CommitTo:    p.Head,
			Ref:         strings.TrimPrefix(p.Ref, "refs/heads/"),
			CommitTitle: title,
		},
	}, nil
}

// mapRepository converts a go-github Repository to domain ProjectMeta.
func mapRepository(r *gh.Repository) *model.ProjectMeta {
	return &model.ProjectMeta{
		ID:                r.GetID(),
		Name:              r.GetName(),
		NameWithNamespace: r.GetFullName(),
		Path:              r.GetName(),
		PathWithNamespace: r.GetFullName(),
		WebURL:            r.GetHTMLURL(),
		Description:       r.GetDescription(),
	}
}

// mapCommit converts a go-github RepositoryCommit to a domain RawCommit.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapCommit(rc *gh.RepositoryCommit) model.RawCommit {
	sha := rc.GetSHA()
	short := sha
	if len(short) > 7 {
		short = short[:7]
	}

	message := rc.GetCommit().GetMessage()
	title, _, _ := strings.Cut(message, "\n")

	parents := make([]string, 0, len(rc.Parents))
	for _, p := range rc.Parents {
		parents = append(parents, p.GetSHA())
	}

	return model.RawCommit{
		ID:            sha,
		ShortID:       short,
		Title:         title,
		Message:       message,
		AuthorName:    rc.GetCommit().GetAuthor().GetName(),
		AuthorEmail:   rc.GetCommit().GetAuthor().GetEmail(),
		AuthoredDate:  rc.GetCommit().GetAuthor().GetDate().Time,
		CommittedDate: rc.GetCommit().GetCommitter().GetDate().Time,
		ParentIDs:     parents,
		WebURL:        rc.GetHTMLURL(),
	}
}

// translateError maps a go-github failure onto the RemoteError taxonomy.
func translateError(op string, err error) error {
	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
		respErr  *gh.ErrorResponse
		netErr   net.Error
	)

	re := &driven.RemoteError{Kind: driven.RemoteErrUnknown, Op: op, Err: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		re.Kind = driven.RemoteErrTimeout
	case errors.Is(err, context.Canceled):
		re.Kind = driven.RemoteErrNetwork
	case errors.As(err, &rateErr):
		re.Kind = driven.RemoteErrRateLimit
		re.Status = statusOf(rateErr.Response)
	case errors.As(err, &abuseErr):
		re.Kind = driven.RemoteErrRateLimit
		re.Status = statusOf(abuseErr.Response)
	case errors.As(err, &respErr):
		re.Status = statusOf(respErr.Response)
		re.Kind = driven.KindForStatus(re.Status)
	case errors.As(err, &netErr):
		re.Kind = driven.RemoteErrNetwork
		if netErr.Timeout() {
			re.Kind = driven.RemoteErrTimeout
		}
	}
	return re
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
