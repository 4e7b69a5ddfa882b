// Package gitlab implements the ActivityClient port using the go-gitlab library.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gregjones/httpcache"
	gl "github.com/xanzy/go-gitlab"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ActivityClient = (*Client)(nil)

// DefaultBaseURL is the gitlab.com REST endpoint.
const DefaultBaseURL = "https://gitlab.com/api/v4"

// eventsPerPage is the largest page size GitLab accepts.
const eventsPerPage = 100

// Client implements the driven.ActivityClient port against the GitLab REST API.
type Client struct {
	gl *gl.Client
}

// NewClient creates a new GitLab API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-gitlab (GitLab REST API client with PAT auth, retrying 429 and 5xx)
//
// timeout bounds every individual HTTP request.
func NewClient(token, baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   timeout,
	}

	client, err := gl.NewClient(token, gl.WithBaseURL(baseURL), gl.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	return &Client{gl: client}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
// Retries are disabled so error responses surface immediately.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client, err := gl.NewClient(token,
		gl.WithBaseURL(baseURL),
		gl.WithHTTPClient(httpClient),
		gl.WithCustomRetryMax(0),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}

	return &Client{gl: client}, nil
}

// CurrentUser returns the user the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*model.UserMeta, error) {
	u, resp, err := c.gl.Users.CurrentUser(gl.WithContext(ctx))
	if err != nil {
		return nil, translateError("get current user", resp, err)
	}

	return &model.UserMeta{
		ID:       int64(u.ID),
		Username: u.Username,
		Name:     u.Name,
		State:    u.State,
		WebURL:   u.WebURL,
		Email:    u.Email,
	}, nil
}

// GetUserEvents retrieves the user's push events. GitLab applies after and
// before as exclusive day bounds. It handles pagination automatically.
func (c *Client) GetUserEvents(ctx context.Context, userRef string, after, before time.Time) ([]model.RawEvent, error) {
	afterDay := gl.ISOTime(after)
	beforeDay := gl.ISOTime(before)

	opts := &gl.ListContributionEventsOptions{
		Action: gl.Ptr(gl.PushedEventType),
		After:  &afterDay,
		Before: &beforeDay,
		ListOptions: gl.ListOptions{
			PerPage: eventsPerPage,
		},
	}

	allEvents := []model.RawEvent{}

	for {
		events, resp, err := c.gl.Users.ListUserContributionEvents(userRef, opts, gl.WithContext(ctx))
		if err != nil {
			return nil, translateError(fmt.Sprintf("list events for %s (page %d)", userRef, opts.Page), resp, err)
		}

		slog.Debug("gitlab api call", "endpoint", "users/"+userRef+"/events", "page", opts.Page, "count", len(events))

		for _, ev := range events {
			allEvents = append(allEvents, mapEvent(ev))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allEvents, nil
}

// GetProject returns metadata for a single project.
func (c *Client) GetProject(ctx context.Context, projectID int64) (*model.ProjectMeta, error) {
	p, resp, err := c.gl.Projects.GetProject(int(projectID), nil, gl.WithContext(ctx))
	if err != nil {
		return nil, translateError(fmt.Sprintf("get project %d", projectID), resp, err)
	}

	return &model.ProjectMeta{
		ID:                int64(p.ID),
		Name:              p.Name,
		NameWithNamespace: p.NameWithNamespace,
		Path:              p.Path,
		PathWithNamespace: p.PathWithNamespace,
		WebURL:            p.WebURL,
		Description:       p.Description,
	}, nil
}

// GetProjectCommits lists the project's commits matching q. A project
// without a repository answers 404 and yields an empty slice.
func (c *Client) GetProjectCommits(ctx context.Context, projectID int64, q driven.CommitQuery) ([]model.RawCommit, error) {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 100
	}

	opts := &gl.ListCommitsOptions{
		ListOptions: gl.ListOptions{PerPage: perPage},
	}
	if q.Author != "" {
		opts.Author = gl.Ptr(q.Author)
	}
	if !q.Since.IsZero() {
		opts.Since = gl.Ptr(q.Since)
	}
	if !q.Until.IsZero() {
		opts.Until = gl.Ptr(q.Until)
	}
	if q.RefName != "" {
		opts.RefName = gl.Ptr(q.RefName)
	}
	if q.All {
		opts.All = gl.Ptr(true)
	}

	allCommits := []model.RawCommit{}

	for {
		commits, resp, err := c.gl.Commits.ListCommits(int(projectID), opts, gl.WithContext(ctx))
		if err != nil {
			if errors.Is(err, gl.ErrNotFound) || (resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound) {
				slog.Debug("project has no repository", "project_id", projectID)
				return []model.RawCommit{}, nil
			}
			return nil, translateError(fmt.Sprintf("list commits for project %d (page %d)", projectID, opts.Page), resp, err)
		}

		slog.Debug("gitlab api call", "endpoint", "projects/"+strconv.FormatInt(projectID, 10)+"/repository/commits", "page", opts.Page, "count", len(commits))

		for _, cm := range commits {
			allCommits = append(allCommits, mapCommit(cm))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allCommits, nil
}

// mapEvent converts a go-gitlab ContributionEvent to a domain RawEvent.
func mapEvent(ev *gl.ContributionEvent) model.RawEvent {
	raw := model.RawEvent{
		ID:          strconv.Itoa(ev.ID),
		ProjectID:   int64(ev.ProjectID),
		ActionName:  ev.ActionName,
		TargetType:  ev.TargetType,
		TargetTitle: ev.TargetTitle,
		Author: model.EventAuthor{
			ID:       int64(ev.Author.ID),
			Name:     ev.Author.Name,
			Username: ev.Author.Username,
		},
	}
	if ev.CreatedAt != nil {
		raw.CreatedAt = *ev.CreatedAt
	}
	if raw.Author.ID == 0 {
		raw.Author.ID = int64(ev.AuthorID)
	}
	if raw.Author.Username == "" {
		raw.Author.Username = ev.AuthorUsername
	}

	pd := ev.PushData
	if pd.Ref != "" || pd.CommitCount > 0 || pd.CommitTitle != "" {
		raw.PushData = &model.PushData{
			CommitCount: pd.CommitCount,
			Action:      pd.Action,
			RefType:     pd.RefType,
			CommitFrom:  pd.CommitFrom,
			CommitTo:    pd.CommitTo,
			Ref:         pd.Ref,
			CommitTitle: pd.CommitTitle,
		}
	}
	return raw
}

// mapCommit converts a go-gitlab Commit to a domain RawCommit.
func mapCommit(cm *gl.Commit) model.RawCommit {
	raw := model.RawCommit{
		ID:          cm.ID,
		ShortID:     cm.ShortID,
		Title:       cm.Title,
		Message:     cm.Message,
		AuthorName:  cm.AuthorName,
		AuthorEmail: cm.AuthorEmail,
		ParentIDs:   cm.ParentIDs,
		WebURL:      cm.WebURL,
	}
	if cm.AuthoredDate != nil {
		raw.AuthoredDate = *cm.AuthoredDate
	}
	if cm.CommittedDate != nil {
		raw.CommittedDate = *cm.CommittedDate
	}
	return raw
}

// translateError maps a go-gitlab failure onto the RemoteError taxonomy.
// go-gitlab reports 404 as its ErrNotFound sentinel rather than an
// ErrorResponse; resp, when present, supplies the status.
func translateError(op string, resp *gl.Response, err error) error {
	var (
		respErr *gl.ErrorResponse
		netErr  net.Error
	)

	re := &driven.RemoteError{Kind: driven.RemoteErrUnknown, Op: op, Err: err}
	if resp != nil && resp.Response != nil {
		re.Status = resp.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		re.Kind = driven.RemoteErrTimeout
	case errors.Is(err, context.Canceled):
		re.Kind = driven.RemoteErrNetwork
	case errors.Is(err, gl.ErrNotFound):
		re.Kind = driven.RemoteErrNotFound
		re.Status = http.StatusNotFound
	case errors.As(err, &respErr):
		if respErr.Response != nil {
			re.Status = respErr.Response.StatusCode
		}
		re.Kind = driven.KindForStatus(re.Status)
	case errors.As(err, &netErr):
		re.Kind = driven.RemoteErrNetwork
		if netErr.Timeout() {
			re.Kind = driven.RemoteErrTimeout
		}
	case re.Status != 0:
		re.Kind = driven.KindForStatus(re.Status)
	}
	return re
}
