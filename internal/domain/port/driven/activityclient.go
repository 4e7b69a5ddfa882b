package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

// CommitQuery filters a project commit listing. Zero values are omitted.
// Author is the display name; providers that filter by account use
// AuthorLogin instead.
type CommitQuery struct {
	Author      string
	AuthorLogin string
	Since       time.Time
	Until       time.Time
	RefName     string
	PerPage     int
	All         bool
}

// ActivityClient defines the driven port for the remote project-hosting API.
// Implementations own transport, retries and timeouts, and translate every
// failure into a *RemoteError before returning it.
type ActivityClient interface {
	// CurrentUser returns the user the configured credential belongs to.
	CurrentUser(ctx context.Context) (*model.UserMeta, error)

	// GetUserEvents returns the push events of the user strictly after the
	// day of after and strictly before the day of before. userRef is a
	// username or a numeric id.
	GetUserEvents(ctx context.Context, userRef string, after, before time.Time) ([]model.RawEvent, error)

	// GetProject returns metadata for a single project.
	GetProject(ctx context.Context, projectID int64) (*model.ProjectMeta, error)

	// GetProjectCommits lists commits of a project. It returns an empty slice
	// rather than an error when the project has no repository.
	GetProjectCommits(ctx context.Context, projectID int64, q CommitQuery) ([]model.RawCommit, error)
}
