package model

import "time"

// PushData is the push summary attached to a push event.
type PushData struct {
	CommitCount int
	Action      string
	RefType     string
	CommitFrom  string
	CommitTo    string
	Ref         string
	CommitTitle string
}

// EventAuthor identifies who performed an event.
type EventAuthor struct {
	ID       int64
	Name     string
	Username string
}

// RawEvent is a user event as returned by the remote API, validated at the
// client boundary. PushData is nil for non-push events.
type RawEvent struct {
	ID          string
	ProjectID   int64
	ActionName  string
	TargetType  string
	TargetTitle string
	CreatedAt   time.Time
	Author      EventAuthor
	PushData    *PushData
}

// RawCommit is a commit from a project's commit list.
type RawCommit struct {
	ID            string
	ShortID       string
	Title         string
	Message       string
	AuthorName    string
	AuthorEmail   string
	AuthoredDate  time.Time
	CommittedDate time.Time
	ParentIDs     []string
	WebURL        string
}

// ProjectMeta is the project metadata the pipeline needs. It is cached as JSON.
type ProjectMeta struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	NameWithNamespace string `json:"name_with_namespace"`
	Path              string `json:"path"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
	Description       string `json:"description,omitempty"`
}

// UserMeta is the authenticated user. It is cached as JSON.
type UserMeta struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	State    string `json:"state,omitempty"`
	WebURL   string `json:"web_url,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Ref returns the identifier used to address the user in API paths:
// the username when known, otherwise the numeric id.
func (u UserMeta) Ref() string {
	if u.Username != "" {
		return u.Username
	}
	return formatID(u.ID)
}
