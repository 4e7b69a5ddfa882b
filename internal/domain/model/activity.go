package model

import "time"

// UnknownAuthorID is assigned to activities whose author id cannot be
// determined from the source record (commit-list ingestion).
const UnknownAuthorID int64 = 0

// Activity is a normalized unit of user work derived from one raw event or
// commit. Category is empty until the activity has been classified.
type Activity struct {
	ID          string
	Kind        ActivityKind
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time // Zero when the source does not report it.
	ProjectName string
	ProjectID   int64
	Author      string
	AuthorID    int64
	WebURL      string
	State       string
	Labels      []string
	Action      string
	Category    Category
}

// SearchText returns the text the classifier scans: title and description
// joined by a single space.
func (a Activity) SearchText() string {
	if a.Description == "" {
		return a.Title
	}
	return a.Title + " " + a.Description
}

// WithCategory returns a copy of the activity tagged with the given category.
// Labels are copied so the result shares no mutable state with the receiver.
func (a Activity) WithCategory(c Category) Activity {
	out := a
	if a.Labels != nil {
		out.Labels = append([]string(nil), a.Labels...)
	}
	out.Category = c
	return out
}
