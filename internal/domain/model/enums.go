package model

// ActivityKind identifies what kind of source record produced an activity.
type ActivityKind string

const (
	ActivityKindCommit       ActivityKind = "commit"
	ActivityKindMergeRequest ActivityKind = "merge_request"
)

// Source selects which remote listing feeds a report run.
type Source string

const (
	SourceEvents  Source = "events"  // Push events of the current user.
	SourceCommits Source = "commits" // Commit lists of the projects the user pushed to.
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	return s == SourceEvents || s == SourceCommits
}

// CacheNamespace is a logical partition of the response cache.
type CacheNamespace string

const (
	NamespaceUsers    CacheNamespace = "users"
	NamespaceProjects CacheNamespace = "projects"
)

// CacheNamespaces lists every namespace the cache store holds, in display order.
var CacheNamespaces = []CacheNamespace{NamespaceUsers, NamespaceProjects}

// Valid reports whether ns is one of CacheNamespaces.
func (ns CacheNamespace) Valid() bool {
	return ns == NamespaceUsers || ns == NamespaceProjects
}
