package application_test

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// --- Mock implementations ---

// memBackend is an in-memory driven.CacheBackend that copies snapshots on
// every Load/Save, like a real persisted store.
type memBackend struct {
	mu      sync.Mutex
	snap    model.CacheSnapshot
	loadErr error
	saveErr error
	saves   int
}

func (b *memBackend) Load(_ context.Context) (model.CacheSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return model.CacheSnapshot{}, b.loadErr
	}
	return copySnapshot(b.snap), nil
}

func (b *memBackend) Save(_ context.Context, snap model.CacheSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saves++
	b.snap = copySnapshot(snap)
	return nil
}

func (b *memBackend) stored() model.CacheSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copySnapshot(b.snap)
}

func copySnapshot(s model.CacheSnapshot) model.CacheSnapshot {
	out := model.CacheSnapshot{CredentialFingerprint: s.CredentialFingerprint}
	if s.Entries == nil {
		return out
	}
	out.Entries = make(map[model.CacheNamespace]map[string]model.CacheEntry, len(s.Entries))
	for ns, entries := range s.Entries {
		out.Entries[ns] = maps.Clone(entries)
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type mockActivityClient struct {
	mu sync.Mutex

	user    *model.UserMeta
	userErr error

	events    []model.RawEvent
	eventsErr error

	projects    map[int64]*model.ProjectMeta
	projectErrs map[int64]error
	projectGate chan struct{}

	commits    map[int64][]model.RawCommit
	commitErrs map[int64]error

	projectCalls map[int64]int
	userCalls    int
	userRef      string
	after        time.Time
	before       time.Time
	commitQuery  driven.CommitQuery
}

func (m *mockActivityClient) CurrentUser(_ context.Context) (*model.UserMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userCalls++
	if m.userErr != nil {
		return nil, m.userErr
	}
	u := *m.user
	return &u, nil
}

func (m *mockActivityClient) GetUserEvents(_ context.Context, userRef string, after, before time.Time) ([]model.RawEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userRef = userRef
	m.after = after
	m.before = before
	return m.events, m.eventsErr
}

func (m *mockActivityClient) GetProject(_ context.Context, projectID int64) (*model.ProjectMeta, error) {
	if m.projectGate != nil {
		<-m.projectGate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projectCalls == nil {
		m.projectCalls = map[int64]int{}
	}
	m.projectCalls[projectID]++

	if err := m.projectErrs[projectID]; err != nil {
		return nil, err
	}
	p, ok := m.projects[projectID]
	if !ok {
		return nil, &driven.RemoteError{Kind: driven.RemoteErrNotFound, Status: 404}
	}
	out := *p
	return &out, nil
}

func (m *mockActivityClient) GetProjectCommits(_ context.Context, projectID int64, q driven.CommitQuery) ([]model.RawCommit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitQuery = q
	if err := m.commitErrs[projectID]; err != nil {
		return nil, err
	}
	return m.commits[projectID], nil
}

func (m *mockActivityClient) calls(projectID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projectCalls[projectID]
}

// --- Fixtures ---

func project(id int64, name string) *model.ProjectMeta {
	return &model.ProjectMeta{
		ID:                id,
		Name:              name,
		PathWithNamespace: "team/" + name,
		WebURL:            "https://gitlab.example.com/team/" + name,
	}
}

func pushEvent(id string, projectID int64, commitTitle string) model.RawEvent {
	return model.RawEvent{
		ID:         id,
		ProjectID:  projectID,
		ActionName: "pushed to",
		CreatedAt:  time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
		Author:     model.EventAuthor{ID: 7, Name: "Dana Lee", Username: "dana"},
		PushData:   &model.PushData{CommitCount: 1, Ref: "main", RefType: "branch", CommitTitle: commitTitle},
	}
}

func activity(id, title, projectName string) model.Activity {
	return model.Activity{
		ID:          id,
		Kind:        model.ActivityKindCommit,
		Title:       title,
		ProjectName: projectName,
		CreatedAt:   time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}
}
