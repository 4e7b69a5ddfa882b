package application

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// Resolver answers project and user lookups from the response cache,
// falling back to the remote client and populating the cache on success.
// Concurrent lookups of the same key share a single remote call.
type Resolver struct {
	client driven.ActivityClient
	cache  *ResponseCache
	group  singleflight.Group
	logger *slog.Logger
}

// NewResolver creates a Resolver. cache may be nil to disable caching.
func NewResolver(client driven.ActivityClient, cache *ResponseCache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, cache: cache, logger: logger}
}

// Project returns metadata for projectID.
func (r *Resolver) Project(ctx context.Context, projectID int64) (*model.ProjectMeta, error) {
	key := model.CacheKey(projectID)

	var cached model.ProjectMeta
	if r.cache != nil && r.cache.GetJSON(ctx, model.NamespaceProjects, key, &cached) {
		return &cached, nil
	}

	v, err, shared := r.group.Do("project:"+key, func() (any, error) {
		project, err := r.client.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			r.cache.SetJSON(ctx, model.NamespaceProjects, key, project)
		}
		return project, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve project %d: %w", projectID, err)
	}
	if shared {
		r.logger.Debug("project lookup shared", "project_id", projectID)
	}

	project := *v.(*model.ProjectMeta)
	return &project, nil
}

// CurrentUser returns the user the credential belongs to. The lookup always
// goes to the remote API so an invalid credential is detected before a run;
// the result is cached under its id.
func (r *Resolver) CurrentUser(ctx context.Context) (*model.UserMeta, error) {
	v, err, _ := r.group.Do("user:current", func() (any, error) {
		user, err := r.client.CurrentUser(ctx)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			r.cache.SetJSON(ctx, model.NamespaceUsers, model.CacheKey(user.ID), user)
		}
		return user, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}

	user := *v.(*model.UserMeta)
	return &user, nil
}

// CachedUser returns a previously cached user by id.
func (r *Resolver) CachedUser(ctx context.Context, userID int64) (*model.UserMeta, bool) {
	if r.cache == nil {
		return nil, false
	}
	var user model.UserMeta
	if !r.cache.GetJSON(ctx, model.NamespaceUsers, model.CacheKey(userID), &user) {
		return nil, false
	}
	return &user, true
}
