package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the expired-entry sweep once an hour.
const DefaultSweepSchedule = "@hourly"

// CacheSweeper periodically removes expired entries from a ResponseCache.
type CacheSweeper struct {
	cron   *cron.Cron
	cache  *ResponseCache
	logger *slog.Logger
}

// NewCacheSweeper schedules ClearExpired on the given cron spec.
func NewCacheSweeper(cache *ResponseCache, schedule string, logger *slog.Logger) (*CacheSweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &CacheSweeper{cron: cron.New(), cache: cache, logger: logger}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("add sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep runs one expired-entry sweep.
func (s *CacheSweeper) Sweep() {
	s.logger.Debug("cache sweep started")
	s.cache.ClearExpired(context.Background())
}

// Start begins running the schedule in the background.
func (s *CacheSweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *CacheSweeper) Stop() {
	<-s.cron.Stop().Done()
}
