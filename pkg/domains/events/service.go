package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wahook/pkg/cache"
	"github.com/wahook/pkg/entities"
)

// StatsKeyPrefix namespaces cached aggregates so writes can invalidate them.
const StatsKeyPrefix = "wahook:stats:"

type Service interface {
	Save(ctx context.Context, event *entities.WebhookEvent) (bool, error)
	Count(ctx context.Context) (int64, error)
	RecentMessages(ctx context.Context, limit int) ([]Message, error)
	Search(ctx context.Context, filter SearchFilter) ([]Message, error)
	DailyStats(ctx context.Context, days int) ([]DayStat, error)
	ContactStats(ctx context.Context, limit int) ([]ContactStat, error)
	Info(ctx context.Context) (StoreInfo, error)
}

type service struct {
	repository Repository
	cache      cache.Cache
	log        zerolog.Logger
}

func NewService(r Repository, c cache.Cache, log zerolog.Logger) Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &service{
		repository: r,
		cache:      c,
		log:        log,
	}
}

func (s *service) Save(ctx context.Context, event *entities.WebhookEvent) (bool, error) {
	inserted, err := s.repository.Save(ctx, event)
	if err != nil {
		return false, err
	}
	if inserted {
		if err := s.cache.DeletePrefix(ctx, StatsKeyPrefix); err != nil {
			s.log.Warn().Err(err).Msg("could not invalidate cached stats")
		}
	}
	return inserted, nil
}

func (s *service) Count(ctx context.Context) (int64, error) {
	return s.repository.Count(ctx)
}

func (s *service) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	return s.repository.RecentMessages(ctx, limit)
}

func (s *service) Search(ctx context.Context, filter SearchFilter) ([]Message, error) {
	return s.repository.Search(ctx, filter)
}

func (s *service) DailyStats(ctx context.Context, days int) ([]DayStat, error) {
	key := fmt.Sprintf("%sdaily:%d", StatsKeyPrefix, days)
	var out []DayStat
	if err := s.cache.Get(ctx, key, &out); err == nil {
		return out, nil
	}
	out, err := s.repository.DailyStats(ctx, days)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, out)
	return out, nil
}

func (s *service) ContactStats(ctx context.Context, limit int) ([]ContactStat, error) {
	key := fmt.Sprintf("%scontacts:%d", StatsKeyPrefix, clampLimit(limit))
	var out []ContactStat
	if err := s.cache.Get(ctx, key, &out); err == nil {
		return out, nil
	}
	out, err := s.repository.ContactStats(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, out)
	return out, nil
}

func (s *service) Info(ctx context.Context) (StoreInfo, error) {
	return s.repository.Info(ctx)
}

func (s *service) store(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}
