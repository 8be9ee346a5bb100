package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/wahook/pkg/backup"
	"github.com/wahook/pkg/cache"
	"github.com/wahook/pkg/config"
	"github.com/wahook/pkg/domains/events"
)

var ErrPurgeNotConfirmed = errors.New("purge not confirmed")

// Confirmer gates destructive operations. It is asked once with the number
// of events that would be removed.
type Confirmer interface {
	Confirm(count int64, cutoff time.Time) (bool, error)
}

type ConfirmFunc func(count int64, cutoff time.Time) (bool, error)

func (f ConfirmFunc) Confirm(count int64, cutoff time.Time) (bool, error) {
	return f(count, cutoff)
}

// AutoConfirm approves every purge. Only for purges the operator configured
// ahead of time.
var AutoConfirm Confirmer = ConfirmFunc(func(int64, time.Time) (bool, error) { return true, nil })

type BackupResult struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	Remote string `json:"remote,omitempty"`
}

type Service interface {
	Backup(ctx context.Context) (BackupResult, error)
	Vacuum(ctx context.Context) (int64, error)
	Purge(ctx context.Context, olderThan time.Time, confirm Confirmer) (int64, error)
	StartRetention(ctx context.Context) error
	StopRetention()
}

type service struct {
	repository events.Repository
	cache      cache.Cache
	uploader   backup.Uploader
	backupDir  string
	retention  config.Retention
	log        zerolog.Logger
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewService wires the maintenance operations. uploader may be nil when no
// offsite copy is configured.
func NewService(r events.Repository, c cache.Cache, uploader backup.Uploader, backupDir string, rc config.Retention, log zerolog.Logger) Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &service{
		repository: r,
		cache:      c,
		uploader:   uploader,
		backupDir:  backupDir,
		retention:  rc,
		log:        log.With().Str("component", "maintenance").Logger(),
		now:        time.Now,
	}
}

func (s *service) Backup(ctx context.Context) (BackupResult, error) {
	path, n, err := s.repository.Backup(ctx, s.backupDir)
	if err != nil {
		return BackupResult{}, fmt.Errorf("backup: %w", err)
	}
	res := BackupResult{Path: path, Bytes: n}
	s.log.Info().Str("path", path).Int64("bytes", n).Msg("store backed up")

	if s.uploader != nil {
		remote, err := s.uploader.Upload(ctx, path)
		if err != nil {
			return res, fmt.Errorf("upload backup: %w", err)
		}
		res.Remote = remote
		s.log.Info().Str("remote", remote).Msg("backup uploaded")
	}
	return res, nil
}

func (s *service) Vacuum(ctx context.Context) (int64, error) {
	reclaimed, err := s.repository.Vacuum(ctx)
	if err != nil {
		return 0, fmt.Errorf("vacuum: %w", err)
	}
	s.log.Info().Int64("reclaimed_bytes", reclaimed).Msg("store vacuumed")
	return reclaimed, nil
}

// Purge removes events received before olderThan once confirm approves. A
// nil confirm never approves.
func (s *service) Purge(ctx context.Context, olderThan time.Time, confirm Confirmer) (int64, error) {
	count, err := s.repository.CountOlderThan(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	if confirm == nil {
		return 0, ErrPurgeNotConfirmed
	}
	ok, err := confirm.Confirm(count, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge confirmation: %w", err)
	}
	if !ok {
		return 0, ErrPurgeNotConfirmed
	}

	removed, err := s.repository.PurgeOlderThan(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	if err := s.cache.DeletePrefix(ctx, events.StatsKeyPrefix); err != nil {
		s.log.Warn().Err(err).Msg("could not invalidate cached stats")
	}
	s.log.Info().Int64("removed", removed).Time("cutoff", olderThan).Msg("old events purged")
	return removed, nil
}

// StartRetention schedules the configured purge. It is a no-op when
// retention is disabled.
func (s *service) StartRetention(ctx context.Context) error {
	if !s.retention.Enabled || s.retention.Days <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(s.retention.Schedule, func() {
		s.runRetention(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.retention.Schedule, err)
	}
	c.Start()
	s.cron = c
	s.log.Info().Str("schedule", s.retention.Schedule).Int("days", s.retention.Days).Msg("retention scheduled")

	go func() {
		<-ctx.Done()
		s.StopRetention()
	}()
	return nil
}

func (s *service) StopRetention() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *service) runRetention(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cutoff := s.now().Add(-time.Duration(s.retention.Days) * 24 * time.Hour)
	removed, err := s.Purge(ctx, cutoff, AutoConfirm)
	if err != nil {
		s.log.Error().Err(err).Msg("retention purge failed")
		return
	}
	s.log.Info().Int64("removed", removed).Msg("retention purge finished")
}
