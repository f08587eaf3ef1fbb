package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"wellnest/core/internal/config"
)

const (
	defaultAPITimeout = 15 * time.Second
	jobMargin         = 5 * time.Second
)

// JobTimeout is the deadline for one job run when each API attempt may take
// up to apiTimeout. A call can make two attempts, one per host, so the job
// must outlast both or the failover never gets its chance.
func JobTimeout(apiTimeout time.Duration) time.Duration {
	if apiTimeout <= 0 {
		apiTimeout = defaultAPITimeout
	}
	return 2*apiTimeout + jobMargin
}

type Option func(*Scheduler)

// WithAPITimeout sizes job deadlines for API calls bounded by apiTimeout.
func WithAPITimeout(apiTimeout time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = JobTimeout(apiTimeout)
	}
}

type UnreadCounter interface {
	UnreadCount(ctx context.Context) (int, error)
}

type SessionChecker interface {
	IsValid(ctx context.Context) (bool, error)
}

type Scheduler struct {
	cron     *cron.Cron
	cfg      config.JobsConfig
	counter  UnreadCounter
	sessions SessionChecker
	log      zerolog.Logger
	timeout  time.Duration

	// OnUnread fires when the unread notification count changes.
	OnUnread func(count int)
	// OnExpired fires once when a previously valid session stops being valid.
	OnExpired func()

	mu        sync.Mutex
	lastCount int
	wasValid  bool
}

func NewScheduler(cfg config.JobsConfig, counter UnreadCounter, sessions SessionChecker, log zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		cfg:       cfg,
		counter:   counter,
		sessions:  sessions,
		log:       log,
		timeout:   JobTimeout(defaultAPITimeout),
		lastCount: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Start() error {
	if s.cfg.Notifications != "" {
		if _, err := s.cron.AddFunc(s.cfg.Notifications, s.pollNotifications); err != nil {
			return err
		}
	}
	if s.cfg.SessionWatch != "" {
		if _, err := s.cron.AddFunc(s.cfg.SessionWatch, s.watchSession); err != nil {
			return err
		}
	}

	// Seed the watcher so a session that is already expired at startup is
	// not reported as a transition.
	s.watchSession()

	s.cron.Start()
	return nil
}

// Stop halts scheduling. The returned func blocks until running jobs finish,
// for at most five seconds.
func (s *Scheduler) Stop() context.CancelFunc {
	stopped := s.cron.Stop()
	return func() {
		select {
		case <-stopped.Done():
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *Scheduler) pollNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	valid, err := s.sessions.IsValid(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("session check failed")
		return
	}
	if !valid {
		return
	}

	count, err := s.counter.UnreadCount(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("poll notifications failed")
		return
	}

	s.mu.Lock()
	changed := count != s.lastCount
	s.lastCount = count
	s.mu.Unlock()

	if changed {
		s.log.Debug().Int("unread", count).Msg("unread count changed")
		if s.OnUnread != nil {
			s.OnUnread(count)
		}
	}
}

// watchSession never clears the stored token; an expired session stays in
// storage until the user signs out or in again.
func (s *Scheduler) watchSession() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	valid, err := s.sessions.IsValid(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("session check failed")
		return
	}

	s.mu.Lock()
	expired := s.wasValid && !valid
	s.wasValid = valid
	if expired {
		s.lastCount = -1
	}
	s.mu.Unlock()

	if expired {
		s.log.Info().Msg("session expired")
		if s.OnExpired != nil {
			s.OnExpired()
		}
	}
}
