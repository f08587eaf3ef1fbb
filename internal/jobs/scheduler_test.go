package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellnest/core/internal/api"
	"wellnest/core/internal/config"
	"wellnest/core/internal/endpoint"
	"wellnest/core/internal/session"
	"wellnest/core/internal/storage"
)

type fakeCounter struct {
	count int
	err   error
	calls int
}

func (f *fakeCounter) UnreadCount(context.Context) (int, error) {
	f.calls++
	return f.count, f.err
}

type fakeSession struct {
	valid bool
	err   error
}

func (f *fakeSession) IsValid(context.Context) (bool, error) {
	return f.valid, f.err
}

func newTestScheduler(counter *fakeCounter, sess *fakeSession) *Scheduler {
	return NewScheduler(config.JobsConfig{}, counter, sess, zerolog.Nop())
}

func TestPollNotificationsReportsChangesOnly(t *testing.T) {
	counter := &fakeCounter{count: 2}
	s := newTestScheduler(counter, &fakeSession{valid: true})

	var seen []int
	s.OnUnread = func(n int) { seen = append(seen, n) }

	s.pollNotifications()
	s.pollNotifications()
	counter.count = 3
	s.pollNotifications()
	counter.count = 0
	s.pollNotifications()

	assert.Equal(t, []int{2, 3, 0}, seen)
}

func TestPollNotificationsSkipsWithoutSession(t *testing.T) {
	counter := &fakeCounter{count: 1}
	s := newTestScheduler(counter, &fakeSession{valid: false})
	s.OnUnread = func(int) { t.Fatal("unexpected callback") }

	s.pollNotifications()
	assert.Zero(t, counter.calls)
}

func TestPollNotificationsSwallowsErrors(t *testing.T) {
	counter := &fakeCounter{err: errors.New("boom")}
	s := newTestScheduler(counter, &fakeSession{valid: true})
	s.OnUnread = func(int) { t.Fatal("unexpected callback") }

	s.pollNotifications()
	assert.Equal(t, 1, counter.calls)
}

func TestWatchSessionFiresOnTransition(t *testing.T) {
	sess := &fakeSession{valid: false}
	s := newTestScheduler(&fakeCounter{}, sess)

	fired := 0
	s.OnExpired = func() { fired++ }

	s.watchSession()
	assert.Zero(t, fired, "never-valid session is not an expiry")

	sess.valid = true
	s.watchSession()
	sess.valid = false
	s.watchSession()
	s.watchSession()
	assert.Equal(t, 1, fired)
}

func TestExpiryResetsUnreadBaseline(t *testing.T) {
	counter := &fakeCounter{count: 4}
	sess := &fakeSession{valid: true}
	s := newTestScheduler(counter, sess)

	var seen []int
	s.OnUnread = func(n int) { seen = append(seen, n) }

	s.watchSession()
	s.pollNotifications()
	sess.valid = false
	s.watchSession()
	sess.valid = true
	s.pollNotifications()

	assert.Equal(t, []int{4, 4}, seen)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(config.JobsConfig{Notifications: "every tuesday"}, &fakeCounter{}, &fakeSession{}, zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(config.JobsConfig{
		Notifications: "*/30 * * * * *",
		SessionWatch:  "0 * * * * *",
	}, &fakeCounter{}, &fakeSession{}, zerolog.Nop())

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()()
}

func TestJobTimeoutCoversBothAttempts(t *testing.T) {
	for _, apiTimeout := range []time.Duration{time.Second, 15 * time.Second, 30 * time.Second} {
		assert.Greater(t, JobTimeout(apiTimeout), 2*apiTimeout, apiTimeout.String())
	}
	assert.Equal(t, JobTimeout(15*time.Second), JobTimeout(0))

	s := NewScheduler(config.JobsConfig{}, &fakeCounter{}, &fakeSession{}, zerolog.Nop(), WithAPITimeout(40*time.Second))
	assert.Greater(t, s.timeout, 80*time.Second)
}

func TestPollFailsOverWhenPrimaryHangs(t *testing.T) {
	release := make(chan struct{})
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(primary.Close)
	t.Cleanup(func() { close(release) })

	secondary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"unread":3}}`))
	}))
	t.Cleanup(secondary.Close)

	const apiTimeout = 200 * time.Millisecond
	resolver, err := endpoint.NewResolver(primary.URL, secondary.URL, endpoint.WithTimeout(apiTimeout))
	require.NoError(t, err)

	store := session.New(storage.NewMemory())
	require.NoError(t, store.Save(context.Background(), "tok", time.Now().Add(time.Hour)))
	client := api.NewClient(resolver, store)

	s := NewScheduler(config.JobsConfig{}, client, store, zerolog.Nop(), WithAPITimeout(apiTimeout))
	var seen []int
	s.OnUnread = func(n int) { seen = append(seen, n) }

	s.pollNotifications()

	assert.Equal(t, []int{3}, seen)
	assert.True(t, resolver.FailedOver())
	assert.Equal(t, secondary.URL, resolver.Current())
}
