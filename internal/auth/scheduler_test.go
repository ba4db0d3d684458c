package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/model"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	got, ok := TokenExpiry(signed(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
}

func TestDelayForPrefersEarlierExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(nil, nil, nil, SchedulerConfig{Interval: time.Hour, Skew: 30 * time.Second})
	s.now = func() time.Time { return now }

	assert.Equal(t, time.Hour, s.delayFor("opaque"))
	assert.Equal(t, 9*time.Minute+30*time.Second, s.delayFor(signed(t, now.Add(10*time.Minute))))
	assert.Equal(t, time.Hour, s.delayFor(signed(t, now.Add(3*time.Hour))))
	assert.Equal(t, time.Duration(0), s.delayFor(signed(t, now.Add(-time.Minute))))
}

func TestSchedulerRefreshesOnInterval(t *testing.T) {
	fake := newFakeAPI()
	fake.grant("good", &model.User{ID: "u1"})
	sess := loggedIn(t, newTestStore(t), "good", "r0")
	s := NewScheduler(sess, NewValidator(fake), NewRefresher(fake, sess), SchedulerConfig{Interval: 40 * time.Millisecond})
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		_, refreshes := fake.counts()
		return refreshes >= 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, sess.Snapshot().IsAuthenticated())
}

func TestSchedulerRefreshesInvalidTokenImmediately(t *testing.T) {
	fake := newFakeAPI()
	sess := loggedIn(t, newTestStore(t), "stale", "r0")
	s := NewScheduler(sess, NewValidator(fake), NewRefresher(fake, sess), SchedulerConfig{Interval: time.Hour})
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return sess.Snapshot().AccessToken == "access-1"
	}, time.Second, 5*time.Millisecond)

	// After the refresh the next run is armed for the full interval
	require.Eventually(t, func() bool {
		_, armed := s.NextRefresh()
		return armed
	}, time.Second, 5*time.Millisecond)
	_, refreshes := fake.counts()
	assert.Equal(t, 1, refreshes)
}

func TestSchedulerLogoutCancelsTimer(t *testing.T) {
	fake := newFakeAPI()
	fake.grant("good", &model.User{ID: "u1"})
	sess := loggedIn(t, newTestStore(t), "good", "r0")
	s := NewScheduler(sess, NewValidator(fake), NewRefresher(fake, sess), SchedulerConfig{Interval: 60 * time.Millisecond})
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		_, armed := s.NextRefresh()
		return armed
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sess.Clear(context.Background()))
	require.Eventually(t, func() bool {
		_, armed := s.NextRefresh()
		return !armed
	}, time.Second, 5*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	_, refreshes := fake.counts()
	assert.Zero(t, refreshes)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	fake := newFakeAPI()
	fake.grant("good", &model.User{ID: "u1"})
	sess := loggedIn(t, newTestStore(t), "good", "r0")
	s := NewScheduler(sess, NewValidator(fake), NewRefresher(fake, sess), SchedulerConfig{Interval: 30 * time.Millisecond})
	s.Start()
	s.Stop()
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	_, refreshes := fake.counts()
	assert.Zero(t, refreshes)
}

func TestSchedulerRetriesAfterNetworkFailure(t *testing.T) {
	fake := newFakeAPI()
	fake.refreshErr = fmt.Errorf("%w: refused", api.ErrNetworkFailure)
	sess := loggedIn(t, newTestStore(t), "stale", "r0")
	s := NewScheduler(sess, NewValidator(fake), NewRefresher(fake, sess),
		SchedulerConfig{Interval: time.Hour, RetryDelay: 20 * time.Millisecond})
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		_, refreshes := fake.counts()
		return refreshes >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "stale", sess.Snapshot().AccessToken)
}

func TestSchedulerRejectedRefreshLogsOut(t *testing.T) {
	fake := newFakeAPI()
	fake.refreshErr = &api.StatusError{Status: 401, Err: api.ErrRefreshFailed}
	store := newTestStore(t)
	sess := loggedIn(t, store, "stale", "r0")
	s := NewScheduler(sess, NewValidator(fake), NewRefresher(fake, sess), SchedulerConfig{Interval: time.Hour})
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return !sess.Snapshot().HasTokens()
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	_, refreshes := fake.counts()
	assert.Equal(t, 1, refreshes, "a rejected refresh is not retried")
}

func TestSchedulerFollowsNewLogin(t *testing.T) {
	fake := newFakeAPI()
	sess := loggedIn(t, newTestStore(t), "", "")
	s := NewScheduler(sess, NewValidator(fake), NewRefresher(fake, sess), SchedulerConfig{Interval: 30 * time.Millisecond})
	s.Start()
	defer s.Stop()

	_, armed := s.NextRefresh()
	assert.False(t, armed)

	svc := NewService(fake, sess)
	_, err := svc.Login(context.Background(), "ana@school.test", "secret1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, refreshes := fake.counts()
		return refreshes >= 1
	}, time.Second, 5*time.Millisecond)
}
