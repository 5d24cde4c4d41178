package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	notifications []*pgconn.Notification
	closed        bool
}

func (f *fakeSource) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	if len(f.notifications) == 0 {
		return nil, errors.New("connection reset")
	}
	n := f.notifications[0]
	f.notifications = f.notifications[1:]
	return n, nil
}

func (f *fakeSource) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

// scriptedListener dials through results in order and cancels ctx once
// maxSleeps reconnect waits have been recorded.
func scriptedListener(results []func() (notificationSource, error), maxSleeps int) (*Listener, *[]time.Duration, *int, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	changes := 0
	sleeps := []time.Duration{}

	l := NewListener("", "program_changes", func() { changes++ }, zerolog.Nop())
	dials := 0
	l.dial = func(ctx context.Context) (notificationSource, error) {
		if dials >= len(results) {
			return nil, errors.New("unreachable")
		}
		r := results[dials]
		dials++
		return r()
	}
	l.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		if len(sleeps) >= maxSleeps {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	return l, &sleeps, &changes, ctx
}

func TestListenerBackoffResetsAfterSuccessfulListen(t *testing.T) {
	fail := func() (notificationSource, error) { return nil, errors.New("refused") }
	src := &fakeSource{notifications: []*pgconn.Notification{{Channel: "program_changes", Payload: "p1"}}}
	ok := func() (notificationSource, error) { return src, nil }

	l, sleeps, changes, ctx := scriptedListener([]func() (notificationSource, error){fail, fail, ok, fail}, 4)

	require.NoError(t, l.Run(ctx))

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second, 2 * time.Second}, *sleeps)
	// One refresh on connect plus one per notification.
	assert.Equal(t, 2, *changes)
	assert.True(t, src.closed)
}

func TestListenerBackoffIsCapped(t *testing.T) {
	fail := func() (notificationSource, error) { return nil, errors.New("refused") }
	results := make([]func() (notificationSource, error), 8)
	for i := range results {
		results[i] = fail
	}

	l, sleeps, changes, ctx := scriptedListener(results, 8)
	l.backoffMax = 5 * time.Second

	require.NoError(t, l.Run(ctx))

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second,
		5 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second,
	}, *sleeps)
	assert.Zero(t, *changes)
}

func TestListenerStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewListener("", "program_changes", func() {}, zerolog.Nop())
	l.dial = func(ctx context.Context) (notificationSource, error) {
		return nil, ctx.Err()
	}
	l.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatal("no reconnect expected after cancellation")
		return nil
	}

	assert.NoError(t, l.Run(ctx))
}
