package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// notificationSource is a connection that is already LISTENing.
type notificationSource interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Listener holds a dedicated connection LISTENing on the channel the
// repository notifies on, and forwards every notification to onChange.
type Listener struct {
	dsn        string
	channel    string
	onChange   func()
	logger     zerolog.Logger
	backoff    time.Duration
	backoffMax time.Duration
	dial       func(ctx context.Context) (notificationSource, error)
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewListener(dsn, channel string, onChange func(), logger zerolog.Logger) *Listener {
	l := &Listener{
		dsn:        dsn,
		channel:    channel,
		onChange:   onChange,
		logger:     logger.With().Str("component", "listener").Str("channel", channel).Logger(),
		backoff:    time.Second,
		backoffMax: 30 * time.Second,
		sleep:      sleepCtx,
	}
	l.dial = l.dialPostgres
	return l
}

// Run listens until ctx is done, reconnecting with exponential backoff. The
// backoff starts over after every successful LISTEN.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.backoff
	for {
		err := l.listen(ctx, func() { backoff = l.backoff })
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Error().Err(err).Dur("backoff", backoff).Msg("Change listener disconnected, reconnecting")
		if err := l.sleep(ctx, backoff); err != nil {
			return nil
		}
		backoff *= 2
		if backoff > l.backoffMax {
			backoff = l.backoffMax
		}
	}
}

func (l *Listener) dialPostgres(ctx context.Context) (notificationSource, error) {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return conn, nil
}

func (l *Listener) listen(ctx context.Context, connected func()) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	l.logger.Info().Msg("Listening for program changes")
	connected()

	// Changes may have happened while disconnected.
	l.onChange()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("failed to wait for notification: %w", err)
		}
		l.logger.Debug().Str("program_id", n.Payload).Msg("Program change notification")
		l.onChange()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
