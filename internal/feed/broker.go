// Package feed turns document store change notifications into a stream of
// full, ordered program snapshots.
//
// A Broker reloads the program list once per change and fans the snapshot out
// to every subscriber. Each subscriber has a single-slot mailbox, so a slow
// subscriber skips intermediate snapshots and only sees the latest one.
package feed

import (
	"context"
	"fmt"
	"sync"

	"meditation/internal/model"

	"github.com/rs/zerolog"
)

// Lister loads the full ordered program collection.
type Lister interface {
	ListPrograms(ctx context.Context) ([]model.Program, error)
}

// Callback receives the full program collection, newest-created first.
type Callback func(programs []model.Program)

type snapshot struct {
	version  uint64
	programs []model.Program
}

type subscriber struct {
	mailbox chan snapshot
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

type Broker struct {
	lister  Lister
	logger  zerolog.Logger
	refresh chan struct{}

	mu      sync.Mutex
	subs    map[uint64]*subscriber
	nextID  uint64
	latest  snapshot
	loaded  bool
	version uint64
}

func NewBroker(lister Lister, logger zerolog.Logger) *Broker {
	return &Broker{
		lister:  lister,
		logger:  logger.With().Str("component", "feed").Logger(),
		refresh: make(chan struct{}, 1),
		subs:    make(map[uint64]*subscriber),
	}
}

// Notify asks the broker to reload. Calls made while a reload is pending are
// coalesced into that reload.
func (b *Broker) Notify() {
	select {
	case b.refresh <- struct{}{}:
	default:
	}
}

// Run reloads and fans out snapshots until ctx is done.
func (b *Broker) Run(ctx context.Context) error {
	b.logger.Info().Msg("Starting program change feed")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Shutting down program change feed")
			b.closeAll()
			return nil
		case <-b.refresh:
		}
		programs, err := b.lister.ListPrograms(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.Error().Err(err).Msg("Failed to reload programs for change feed")
			continue
		}
		b.publish(programs)
	}
}

func (b *Broker) publish(programs []model.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.version++
	b.latest = snapshot{version: b.version, programs: programs}
	b.loaded = true
	for _, s := range b.subs {
		deliver(s, b.latest)
	}
	b.logger.Debug().Int("programs", len(programs)).Int("subscribers", len(b.subs)).Msg("Published program snapshot")
}

// deliver replaces whatever is pending in the mailbox with snap.
func deliver(s *subscriber, snap snapshot) {
	select {
	case <-s.mailbox:
	default:
	}
	s.mailbox <- snap
}

// Subscribe invokes cb with the current collection before returning, and
// again after every subsequent change until ctx is done or the returned
// function is called. Callbacks for one subscriber never run concurrently.
func (b *Broker) Subscribe(ctx context.Context, cb Callback) (func(), error) {
	b.mu.Lock()
	if !b.loaded {
		programs, err := b.lister.ListPrograms(ctx)
		if err != nil {
			b.mu.Unlock()
			return nil, fmt.Errorf("failed to load programs: %w", err)
		}
		b.version++
		b.latest = snapshot{version: b.version, programs: programs}
		b.loaded = true
	}
	initial := b.latest
	id := b.nextID
	b.nextID++
	sub := &subscriber{mailbox: make(chan snapshot, 1), done: make(chan struct{})}
	b.subs[id] = sub
	b.mu.Unlock()

	cb(initial.programs)

	go func() {
		last := initial.version
		for {
			select {
			case <-ctx.Done():
				b.unsubscribe(id)
				return
			case <-sub.done:
				return
			case snap := <-sub.mailbox:
				if snap.version <= last {
					continue
				}
				last = snap.version
				cb(snap.programs)
			}
		}
	}()

	return func() { b.unsubscribe(id) }, nil
}

func (b *Broker) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		sub.stop()
	}
}

func (b *Broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		s.stop()
		delete(b.subs, id)
	}
}

// Subscribers reports the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
