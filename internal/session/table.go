// Package session owns the per-guild voice sessions of songbot.
//
// A [Table] maps guild IDs to live [Session] values and hands out exclusive,
// per-guild [Guard]s. Commands for the same guild run one at a time while
// holding a guard; commands for different guilds never wait on each other.
// The [Orchestrator] executes parsed commands against the table.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by [Table.Lock] after [Table.Close].
var ErrClosed = errors.New("session: table closed")

// slot is the per-guild entry of a [Table]. sem is a one-token semaphore that
// serialises guards; refs counts guards held or waited for, so an idle slot
// can be dropped from the map.
type slot struct {
	sem  chan struct{}
	refs int
	sess *Session
}

// Table is the process-wide map from guild ID to [Session].
//
// The table mutex is only held for map bookkeeping, never across a join,
// a resolve or any other blocking call. Writing a slot's session requires
// both the slot's guard and the table mutex; reading requires either.
//
// All methods are safe for concurrent use.
type Table struct {
	mu     sync.Mutex
	slots  map[string]*slot
	closed bool
}

// NewTable returns an empty [Table].
func NewTable() *Table {
	return &Table{slots: make(map[string]*slot)}
}

// Lock acquires exclusive access to guildID's session slot, waiting for any
// command already holding it. It returns ctx.Err() if ctx is done first and
// [ErrClosed] once the table is shut down. The returned guard must be
// released with [Guard.Unlock].
func (t *Table) Lock(ctx context.Context, guildID string) (*Guard, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	s, ok := t.slots[guildID]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		t.slots[guildID] = s
	}
	s.refs++
	t.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
		return &Guard{table: t, guildID: guildID, slot: s}, nil
	case <-ctx.Done():
		t.release(guildID, s)
		return nil, ctx.Err()
	}
}

// release drops one reference to s and forgets idle, empty slots.
func (t *Table) release(guildID string, s *slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s.refs--
	if s.refs == 0 && s.sess == nil && t.slots[guildID] == s {
		delete(t.slots, guildID)
	}
}

// Get returns the live session of guildID, or nil. The session may be torn
// down concurrently; callers that act on it must hold the guild's [Guard].
func (t *Table) Get(guildID string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.slots[guildID]; ok {
		return s.sess
	}
	return nil
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.slots {
		if s.sess != nil {
			n++
		}
	}
	return n
}

// Close stops accepting new guards and tears down every live session,
// waiting for each guild's in-flight command to finish first. Commands
// already waiting for a guard still run. Close returns ctx.Err() if ctx is
// done before all sessions are closed; the remaining sessions stay live.
func (t *Table) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	type pending struct {
		guildID string
		slot    *slot
	}
	var all []pending
	for id, s := range t.slots {
		s.refs++
		all = append(all, pending{guildID: id, slot: s})
	}
	t.mu.Unlock()

	var errs []error
	for i, p := range all {
		select {
		case p.slot.sem <- struct{}{}:
		case <-ctx.Done():
			for _, rest := range all[i:] {
				t.release(rest.guildID, rest.slot)
			}
			return ctx.Err()
		}
		g := &Guard{table: t, guildID: p.guildID, slot: p.slot}
		if sess := g.Remove(); sess != nil {
			if err := sess.Close(); err != nil {
				slog.Warn("session: close on shutdown", "guild_id", p.guildID, "err", err)
				errs = append(errs, err)
			}
		}
		g.Unlock()
	}
	return errors.Join(errs...)
}

// Guard is exclusive access to one guild's session slot, obtained from
// [Table.Lock]. A Guard must not be shared between goroutines.
type Guard struct {
	table   *Table
	guildID string
	slot    *slot
	once    sync.Once
}

// GuildID returns the guild this guard protects.
func (g *Guard) GuildID() string { return g.guildID }

// Session returns the guild's live session, or nil when there is none.
func (g *Guard) Session() *Session {
	g.table.mu.Lock()
	defer g.table.mu.Unlock()
	return g.slot.sess
}

// GetOrCreate returns the guild's live session. On a miss it calls join and
// stores the result; join is not called when a session exists, and a failed
// join stores nothing. The bool result reports whether join ran successfully.
// After [Table.Close] no new session is stored and [ErrClosed] is returned.
func (g *Guard) GetOrCreate(ctx context.Context, join func(ctx context.Context) (*Session, error)) (*Session, bool, error) {
	g.table.mu.Lock()
	sess, closed := g.slot.sess, g.table.closed
	g.table.mu.Unlock()
	if sess != nil {
		return sess, false, nil
	}
	if closed {
		return nil, false, ErrClosed
	}

	sess, err := join(ctx)
	if err != nil {
		return nil, false, err
	}

	g.table.mu.Lock()
	if g.table.closed {
		g.table.mu.Unlock()
		if err := sess.Close(); err != nil {
			slog.Warn("session: close after shutdown", "guild_id", g.guildID, "err", err)
		}
		return nil, false, ErrClosed
	}
	g.slot.sess = sess
	g.table.mu.Unlock()
	return sess, true, nil
}

// Remove forgets the guild's session and returns it, or nil when there was
// none. The caller becomes responsible for closing the returned session.
func (g *Guard) Remove() *Session {
	g.table.mu.Lock()
	defer g.table.mu.Unlock()
	sess := g.slot.sess
	g.slot.sess = nil
	return sess
}

// Unlock releases the guard. It is safe to call more than once.
func (g *Guard) Unlock() {
	g.once.Do(func() {
		<-g.slot.sem
		g.table.release(g.guildID, g.slot)
	})
}
