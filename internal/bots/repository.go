package bots

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"botfarm-core/internal/events"
)

// Store is the persistent collaborator holding named bot collections.
type Store interface {
	GetBots(ctx context.Context, typ Type) ([]Bot, error)
	SaveBots(ctx context.Context, typ Type, bots []Bot) error
}

// ErrNotFound is returned when a bot id resolves to nothing.
var ErrNotFound = errors.New("bot not found")

// Repository is the owned, lock-guarded view of every bot collection. All
// cross-loop access (panic stop, the API) goes through here; each monitor
// loop is the sole writer for its own type during a cycle.
type Repository struct {
	mu    sync.RWMutex
	store Store
	bus   *events.Bus
	byTyp map[Type][]Bot
}

// NewRepository creates an empty repository over the given store.
func NewRepository(store Store, bus *events.Bus) *Repository {
	return &Repository{
		store: store,
		bus:   bus,
		byTyp: make(map[Type][]Bot),
	}
}

// Load seeds the in-memory collections from the store.
func (r *Repository) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, typ := range Types() {
		list, err := r.store.GetBots(ctx, typ)
		if err != nil {
			return fmt.Errorf("load %s bots: %w", typ, err)
		}
		r.byTyp[typ] = list
	}
	return nil
}

// List returns a copy of the collection for one type, in stable order.
func (r *Repository) List(typ Type) []Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.byTyp[typ]
	out := make([]Bot, len(src))
	copy(out, src)
	return out
}

// All returns a copy of every bot across all collections.
func (r *Repository) All() []Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Bot
	for _, typ := range Types() {
		out = append(out, r.byTyp[typ]...)
	}
	return out
}

// Get looks a bot up by id.
func (r *Repository) Get(id string) (Bot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, list := range r.byTyp {
		for _, b := range list {
			if b.ID == id {
				return b, true
			}
		}
	}
	return Bot{}, false
}

// Add validates and stores a new bot. Creation starts in WAITING, or
// STOPPED when the bot is created disabled.
func (r *Repository) Add(ctx context.Context, b Bot) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Status != StatusStopped {
		b.Status = StatusWaiting
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now

	r.mu.Lock()
	r.byTyp[b.Type] = append(r.byTyp[b.Type], b)
	list := snapshot(r.byTyp[b.Type])
	r.mu.Unlock()

	return r.store.SaveBots(ctx, b.Type, list)
}

// Update replaces an existing bot record in memory and persists its
// collection.
func (r *Repository) Update(ctx context.Context, b Bot) error {
	r.mu.Lock()
	list := r.byTyp[b.Type]
	idx := -1
	for i := range list {
		if list[i].ID == b.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}
	b.UpdatedAt = time.Now()
	list[idx] = b
	out := snapshot(list)
	r.mu.Unlock()

	return r.store.SaveBots(ctx, b.Type, out)
}

// Delete removes a bot. Only STOPPED bots are deletable; the caller owns
// stream cleanup.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	for typ, list := range r.byTyp {
		for i, b := range list {
			if b.ID != id {
				continue
			}
			if b.Status != StatusStopped {
				r.mu.Unlock()
				return fmt.Errorf("bot %s: only STOPPED bots can be deleted (status %s)", id, b.Status)
			}
			r.byTyp[typ] = append(list[:i], list[i+1:]...)
			out := snapshot(r.byTyp[typ])
			r.mu.Unlock()
			return r.store.SaveBots(ctx, typ, out)
		}
	}
	r.mu.Unlock()
	return ErrNotFound
}

// Toggle flips a bot between STOPPED and WAITING.
func (r *Repository) Toggle(ctx context.Context, id string) (Bot, error) {
	r.mu.Lock()
	var (
		found *Bot
		typ   Type
	)
	for t, list := range r.byTyp {
		for i := range list {
			if list[i].ID == id {
				found = &list[i]
				typ = t
				break
			}
		}
	}
	if found == nil {
		r.mu.Unlock()
		return Bot{}, ErrNotFound
	}

	var err error
	if found.Status == StatusStopped {
		err = found.Transition(StatusWaiting)
	} else {
		err = found.Transition(StatusStopped)
	}
	if err != nil {
		r.mu.Unlock()
		return Bot{}, err
	}
	b := *found
	out := snapshot(r.byTyp[typ])
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(events.EventBotStateChange, b)
	}
	return b, r.store.SaveBots(ctx, typ, out)
}

// PanicStop forces every LIVE bot that is ACTIVE or WAITING into PAUSED.
// Paper bots keep running. Returns the number of bots paused.
func (r *Repository) PanicStop(ctx context.Context) int {
	r.mu.Lock()
	paused := 0
	dirty := make(map[Type][]Bot)
	for _, typ := range Types() { // stable collection order
		list := r.byTyp[typ]
		changed := false
		for i := range list {
			b := &list[i]
			if b.Mode != ModeLive {
				continue
			}
			if b.Status == StatusActive || b.Status == StatusWaiting {
				if err := b.Transition(StatusPaused); err == nil {
					paused++
					changed = true
				}
			}
		}
		if changed {
			dirty[typ] = snapshot(list)
		}
	}
	r.mu.Unlock()

	for typ, list := range dirty {
		if err := r.store.SaveBots(ctx, typ, list); err != nil {
			log.Printf("bots: panic stop persist %s: %v", typ, err)
		}
	}
	if r.bus != nil {
		r.bus.Publish(events.EventPanicStop, paused)
	}
	log.Printf("bots: panic stop paused %d live bots", paused)
	return paused
}

// ForceStop stops and flags a single bot after an invariant violation. The
// rest of the engine keeps running.
func (r *Repository) ForceStop(ctx context.Context, id, reason string) error {
	r.mu.Lock()
	for typ, list := range r.byTyp {
		for i := range list {
			if list[i].ID != id {
				continue
			}
			b := &list[i]
			b.Status = StatusStopped // forced, bypasses the transition table
			b.Flagged = true
			b.FlagReason = reason
			b.UpdatedAt = time.Now()
			out := snapshot(list)
			r.mu.Unlock()
			log.Printf("bots: force-stopped %s: %s", id, reason)
			return r.store.SaveBots(ctx, typ, out)
		}
	}
	r.mu.Unlock()
	return ErrNotFound
}

// CommitCycle persists one type's collection after a monitor cycle mutated
// counters/state through Update-in-place on the provided records.
func (r *Repository) CommitCycle(ctx context.Context, typ Type, updated []Bot) error {
	r.mu.Lock()
	list := r.byTyp[typ]
	byID := make(map[string]int, len(list))
	for i, b := range list {
		byID[b.ID] = i
	}
	for _, u := range updated {
		if i, ok := byID[u.ID]; ok {
			u.UpdatedAt = time.Now()
			list[i] = u
		}
		// bots deleted mid-cycle are simply not written back
	}
	out := snapshot(list)
	r.mu.Unlock()

	return r.store.SaveBots(ctx, typ, out)
}

func snapshot(list []Bot) []Bot {
	out := make([]Bot, len(list))
	copy(out, list)
	return out
}
