package api

import (
	"slices"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sawring/sawring/internal/events"
)

// RecentEvents keeps dispatched events for a limited time so clients that
// poll /api/v1/events see what happened since their last request. It is an
// events.EventConsumer.
type RecentEvents struct {
	cache *cache.Cache
}

// NewRecentEvents keeps events for ttl. Expired entries are purged on read,
// so no janitor goroutine is started.
func NewRecentEvents(ttl time.Duration) *RecentEvents {
	return &RecentEvents{cache: cache.New(ttl, 0)}
}

// Name implements events.EventConsumer.
func (r *RecentEvents) Name() string { return "recent" }

// ProcessEvent stores ev under its ID.
func (r *RecentEvents) ProcessEvent(ev events.Event) error {
	r.cache.SetDefault(ev.ID, ev)
	return nil
}

// List returns up to limit events, newest first, optionally only those
// after since.
func (r *RecentEvents) List(limit int, since time.Time) []events.Event {
	r.cache.DeleteExpired()

	items := r.cache.Items()
	out := make([]events.Event, 0, len(items))
	for _, item := range items {
		ev, ok := item.Object.(events.Event)
		if !ok || !ev.Timestamp.After(since) {
			continue
		}
		out = append(out, ev)
	}
	slices.SortFunc(out, func(a, b events.Event) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of unexpired events.
func (r *RecentEvents) Len() int {
	r.cache.DeleteExpired()
	return r.cache.ItemCount()
}
