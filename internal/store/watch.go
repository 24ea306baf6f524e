package store

import (
	"context"
	"sync"

	appLog "tripcal/internal/log"
	"tripcal/internal/model"
)

// Notifier carries "itinerary changed" signals between processes.
type Notifier interface {
	Publish(ctx context.Context, itineraryID string) error
	// Subscribe calls fn for every change published by another process
	// until ctx is done. It returns once the subscription is established.
	Subscribe(ctx context.Context, fn func(itineraryID string)) error
}

// hub is the in-process change fan-out. Each watcher gets a 1-slot signal
// channel, so bursts of writes collapse into one refresh.
type hub struct {
	mu     sync.Mutex
	next   int
	subs   map[string]map[int]chan struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: map[string]map[int]chan struct{}{}}
}

func (h *hub) watch(itineraryID string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan struct{}, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	if h.subs[itineraryID] == nil {
		h.subs[itineraryID] = map[int]chan struct{}{}
	}
	h.subs[itineraryID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subs[itineraryID]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					close(ch)
				}
				if len(subs) == 0 {
					delete(h.subs, itineraryID)
				}
			}
		})
	}
}

func (h *hub) broadcast(itineraryID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[itineraryID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for itineraryID, subs := range h.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subs, itineraryID)
	}
}

// WatchEvents streams snapshots of an itinerary's events.
//
// The current snapshot is available immediately; a fresh one follows every
// change. A slow reader only ever sees the latest snapshot. The channel is
// closed when ctx is done or the store closes.
func (s *Store) WatchEvents(ctx context.Context, itineraryID string) (<-chan []model.Event, error) {
	if _, err := s.GetItinerary(ctx, itineraryID); err != nil {
		return nil, err
	}
	signal, stop := s.hub.watch(itineraryID)

	first, err := s.ListEvents(ctx, itineraryID)
	if err != nil {
		stop()
		return nil, err
	}
	out := make(chan []model.Event, 1)
	out <- first

	go func() {
		defer close(out)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signal:
				if !ok {
					return
				}
				events, err := s.ListEvents(ctx, itineraryID)
				if err != nil {
					if ctx.Err() == nil {
						appLog.Error("watch refresh failed", err, "itinerary_id", itineraryID)
					}
					continue
				}
				replaceLatest(out, events)
			}
		}
	}()
	return out, nil
}

// replaceLatest puts v into a 1-slot channel, dropping an unread older
// value. Only the producing goroutine sends on ch.
func replaceLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}
