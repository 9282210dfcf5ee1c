package core

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"sodap/core/types"
)

const eventHistoryLimit = 2048

// EventUpdate is one committed event as delivered to stream subscribers.
type EventUpdate struct {
	Sequence uint64
	Cursor   string
	Height   uint64
	TxHash   [32]byte
	Event    types.Event
}

func cloneEventUpdate(update EventUpdate) EventUpdate {
	cloned := update
	if update.Event.Attributes != nil {
		attrs := make(map[string]string, len(update.Event.Attributes))
		for k, v := range update.Event.Attributes {
			attrs[k] = v
		}
		cloned.Event.Attributes = attrs
	}
	return cloned
}

type eventStream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan EventUpdate
	history []EventUpdate
}

func (s *eventStream) publish(res *Result) {
	if res == nil || len(res.Events) == 0 {
		return
	}
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[uint64]chan EventUpdate)
	}
	updates := make([]EventUpdate, 0, len(res.Events))
	for _, evt := range res.Events {
		if evt == nil {
			continue
		}
		s.seq++
		update := EventUpdate{
			Sequence: s.seq,
			Cursor:   strconv.FormatUint(s.seq, 10),
			Height:   res.Height,
			TxHash:   res.Hash,
			Event:    *evt,
		}
		s.history = append(s.history, cloneEventUpdate(update))
		updates = append(updates, update)
	}
	if len(s.history) > eventHistoryLimit {
		excess := len(s.history) - eventHistoryLimit
		trimmed := make([]EventUpdate, eventHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	// Sends are non-blocking and happen under the lock so that cancel cannot
	// close a channel mid-send.
	for _, update := range updates {
		for _, ch := range s.subs {
			select {
			case ch <- cloneEventUpdate(update):
			default:
			}
		}
	}
	s.mu.Unlock()
}

// SubscribeEvents registers a subscriber for committed events after cursor.
// It returns the live channel, a cancel function and the retained backlog.
// Slow subscribers miss live updates rather than block the ledger.
func (l *Ledger) SubscribeEvents(ctx context.Context, cursor string) (<-chan EventUpdate, func(), []EventUpdate) {
	s := &l.stream
	updates := make(chan EventUpdate, 64)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[uint64]chan EventUpdate)
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	history := make([]EventUpdate, len(s.history))
	copy(history, s.history)
	s.mu.Unlock()

	backlog := make([]EventUpdate, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEventUpdate(entry))
		}
	}

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}
	return updates, cancel, backlog
}
