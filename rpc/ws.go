package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"sodap/core"
	"sodap/core/address"
	"sodap/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// eventFilter narrows a stream to one store and/or an event type prefix.
type eventFilter struct {
	typePrefix string
	store      string
}

func parseEventFilter(r *http.Request) (eventFilter, error) {
	q := r.URL.Query()
	f := eventFilter{typePrefix: strings.TrimSpace(q.Get("type"))}
	if raw := strings.TrimSpace(q.Get("store")); raw != "" {
		addr, err := address.Parse(raw)
		if err != nil {
			return eventFilter{}, err
		}
		f.store = addr.Hex()
	}
	return f, nil
}

func (f eventFilter) match(evt *types.Event) bool {
	if evt == nil || !strings.HasPrefix(evt.Type, f.typePrefix) {
		return false
	}
	return f.store == "" || strings.EqualFold(evt.Attribute("store"), f.store)
}

// EventUpdatePayload is one streamed ledger event.
type EventUpdatePayload struct {
	Sequence uint64            `json:"sequence"`
	Cursor   string            `json:"cursor"`
	Height   uint64            `json:"height"`
	TxHash   string            `json:"txHash"`
	Type     string            `json:"type"`
	Attrs    map[string]string `json:"attributes"`
}

func eventUpdatePayloadFrom(update core.EventUpdate) EventUpdatePayload {
	return EventUpdatePayload{
		Sequence: update.Sequence,
		Cursor:   update.Cursor,
		Height:   update.Height,
		TxHash:   hexHash(update.TxHash),
		Type:     update.Event.Type,
		Attrs:    update.Event.Attributes,
	}
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.ledger == nil {
		http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
		return
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	filter, err := parseEventFilter(r)
	if err != nil {
		http.Error(w, "invalid store address", http.StatusBadRequest)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, cursor, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

// streamEvents replays the retained backlog after cursor and then follows
// live commits, pinging idle connections so proxies keep them open.
func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, cursor string, filter eventFilter) error {
	updates, cancel, backlog := s.ledger.SubscribeEvents(ctx, cursor)
	defer cancel()

	for _, update := range backlog {
		if !filter.match(&update.Event) {
			continue
		}
		if err := writeEventUpdate(ctx, conn, update); err != nil {
			return err
		}
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ping.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				return err
			}
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if !filter.match(&update.Event) {
				continue
			}
			if err := writeEventUpdate(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeEventUpdate(ctx context.Context, conn *websocket.Conn, update core.EventUpdate) error {
	data, err := json.Marshal(eventUpdatePayloadFrom(update))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
