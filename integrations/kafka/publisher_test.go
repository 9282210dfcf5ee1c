package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"sodap/core/coretest"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestPublisherForwardsCommittedEvents(t *testing.T) {
	h := coretest.New(t, 1_000)
	w := &recordingWriter{}
	p := newPublisher(w, 16, nil)
	p.Start(context.Background())
	h.Ledger.OnCommit(p.Hook())

	shop := h.Shop()
	h.Buy(shop, 1)
	p.Close()
	p.WaitClosed()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.True(t, w.closed)
	require.NotEmpty(t, w.msgs)

	var purchases int
	for _, m := range w.msgs {
		var msg EventMessage
		require.NoError(t, json.Unmarshal(m.Value, &msg))
		if msg.Type == "purchase.completed" {
			purchases++
			require.Equal(t, shop.Hex(), string(m.Key))
			require.Equal(t, "purchase_cart", msg.Operation)
			require.Equal(t, "100", msg.Attributes["totalPaid"])
		}
	}
	require.Equal(t, 1, purchases)
}

func TestMessagesKeyByStore(t *testing.T) {
	h := coretest.New(t, 1_000)
	shop := h.Shop()
	res := h.Buy(shop, 1)

	msgs := Messages(res)
	require.Len(t, msgs, len(res.Events))
	for _, m := range msgs {
		require.Equal(t, shop.Hex(), string(m.Key))
	}
	require.Nil(t, Messages(nil))
}

func TestPublisherDropsAfterClose(t *testing.T) {
	p := newPublisher(&recordingWriter{}, 1, nil)
	p.Close()
	require.NotPanics(t, func() { p.enqueue(kafka.Message{Key: []byte("k")}) })
}
