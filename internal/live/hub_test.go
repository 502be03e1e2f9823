package live

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishConferenceEvent(_, event string, _ []byte) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

// fakeBus is a same-process pub/sub loopback; Publish invokes subscribed
// handlers synchronously, the way the Redis bridge delivers an instance's
// own publish back to it.
type fakeBus struct {
	handlers map[string][]func(event string, payload []byte)
	events   []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string][]func(event string, payload []byte))}
}

func (b *fakeBus) PublishConferenceEvent(slug, event string, payload []byte) error {
	b.events = append(b.events, event)
	for _, h := range b.handlers[slug] {
		h(event, payload)
	}
	return nil
}

func (b *fakeBus) SubscribeConference(slug string, handler func(event string, payload []byte)) (func(), error) {
	b.handlers[slug] = append(b.handlers[slug], handler)
	return func() { delete(b.handlers, slug) }, nil
}

func testClient(slug, id string) *Client {
	return &Client{id: id, slug: slug, send: make(chan Message, 4)}
}

func TestBroadcastReachesRoomOnly(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	a := testClient("medcon-2026", "a")
	b := testClient("medcon-2026", "b")
	other := testClient("devcon-2026", "c")
	hub.register(a)
	hub.register(b)
	hub.register(other)

	hub.Broadcast("medcon-2026", "check_in", map[string]string{"session_id": "s1"})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "check_in", msg.Event)
			var data map[string]string
			require.NoError(t, json.Unmarshal(msg.Data, &data))
			assert.Equal(t, "s1", data["session_id"])
		default:
			t.Fatal("expected a message")
		}
	}
	assert.Empty(t, other.send)
}

func TestBroadcastPublishes(t *testing.T) {
	pub := &fakePublisher{}
	hub := NewHub(pub, nil, nil)
	hub.Broadcast("medcon-2026", "check_in", map[string]string{})
	assert.Equal(t, []string{"check_in"}, pub.events)
}

func TestBroadcastWithBridgeDeliversOnce(t *testing.T) {
	bus := newFakeBus()
	hub := NewHub(bus, bus, nil)
	c := testClient("medcon-2026", "a")
	hub.register(c)

	hub.Broadcast("medcon-2026", "check_in", map[string]string{"session_id": "s1"})

	// The event reaches the dashboard through the bridge loopback only, so
	// exactly one copy lands even though publisher and subscriber are the
	// same instance.
	require.Len(t, c.send, 1)
	msg := <-c.send
	assert.Equal(t, "check_in", msg.Event)
	assert.Equal(t, []string{"check_in"}, bus.events)
}

func TestBroadcastFallsBackLocallyOnPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	hub := NewHub(pub, nil, nil)
	c := testClient("medcon-2026", "a")
	hub.register(c)

	hub.Broadcast("medcon-2026", "check_in", map[string]string{"session_id": "s1"})

	require.Len(t, c.send, 1)
	assert.Equal(t, "check_in", (<-c.send).Event)
}

func TestUnregisterEmptiesRoom(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	c := testClient("medcon-2026", "a")
	hub.register(c)
	require.Equal(t, 1, hub.ClientCount("medcon-2026"))
	hub.unregister(c)
	assert.Zero(t, hub.ClientCount("medcon-2026"))

	// Broadcasting into an empty room is a no-op.
	hub.Broadcast("medcon-2026", "check_in", map[string]string{})
}

func TestSlowConsumerDropped(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	c := &Client{id: "a", slug: "medcon-2026", send: make(chan Message, 1)}
	hub.register(c)

	hub.Broadcast("medcon-2026", "check_in", 1)
	hub.Broadcast("medcon-2026", "check_in", 2) // buffer full, dropped

	assert.Len(t, c.send, 1)
}
