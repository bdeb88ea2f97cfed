package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-calculator/internal/model"
)

func changeFor(sessionID, display string) Event {
	st := model.DefaultCalculatorState(sessionID)
	st.Display = display
	return ChangeEvent(Notification{Type: ChangeUpdate, SessionID: sessionID, Record: &st})
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for feed event")
	}
	return Event{}
}

func TestHub_DeliversOnlyToSession(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe("a")
	defer a.Close()
	b := hub.Subscribe("b")
	defer b.Close()

	n := hub.Deliver(changeFor("a", "5"))
	assert.Equal(t, 1, n)

	ev := receive(t, a)
	assert.Equal(t, KindChange, ev.Kind)
	assert.Equal(t, "5", ev.Change.Record.Display)

	select {
	case ev := <-b.C():
		t.Fatalf("unexpected event for session b: %+v", ev)
	default:
	}
}

func TestHub_OrderPreservedPerSubscriber(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("s")
	defer sub.Close()

	for _, d := range []string{"1", "12", "123"} {
		require.NoError(t, hub.Publish(context.Background(), changeFor("s", d)))
	}
	for _, want := range []string{"1", "12", "123"} {
		assert.Equal(t, want, receive(t, sub).Change.Record.Display)
	}
}

func TestHub_CloseReleases(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("s")
	assert.Equal(t, 1, hub.SubscriberCount("s"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.SubscriberCount("s"))

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Deliver(changeFor("s", "1")))
}

func TestHub_SlowSubscriberDrops(t *testing.T) {
	dropped := 0
	hub := NewHub(WithBufferSize(1), WithDropHandler(func(string) { dropped++ }))
	sub := hub.Subscribe("s")
	defer sub.Close()

	assert.Equal(t, 1, hub.Deliver(changeFor("s", "1")))
	assert.Equal(t, 0, hub.Deliver(changeFor("s", "2")))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "1", receive(t, sub).Change.Record.Display)
}

func TestPresenceEvent_NeverNilSnapshot(t *testing.T) {
	ev := PresenceEvent(KindPresenceSync, "s", nil, nil)
	require.NotNil(t, ev.Presence)
	assert.NotNil(t, ev.Presence.Peers)
	assert.True(t, ev.Kind.IsPresence())
	assert.False(t, KindChange.IsPresence())
}
