package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-calculator/internal/feed"
	"realtime-calculator/internal/model"
)

func peer(id string) model.Peer {
	return model.Peer{PeerID: id, OnlineAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func testRegistry(t *testing.T, r Registry) {
	ctx := context.Background()

	snap, err := r.Snapshot(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, snap)

	require.NoError(t, r.Track(ctx, "s", peer("a")))
	require.NoError(t, r.Track(ctx, "s", peer("b")))
	require.NoError(t, r.Track(ctx, "s", peer("a")))
	require.NoError(t, r.Track(ctx, "other", peer("c")))

	snap, err = r.Snapshot(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, snap, 2)
	assert.Equal(t, peer("b"), snap["b"])

	require.NoError(t, r.Heartbeat(ctx, "s", "a"))
	assert.ErrorIs(t, r.Heartbeat(ctx, "s", "nobody"), ErrNotTracked)

	require.NoError(t, r.Untrack(ctx, "s", "a"))
	snap, err = r.Snapshot(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, snap, 1)
	assert.Contains(t, snap, "b")
	assert.ErrorIs(t, r.Heartbeat(ctx, "s", "a"), ErrNotTracked)
}

func TestMemoryRegistry(t *testing.T) {
	testRegistry(t, NewMemoryRegistry())
}

func newRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRegistry(client, time.Minute), mr
}

func TestRedisRegistry(t *testing.T) {
	r, mr := newRedisRegistry(t)
	testRegistry(t, r)

	mr.FastForward(2 * time.Minute)
	snap, err := r.Snapshot(context.Background(), "s")
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.ErrorIs(t, r.Heartbeat(context.Background(), "s", "b"), ErrNotTracked)
}

// 서버가 죽어 Untrack 되지 않은 피어는 다른 피어가 살아 있어도 만료된다
func TestRedisRegistry_PeerExpiresIndependently(t *testing.T) {
	r, mr := newRedisRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Track(ctx, "s", peer("crashed")))
	require.NoError(t, r.Track(ctx, "s", peer("alive")))

	for i := 0; i < 10; i++ {
		mr.FastForward(30 * time.Second)
		require.NoError(t, r.Heartbeat(ctx, "s", "alive"))
	}

	snap, err := r.Snapshot(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, snap, 1)
	assert.Contains(t, snap, "alive")

	// 만료된 피어는 인덱스에서도 정리된다
	members, err := mr.SMembers(r.indexKey("s"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alive"}, members)
}

func TestTracker_RecomputesFromSnapshot(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, 0, tr.Count())
	assert.False(t, tr.Connected())

	peers := map[string]model.Peer{"a": peer("a"), "b": peer("b")}
	n, ok := tr.Handle(feed.PresenceEvent(feed.KindPresenceSync, "s", nil, peers))
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.True(t, tr.Connected())

	// join 이벤트도 증가가 아니라 스냅샷 크기를 따른다
	n, _ = tr.Handle(feed.PresenceEvent(feed.KindPresenceJoin, "s", &model.Peer{PeerID: "a"}, peers))
	assert.Equal(t, 2, n)

	n, _ = tr.Handle(feed.PresenceEvent(feed.KindPresenceLeave, "s", &model.Peer{PeerID: "b"}, map[string]model.Peer{"a": peer("a")}))
	assert.Equal(t, 1, n)

	_, ok = tr.Handle(feed.Event{Kind: feed.KindChange})
	assert.False(t, ok)
	assert.Equal(t, 1, tr.Count())
}

func TestTracker_EphemeralIdentity(t *testing.T) {
	a, b := NewTracker(), NewTracker()
	assert.NotEmpty(t, a.Announce().PeerID)
	assert.NotEqual(t, a.Announce().PeerID, b.Announce().PeerID)
	assert.False(t, a.Announce().OnlineAt.IsZero())
}
