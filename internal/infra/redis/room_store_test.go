package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*RoomStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRoomStore(client, time.Minute), mr
}

func TestGetOrCreateMirrorsLiveness(t *testing.T) {
	store, mr := newTestStore(t)

	room := store.GetOrCreate("r1", "/quizzes/capitals")
	if room.ID() != "r1" {
		t.Fatalf("unexpected room id %q", room.ID())
	}

	got, err := mr.Get("room:r1")
	if err != nil {
		t.Fatalf("liveness key missing: %v", err)
	}
	if got != "/quizzes/capitals" {
		t.Fatalf("expected bound url mirrored, got %q", got)
	}
	if mr.TTL("room:r1") <= 0 {
		t.Fatalf("expected liveness key to expire")
	}

	if again := store.GetOrCreate("r1", "/quizzes/flags"); again != room {
		t.Fatalf("expected the same room instance per id")
	}
}

func TestPresenceRoster(t *testing.T) {
	store, mr := newTestStore(t)
	store.GetOrCreate("r1", "/quizzes/capitals")

	store.PlayerConnected("r1", "u1", "Alice")
	store.PlayerConnected("r1", "u2", "Bob")

	if got := mr.HGet("room:r1:players", "u1"); got != "Alice" {
		t.Fatalf("expected roster entry Alice, got %q", got)
	}

	store.PlayerDisconnected("r1", "u1")
	if got := mr.HGet("room:r1:players", "u1"); got != "" {
		t.Fatalf("expected roster entry removed, got %q", got)
	}
	if got := mr.HGet("room:r1:players", "u2"); got != "Bob" {
		t.Fatalf("expected remaining roster entry kept, got %q", got)
	}
}

func TestDeleteIfAbandonedClearsMirror(t *testing.T) {
	store, mr := newTestStore(t)
	store.GetOrCreate("r1", "/quizzes/capitals")
	store.PlayerConnected("r1", "u1", "Alice")
	store.PlayerDisconnected("r1", "u1")

	store.DeleteIfAbandoned("r1")

	if _, ok := store.Get("r1"); ok {
		t.Fatalf("abandoned room still in local map")
	}
	if mr.Exists("room:r1") || mr.Exists("room:r1:players") {
		t.Fatalf("mirror keys not cleaned up")
	}

	ctx := context.Background()
	if n, _ := store.client.Exists(ctx, "room:r1").Result(); n != 0 {
		t.Fatalf("liveness key survived deletion")
	}
}
