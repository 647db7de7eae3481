package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-sync-service/internal/app"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository and
// app.Presence.
// Notes:
//   - Rooms still live in a local in-process map so the existing broadcast
//     fabric keeps working; Redis mirrors liveness and the connected roster.
//   - Presence writes are best-effort: the in-memory room stays authoritative
//     even when Redis is unreachable.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) GetOrCreate(roomID, quizURL string) *app.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		return room
	}
	room := app.NewRoom(roomID, quizURL)
	s.rooms[roomID] = room
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.roomKey(roomID), quizURL, s.ttl).Err()
	return room
}

func (s *RoomStore) Get(roomID string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *RoomStore) DeleteIfAbandoned(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if room.IsAbandoned() {
		delete(s.rooms, roomID)
		ctx := context.Background()
		_ = s.client.Del(ctx, s.roomKey(roomID)).Err()
		_ = s.client.Del(ctx, s.rosterKey(roomID)).Err()
	}
}

// PlayerConnected records the member in the room's roster hash.
func (s *RoomStore) PlayerConnected(roomID, playerID, username string) {
	ctx := context.Background()
	_ = s.client.HSet(ctx, s.rosterKey(roomID), playerID, username).Err()
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, s.rosterKey(roomID), s.ttl).Err()
	}
}

// PlayerDisconnected removes the member from the roster hash. The player
// keeps its seat in the in-memory room; only the liveness mirror shrinks.
func (s *RoomStore) PlayerDisconnected(roomID, playerID string) {
	_ = s.client.HDel(context.Background(), s.rosterKey(roomID), playerID).Err()
}

func (s *RoomStore) roomKey(roomID string) string {
	return "room:" + roomID
}

func (s *RoomStore) rosterKey(roomID string) string {
	return "room:" + roomID + ":players"
}
