package memory

import (
	"sync"

	"quiz-sync-service/internal/app"
)

// RoomStore is an in-memory implementation of app.RoomRepository. Exactly one
// authoritative Room exists per live room id.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*app.Room),
	}
}

// GetOrCreate returns the room, creating it lazily on first join. The quiz
// url is bound by whoever creates the room first.
func (s *RoomStore) GetOrCreate(roomID, quizURL string) *app.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		return room
	}
	room := app.NewRoom(roomID, quizURL)
	s.rooms[roomID] = room
	return room
}

func (s *RoomStore) Get(roomID string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

// DeleteIfAbandoned drops the room once every player is disconnected. The
// in-memory answer log goes with it; a later rejoin starts from scratch.
func (s *RoomStore) DeleteIfAbandoned(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if room.IsAbandoned() {
		delete(s.rooms, roomID)
	}
}
