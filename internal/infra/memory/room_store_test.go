package memory

import (
	"context"
	"testing"

	"quiz-sync-service/internal/app"
)

func TestGetOrCreateBindsFirstURL(t *testing.T) {
	store := NewRoomStore()

	room := store.GetOrCreate("r1", "/quizzes/capitals")
	again := store.GetOrCreate("r1", "/quizzes/flags")

	if room != again {
		t.Fatalf("expected the same room instance per id")
	}
	if again.QuizURL() != "/quizzes/capitals" {
		t.Fatalf("expected first creator's url kept, got %q", again.QuizURL())
	}
}

func TestDeleteIfAbandonedKeepsOccupiedRooms(t *testing.T) {
	store := NewRoomStore()
	service := app.NewRoomService(store, nil, nil)

	if _, err := service.Join(context.Background(), "r1", "u1", "Alice", "/quizzes/capitals"); err != nil {
		t.Fatalf("join: %v", err)
	}

	store.DeleteIfAbandoned("r1")
	if _, ok := store.Get("r1"); !ok {
		t.Fatalf("occupied room was deleted")
	}

	service.Disconnect("r1", "u1")
	if _, ok := store.Get("r1"); ok {
		t.Fatalf("abandoned room was kept")
	}

	// Deleting an unknown id is a no-op.
	store.DeleteIfAbandoned("missing")
}
