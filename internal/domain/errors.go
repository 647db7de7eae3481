package domain

import "errors"

var (
	// ErrMissingParams is returned when a join arrives without id, username,
	// quiz url, or room id. The connection is refused before any state change.
	ErrMissingParams = errors.New("missing join parameters")
	// ErrRoomInGame is returned when an id unknown to the room tries to join
	// after the quiz has started. Reconnecting known ids are always allowed.
	ErrRoomInGame = errors.New("room is already in a game")
	// ErrRoomNotFound is returned when an intent references a room that does
	// not exist (never created, or deleted after everyone disconnected).
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when an intent arrives for a player the
	// room has never seen.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrUnknownIntent is returned for message types the relay does not speak.
	ErrUnknownIntent = errors.New("unknown intent type")
)

// QuizURLMismatchError signals that the room is bound to a different external
// page than the one the client is on. It carries the room's real url so the
// client can navigate there and retry the join.
type QuizURLMismatchError struct {
	QuizURL string
}

func (e *QuizURLMismatchError) Error() string {
	return "room is bound to a different quiz url: " + e.QuizURL
}
