package domain

// Player is one participant in a room. Players are never removed once they
// have joined; Connected toggles across disconnect/rejoin so identity and
// history survive reconnection.
type Player struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Connected     bool   `json:"connected"`
	CurrentField  string `json:"currentField,omitempty"`
	CurrentAnswer string `json:"currentAnswer"`
}

// Answer is one submitted answer, immutable once appended to the room log.
// FieldID is empty for free-form single-answer quizzes.
type Answer struct {
	FieldID  string `json:"fieldId,omitempty"`
	Value    string `json:"value"`
	PlayerID string `json:"playerId"`
}

// QuizRoom is a snapshot of the authoritative room state. PlayerOrder records
// join insertion order, which fixes each player's stable color index.
type QuizRoom struct {
	ID          string            `json:"id"`
	InGame      bool              `json:"inGame"`
	QuizURL     string            `json:"quizUrl"`
	Players     map[string]Player `json:"players"`
	PlayerOrder []string          `json:"playerOrder"`
	Answers     []Answer          `json:"answers"`
}

// PlayerIndex returns the join-order index of a player, or -1 if unknown.
func (r QuizRoom) PlayerIndex(playerID string) int {
	for i, id := range r.PlayerOrder {
		if id == playerID {
			return i
		}
	}
	return -1
}
