// Package protocol defines the typed message vocabulary exchanged between the
// relay and its clients. Every message travels as an Envelope with a type tag
// and a JSON payload.
package protocol

import (
	"encoding/json"
	"fmt"

	"quiz-sync-service/internal/domain"
)

// Client to server intents.
const (
	MsgStartQuiz            = "start-quiz"
	MsgChangeField          = "change-field"
	MsgChangeInput          = "change-input"
	MsgSubmitAnswer         = "submit-answer"
	MsgPauseQuiz            = "pause-quiz"
	MsgUnpauseQuiz          = "unpause-quiz"
	MsgUnlimitedTimeEnabled = "unlimited-time-enabled"
	MsgEndQuiz              = "end-quiz"
)

// Server to client events.
const (
	MsgWrongQuizURL           = "wrong-quiz-url"
	MsgRoomJoined             = "room-joined"
	MsgPlayerJoined           = "player-joined"
	MsgPlayerLeft             = "player-left"
	MsgQuizStarted            = "quiz-started"
	MsgFieldChanged           = "field-changed"
	MsgInputChanged           = "input-changed"
	MsgAnswerSubmitted        = "answer-submitted"
	MsgQuizPaused             = "quiz-paused"
	MsgQuizUnpaused           = "quiz-unpaused"
	MsgOnUnlimitedTimeEnabled = "on-unlimited-time-enabled"
	MsgQuizEnded              = "quiz-ended"
	MsgError                  = "error"
)

// Envelope is the wire frame for every message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope wraps a payload struct into an Envelope. A nil payload produces
// a bare event (lifecycle signals carry no body).
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	env := Envelope{Type: msgType}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	env.Payload = raw
	return env, nil
}

// MustEnvelope is NewEnvelope for payloads that cannot fail to marshal.
func MustEnvelope(msgType string, payload any) Envelope {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// DecodePayload unmarshals an envelope payload into a concrete message struct.
func DecodePayload[T any](env Envelope) (T, error) {
	var payload T
	if len(env.Payload) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return payload, nil
}

// ChangeFieldC2S carries the field the sender is now focused on.
type ChangeFieldC2S struct {
	FieldID string `json:"fieldId"`
}

// ChangeInputC2S carries the sender's live, not yet submitted input value.
type ChangeInputC2S struct {
	Value string `json:"value"`
}

// SubmitAnswerC2S carries a completed answer. FieldID is empty for quizzes
// without discrete fields.
type SubmitAnswerC2S struct {
	FieldID string `json:"fieldId,omitempty"`
	Answer  string `json:"answer"`
}

// WrongQuizURLS2C tells a joiner which page the room is actually bound to.
type WrongQuizURLS2C struct {
	QuizURL string `json:"quizUrl"`
}

// RoomJoinedS2C delivers the full authoritative snapshot to the joining
// client only.
type RoomJoinedS2C struct {
	Room domain.QuizRoom `json:"room"`
}

// PlayerJoinedS2C is broadcast to existing members when someone joins.
type PlayerJoinedS2C struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PlayerLeftS2C is broadcast when a member disconnects.
type PlayerLeftS2C struct {
	ID string `json:"id"`
}

// FieldChangedS2C relays a change-field intent, annotated with the sender.
type FieldChangedS2C struct {
	ID      string `json:"id"`
	FieldID string `json:"fieldId"`
}

// InputChangedS2C relays a change-input intent, annotated with the sender.
type InputChangedS2C struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// AnswerSubmittedS2C relays a submit-answer intent, annotated with the sender.
type AnswerSubmittedS2C struct {
	ID      string `json:"id"`
	FieldID string `json:"fieldId,omitempty"`
	Answer  string `json:"answer"`
}

// ErrorS2C reports a failure back to the offending client only.
type ErrorS2C struct {
	Message string `json:"message"`
}

// relayed maps each advisory intent to the event rebroadcast to the rest of
// the room. Intents with authoritative state changes are mapped explicitly by
// the relay instead.
var relayed = map[string]string{
	MsgStartQuiz:            MsgQuizStarted,
	MsgPauseQuiz:            MsgQuizPaused,
	MsgUnpauseQuiz:          MsgQuizUnpaused,
	MsgUnlimitedTimeEnabled: MsgOnUnlimitedTimeEnabled,
	MsgEndQuiz:              MsgQuizEnded,
}

// RelayType returns the server-to-client event name for a lifecycle intent.
func RelayType(intent string) (string, bool) {
	out, ok := relayed[intent]
	return out, ok
}
