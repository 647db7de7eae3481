package client

// FieldIndicator explains why a peer's marker sits on a field.
type FieldIndicator int

const (
	// IndicatorEditing means the peer is currently focused on the field.
	IndicatorEditing FieldIndicator = iota
	// IndicatorAnswered means the peer submitted an answer for the field.
	IndicatorAnswered
)

// QuizPage abstracts the external quiz page the engine drives but does not
// own. A real implementation binds to the host environment (DOM queries and
// synthetic clicks); tests use a fake. Quizzes without discrete fields report
// HasFields false and the engine skips all field handling for them.
type QuizPage interface {
	// HasFields reports whether the quiz exposes discrete answer fields.
	HasFields() bool
	// ActiveFieldID returns the currently highlighted field id, or "".
	ActiveFieldID() string
	// ActivateField drives the host page's own focus change for the field.
	ActivateField(fieldID string)
	// FieldSolved reports whether the host engine already marked the field
	// as correctly answered.
	FieldSolved(fieldID string) bool
	// SetFieldText replaces the preview text shown inside a field.
	SetFieldText(fieldID, text string)
	// MarkField tags a field with a peer's color index and an indicator.
	MarkField(fieldID string, colorIndex int, indicator FieldIndicator)
	// ClearFieldIndicator removes one indicator from a field, keeping any
	// color tint in place.
	ClearFieldIndicator(fieldID string, indicator FieldIndicator)
	// ClearFieldColor removes a peer's color tint from a field.
	ClearFieldColor(fieldID string, colorIndex int)

	// AnswerBoxValue returns the current content of the local input box.
	AnswerBoxValue() string
	// SetAnswerBox writes the input box and dispatches the host page's
	// native change notification so its validation path runs.
	SetAnswerBox(value string)

	// UpdateShadowInput renders a peer's live input next to the board.
	UpdateShadowInput(playerID string, colorIndex int, value string)
	// RemoveShadowInput drops a peer's shadow input box.
	RemoveShadowInput(playerID string)

	// Synthetic presses of the host page's own controls.
	PressStart()
	PressPause()
	PressUnpause()
	PressStopTimer()
	PressGiveUp()

	// TimerText returns the host page's timer display, e.g. "04:32".
	TimerText() string
}
