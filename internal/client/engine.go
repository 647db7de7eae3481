package client

import (
	"log"
	"regexp"
	"sync"

	"quiz-sync-service/internal/domain"
	"quiz-sync-service/internal/protocol"
)

// Sender pushes an intent to the relay.
type Sender interface {
	Send(env protocol.Envelope) error
}

// RosterEventKind classifies a change to the replicated player map.
type RosterEventKind int

const (
	RosterAdded RosterEventKind = iota
	RosterChanged
	RosterLeft
)

// RosterEvent is published after every write to the replicated player map so
// UI components (the room players panel) can react without intercepting the
// map itself.
type RosterEvent struct {
	Kind   RosterEventKind
	Player domain.Player
	Index  int
}

// The host page ends the quiz on its own inside this window; a forced end on
// top of that would double-fire.
var timerFinalTicks = regexp.MustCompile(`^00:0[0-3]$`)

// Engine is the bidirectional bridge between the host page and the wire
// protocol for exactly one local player. It observes local actions and turns
// them into intents, and replays peers' intents onto the local copy of the
// foreign quiz engine while preserving the local player's editing state.
//
// Remote messages must be delivered from a single goroutine (the transport
// read loop); replayMu keeps each replay atomic with respect to the others.
// Local observations are never blocked by a replay in progress.
type Engine struct {
	page     QuizPage
	sender   Sender
	detector SubmissionDetector
	localID  string

	replayMu sync.Mutex

	mu            sync.Mutex
	room          domain.QuizRoom
	lastFieldID   string
	currentAnswer string
	// suppressSignal makes the submission observation ignore the one counter
	// mutation the engine's own programmatic replay is about to cause. Set
	// immediately before the synthetic write, consumed by the observation,
	// and cleared at the end of the replay so it cannot leak.
	suppressSignal bool

	rosterFns []func(RosterEvent)
}

// NewEngine builds the reconciliation engine for one local player. detector
// may be nil, in which case every counter mutation counts as a submission.
func NewEngine(localID string, page QuizPage, sender Sender, detector SubmissionDetector) *Engine {
	if detector == nil {
		detector = CounterMutationDetector{}
	}
	return &Engine{
		page:     page,
		sender:   sender,
		detector: detector,
		localID:  localID,
	}
}

// OnRoster registers a callback invoked after every replica player mutation.
func (e *Engine) OnRoster(fn func(RosterEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rosterFns = append(e.rosterFns, fn)
}

// Room returns a copy of the replicated room state.
func (e *Engine) Room() domain.QuizRoom {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyRoom(e.room)
}

// publishLocked fans a roster event out to observers. Callers hold e.mu; the
// callbacks run outside it so they may call back into the engine.
func (e *Engine) publishLocked(kind RosterEventKind, playerID string) func() {
	fns := e.rosterFns
	player, ok := e.room.Players[playerID]
	if !ok {
		return func() {}
	}
	index := e.room.PlayerIndex(playerID)
	return func() {
		for _, fn := range fns {
			fn(RosterEvent{Kind: kind, Player: player, Index: index})
		}
	}
}

func (e *Engine) send(env protocol.Envelope) {
	if err := e.sender.Send(env); err != nil {
		log.Printf("send %s: %v", env.Type, err)
	}
}

// ObserveFieldFocus reports that the host page's highlighted field moved.
// The previous field is remembered as lastFieldID because the submission
// signal fires after focus may have already moved on.
func (e *Engine) ObserveFieldFocus(fieldID string) {
	e.mu.Lock()
	local, ok := e.room.Players[e.localID]
	if !ok || local.CurrentField == fieldID {
		e.mu.Unlock()
		return
	}
	e.lastFieldID = local.CurrentField
	local.CurrentField = fieldID
	e.room.Players[e.localID] = local
	publish := e.publishLocked(RosterChanged, e.localID)
	e.mu.Unlock()

	publish()
	e.send(protocol.MustEnvelope(protocol.MsgChangeField, protocol.ChangeFieldC2S{FieldID: fieldID}))
}

// ObserveEdit reports a raw keystroke or paste on the answer box. The
// prediction runs before the host applies the edit; an empty prediction
// keeps the last known value so predictor edge cases cannot wipe state.
func (e *Engine) ObserveEdit(state InputState, ev EditEvent) {
	predicted := PredictInput(state, ev)

	e.mu.Lock()
	if predicted == "" {
		predicted = e.currentAnswer
	}
	e.currentAnswer = predicted
	if local, ok := e.room.Players[e.localID]; ok {
		local.CurrentAnswer = predicted
		e.room.Players[e.localID] = local
	}
	e.mu.Unlock()

	e.send(protocol.MustEnvelope(protocol.MsgChangeInput, protocol.ChangeInputC2S{Value: predicted}))
}

// ObserveSubmissionSignal reports a mutation of the host page's submission
// counter. A mutation caused by the engine's own replay consumes the
// suppression flag and is dropped; a genuine one becomes a submit-answer
// intent using the field the player was on when the edit completed.
func (e *Engine) ObserveSubmissionSignal(sig SubmissionSignal) {
	e.mu.Lock()
	if e.suppressSignal {
		e.suppressSignal = false
		e.mu.Unlock()
		return
	}
	if !e.detector.Submitted(sig) {
		e.mu.Unlock()
		return
	}

	answer := e.currentAnswer
	fieldID := e.lastFieldID
	e.room.Answers = append(e.room.Answers, domain.Answer{
		FieldID:  fieldID,
		Value:    answer,
		PlayerID: e.localID,
	})
	e.currentAnswer = ""
	if local, ok := e.room.Players[e.localID]; ok {
		local.CurrentAnswer = ""
		e.room.Players[e.localID] = local
	}
	e.mu.Unlock()

	e.send(protocol.MustEnvelope(protocol.MsgSubmitAnswer, protocol.SubmitAnswerC2S{FieldID: fieldID, Answer: answer}))
	e.send(protocol.MustEnvelope(protocol.MsgChangeInput, protocol.ChangeInputC2S{Value: ""}))
}

// ObserveControl reports a genuine (user-initiated) press of one of the host
// page's quiz controls so it can be relayed as an intent. Programmatic
// presses performed by the engine itself must not be reported back.
func (e *Engine) ObserveControl(intentType string) {
	switch intentType {
	case protocol.MsgStartQuiz:
		e.mu.Lock()
		e.room.InGame = true
		e.mu.Unlock()
		e.send(protocol.Envelope{Type: protocol.MsgStartQuiz})
	case protocol.MsgPauseQuiz, protocol.MsgUnpauseQuiz, protocol.MsgUnlimitedTimeEnabled, protocol.MsgEndQuiz:
		e.send(protocol.Envelope{Type: intentType})
	}
}

// HandleMessage replays one relayed event against the local host page.
func (e *Engine) HandleMessage(env protocol.Envelope) error {
	e.replayMu.Lock()
	defer e.replayMu.Unlock()

	switch env.Type {
	case protocol.MsgRoomJoined:
		payload, err := protocol.DecodePayload[protocol.RoomJoinedS2C](env)
		if err != nil {
			return err
		}
		e.applySnapshot(payload.Room)
	case protocol.MsgPlayerJoined:
		payload, err := protocol.DecodePayload[protocol.PlayerJoinedS2C](env)
		if err != nil {
			return err
		}
		e.playerJoined(payload)
	case protocol.MsgQuizStarted:
		e.quizStarted()
	case protocol.MsgFieldChanged:
		payload, err := protocol.DecodePayload[protocol.FieldChangedS2C](env)
		if err != nil {
			return err
		}
		e.fieldChanged(payload)
	case protocol.MsgInputChanged:
		payload, err := protocol.DecodePayload[protocol.InputChangedS2C](env)
		if err != nil {
			return err
		}
		e.inputChanged(payload)
	case protocol.MsgAnswerSubmitted:
		payload, err := protocol.DecodePayload[protocol.AnswerSubmittedS2C](env)
		if err != nil {
			return err
		}
		e.answerSubmitted(payload)
	case protocol.MsgQuizPaused:
		e.page.PressPause()
	case protocol.MsgQuizUnpaused:
		e.page.PressUnpause()
	case protocol.MsgOnUnlimitedTimeEnabled:
		e.page.PressStopTimer()
	case protocol.MsgQuizEnded:
		e.quizEnded()
	case protocol.MsgPlayerLeft:
		payload, err := protocol.DecodePayload[protocol.PlayerLeftS2C](env)
		if err != nil {
			return err
		}
		e.playerLeft(payload)
	case protocol.MsgWrongQuizURL, protocol.MsgError:
		// handled by the transport layer
	default:
		return domain.ErrUnknownIntent
	}
	return nil
}

// applySnapshot adopts the authoritative room state delivered on join and
// seeds the local editing state from the page.
func (e *Engine) applySnapshot(room domain.QuizRoom) {
	e.mu.Lock()
	e.room = copyRoom(room)
	if e.room.Players == nil {
		e.room.Players = make(map[string]domain.Player)
	}
	e.currentAnswer = e.page.AnswerBoxValue()
	if e.page.HasFields() {
		e.lastFieldID = e.page.ActiveFieldID()
		if local, ok := e.room.Players[e.localID]; ok {
			local.CurrentField = e.lastFieldID
			e.room.Players[e.localID] = local
		}
	}
	var publishes []func()
	for _, id := range e.room.PlayerOrder {
		publishes = append(publishes, e.publishLocked(RosterAdded, id))
	}
	e.mu.Unlock()

	for _, publish := range publishes {
		publish()
	}
}

func (e *Engine) playerJoined(payload protocol.PlayerJoinedS2C) {
	e.mu.Lock()
	kind := RosterChanged
	player, ok := e.room.Players[payload.ID]
	if !ok {
		kind = RosterAdded
		player = domain.Player{ID: payload.ID}
		e.room.PlayerOrder = append(e.room.PlayerOrder, payload.ID)
	}
	player.Username = payload.Username
	player.Connected = true
	e.room.Players[payload.ID] = player
	publish := e.publishLocked(kind, payload.ID)
	e.mu.Unlock()

	publish()
}

// quizStarted presses the host start control once, then announces which
// field the host engine focused for us.
func (e *Engine) quizStarted() {
	e.page.PressStart()

	e.mu.Lock()
	e.room.InGame = true
	e.mu.Unlock()

	if !e.page.HasFields() {
		return
	}
	fieldID := e.page.ActiveFieldID()
	if fieldID == "" {
		return
	}
	e.mu.Lock()
	if local, ok := e.room.Players[e.localID]; ok {
		local.CurrentField = fieldID
		e.room.Players[e.localID] = local
	}
	e.mu.Unlock()
	e.send(protocol.MustEnvelope(protocol.MsgChangeField, protocol.ChangeFieldC2S{FieldID: fieldID}))
}

// fieldChanged moves a peer's visual ownership marker. The previous field
// keeps its text and tint when the host already marked it correct; erasing a
// solved cell would destroy real progress.
func (e *Engine) fieldChanged(payload protocol.FieldChangedS2C) {
	e.mu.Lock()
	player, ok := e.room.Players[payload.ID]
	if !ok {
		e.mu.Unlock()
		return
	}
	oldFieldID := player.CurrentField
	player.CurrentField = payload.FieldID
	e.room.Players[payload.ID] = player
	index := e.room.PlayerIndex(payload.ID)
	publish := e.publishLocked(RosterChanged, payload.ID)
	e.mu.Unlock()

	if e.page.HasFields() {
		if oldFieldID != "" {
			e.page.ClearFieldIndicator(oldFieldID, IndicatorEditing)
			if !e.page.FieldSolved(oldFieldID) {
				e.page.SetFieldText(oldFieldID, "")
				e.page.ClearFieldColor(oldFieldID, index)
			}
		}
		if payload.FieldID != "" {
			e.page.MarkField(payload.FieldID, index, IndicatorEditing)
		}
	}
	publish()
}

func (e *Engine) inputChanged(payload protocol.InputChangedS2C) {
	e.mu.Lock()
	player, ok := e.room.Players[payload.ID]
	if !ok {
		e.mu.Unlock()
		return
	}
	player.CurrentAnswer = payload.Value
	e.room.Players[payload.ID] = player
	fieldID := player.CurrentField
	index := e.room.PlayerIndex(payload.ID)
	publish := e.publishLocked(RosterChanged, payload.ID)
	e.mu.Unlock()

	if e.page.HasFields() && fieldID != "" {
		e.page.SetFieldText(fieldID, payload.Value)
	}
	e.page.UpdateShadowInput(payload.ID, index, payload.Value)
	publish()
}

// answerSubmitted drives the local player's real input box through the host
// page's native validation path so the host engine scores the peer's answer,
// then restores the local player's own editing state byte for byte.
func (e *Engine) answerSubmitted(payload protocol.AnswerSubmittedS2C) {
	e.mu.Lock()
	e.room.Answers = append(e.room.Answers, domain.Answer{
		FieldID:  payload.FieldID,
		Value:    payload.Answer,
		PlayerID: payload.ID,
	})
	index := e.room.PlayerIndex(payload.ID)
	e.suppressSignal = true
	e.mu.Unlock()

	hasFields := e.page.HasFields()
	prevFieldID := ""
	if hasFields {
		prevFieldID = e.page.ActiveFieldID()
	}
	prevValue := e.page.AnswerBoxValue()

	if hasFields && payload.FieldID != "" {
		e.page.ActivateField(payload.FieldID)
		e.page.MarkField(payload.FieldID, index, IndicatorAnswered)
	}

	e.page.SetAnswerBox(payload.Answer)

	if hasFields && payload.FieldID != "" && prevFieldID != "" {
		if prevFieldID == payload.FieldID {
			// The host advanced our focus after accepting the answer; adopt
			// the new field and announce it.
			e.adoptActiveField()
		} else {
			e.page.ActivateField(prevFieldID)
		}
	}

	e.page.SetAnswerBox(prevValue)

	e.mu.Lock()
	e.currentAnswer = prevValue
	if local, ok := e.room.Players[e.localID]; ok {
		local.CurrentAnswer = prevValue
		e.room.Players[e.localID] = local
	}
	// The host may never fire the counter for a rejected value; drop the
	// flag so it cannot swallow the next genuine submission.
	e.suppressSignal = false
	e.mu.Unlock()
}

func (e *Engine) adoptActiveField() {
	fieldID := e.page.ActiveFieldID()
	e.mu.Lock()
	e.lastFieldID = fieldID
	if local, ok := e.room.Players[e.localID]; ok {
		local.CurrentField = fieldID
		e.room.Players[e.localID] = local
	}
	e.mu.Unlock()
	e.send(protocol.MustEnvelope(protocol.MsgChangeField, protocol.ChangeFieldC2S{FieldID: fieldID}))
}

// quizEnded presses the host's give-up control unless the timer is in its
// final ticks, in which case the host ends the quiz by itself.
func (e *Engine) quizEnded() {
	e.mu.Lock()
	e.room.InGame = false
	e.mu.Unlock()

	if timerFinalTicks.MatchString(e.page.TimerText()) {
		return
	}
	e.page.PressGiveUp()
}

func (e *Engine) playerLeft(payload protocol.PlayerLeftS2C) {
	e.mu.Lock()
	player, ok := e.room.Players[payload.ID]
	if ok {
		player.Connected = false
		e.room.Players[payload.ID] = player
	}
	publish := e.publishLocked(RosterLeft, payload.ID)
	e.mu.Unlock()

	e.page.RemoveShadowInput(payload.ID)
	publish()
}

func copyRoom(room domain.QuizRoom) domain.QuizRoom {
	out := room
	out.Players = make(map[string]domain.Player, len(room.Players))
	for id, p := range room.Players {
		out.Players[id] = p
	}
	out.PlayerOrder = append([]string(nil), room.PlayerOrder...)
	out.Answers = append([]domain.Answer(nil), room.Answers...)
	return out
}
