package app

import (
	"context"
	"log"
	"sync"

	"quiz-sync-service/internal/domain"
	"quiz-sync-service/internal/protocol"
)

// RoomRepository abstracts how rooms are stored (in-memory, Redis-backed, etc).
type RoomRepository interface {
	GetOrCreate(roomID, quizURL string) *Room
	Get(roomID string) (*Room, bool)
	DeleteIfAbandoned(roomID string)
}

// AnswerArchiver copies submitted answers to durable storage. The in-memory
// log stays authoritative; archiving is best-effort.
type AnswerArchiver interface {
	ArchiveAnswer(ctx context.Context, roomID string, answer domain.Answer) error
}

// Presence mirrors connection changes to an external liveness store.
type Presence interface {
	PlayerConnected(roomID, playerID, username string)
	PlayerDisconnected(roomID, playerID string)
}

// RoomService is the single source of truth for room membership and event
// ordering. It is purely reactive: every operation is one state transition
// and its rebroadcast, executed as a single critical section on the room so
// every client observes events in the authoritative order.
type RoomService struct {
	rooms    RoomRepository
	archive  AnswerArchiver
	presence Presence
}

// NewRoomService builds the relay. archive and presence may be nil.
func NewRoomService(rooms RoomRepository, archive AnswerArchiver, presence Presence) *RoomService {
	return &RoomService{rooms: rooms, archive: archive, presence: presence}
}

// Join attaches a player to a room, creating the room lazily on first join.
// The caller receives a full snapshot; everyone else receives player-joined.
// The binding rules are checked inside the room lock, so a rejected joiner
// never mutates room state even when joins race.
func (s *RoomService) Join(_ context.Context, roomID, playerID, username, quizURL string) (domain.QuizRoom, error) {
	if roomID == "" || playerID == "" || username == "" || quizURL == "" {
		return domain.QuizRoom{}, domain.ErrMissingParams
	}

	room := s.rooms.GetOrCreate(roomID, quizURL)
	snapshot, err := room.join(playerID, username, quizURL)
	if err != nil {
		return domain.QuizRoom{}, err
	}

	if s.presence != nil {
		s.presence.PlayerConnected(roomID, playerID, username)
	}
	return snapshot, nil
}

// Subscribe returns the event stream for one room member. The caller must
// invoke cancel to avoid leaks.
func (s *RoomService) Subscribe(roomID, playerID string) (<-chan protocol.Envelope, func(), error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.subscribe(playerID)
	return ch, cancel, nil
}

// StartQuiz marks the room in-game and relays quiz-started to the others.
// Once set, unknown ids can no longer create a seat in the room.
func (s *RoomService) StartQuiz(roomID, playerID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.startQuiz(playerID)
	return nil
}

// ChangeField records the sender's focused field and relays it.
func (s *RoomService) ChangeField(roomID, playerID, fieldID string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.setField(playerID, fieldID)
}

// ChangeInput records the sender's live input value and relays it.
func (s *RoomService) ChangeInput(roomID, playerID, value string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.setInput(playerID, value)
}

// SubmitAnswer appends to the room's answer log in receipt order and relays
// the submission. The log only grows; it is never compacted or deduplicated.
func (s *RoomService) SubmitAnswer(ctx context.Context, roomID, playerID, fieldID, answer string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	entry := domain.Answer{FieldID: fieldID, Value: answer, PlayerID: playerID}
	room.submitAnswer(playerID, entry)

	if s.archive != nil {
		if err := s.archive.ArchiveAnswer(ctx, roomID, entry); err != nil {
			log.Printf("archive answer for room %s: %v", roomID, err)
		}
	}
	return nil
}

// Advisory relays pause/unpause/unlimited-time/end-quiz signals without any
// authoritative state change; the external quiz engine's own state is the
// truth for those.
func (s *RoomService) Advisory(roomID, playerID, intentType string) error {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	relay, ok := protocol.RelayType(intentType)
	if !ok {
		return domain.ErrUnknownIntent
	}
	room.advisory(playerID, protocol.Envelope{Type: relay})
	return nil
}

// Disconnect marks the player disconnected, relays player-left, and deletes
// the room once every member is disconnected. No grace period: a later rejoin
// recreates the room with empty history.
func (s *RoomService) Disconnect(roomID, playerID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	abandoned := room.markDisconnected(playerID)

	if s.presence != nil {
		s.presence.PlayerDisconnected(roomID, playerID)
	}
	if abandoned {
		s.rooms.DeleteIfAbandoned(roomID)
	}
}

// Room holds the authoritative state for one room id. It is mutated only by
// the relay, one intent at a time: every intent's mutation and its broadcast
// share one critical section under mu, so subscriber channels receive events
// in exactly the order the authoritative state adopted them.
type Room struct {
	id      string
	quizURL string

	mu      sync.RWMutex
	inGame  bool
	players map[string]*domain.Player
	order   []string
	answers []domain.Answer
	subs    map[*subscriber]struct{}
}

type subscriber struct {
	playerID string
	ch       chan protocol.Envelope
}

// NewRoom is exported for repository implementations. The quiz url is fixed
// for the lifetime of the room.
func NewRoom(id, quizURL string) *Room {
	return &Room{
		id:      id,
		quizURL: quizURL,
		players: make(map[string]*domain.Player),
		subs:    make(map[*subscriber]struct{}),
	}
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// QuizURL returns the external page path the room is bound to.
func (r *Room) QuizURL() string { return r.quizURL }

// InGame reports whether the quiz has been started.
func (r *Room) InGame() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inGame
}

// HasPlayer reports whether the room has ever seen this player id.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.players[playerID]
	return ok
}

// IsAbandoned reports whether every player in the room is disconnected.
func (r *Room) IsAbandoned() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.abandonedLocked()
}

func (r *Room) abandonedLocked() bool {
	for _, p := range r.players {
		if p.Connected {
			return false
		}
	}
	return true
}

// join validates the binding rules, upserts the player, and broadcasts
// player-joined in one critical section. The checks run against the same
// state the attach mutates, so racing joins cannot slip a player past the
// url binding or the in-game gate. A new player keeps its insertion position
// forever; a rejoining one keeps its history.
func (r *Room) join(playerID, username, quizURL string) (domain.QuizRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.quizURL != quizURL {
		return domain.QuizRoom{}, &domain.QuizURLMismatchError{QuizURL: r.quizURL}
	}
	player, known := r.players[playerID]
	if r.inGame && !known {
		return domain.QuizRoom{}, domain.ErrRoomInGame
	}

	if !known {
		player = &domain.Player{ID: playerID, Username: username}
		r.players[playerID] = player
		r.order = append(r.order, playerID)
	}
	player.Username = username
	player.Connected = true

	r.broadcastLocked(playerID, protocol.MustEnvelope(protocol.MsgPlayerJoined, protocol.PlayerJoinedS2C{
		ID:       playerID,
		Username: username,
	}))
	return r.snapshotLocked(), nil
}

func (r *Room) startQuiz(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inGame = true
	r.broadcastLocked(playerID, protocol.Envelope{Type: protocol.MsgQuizStarted})
}

func (r *Room) setField(playerID, fieldID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	player, ok := r.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	player.CurrentField = fieldID
	r.broadcastLocked(playerID, protocol.MustEnvelope(protocol.MsgFieldChanged, protocol.FieldChangedS2C{
		ID:      playerID,
		FieldID: fieldID,
	}))
	return nil
}

func (r *Room) setInput(playerID, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	player, ok := r.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	player.CurrentAnswer = value
	r.broadcastLocked(playerID, protocol.MustEnvelope(protocol.MsgInputChanged, protocol.InputChangedS2C{
		ID:    playerID,
		Value: value,
	}))
	return nil
}

func (r *Room) submitAnswer(playerID string, answer domain.Answer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, answer)
	r.broadcastLocked(playerID, protocol.MustEnvelope(protocol.MsgAnswerSubmitted, protocol.AnswerSubmittedS2C{
		ID:      playerID,
		FieldID: answer.FieldID,
		Answer:  answer.Value,
	}))
}

// advisory relays an event with no authoritative mutation. It still takes the
// write lock so advisory events keep their place in the room's single order.
func (r *Room) advisory(playerID string, env protocol.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(playerID, env)
}

// markDisconnected flips the player's connected flag, broadcasts player-left,
// and reports whether the room is now abandoned.
func (r *Room) markDisconnected(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if player, ok := r.players[playerID]; ok {
		player.Connected = false
	}
	r.broadcastLocked(playerID, protocol.MustEnvelope(protocol.MsgPlayerLeft, protocol.PlayerLeftS2C{ID: playerID}))
	return r.abandonedLocked()
}

// Snapshot returns a copy of the full room state.
func (r *Room) Snapshot() domain.QuizRoom {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() domain.QuizRoom {
	players := make(map[string]domain.Player, len(r.players))
	for id, p := range r.players {
		players[id] = *p
	}
	order := make([]string, len(r.order))
	copy(order, r.order)
	answers := make([]domain.Answer, len(r.answers))
	copy(answers, r.answers)
	return domain.QuizRoom{
		ID:          r.id,
		InGame:      r.inGame,
		QuizURL:     r.quizURL,
		Players:     players,
		PlayerOrder: order,
		Answers:     answers,
	}
}

func (r *Room) subscribe(playerID string) (<-chan protocol.Envelope, func()) {
	sub := &subscriber{playerID: playerID, ch: make(chan protocol.Envelope, 32)}

	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subs[sub]; ok {
			delete(r.subs, sub)
			close(sub.ch)
		}
		r.mu.Unlock()
	}
	return sub.ch, cancel
}

// broadcastLocked relays an event to every subscriber except the sender.
// Callers hold r.mu. A full subscriber buffer sheds its oldest event so one
// slow client cannot stall the relay; the drop-retry loop never blocks, which
// matters because cancel needs the same lock to close the channel. Sends are
// serialized by r.mu, so the retry after a shed always lands.
func (r *Room) broadcastLocked(exclude string, env protocol.Envelope) {
	for sub := range r.subs {
		if sub.playerID == exclude {
			continue
		}
		for {
			select {
			case sub.ch <- env:
			default:
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}
