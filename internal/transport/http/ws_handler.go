package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-sync-service/internal/app"
	"quiz-sync-service/internal/domain"
	"quiz-sync-service/internal/protocol"
)

type WSHandler struct {
	service  *app.RoomService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the relay.
// The connection is parameterized by player id, username, current quiz page
// path, and target room id; a missing parameter refuses the connection before
// any state mutation.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	playerID := query.Get("id")
	username := query.Get("username")
	quizURL := query.Get("quizUrl")
	roomID := query.Get("roomId")
	if playerID == "" || username == "" || quizURL == "" || roomID == "" {
		http.Error(w, "missing id, username, quizUrl, or roomId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	snapshot, err := h.service.Join(r.Context(), roomID, playerID, username, quizURL)
	if err != nil {
		var mismatch *domain.QuizURLMismatchError
		if errors.As(err, &mismatch) {
			// The client is expected to navigate to the room's real url and
			// retry the join.
			_ = conn.WriteJSON(protocol.MustEnvelope(protocol.MsgWrongQuizURL, protocol.WrongQuizURLS2C{
				QuizURL: mismatch.QuizURL,
			}))
			return
		}
		_ = conn.WriteJSON(protocol.MustEnvelope(protocol.MsgError, protocol.ErrorS2C{Message: err.Error()}))
		return
	}

	events, cancel, err := h.service.Subscribe(roomID, playerID)
	if err != nil {
		_ = conn.WriteJSON(protocol.MustEnvelope(protocol.MsgError, protocol.ErrorS2C{Message: err.Error()}))
		return
	}
	defer cancel()
	defer h.service.Disconnect(roomID, playerID)

	send := make(chan protocol.Envelope, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- event:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- protocol.MustEnvelope(protocol.MsgRoomJoined, protocol.RoomJoinedS2C{Room: snapshot})
	log.Printf("player %s (%s) connected to room %s", username, playerID, roomID)

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}
		if err := h.dispatch(r, roomID, playerID, env); err != nil {
			send <- protocol.MustEnvelope(protocol.MsgError, protocol.ErrorS2C{Message: err.Error()})
		}
	}

	log.Printf("player %s (%s) disconnected from room %s", username, playerID, roomID)

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// dispatch applies one intent: the corresponding authoritative mutation, then
// a rebroadcast to every other room member.
func (h *WSHandler) dispatch(r *http.Request, roomID, playerID string, env protocol.Envelope) error {
	switch env.Type {
	case protocol.MsgStartQuiz:
		return h.service.StartQuiz(roomID, playerID)
	case protocol.MsgChangeField:
		payload, err := protocol.DecodePayload[protocol.ChangeFieldC2S](env)
		if err != nil {
			return err
		}
		return h.service.ChangeField(roomID, playerID, payload.FieldID)
	case protocol.MsgChangeInput:
		payload, err := protocol.DecodePayload[protocol.ChangeInputC2S](env)
		if err != nil {
			return err
		}
		return h.service.ChangeInput(roomID, playerID, payload.Value)
	case protocol.MsgSubmitAnswer:
		payload, err := protocol.DecodePayload[protocol.SubmitAnswerC2S](env)
		if err != nil {
			return err
		}
		return h.service.SubmitAnswer(r.Context(), roomID, playerID, payload.FieldID, payload.Answer)
	case protocol.MsgPauseQuiz, protocol.MsgUnpauseQuiz, protocol.MsgUnlimitedTimeEnabled, protocol.MsgEndQuiz:
		return h.service.Advisory(roomID, playerID, env.Type)
	default:
		return domain.ErrUnknownIntent
	}
}
