package client

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quiz-sync-service/internal/protocol"
)

const (
	reconnectInitial = time.Second
	reconnectMax     = 30 * time.Second
)

// Transport is the reconnecting websocket link between one engine and the
// relay. The connection is parameterized by player id, username, current
// quiz page path, and target room id; the server refuses it when any of
// these is missing.
type Transport struct {
	serverURL string
	identity  Identity
	quizURL   string
	roomID    string
	engine    *Engine

	// OnWrongQuizURL receives the room's real quiz url. The host environment
	// is expected to navigate there; a fresh Run then retries the join. This
	// is the one built-in retry path.
	OnWrongQuizURL func(quizURL string)

	// Store, when set, remembers the room across the wrong-quiz-url
	// navigation: the room id is saved before OnWrongQuizURL fires and
	// cleared again once a join succeeds.
	Store *IdentityStore

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// NewTransport builds the relay link. serverURL is the websocket base, e.g.
// "ws://localhost:8080".
func NewTransport(serverURL string, identity Identity, quizURL, roomID string, engine *Engine) *Transport {
	return &Transport{
		serverURL: serverURL,
		identity:  identity,
		quizURL:   quizURL,
		roomID:    roomID,
		engine:    engine,
	}
}

func (t *Transport) dialURL() string {
	query := url.Values{}
	query.Set("id", t.identity.ID)
	query.Set("username", t.identity.Username)
	query.Set("quizUrl", t.quizURL)
	query.Set("roomId", t.roomID)
	return t.serverURL + "/ws?" + query.Encode()
}

// Run connects and pumps relayed events into the engine until the context is
// canceled. Connection drops reconnect with backoff; the persisted player id
// makes every rejoin land on the same seat and a fresh snapshot resyncs the
// replica.
func (t *Transport) Run(ctx context.Context) error {
	backoff := reconnectInitial
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.dialURL(), nil)
		if err != nil {
			log.Printf("dial %s: %v", t.serverURL, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}
		backoff = reconnectInitial

		t.writeMu.Lock()
		t.conn = conn
		t.writeMu.Unlock()

		err = t.readLoop(ctx, conn)
		conn.Close()
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// readLoop returns a non-nil error only when the session must not be
// retried (context canceled or the room lives on another quiz url).
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("ws read: %v", err)
			return nil
		}

		switch env.Type {
		case protocol.MsgWrongQuizURL:
			payload, err := protocol.DecodePayload[protocol.WrongQuizURLS2C](env)
			if err != nil {
				return err
			}
			if t.Store != nil {
				if err := t.Store.SetAutoJoinRoom(t.roomID); err != nil {
					log.Printf("remember room %s: %v", t.roomID, err)
				}
			}
			if t.OnWrongQuizURL != nil {
				t.OnWrongQuizURL(payload.QuizURL)
			}
			return &WrongQuizURLError{QuizURL: payload.QuizURL}
		case protocol.MsgRoomJoined:
			if t.Store != nil {
				if err := t.Store.ClearAutoJoinRoom(); err != nil {
					log.Printf("clear remembered room: %v", err)
				}
			}
		}

		if err := t.engine.HandleMessage(env); err != nil {
			log.Printf("handle %s: %v", env.Type, err)
		}
	}
}

// Send implements Sender.
func (t *Transport) Send(env protocol.Envelope) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	return t.conn.WriteJSON(env)
}

// WrongQuizURLError stops the session; the caller should navigate to the
// carried url and start a new one.
type WrongQuizURLError struct {
	QuizURL string
}

func (e *WrongQuizURLError) Error() string {
	return "room is bound to quiz url " + e.QuizURL
}
