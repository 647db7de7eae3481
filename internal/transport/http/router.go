package http

import (
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// NewRouter assembles the HTTP surface: the websocket relay, the invite
// pages, and a health probe.
func NewRouter(ws *WSHandler, invite *InviteHandler) *httprouter.Router {
	router := httprouter.New()

	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, _ any) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "internal server error")
	}

	router.HandlerFunc(http.MethodGet, "/ws", ws.ServeWS)
	router.HandlerFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	router.GET("/join-room/:roomId", invite.ServeJoinRoom)
	router.GET("/join-room/:roomId/qr.png", invite.ServeRoomQR)
	router.POST("/rooms", invite.CreateRoom)

	return router
}
