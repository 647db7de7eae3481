package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/singleflight"
)

const joinRoomHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Join room {{.RoomID}}</title>
</head>
<body>
  <h1>Room {{.RoomID}}</h1>
  <p>Install the companion client, then open this link on the quiz page to play along.</p>
  <p><a href="{{.JoinURL}}">{{.JoinURL}}</a></p>
  <img src="{{.QRURL}}" alt="QR code for room {{.RoomID}}" width="256" height="256">
</body>
</html>
`

var joinRoomTemplate = template.Must(template.New("join-room").Parse(joinRoomHTML))

// InviteHandler serves the room-invite pages: the join page with the room id
// substituted in, a QR code for the invite link, and room id minting.
type InviteHandler struct {
	publicURL string

	// QR PNGs are cached per room id; singleflight keeps concurrent hits on a
	// cold room down to one render.
	cacheTTL time.Duration
	clock    func() time.Time
	sf       singleflight.Group
	mu       sync.RWMutex
	cache    map[string]cachedQR
}

type cachedQR struct {
	png       []byte
	expiresAt time.Time
}

func NewInviteHandler(publicURL string, cacheTTL time.Duration) *InviteHandler {
	return &InviteHandler{
		publicURL: publicURL,
		cacheTTL:  cacheTTL,
		clock:     time.Now,
		cache:     make(map[string]cachedQR),
	}
}

func (h *InviteHandler) joinURL(roomID string) string {
	return h.publicURL + "/join-room/" + roomID
}

// ServeJoinRoom renders the invite page for a room.
func (h *InviteHandler) ServeJoinRoom(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	roomID := p.ByName("roomId")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = joinRoomTemplate.Execute(w, struct {
		RoomID  string
		JoinURL string
		QRURL   string
	}{
		RoomID:  roomID,
		JoinURL: h.joinURL(roomID),
		QRURL:   h.joinURL(roomID) + "/qr.png",
	})
}

// ServeRoomQR returns a PNG QR code for the room's invite link.
func (h *InviteHandler) ServeRoomQR(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	roomID := p.ByName("roomId")
	png, err := h.roomQR(roomID)
	if err != nil {
		http.Error(w, "failed to render qr code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *InviteHandler) roomQR(roomID string) ([]byte, error) {
	now := h.clock()

	h.mu.RLock()
	if entry, ok := h.cache[roomID]; ok && entry.expiresAt.After(now) {
		h.mu.RUnlock()
		return entry.png, nil
	}
	h.mu.RUnlock()

	result, err, _ := h.sf.Do(roomID, func() (interface{}, error) {
		h.mu.RLock()
		if entry, ok := h.cache[roomID]; ok && entry.expiresAt.After(now) {
			h.mu.RUnlock()
			return entry.png, nil
		}
		h.mu.RUnlock()

		png, err := qrcode.Encode(h.joinURL(roomID), qrcode.Medium, 256)
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		h.cache[roomID] = cachedQR{png: png, expiresAt: now.Add(h.cacheTTL)}
		h.mu.Unlock()
		return png, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// CreateRoom mints a fresh room id. The room itself is created lazily when
// the first player joins over the websocket.
func (h *InviteHandler) CreateRoom(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	roomID := uuid.NewString()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"roomId":  roomID,
		"joinUrl": h.joinURL(roomID),
	})
}
