package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestServeJoinRoom(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/join-room/r42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html, got %q", ct)
	}
	page := string(body)
	if !strings.Contains(page, "r42") {
		t.Fatalf("page does not mention the room id:\n%s", page)
	}
	if !strings.Contains(page, "http://example.test/join-room/r42") {
		t.Fatalf("page does not carry the public join url:\n%s", page)
	}
}

func TestServeRoomQR(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/join-room/r42/qr.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if !bytes.HasPrefix(body, pngMagic) {
		t.Fatalf("response is not a png")
	}
}

func TestRoomQRCacheExpires(t *testing.T) {
	h := NewInviteHandler("http://example.test", time.Minute)
	now := time.Unix(1000, 0)
	h.clock = func() time.Time { return now }

	first, err := h.roomQR("r1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	cached, err := h.roomQR("r1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if &first[0] != &cached[0] {
		t.Fatalf("expected the cached png within the ttl")
	}

	now = now.Add(2 * time.Minute)
	fresh, err := h.roomQR("r1")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if &first[0] == &fresh[0] {
		t.Fatalf("expected a re-render after the ttl")
	}
	if !bytes.Equal(first, fresh) {
		t.Fatalf("re-render produced different png for the same url")
	}
}

func TestCreateRoom(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		RoomID  string `json:"roomId"`
		JoinURL string `json:"joinUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.RoomID == "" {
		t.Fatalf("expected a minted room id")
	}
	if out.JoinURL != "http://example.test/join-room/"+out.RoomID {
		t.Fatalf("unexpected join url %q", out.JoinURL)
	}

	second, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer second.Body.Close()
	var out2 struct {
		RoomID string `json:"roomId"`
	}
	_ = json.NewDecoder(second.Body).Decode(&out2)
	if out2.RoomID == out.RoomID {
		t.Fatalf("minted ids are not unique")
	}
}
