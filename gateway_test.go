/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func testConfig(t *testing.T) *Config {
	t.Helper()

	cfg := &Config{
		port:        8080,
		answerTime:  300 * time.Second,
		disputeTime: 30 * time.Second,
		voteTime:    60 * time.Second,
		cooldown:    10 * time.Second,
		rounds:      5,
		maxRounds:   20,
		categories:  defaultCategories,
		alphabet:    "A",
		locale:      defaultLocale,
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	return cfg
}

func newTestServer(t *testing.T) (*httptest.Server, *RoomManager) {
	t.Helper()

	cfg := testConfig(t)
	m := newRoomManager(cfg, cfg.rules(), realClock{})

	errs := make(chan error, 64)
	mux := httprouter.New()
	registerRoutes(cfg, m, mux, errs)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		m.closeAll()
		srv.Close()
	})

	return srv, m
}

func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	info := readUntil(t, conn, "session_info")

	return conn, info["playerId"].(string)
}

func write(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()

	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil skips events until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, kind string) map[string]any {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", kind, err)
		}
		if msg["type"] == kind {
			return msg
		}
	}
}

func TestGatewayRoomLifecycle(t *testing.T) {
	srv, m := newTestServer(t)

	host, hostID := dial(t, srv)
	write(t, host, ClientMessage{Type: "createRoom", DisplayName: "Ayşe"})

	created := readUntil(t, host, "room_created")
	code := created["code"].(string)
	if created["refereeId"] != hostID {
		t.Errorf("refereeId = %v, want %s", created["refereeId"], hostID)
	}

	guest, guestID := dial(t, srv)
	write(t, guest, ClientMessage{Type: "joinRoom", Code: strings.ToLower(code), DisplayName: "Mehmet"})

	joined := readUntil(t, guest, "room_joined")
	if joined["playerId"] != guestID {
		t.Errorf("playerId = %v, want %s", joined["playerId"], guestID)
	}
	readUntil(t, host, "player_joined")

	write(t, host, ClientMessage{Type: "startGame", Code: code, Categories: []string{"şehir"}})
	started := readUntil(t, guest, "round_started")
	if started["letter"] != "A" {
		t.Errorf("letter = %v", started["letter"])
	}

	write(t, guest, ClientMessage{Type: "sendMessage", Text: "selam"})
	chat := readUntil(t, host, "new_message")
	if chat["text"] != "selam" || chat["senderUsername"] != "Mehmet" {
		t.Errorf("new_message = %v", chat)
	}

	host.Close()

	left := readUntil(t, guest, "player_left")
	if left["playerId"] != hostID {
		t.Errorf("player_left = %v", left)
	}
	reassigned := readUntil(t, guest, "referee_reassigned")
	if reassigned["refereeId"] != guestID {
		t.Errorf("referee_reassigned = %v", reassigned)
	}

	if _, err := m.get(code); err != nil {
		t.Errorf("room closed while a player remains: %v", err)
	}
}

func TestGatewayErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, _ := dial(t, srv)

	tests := []struct {
		name   string
		frame  string
		reason string
	}{
		{"malformed json", `{"type":`, "InvalidMessage"},
		{"unknown type", `{"type":"dance"}`, "InvalidMessage"},
		{"unknown room", `{"type":"joinRoom","code":"ZZZZZ"}`, "RoomNotFound"},
		{"no room yet", `{"type":"submitAnswers","answers":{}}`, "RoomNotFound"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)); err != nil {
				t.Fatal(err)
			}

			e := readUntil(t, conn, "error")
			if e["reason"] != tt.reason {
				t.Errorf("reason = %v, want %s", e["reason"], tt.reason)
			}
		})
	}
}

func TestGatewayCreateTwice(t *testing.T) {
	srv, _ := newTestServer(t)

	conn, _ := dial(t, srv)
	write(t, conn, ClientMessage{Type: "createRoom"})
	readUntil(t, conn, "room_created")

	write(t, conn, ClientMessage{Type: "createRoom"})
	e := readUntil(t, conn, "error")
	if e["reason"] != "AlreadyInRoom" {
		t.Errorf("reason = %v, want AlreadyInRoom", e["reason"])
	}
}

func TestHTTPRoutes(t *testing.T) {
	srv, m := newTestServer(t)

	r, err := m.create("host", "Ayşe", &recorder{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{"/healthz", http.StatusOK, "text/plain", "Ok"},
		{"/version", http.StatusOK, "text/plain", "letterbox v" + releaseVersion},
		{"/robots.txt", http.StatusOK, "text/plain", "Disallow"},
		{"/", http.StatusOK, "text/html", "1 open rooms"},
		{"/rooms/" + r.code, http.StatusOK, "application/json", `"phase":"lobby"`},
		{"/rooms/NOPE1", http.StatusNotFound, "application/json", "RoomNotFound"},
		{"/rooms/" + r.code + "/qr", http.StatusOK, "image/png", ""},
		{"/rooms/NOPE1/qr", http.StatusNotFound, "text/plain", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Errorf("content type = %q, want %s", ct, tt.contentType)
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("body %q does not contain %q", body, tt.contains)
			}
		})
	}
}

func TestRoomSnapshotJSON(t *testing.T) {
	srv, m := newTestServer(t)

	r, _ := m.create("host", "Ayşe", &recorder{})

	resp, err := http.Get(srv.URL + "/rooms/" + r.code)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var s RoomSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}

	if s.Code != r.code || len(s.Players) != 1 || !s.Players[0].IsReferee {
		t.Errorf("snapshot = %+v", s)
	}
}
