/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRoomCodes(t *testing.T) {
	m := newRoomManager(&Config{}, testRules(), newFakeClock())
	t.Cleanup(m.closeAll)

	seen := make(map[string]bool)
	for i := range 500 {
		r, err := m.create(fmt.Sprintf("p%d", i), "", &recorder{})
		if err != nil {
			t.Fatalf("create: %v", err)
		}

		if len(r.code) != codeLength {
			t.Fatalf("code %q has length %d", r.code, len(r.code))
		}
		for _, c := range r.code {
			if !strings.ContainsRune(codeLetters, c) {
				t.Fatalf("code %q contains %q", r.code, c)
			}
		}
		if seen[r.code] {
			t.Fatalf("code %q issued twice", r.code)
		}
		seen[r.code] = true
	}

	if m.count() != 500 {
		t.Errorf("count = %d, want 500", m.count())
	}
}

func TestReadCode(t *testing.T) {
	tests := []struct {
		name    string
		src     []byte
		want    string
		wantErr bool
	}{
		{"plain draw", []byte{0, 1, 2, 3, 35}, "ABCD9", false},
		{"wraps once per alphabet", []byte{36, 71, 72, 107, 251}, "A9A99", false},
		{"bytes past the cutoff are redrawn", []byte{252, 0, 255, 1, 2, 3, 4, 5, 6, 7}, "ABCDE", false},
		{"source runs dry", []byte{255, 254, 253, 252, 252}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readCode(bytes.NewReader(tt.src))
			if (err != nil) != tt.wantErr {
				t.Fatalf("readCode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetNormalizesCode(t *testing.T) {
	h := newHarness(t, testRules())

	r, err := h.m.get("  " + strings.ToLower(h.room.code) + " ")
	if err != nil || r != h.room {
		t.Errorf("get = %v, %v", r, err)
	}

	if _, err := h.m.get("NOPE1"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("get unknown = %v, want ErrRoomNotFound", err)
	}
}

func TestReapIdleRooms(t *testing.T) {
	clk := newFakeClock()
	m := newRoomManager(&Config{sessionTimeout: 10 * time.Minute}, testRules(), clk)
	t.Cleanup(m.closeAll)

	idle := &recorder{}
	old, _ := m.create("idle", "", idle)

	clk.now = clk.now.Add(8 * time.Minute)
	fresh, _ := m.create("busy", "", &recorder{})

	clk.now = clk.now.Add(3 * time.Minute)

	if n := m.reap(); n != 1 {
		t.Fatalf("reaped %d rooms, want 1", n)
	}
	<-old.done

	if msg, ok := lastOf[SimpleMessage](idle); !ok || msg.Type != "room_closed" {
		t.Errorf("idle room was not told it closed: %+v", idle.msgs)
	}
	if _, err := m.get(old.code); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("idle room still registered: %v", err)
	}
	if _, err := m.get(fresh.code); err != nil {
		t.Errorf("active room was reaped: %v", err)
	}
	if _, ok := m.roomOf("idle"); ok {
		t.Error("reaped player is still seated")
	}
}

func TestCloseAll(t *testing.T) {
	m := newRoomManager(&Config{}, testRules(), newFakeClock())

	recs := []*recorder{{}, {}, {}}
	var rooms []*Room
	for i, rec := range recs {
		r, err := m.create(fmt.Sprintf("p%d", i), "", rec)
		if err != nil {
			t.Fatal(err)
		}
		rooms = append(rooms, r)
	}

	m.closeAll()
	for _, r := range rooms {
		<-r.done
	}

	if m.count() != 0 {
		t.Errorf("%d rooms left open", m.count())
	}
	for i, rec := range recs {
		if _, ok := lastOf[SimpleMessage](rec); !ok {
			t.Errorf("player %d was not told the room closed", i)
		}
	}
}

func TestRoomLoop(t *testing.T) {
	m := newRoomManager(&Config{}, testRules(), realClock{})

	host := &recorder{}
	r, err := m.create("host", "Ayşe", host)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			id := fmt.Sprintf("guest%d", i)
			r.call(func() { r.dispatch(id, &recorder{}, ClientMessage{Type: "joinRoom", DisplayName: id}) })
		}()
	}
	wg.Wait()

	s, err := m.snapshot(r.code)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Players) != 21 || s.Phase != PhaseLobby {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.Letter != "" {
		t.Errorf("lobby snapshot leaked a letter: %q", s.Letter)
	}

	r.call(func() { r.dispatch("host", host, ClientMessage{Type: "startGame"}) })

	s, _ = m.snapshot(r.code)
	if s.Phase != PhaseAnswering || s.Round != 1 || s.Letter != "A" {
		t.Errorf("snapshot after start = %+v", s)
	}

	if n := countOf[PlayerJoinedMessage](host); n != 20 {
		t.Errorf("host saw %d joins, want 20", n)
	}

	m.closeAll()
	<-r.done

	if r.enqueue(func() { t.Error("ran on a closed room") }) {
		t.Error("enqueue on a closed room reported success")
	}
	if _, err := m.snapshot(r.code); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("snapshot after close = %v, want ErrRoomNotFound", err)
	}
}
