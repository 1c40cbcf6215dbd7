/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	codeLength  = 5
	codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// RoomManager holds every live room keyed by code, plus the room each
// connected player currently sits in.
type RoomManager struct {
	cfg         *Config
	rules       Rules
	clock       clock
	idleTimeout time.Duration

	mu      sync.Mutex
	rooms   map[string]*Room
	members map[string]string
}

func newRoomManager(cfg *Config, rules Rules, clk clock) *RoomManager {
	return &RoomManager{
		cfg:         cfg,
		rules:       rules,
		clock:       clk,
		idleTimeout: cfg.sessionTimeout,
		rooms:       make(map[string]*Room),
		members:     make(map[string]string),
	}
}

// codeCutoff is the largest multiple of len(codeLetters) that fits in a byte.
// Bytes at or above it are redrawn so every symbol is equally likely.
const codeCutoff = 256 - 256%len(codeLetters)

// readCode draws one room code from src.
func readCode(src io.Reader) (string, error) {
	out := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength)

	for len(out) < codeLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", err
		}

		for _, b := range buf {
			if int(b) >= codeCutoff || len(out) == codeLength {
				continue
			}
			out = append(out, codeLetters[int(b)%len(codeLetters)])
		}
	}

	return string(out), nil
}

// newCodeLocked returns a crypto-random room code not used by any live room.
func (m *RoomManager) newCodeLocked() string {
	for {
		code, err := readCode(rand.Reader)
		if err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		if _, exists := m.rooms[code]; !exists {
			return code
		}
	}
}

// create opens a room with the caller seated as its referee and sends the
// caller room_created before any other event for the room can exist.
func (m *RoomManager) create(id, name string, out sender) (*Room, error) {
	m.mu.Lock()
	if _, ok := m.members[id]; ok {
		m.mu.Unlock()

		return nil, ErrAlreadyInRoom
	}

	r := newRoom(m.newCodeLocked(), m.cfg, m.rules, m.clock, m)
	r.seatCreator(id, name, out)

	m.rooms[r.code] = r
	m.members[id] = r.code
	m.mu.Unlock()

	logf(m.cfg, "ROOMS: Created %s for %q", r.code, r.players[0].Username)

	out.deliver(r.roomState("room_created", id))

	go r.run()

	return r, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (m *RoomManager) get(code string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[normalizeCode(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return r, nil
}

// roomOf returns the room a player is seated in, if any.
func (m *RoomManager) roomOf(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	code, ok := m.members[id]
	if !ok {
		return nil, false
	}

	r, ok := m.rooms[code]

	return r, ok
}

func (m *RoomManager) seat(id, code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[id]; ok {
		return false
	}
	m.members[id] = code

	return true
}

func (m *RoomManager) unseat(id, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.members[id] == code {
		delete(m.members, id)
	}
}

// forget drops an evicted room and every seat that pointed at it.
func (m *RoomManager) forget(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[r.code] == r {
		delete(m.rooms, r.code)
	}

	for id, code := range m.members {
		if code == r.code {
			delete(m.members, id)
		}
	}
}

func (m *RoomManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rooms)
}

func (m *RoomManager) live() []*Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}

	return out
}

// snapshot reads a room's public state through its loop.
func (m *RoomManager) snapshot(code string) (RoomSnapshot, error) {
	r, err := m.get(code)
	if err != nil {
		return RoomSnapshot{}, err
	}

	var s RoomSnapshot
	if !r.call(func() { s = r.snapshot() }) {
		return RoomSnapshot{}, ErrRoomNotFound
	}

	return s, nil
}

// shut tells everyone in the room why it is going away and evicts it.
func (m *RoomManager) shut(r *Room, why string) {
	r.enqueue(func() {
		if r.closed {
			return
		}

		r.broadcast(SimpleMessage{
			Type:    "room_closed",
			Message: why,
		})
		r.evict()
	})
}

func (m *RoomManager) closeAll() {
	for _, r := range m.live() {
		m.shut(r, "The server is shutting down.")
	}
}

// reap closes rooms that have been idle longer than idleTimeout.
func (m *RoomManager) reap() int {
	cutoff := m.clock.Now().Add(-m.idleTimeout)

	reaped := 0
	for _, r := range m.live() {
		if r.idleSince().Before(cutoff) {
			logf(m.cfg, "ROOMS: Reaping idle room %s", r.code)
			m.shut(r, "The room was closed after a period of inactivity.")
			reaped++
		}
	}

	return reaped
}

func (m *RoomManager) startReaper(ctx context.Context) {
	if m.idleTimeout <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.idleTimeout / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.reap()
			case <-ctx.Done():
				return
			}
		}
	}()
}
