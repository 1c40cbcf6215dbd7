/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	sendBuffer   = 32
	maxFrameSize = 64 << 10
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. Its id doubles as the player id for
// as long as the connection lives.
type Client struct {
	id   string
	cfg  *Config
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
}

func newClient(cfg *Config, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		cfg:  cfg,
		conn: conn,
		send: make(chan any, sendBuffer),
		done: make(chan struct{}),
	}
}

// deliver never blocks. A client too slow to drain its buffer is dropped.
func (c *Client) deliver(msg any) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	case <-c.done:
	default:
		logf(c.cfg, "SOCKS: Dropping slow client %s", c.id)
		c.close()
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) writePump() {
	defer c.close()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) readPump(m *RoomManager) {
	defer func() {
		if r, ok := m.roomOf(c.id); ok {
			r.enqueue(func() { r.leave(c.id) })
		}
		c.close()

		logf(c.cfg, "SOCKS: Client %s disconnected", c.id)
	}()

	c.conn.SetReadLimit(maxFrameSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.deliver(newErrorMessage(errors.Join(ErrInvalidMessage, err)))
			continue
		}

		c.route(m, msg)
	}
}

// route hands an action to the room it names. Room actions run to completion
// before the next frame is read, so a client's actions apply in order.
func (c *Client) route(m *RoomManager, msg ClientMessage) {
	switch msg.Type {
	case "createRoom":
		if _, err := m.create(c.id, msg.DisplayName, c); err != nil {
			c.deliver(newErrorMessage(err))
		}

		return
	case "joinRoom", "startGame", "submitAnswers", "submitDispute",
		"castVote", "submitVotes", "sendMessage":
	default:
		c.deliver(newErrorMessage(ErrInvalidMessage))

		return
	}

	var (
		r   *Room
		err error
	)
	if msg.Code == "" && msg.Type != "joinRoom" {
		var ok bool
		if r, ok = m.roomOf(c.id); !ok {
			err = ErrRoomNotFound
		}
	} else {
		r, err = m.get(msg.Code)
	}
	if err != nil {
		c.deliver(newErrorMessage(err))

		return
	}

	if !r.call(func() { r.dispatch(c.id, c, msg) }) {
		c.deliver(newErrorMessage(ErrRoomNotFound))
	}
}

func serveWS(cfg *Config, m *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SOCKS: Upgrade from %s failed: %v", realIP(r), err)

			return
		}

		c := newClient(cfg, conn)

		logf(cfg, "SOCKS: Client %s connected from %s", c.id, realIP(r))

		c.deliver(SessionInfoMessage{
			Type:     "session_info",
			PlayerID: c.id,
		})

		go c.writePump()
		c.readPump(m)
	}
}
