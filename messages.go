/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import "time"

// Messages coming from clients
type ClientMessage struct {
	Type        string            `json:"type"`                  // see Client.route
	Code        string            `json:"code,omitempty"`        // every action but createRoom
	DisplayName string            `json:"displayName,omitempty"` // createRoom / joinRoom
	Categories  []string          `json:"categories,omitempty"`  // startGame
	TotalRounds int               `json:"totalRounds,omitempty"` // startGame
	Answers     map[string]string `json:"answers,omitempty"`     // submitAnswers
	Answer      *AnswerKey        `json:"answer,omitempty"`      // submitDispute / castVote
	Decision    Decision          `json:"decision,omitempty"`    // castVote
	Votes       []VoteEntry       `json:"votes,omitempty"`       // submitVotes
	Text        string            `json:"text,omitempty"`        // sendMessage
}

type VoteEntry struct {
	Answer   AnswerKey `json:"answer"`
	Decision Decision  `json:"decision"`
}

// PlayerView is the public form of a Player.
type PlayerView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	IsReferee bool   `json:"isReferee"`
	Score     int    `json:"score"`
}

// SessionInfoMessage is sent immediately on connect so the client learns its identity.
type SessionInfoMessage struct {
	Type     string `json:"type"` // "session_info"
	PlayerID string `json:"playerId"`
}

// RoomStateMessage answers createRoom and joinRoom.
type RoomStateMessage struct {
	Type      string       `json:"type"` // "room_created" or "room_joined"
	Code      string       `json:"code"`
	PlayerID  string       `json:"playerId"`
	Players   []PlayerView `json:"players"`
	RefereeID string       `json:"refereeId"`
}

type PlayerJoinedMessage struct {
	Type    string       `json:"type"` // "player_joined"
	Players []PlayerView `json:"players"`
}

type PlayerLeftMessage struct {
	Type      string       `json:"type"` // "player_left"
	PlayerID  string       `json:"playerId"`
	Players   []PlayerView `json:"players"`
	RefereeID string       `json:"refereeId"`
}

type RefereeMessage struct {
	Type      string       `json:"type"` // "referee_reassigned"
	RefereeID string       `json:"refereeId"`
	Players   []PlayerView `json:"players"`
}

type RoundStartedMessage struct {
	Type        string       `json:"type"` // "round_started"
	Letter      string       `json:"letter"`
	Categories  []string     `json:"categories"`
	Duration    int          `json:"duration"` // seconds
	Round       int          `json:"currentRound"`
	TotalRounds int          `json:"totalRounds"`
	Players     []PlayerView `json:"players"`
	RefereeID   string       `json:"refereeId"`
}

type DisputePhaseMessage struct {
	Type        string                       `json:"type"` // "dispute_phase_started"
	Duration    int                          `json:"duration"`
	Submissions map[string]map[string]string `json:"submissions"`
	Players     []PlayerView                 `json:"players"`
}

type AnswerDisputedMessage struct {
	Type   string    `json:"type"` // "answer_disputed"
	Answer AnswerKey `json:"answer"`
}

type VotingStartedMessage struct {
	Type        string                       `json:"type"` // "voting_started"
	Duration    int                          `json:"duration"`
	Answers     []AnswerKey                  `json:"answers"` // the answers awaiting a decision
	Submissions map[string]map[string]string `json:"submissions"`
	Players     []PlayerView                 `json:"players"`
	RefereeID   string                       `json:"refereeId"`
}

type VoteRecordedMessage struct {
	Type     string    `json:"type"` // "vote_recorded"
	Answer   AnswerKey `json:"answer"`
	Decision Decision  `json:"decision"`
}

type RoundOverMessage struct {
	Type        string        `json:"type"` // "round_over"
	Round       int           `json:"currentRound"`
	TotalRounds int           `json:"totalRounds"`
	Results     []RoundResult `json:"results"`
}

type Standing struct {
	Position   int    `json:"position"`
	PlayerID   string `json:"playerId"`
	Username   string `json:"username"`
	TotalScore int    `json:"totalScore"`
}

type GameOverMessage struct {
	Type      string     `json:"type"` // "game_over"
	Standings []Standing `json:"standings"`
}

type ChatMessage struct {
	Type      string    `json:"type"` // "new_message"
	SenderID  string    `json:"senderId"`
	Sender    string    `json:"senderUsername"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SimpleMessage is for generic notifications ("room_closed").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// RoomSnapshot is served over HTTP for status pages and monitoring.
type RoomSnapshot struct {
	Code        string       `json:"code"`
	Phase       Phase        `json:"phase"`
	Round       int          `json:"currentRound"`
	TotalRounds int          `json:"totalRounds"`
	Letter      string       `json:"letter,omitempty"`
	Categories  []string     `json:"categories,omitempty"`
	Remaining   int          `json:"remaining"` // seconds left in the current phase
	Players     []PlayerView `json:"players"`
	RefereeID   string       `json:"refereeId"`
	LastActive  time.Time    `json:"lastActive"`
}
