/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"
)

type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseAnswering Phase = "answering"
	PhaseDispute   Phase = "dispute"
	PhaseVoting    Phase = "voting"
	PhaseScoring   Phase = "scoring"
	PhaseEnded     Phase = "ended"
)

// Rules are the per-room game settings, fixed when the room is created.
type Rules struct {
	AnswerTime  time.Duration
	DisputeTime time.Duration
	VoteTime    time.Duration
	Cooldown    time.Duration
	Rounds      int
	MaxRounds   int
	Categories  []string
	Alphabet    []rune
	Disputes    bool
	Folder      Folder
}

// sender is anything a room can push events to; *Client in production.
type sender interface {
	deliver(msg any)
}

// roomHost is the registry side of a room: seat bookkeeping and eviction.
type roomHost interface {
	seat(id, code string) bool
	unseat(id, code string)
	forget(r *Room)
}

type Player struct {
	ID       string
	Username string
	Referee  bool
	Score    int

	out sender
}

func (p *Player) view() PlayerView {
	return PlayerView{
		ID:        p.ID,
		Username:  p.Username,
		IsReferee: p.Referee,
		Score:     p.Score,
	}
}

// Room is one game session. All state below the channels is owned by the
// room's run loop; nothing else may read or write it.
type Room struct {
	code   string
	cfg    *Config
	rules  Rules
	clock  clock
	host   roomHost

	inbox chan func()
	done  chan struct{}

	lastActive atomic.Int64

	closed      bool
	players     []*Player
	phase       Phase
	round       int
	totalRounds int
	categories  []string
	letter      string
	submissions map[string]map[string]string
	disputes    map[AnswerKey]bool
	scope       map[AnswerKey]bool
	decisions   map[AnswerKey]Decision
	refereeID   string
	timer       *phaseTimer
	gen         uint64

	scoreRound func(RoundInput) []RoundResult
}

func newRoom(code string, cfg *Config, rules Rules, clk clock, host roomHost) *Room {
	r := &Room{
		code:  code,
		cfg:   cfg,
		rules: rules,
		clock: clk,
		host:  host,
		inbox: make(chan func()),
		done:  make(chan struct{}),
		phase: PhaseLobby,

		scoreRound: ScoreRound,
	}
	r.resetRound()
	r.touch()

	return r
}

func (r *Room) run() {
	for {
		select {
		case fn := <-r.inbox:
			fn()
		case <-r.done:
			return
		}
	}
}

// enqueue hands fn to the room's run loop. It reports false once the room
// has been evicted, in which case fn never runs.
func (r *Room) enqueue(fn func()) bool {
	select {
	case r.inbox <- fn:
		return true
	case <-r.done:
		return false
	}
}

// call runs fn on the room's loop and waits for it to finish.
func (r *Room) call(fn func()) bool {
	finished := make(chan struct{})

	if !r.enqueue(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}

	<-finished

	return true
}

func (r *Room) touch() {
	r.lastActive.Store(r.clock.Now().UnixNano())
}

func (r *Room) idleSince() time.Time {
	return time.Unix(0, r.lastActive.Load())
}

// dispatch runs one client action and reports any failure back to that
// client only. Duplicate submissions are swallowed so retries stay harmless.
func (r *Room) dispatch(id string, out sender, msg ClientMessage) {
	err := r.handle(id, out, msg)

	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateSubmission):
		logf(r.cfg, "ROUND: Ignored repeat answers from %s in %s", id, r.code)
	default:
		logf(r.cfg, "ROOMS: Rejected %s from %s in %s: %v", msg.Type, id, r.code, err)
		out.deliver(newErrorMessage(err))
	}
}

func (r *Room) handle(id string, out sender, msg ClientMessage) error {
	if r.closed {
		return ErrRoomNotFound
	}
	r.touch()

	switch msg.Type {
	case "joinRoom":
		return r.join(id, msg.DisplayName, out)
	case "startGame":
		return r.startGame(id, msg.Categories, msg.TotalRounds)
	case "submitAnswers":
		return r.submitAnswers(id, msg.Answers)
	case "submitDispute":
		return r.submitDispute(id, msg.Answer)
	case "castVote":
		return r.castVote(id, msg.Answer, msg.Decision)
	case "submitVotes":
		return r.submitVotes(id, msg.Votes)
	case "sendMessage":
		return r.sendMessage(id, msg.Text)
	}

	return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Anonymous"
	}

	return name
}

func (r *Room) player(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}

	return nil
}

func (r *Room) views() []PlayerView {
	out := make([]PlayerView, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.view())
	}

	return out
}

func (r *Room) seats() []Seat {
	out := make([]Seat, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, Seat{ID: p.ID, Username: p.Username})
	}

	return out
}

func (r *Room) broadcast(msg any) {
	for _, p := range r.players {
		p.out.deliver(msg)
	}
}

func (r *Room) broadcastExcept(id string, msg any) {
	for _, p := range r.players {
		if p.ID != id {
			p.out.deliver(msg)
		}
	}
}

func (r *Room) roomState(kind, id string) RoomStateMessage {
	return RoomStateMessage{
		Type:      kind,
		Code:      r.code,
		PlayerID:  id,
		Players:   r.views(),
		RefereeID: r.refereeID,
	}
}

// seatCreator places the room's first player. It runs before the loop starts.
func (r *Room) seatCreator(id, name string, out sender) {
	r.players = []*Player{{
		ID:       id,
		Username: displayName(name),
		Referee:  true,
		out:      out,
	}}
	r.refereeID = id
}

func (r *Room) join(id, name string, out sender) error {
	if r.phase != PhaseLobby {
		return ErrInvalidPhase
	}
	if r.player(id) != nil || !r.host.seat(id, r.code) {
		return ErrAlreadyInRoom
	}

	p := &Player{
		ID:       id,
		Username: displayName(name),
		out:      out,
	}
	r.players = append(r.players, p)

	logf(r.cfg, "ROOMS: Player %q joined %s", p.Username, r.code)

	out.deliver(r.roomState("room_joined", id))
	r.broadcastExcept(id, PlayerJoinedMessage{
		Type:    "player_joined",
		Players: r.views(),
	})

	return nil
}

func (r *Room) startGame(id string, categories []string, totalRounds int) error {
	if id != r.refereeID {
		return ErrNotAuthorized
	}
	if r.phase != PhaseLobby {
		return ErrInvalidPhase
	}
	if len(r.players) == 0 {
		return ErrInvalidPhase
	}

	f := r.rules.Folder

	r.categories = f.canonicalCategories(categories)
	if len(r.categories) == 0 {
		r.categories = f.canonicalCategories(r.rules.Categories)
	}

	r.totalRounds = totalRounds
	if r.totalRounds <= 0 {
		r.totalRounds = r.rules.Rounds
	}
	r.totalRounds = min(r.totalRounds, r.rules.MaxRounds)

	for _, p := range r.players {
		p.Score = 0
	}
	r.round = 1

	logf(r.cfg, "ROUND: %s started with %d rounds, categories %v", r.code, r.totalRounds, r.categories)

	r.startRound()

	return nil
}

func (r *Room) resetRound() {
	r.submissions = make(map[string]map[string]string)
	r.disputes = make(map[AnswerKey]bool)
	r.scope = make(map[AnswerKey]bool)
	r.decisions = make(map[AnswerKey]Decision)
}

// startRound enters Answering for the current round number.
func (r *Room) startRound() {
	r.phase = PhaseAnswering
	r.letter = randomLetter(r.rules.Alphabet)
	r.resetRound()
	r.schedule(r.rules.AnswerTime)

	logf(r.cfg, "ROUND: %s round %d/%d, letter %s", r.code, r.round, r.totalRounds, r.letter)

	r.broadcast(RoundStartedMessage{
		Type:        "round_started",
		Letter:      r.letter,
		Categories:  r.categories,
		Duration:    seconds(r.rules.AnswerTime),
		Round:       r.round,
		TotalRounds: r.totalRounds,
		Players:     r.views(),
		RefereeID:   r.refereeID,
	})
}

func (r *Room) submitAnswers(id string, answers map[string]string) error {
	if r.player(id) == nil {
		return ErrNotAuthorized
	}
	if r.phase != PhaseAnswering {
		return ErrInvalidPhase
	}
	if _, ok := r.submissions[id]; ok {
		return ErrDuplicateSubmission
	}

	r.submissions[id] = r.rules.Folder.canonicalAnswers(r.categories, answers)

	logf(r.cfg, "ROUND: %s received answers from %s (%d/%d)", r.code, id, len(r.submissions), len(r.players))

	if len(r.submissions) >= len(r.players) {
		r.endAnswering()
	}

	return nil
}

// answerKeys lists every non-blank answer of the round in a stable order.
func (r *Room) answerKeys() []AnswerKey {
	var keys []AnswerKey

	for _, p := range r.players {
		for _, c := range r.categories {
			text := r.rules.Folder.Fold(r.submissions[p.ID][c])
			if text == "" {
				continue
			}
			keys = append(keys, AnswerKey{PlayerID: p.ID, Category: c, Text: text})
		}
	}

	return keys
}

func (r *Room) endAnswering() {
	r.cancelTimer()

	keys := r.answerKeys()
	if len(keys) == 0 {
		r.score()
		return
	}

	if r.rules.Disputes {
		r.startDispute()
		return
	}

	scope := make(map[AnswerKey]bool, len(keys))
	for _, k := range keys {
		scope[k] = true
	}
	r.startVoting(scope)
}

func (r *Room) startDispute() {
	r.phase = PhaseDispute
	r.schedule(r.rules.DisputeTime)

	r.broadcast(DisputePhaseMessage{
		Type:        "dispute_phase_started",
		Duration:    seconds(r.rules.DisputeTime),
		Submissions: maps.Clone(r.submissions),
		Players:     r.views(),
	})
}

// lookupAnswer resolves a client's reference to an answer of this round.
func (r *Room) lookupAnswer(ref *AnswerKey) (AnswerKey, error) {
	if ref == nil {
		return AnswerKey{}, ErrInvalidMessage
	}

	f := r.rules.Folder
	want := f.Fold(ref.Category)
	for _, c := range r.categories {
		if f.Fold(c) != want {
			continue
		}

		text := f.Fold(r.submissions[ref.PlayerID][c])
		if text == "" || text != f.Fold(ref.Text) {
			break
		}

		return AnswerKey{PlayerID: ref.PlayerID, Category: c, Text: text}, nil
	}

	return AnswerKey{}, ErrUnknownAnswer
}

func (r *Room) submitDispute(id string, ref *AnswerKey) error {
	if r.player(id) == nil {
		return ErrNotAuthorized
	}
	if r.phase != PhaseDispute {
		return ErrInvalidPhase
	}

	k, err := r.lookupAnswer(ref)
	if err != nil {
		return err
	}
	if k.PlayerID == id {
		return fmt.Errorf("%w: players cannot dispute their own answers", ErrNotAuthorized)
	}
	if r.disputes[k] {
		return nil
	}

	r.disputes[k] = true

	logf(r.cfg, "ROUND: %s answer %q (%s) disputed by %s", r.code, k.Text, k.Category, id)

	r.broadcast(AnswerDisputedMessage{
		Type:   "answer_disputed",
		Answer: k,
	})

	return nil
}

func (r *Room) endDispute() {
	if len(r.disputes) == 0 {
		r.score()
		return
	}

	r.startVoting(maps.Clone(r.disputes))
}

func sortedKeys(set map[AnswerKey]bool) []AnswerKey {
	return slices.SortedFunc(maps.Keys(set), func(a, b AnswerKey) int {
		return cmp.Or(
			cmp.Compare(a.PlayerID, b.PlayerID),
			cmp.Compare(a.Category, b.Category),
			cmp.Compare(a.Text, b.Text),
		)
	})
}

func (r *Room) startVoting(scope map[AnswerKey]bool) {
	r.phase = PhaseVoting
	r.scope = scope
	r.schedule(r.rules.VoteTime)

	logf(r.cfg, "ROUND: %s voting on %d answers", r.code, len(scope))

	r.broadcast(VotingStartedMessage{
		Type:        "voting_started",
		Duration:    seconds(r.rules.VoteTime),
		Answers:     sortedKeys(scope),
		Submissions: maps.Clone(r.submissions),
		Players:     r.views(),
		RefereeID:   r.refereeID,
	})
}

func (r *Room) checkVoter(id string) error {
	if r.player(id) == nil {
		return ErrNotAuthorized
	}
	if r.phase != PhaseVoting {
		return ErrInvalidPhase
	}
	if id != r.refereeID {
		return fmt.Errorf("%w: only the referee may vote", ErrNotAuthorized)
	}

	return nil
}

func (r *Room) decide(ref *AnswerKey, d Decision) (AnswerKey, error) {
	if !d.valid() {
		return AnswerKey{}, fmt.Errorf("%w: decision must be approve or reject", ErrInvalidMessage)
	}

	k, err := r.lookupAnswer(ref)
	if err != nil {
		return AnswerKey{}, err
	}
	if !r.scope[k] {
		return AnswerKey{}, ErrUnknownAnswer
	}
	if _, ok := r.decisions[k]; ok {
		return AnswerKey{}, ErrAlreadyVoted
	}

	r.decisions[k] = d

	return k, nil
}

// castVote records a single decision and leaves the phase running.
func (r *Room) castVote(id string, ref *AnswerKey, d Decision) error {
	if err := r.checkVoter(id); err != nil {
		return err
	}

	k, err := r.decide(ref, d)
	if err != nil {
		return err
	}

	r.broadcast(VoteRecordedMessage{
		Type:     "vote_recorded",
		Answer:   k,
		Decision: d,
	})

	return nil
}

// submitVotes records the referee's remaining decisions and ends voting.
// Entries that do not resolve, or that were already decided, are skipped.
func (r *Room) submitVotes(id string, votes []VoteEntry) error {
	if err := r.checkVoter(id); err != nil {
		return err
	}

	for _, v := range votes {
		if _, err := r.decide(&v.Answer, v.Decision); err != nil {
			logf(r.cfg, "ROUND: %s skipped vote on %q: %v", r.code, v.Answer.Text, err)
		}
	}

	logf(r.cfg, "ROUND: %s referee decided %d/%d answers", r.code, len(r.decisions), len(r.scope))

	r.score()

	return nil
}

func (r *Room) roundInput() RoundInput {
	approved := make(map[AnswerKey]bool, len(r.decisions))
	for k, d := range r.decisions {
		if d == DecisionApprove {
			approved[k] = true
		}
	}

	return RoundInput{
		Players:     r.seats(),
		Submissions: maps.Clone(r.submissions),
		Disputed:    r.scope,
		Approved:    approved,
		Letter:      r.letter,
		Categories:  r.categories,
		Folder:      r.rules.Folder,
	}
}

func (r *Room) computeResults() (results []RoundResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			results = nil
			err = fmt.Errorf("%w: %v", ErrScoringFailed, p)
		}
	}()

	return r.scoreRound(r.roundInput()), nil
}

// score runs the Scoring phase and moves on to the next round or the end of
// the game. A scoring failure is reported to the room and the round counts
// for nothing, so the room never stalls here.
func (r *Room) score() {
	r.cancelTimer()
	r.phase = PhaseScoring

	results, err := r.computeResults()
	if err != nil {
		logf(r.cfg, "ROUND: %s round %d: %v", r.code, r.round, err)
		r.broadcast(newErrorMessage(err))
	} else {
		for i := range results {
			p := r.player(results[i].PlayerID)
			if p == nil {
				continue
			}
			p.Score += results[i].RoundScore
			results[i].TotalScore = p.Score
		}

		r.broadcast(RoundOverMessage{
			Type:        "round_over",
			Round:       r.round,
			TotalRounds: r.totalRounds,
			Results:     results,
		})
	}

	if r.round >= r.totalRounds {
		r.endGame()
		return
	}

	r.round++
	r.schedule(r.rules.Cooldown)
}

func (r *Room) standings() []Standing {
	ordered := slices.Clone(r.players)
	slices.SortStableFunc(ordered, func(a, b *Player) int {
		return cmp.Compare(b.Score, a.Score)
	})

	out := make([]Standing, 0, len(ordered))
	for i, p := range ordered {
		out = append(out, Standing{
			Position:   i + 1,
			PlayerID:   p.ID,
			Username:   p.Username,
			TotalScore: p.Score,
		})
	}

	return out
}

func (r *Room) endGame() {
	r.cancelTimer()
	r.phase = PhaseEnded

	logf(r.cfg, "ROUND: %s game over", r.code)

	r.broadcast(GameOverMessage{
		Type:      "game_over",
		Standings: r.standings(),
	})

	r.evict()
}

func (r *Room) sendMessage(id, text string) error {
	p := r.player(id)
	if p == nil {
		return ErrNotAuthorized
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	r.broadcast(ChatMessage{
		Type:      "new_message",
		SenderID:  p.ID,
		Sender:    p.Username,
		Text:      text,
		Timestamp: r.clock.Now(),
	})

	return nil
}

// leave removes a disconnected player. Disconnects are final, so every trace
// of the player's round is dropped with them.
func (r *Room) leave(id string) {
	i := slices.IndexFunc(r.players, func(p *Player) bool { return p.ID == id })
	if r.closed || i < 0 {
		return
	}

	gone := r.players[i]
	r.players = slices.Delete(r.players, i, i+1)
	r.host.unseat(id, r.code)

	logf(r.cfg, "ROOMS: Player %q left %s", gone.Username, r.code)

	if len(r.players) == 0 {
		r.evict()
		return
	}

	wasReferee := id == r.refereeID
	if wasReferee {
		r.refereeID = r.players[0].ID
		r.players[0].Referee = true
	}

	delete(r.submissions, id)
	for _, set := range []map[AnswerKey]bool{r.disputes, r.scope} {
		maps.DeleteFunc(set, func(k AnswerKey, _ bool) bool { return k.PlayerID == id })
	}
	maps.DeleteFunc(r.decisions, func(k AnswerKey, _ Decision) bool { return k.PlayerID == id })

	r.broadcast(PlayerLeftMessage{
		Type:      "player_left",
		PlayerID:  id,
		Players:   r.views(),
		RefereeID: r.refereeID,
	})

	if wasReferee {
		logf(r.cfg, "ROOMS: %s referee is now %q", r.code, r.players[0].Username)

		r.broadcast(RefereeMessage{
			Type:      "referee_reassigned",
			RefereeID: r.refereeID,
			Players:   r.views(),
		})
	}

	switch r.phase {
	case PhaseAnswering:
		if len(r.submissions) >= len(r.players) {
			r.endAnswering()
		}
	case PhaseVoting:
		if wasReferee || len(r.scope) == 0 {
			r.score()
		}
	}
}

// evict cancels the timer, stops the loop and removes the room from the registry.
func (r *Room) evict() {
	if r.closed {
		return
	}

	r.cancelTimer()
	r.closed = true
	r.host.forget(r)
	close(r.done)

	logf(r.cfg, "ROOMS: Closed %s", r.code)
}

func (r *Room) snapshot() RoomSnapshot {
	s := RoomSnapshot{
		Code:        r.code,
		Phase:       r.phase,
		Round:       r.round,
		TotalRounds: r.totalRounds,
		Categories:  r.categories,
		Remaining:   seconds(r.remaining()),
		Players:     r.views(),
		RefereeID:   r.refereeID,
		LastActive:  r.idleSince(),
	}
	if r.phase != PhaseLobby {
		s.Letter = r.letter
	}

	return s
}
