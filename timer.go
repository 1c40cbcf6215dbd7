/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"time"

	"github.com/dustin/go-humanize"
)

type stopper interface {
	Stop() bool
}

type clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) stopper
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// phaseToken names the exact phase a timer was scheduled for. A fire whose
// token no longer matches the room's current timer is stale and is dropped.
type phaseToken struct {
	code  string
	phase Phase
	round int
	gen   uint64
}

type phaseTimer struct {
	token    phaseToken
	deadline time.Time
	handle   stopper
}

// schedule replaces the room's timer with one for the current phase and round.
func (r *Room) schedule(d time.Duration) {
	r.cancelTimer()

	r.gen++
	tok := phaseToken{
		code:  r.code,
		phase: r.phase,
		round: r.round,
		gen:   r.gen,
	}

	t := &phaseTimer{
		token:    tok,
		deadline: r.clock.Now().Add(d),
	}
	t.handle = r.clock.AfterFunc(d, func() {
		r.enqueue(func() {
			r.onTimer(tok)
		})
	})
	r.timer = t

	logf(r.cfg, "TIMER: %s %s round %d fires %s", r.code, tok.phase, tok.round, humanize.Time(t.deadline))
}

func (r *Room) cancelTimer() {
	if r.timer == nil {
		return
	}

	r.timer.handle.Stop()
	r.timer = nil
}

func (r *Room) remaining() time.Duration {
	if r.timer == nil {
		return 0
	}

	return max(r.timer.deadline.Sub(r.clock.Now()), 0)
}

func (r *Room) onTimer(tok phaseToken) {
	if r.closed || r.timer == nil || r.timer.token != tok {
		logf(r.cfg, "TIMER: Dropped stale %s timer for %s round %d", tok.phase, tok.code, tok.round)
		return
	}
	r.timer = nil

	logf(r.cfg, "TIMER: %s %s round %d expired", r.code, tok.phase, tok.round)

	switch tok.phase {
	case PhaseAnswering:
		r.endAnswering()
	case PhaseDispute:
		r.endDispute()
	case PhaseVoting:
		r.score()
	case PhaseScoring:
		r.startRound()
	}
}

func seconds(d time.Duration) int {
	return int(d.Round(time.Second) / time.Second)
}
