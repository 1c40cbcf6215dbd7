/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

const (
	pointsUnique = 10
	pointsShared = 5
)

// AnswerKey identifies one answer in a round. Disputes and referee decisions
// attach to it. Text is always the folded form.
type AnswerKey struct {
	PlayerID string `json:"playerId"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

type Seat struct {
	ID       string
	Username string
}

// RoundInput is everything scoring needs. Disputed holds the answers that
// need an approval to count; Approved holds the referee's approvals.
type RoundInput struct {
	Players     []Seat
	Submissions map[string]map[string]string
	Disputed    map[AnswerKey]bool
	Approved    map[AnswerKey]bool
	Letter      string
	Categories  []string
	Folder      Folder
}

type RoundResult struct {
	PlayerID   string            `json:"playerId"`
	Username   string            `json:"username"`
	RoundScore int               `json:"roundScore"`
	TotalScore int               `json:"totalScore"`
	Scores     map[string]int    `json:"scores"`
	Answers    map[string]string `json:"answers"`
}

func (in RoundInput) key(playerID, category string) AnswerKey {
	return AnswerKey{
		PlayerID: playerID,
		Category: category,
		Text:     in.Folder.Fold(in.Submissions[playerID][category]),
	}
}

func (in RoundInput) valid(k AnswerKey) bool {
	if !in.Folder.Matches(k.Text, in.Letter) {
		return false
	}
	if in.Disputed[k] {
		return in.Approved[k]
	}

	return true
}

// ScoreRound turns one round of answers into per-player points. It does not
// touch cumulative totals; TotalScore is left for the caller.
func ScoreRound(in RoundInput) []RoundResult {
	counts := make(map[string]map[string]int, len(in.Categories))
	for _, c := range in.Categories {
		counts[c] = make(map[string]int)
		for _, p := range in.Players {
			k := in.key(p.ID, c)
			if in.valid(k) {
				counts[c][k.Text]++
			}
		}
	}

	results := make([]RoundResult, 0, len(in.Players))
	for _, p := range in.Players {
		res := RoundResult{
			PlayerID: p.ID,
			Username: p.Username,
			Scores:   make(map[string]int, len(in.Categories)),
			Answers:  make(map[string]string, len(in.Categories)),
		}

		for _, c := range in.Categories {
			raw := in.Submissions[p.ID][c]
			res.Answers[c] = raw

			points := 0
			if k := in.key(p.ID, c); in.valid(k) {
				switch n := counts[c][k.Text]; {
				case n == 1:
					points = pointsUnique
				case n > 1:
					points = pointsShared
				}
			}

			res.Scores[c] = points
			res.RoundScore += points
		}

		results = append(results, res)
	}

	return results
}
