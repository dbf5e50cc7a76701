/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"fmt"
	"math/rand/v2"

	"github.com/mikeb26/knockout-tdbot/internal"
)

// Participant is a registered player. Rating is fixed when registration
// closes; Points mirrors the host's running total and is used to derive
// per-game deltas.
type Participant struct {
	ID     string
	Name   string
	Rating int
	Points float64
	Seed   int
}

// PairingEntry is one slot of a match round.
type PairingEntry struct {
	ParticipantID string
	HasWon        bool
	GameScores    []float64
}

func (e *PairingEntry) IsBye() bool {
	return e.ParticipantID == internal.Bye
}

// Score is the sum of the entry's game scores so far.
func (e *PairingEntry) Score() float64 {
	var s float64
	for _, g := range e.GameScores {
		s += g
	}
	return s
}

// PairingRound holds the slots of one match round. Slots 2k and 2k+1 play
// match k.
type PairingRound []PairingEntry

func (pr PairingRound) NumMatches() int {
	return len(pr) / 2
}

// Match returns the top and bottom entries of match k.
func (pr PairingRound) Match(k int) (*PairingEntry, *PairingEntry) {
	return &pr[2*k], &pr[2*k+1]
}

// Advance builds the next round from the winners of every match.
func (pr PairingRound) Advance() (PairingRound, error) {
	if len(pr) < 2 || len(pr)%2 != 0 {
		return nil, fmt.Errorf("%w: cannot advance a round of %v slots",
			ErrConsistency, len(pr))
	}

	next := make(PairingRound, 0, pr.NumMatches())
	for k := 0; k < pr.NumMatches(); k++ {
		top, bottom := pr.Match(k)
		if top.HasWon == bottom.HasWon {
			return nil, fmt.Errorf("%w: match %v has %v winners",
				ErrConsistency, k+1, countWinners(top, bottom))
		}
		winner := top
		if bottom.HasWon {
			winner = bottom
		}
		next = append(next, PairingEntry{ParticipantID: winner.ParticipantID})
	}

	return next, nil
}

func countWinners(entries ...*PairingEntry) int {
	n := 0
	for _, e := range entries {
		if e.HasWon {
			n++
		}
	}
	return n
}

func (pr PairingRound) clone() PairingRound {
	out := make(PairingRound, len(pr))
	for i, e := range pr {
		out[i] = e
		out[i].GameScores = append([]float64(nil), e.GameScores...)
	}
	return out
}

// ColorSchedule holds, per match round, whether the top slot of each match
// plays white in the first game. Colours then alternate game by game.
type ColorSchedule []bool

func NewColorSchedule(rng *rand.Rand, matchRounds int) ColorSchedule {
	cs := make(ColorSchedule, matchRounds)
	for m := range cs {
		cs[m] = rng.IntN(2) == 1
	}
	return cs
}

func (cs ColorSchedule) TopIsWhite(matchRound, game int) bool {
	return cs[matchRound] == (game%2 == 0)
}

// Blacks counts the games played as black by the top and bottom slots in a
// match of the given length.
func (cs ColorSchedule) Blacks(matchRound, games int) (top, bottom int) {
	for g := 0; g < games; g++ {
		if cs.TopIsWhite(matchRound, g) {
			bottom++
		} else {
			top++
		}
	}
	return top, bottom
}

// BracketState is the cursor through the bracket plus every round played so
// far.
type BracketState struct {
	TreeSize      int
	MatchRounds   int
	GamesPerMatch int
	MatchRound    int
	GameRound     int
	Rounds        []PairingRound
	Winner        string
	RunnerUp      string
}

// GlobalRound is the zero based index of the current host round.
func (s *BracketState) GlobalRound() int {
	return s.MatchRound*s.GamesPerMatch + s.GameRound
}

func (s *BracketState) Current() PairingRound {
	if len(s.Rounds) == 0 {
		return nil
	}
	return s.Rounds[len(s.Rounds)-1]
}

// Snapshot is a read-only copy of the bracket handed to presenters.
type Snapshot struct {
	TournamentID  string
	TournamentURL string
	Title         string
	Preliminary   bool
	TreeSize      int
	MatchRounds   int
	GamesPerMatch int
	MatchRound    int
	GameRound     int
	Colors        ColorSchedule
	Rounds        []PairingRound
	Participants  map[string]Participant
	Winner        string
	RunnerUp      string
}

// Label returns the display label of a slot, e.g. "alice (2200)" or "BYE".
func (snap *Snapshot) Label(id string) string {
	if id == internal.Bye {
		return internal.Bye
	}
	p, ok := snap.Participants[id]
	if !ok {
		return id
	}
	name := p.Name
	if name == "" {
		name = p.ID
	}
	if p.Rating == 0 {
		return name
	}

	return fmt.Sprintf("%v (%v)", name, p.Rating)
}
