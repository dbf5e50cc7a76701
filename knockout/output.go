/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"fmt"
	"strings"

	"github.com/mikeb26/knockout-tdbot/internal"
)

// BuildParticipantsOutput formats the roster in seed order as an aligned
// table.
func BuildParticipantsOutput(roster []Participant) string {
	type row struct{ seed, name, rating, points string }
	var rows []row
	for _, p := range roster {
		rows = append(rows, row{
			seed:   fmt.Sprintf("%d.", p.Seed),
			name:   p.Name,
			rating: fmt.Sprintf("%d", p.Rating),
			points: internal.ScoreToString(p.Points),
		})
	}

	maxS, maxN, maxR := len("Seed"), len("Player"), len("Rating")
	for _, r := range rows {
		if l := len(r.seed); l > maxS {
			maxS = l
		}
		if l := len(r.name); l > maxN {
			maxN = l
		}
		if l := len(r.rating); l > maxR {
			maxR = l
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-*s  %-*s  %-*s  %s\n", maxS, "Seed", maxN,
		"Player", maxR, "Rating", "Points"))
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%-*s  %-*s  %-*s  %s\n", maxS, r.seed,
			maxN, r.name, maxR, r.rating, r.points))
	}

	return sb.String()
}

// BuildMatchesOutput formats the matches of one round with the running
// match score and, once decided, the winner.
func BuildMatchesOutput(snap *Snapshot, round PairingRound) string {
	type row struct{ match, top, bottom, score string }
	var rows []row
	for k := 0; k < round.NumMatches(); k++ {
		top, bottom := round.Match(k)
		r := row{
			match:  fmt.Sprintf("%d.", k+1),
			top:    snap.Label(top.ParticipantID),
			bottom: snap.Label(bottom.ParticipantID),
		}
		switch {
		case top.IsBye() || bottom.IsBye():
			r.score = "n/a"
		default:
			r.score = fmt.Sprintf("%v-%v",
				internal.ScoreToString(top.Score()),
				internal.ScoreToString(bottom.Score()))
		}
		if top.HasWon {
			r.top += " *"
		}
		if bottom.HasWon {
			r.bottom += " *"
		}
		rows = append(rows, r)
	}

	maxM, maxT, maxB := len("Match"), len("Top"), len("Bottom")
	for _, r := range rows {
		if l := len(r.match); l > maxM {
			maxM = l
		}
		if l := len(r.top); l > maxT {
			maxT = l
		}
		if l := len(r.bottom); l > maxB {
			maxB = l
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-*s  %-*s  %-*s  %s\n", maxM, "Match", maxT,
		"Top", maxB, "Bottom", "Score"))
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%-*s  %-*s  %-*s  %s\n", maxM, r.match,
			maxT, r.top, maxB, r.bottom, r.score))
	}

	return sb.String()
}

// RoundTitle names a match round by the number of slots it has, e.g.
// "Finals" or "Round of 32".
func RoundTitle(slots int) string {
	switch slots {
	case 2:
		return "Finals"
	case 4:
		return "Semifinals"
	case 8:
		return "Quarterfinals"
	default:
		return fmt.Sprintf("Round of %d", slots)
	}
}
