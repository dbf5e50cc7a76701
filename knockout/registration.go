/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/mikeb26/knockout-tdbot/config"
)

const (
	// CloseThreshold is how long before the scheduled start registration
	// is closed.
	CloseThreshold = 30 * time.Second
	// NearDeadline switches polling to the near cadence.
	NearDeadline = 60 * time.Second
	// NearCapacityPercent switches polling to the near cadence once fewer
	// than this share of spots remain, when starting at capacity.
	NearCapacityPercent = 30
)

// Cadence is the pair of polling intervals used while registration is open.
// Waiting for games always polls at Near.
type Cadence struct {
	Near time.Duration
	Far  time.Duration
}

var DefaultCadence = Cadence{
	Near: DefaultDelay,
	Far:  10 * time.Second,
}

type CloseReason int

const (
	CloseNone CloseReason = iota
	CloseDeadline
	CloseCapacity
)

func (r CloseReason) String() string {
	switch r {
	case CloseDeadline:
		return "deadline"
	case CloseCapacity:
		return "capacity"
	default:
		return "none"
	}
}

// Decision is the outcome of one registration poll.
type Decision struct {
	Close      bool
	Reason     CloseReason
	Wait       time.Duration
	Added      []string
	Removed    []string
	MaxReached bool
}

// Registration tracks the local roster while registration is open. It only
// ever admits players present in the host's live list, never exceeds the
// configured maximum, and keeps admitted players until they withdraw.
type Registration struct {
	opts   config.Options
	rng    *rand.Rand
	closed bool

	roster []*Participant
	byID   map[string]*Participant
}

func NewRegistration(opts config.Options, rng *rand.Rand) *Registration {
	return &Registration{
		opts: opts,
		rng:  rng,
		byID: make(map[string]*Participant),
	}
}

// Reconcile brings the local roster in line with the host's live list.
// New registrants are admitted in handle order until the maximum is
// reached, so the result does not depend on the order of live.
func (r *Registration) Reconcile(live []Standing) (added, removed []string,
	maxReached bool) {

	if r.closed {
		return nil, nil, len(r.roster) >= r.opts.MaxParticipants
	}

	liveByID := make(map[string]Standing, len(live))
	for _, s := range live {
		liveByID[s.ID] = s
	}

	kept := r.roster[:0]
	for _, p := range r.roster {
		s, ok := liveByID[p.ID]
		if !ok {
			removed = append(removed, p.ID)
			delete(r.byID, p.ID)
			continue
		}
		p.Rating = s.Rating
		p.Points = s.Points
		if s.Username != "" {
			p.Name = s.Username
		}
		kept = append(kept, p)
	}
	r.roster = kept

	var candidates []Standing
	for id, s := range liveByID {
		if _, ok := r.byID[id]; !ok {
			candidates = append(candidates, s)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})
	for _, s := range candidates {
		if len(r.roster) >= r.opts.MaxParticipants {
			break
		}
		p := &Participant{
			ID:     s.ID,
			Name:   s.Username,
			Rating: s.Rating,
			Points: s.Points,
		}
		if p.Name == "" {
			p.Name = s.ID
		}
		r.roster = append(r.roster, p)
		r.byID[p.ID] = p
		added = append(added, p.ID)
	}
	sort.Strings(removed)

	return added, removed, len(r.roster) >= r.opts.MaxParticipants
}

// Poll reconciles against live and decides whether registration closes now
// or how long to wait before the next poll.
func (r *Registration) Poll(live []Standing, now, start time.Time,
	cadence Cadence) Decision {

	var d Decision
	d.Added, d.Removed, d.MaxReached = r.Reconcile(live)

	timeLeft := start.Sub(now)
	switch {
	case d.MaxReached && r.opts.StartAtMax:
		d.Close = true
		d.Reason = CloseCapacity
	case timeLeft < CloseThreshold:
		d.Close = true
		d.Reason = CloseDeadline
	}
	if d.Close {
		return d
	}

	r.Seed()

	spotsLeft := r.opts.MaxParticipants - len(r.roster)
	nearCapacity := r.opts.StartAtMax &&
		spotsLeft*100 < r.opts.MaxParticipants*NearCapacityPercent
	if timeLeft < NearDeadline || nearCapacity {
		d.Wait = cadence.Near
	} else {
		d.Wait = cadence.Far
	}

	return d
}

// Seed orders the roster and assigns seeds 1..n. Rating seeding sorts by
// rating descending with the handle breaking ties; random seeding shuffles
// starting from handle order.
func (r *Registration) Seed() {
	if r.opts.RandomizeSeeds {
		sort.Slice(r.roster, func(i, j int) bool {
			return r.roster[i].ID < r.roster[j].ID
		})
		r.rng.Shuffle(len(r.roster), func(i, j int) {
			r.roster[i], r.roster[j] = r.roster[j], r.roster[i]
		})
	} else {
		sort.SliceStable(r.roster, func(i, j int) bool {
			if r.roster[i].Rating != r.roster[j].Rating {
				return r.roster[i].Rating > r.roster[j].Rating
			}
			return r.roster[i].ID < r.roster[j].ID
		})
	}
	for i, p := range r.roster {
		p.Seed = i + 1
	}
}

// Close freezes the roster, fixes ratings, and performs the final seeding.
// It fails with ErrInsufficientParticipants below the configured minimum.
func (r *Registration) Close() ([]Participant, error) {
	if !r.closed {
		r.Seed()
		r.closed = true
	}
	if len(r.roster) < r.opts.MinParticipants {
		return nil, fmt.Errorf("%w: %v registered, %v required",
			ErrInsufficientParticipants, len(r.roster), r.opts.MinParticipants)
	}

	return r.Roster(), nil
}

func (r *Registration) Closed() bool {
	return r.closed
}

func (r *Registration) Len() int {
	return len(r.roster)
}

// Roster returns a copy of the roster in current seed order.
func (r *Registration) Roster() []Participant {
	out := make([]Participant, len(r.roster))
	for i, p := range r.roster {
		out[i] = *p
	}
	return out
}

// Late returns the live registrants that were not admitted.
func (r *Registration) Late(live []Standing) []string {
	var late []string
	for _, s := range live {
		if _, ok := r.byID[s.ID]; !ok {
			late = append(late, s.ID)
		}
	}
	sort.Strings(late)
	return late
}
