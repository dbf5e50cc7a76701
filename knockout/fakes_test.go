/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

var testEpoch = time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC)

type fakeClock struct {
	now    time.Time
	slept  time.Duration
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps = append(c.sleeps, d)
	return nil
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var errFakeHost = errors.New("fake host unavailable")

// fakeHost plays every scheduled round the first time its status is polled
// after busyPolls in-progress reports.
type fakeHost struct {
	players []Standing
	// registrants, when set, supplies the live list for the n-th results
	// call made during registration.
	registrants func(call int) []Standing
	// outcome scores a non-bye game; nil means white wins.
	outcome func(g Game) (white, black float64)

	busyPolls      int
	finishEarly    bool
	failStatus     bool
	failCreate     bool
	failEdits      int
	terminateError error

	points       map[string]float64
	round        int
	pending      bool
	busy         int
	pairings     []Game
	resultsCalls int

	created    []CreateRequest
	edits      []EditRequest
	scheduled  []time.Time
	played     [][]Game
	terminates int
}

func newFakeHost(players ...Standing) *fakeHost {
	return &fakeHost{
		players: players,
		points:  make(map[string]float64),
	}
}

func (h *fakeHost) Create(ctx context.Context, req CreateRequest) (string, error) {
	if h.failCreate {
		return "", errFakeHost
	}
	h.created = append(h.created, req)
	return "swiss42", nil
}

func (h *fakeHost) Edit(ctx context.Context, id string, req EditRequest) error {
	if h.failEdits > 0 {
		h.failEdits--
		return errFakeHost
	}
	h.edits = append(h.edits, req)
	if len(req.ManualPairings) > 0 {
		h.pairings = req.ManualPairings
		if !req.StartsAt.IsZero() {
			h.pending = true
		}
	}
	return nil
}

func (h *fakeHost) ScheduleNextRound(ctx context.Context, id string, start time.Time) error {
	h.scheduled = append(h.scheduled, start)
	h.pending = true
	return nil
}

func (h *fakeHost) Terminate(ctx context.Context, id string) error {
	h.terminates++
	return h.terminateError
}

func (h *fakeHost) Results(ctx context.Context, id string) ([]Standing, error) {
	h.resultsCalls++
	live := h.players
	if h.registrants != nil && h.round == 0 && !h.pending {
		live = h.registrants(h.resultsCalls)
	}
	out := make([]Standing, len(live))
	for i, s := range live {
		s.Points = h.points[s.ID]
		out[i] = s
	}
	return out, nil
}

func (h *fakeHost) Status(ctx context.Context, id string) (*HostStatus, error) {
	if h.failStatus {
		return nil, errFakeHost
	}
	if h.finishEarly {
		return &HostStatus{Round: h.round, Status: StatusFinished}, nil
	}
	if h.pending {
		if h.busy < h.busyPolls {
			h.busy++
			return &HostStatus{Round: h.round + 1, InProgress: 1,
				Status: StatusStarted}, nil
		}
		h.play()
	}
	return &HostStatus{Round: h.round, Status: StatusStarted}, nil
}

func (h *fakeHost) play() {
	for _, g := range h.pairings {
		if g.IsBye() {
			h.points[g.White] += 1
			continue
		}
		w, b := 1.0, 0.0
		if h.outcome != nil {
			w, b = h.outcome(g)
		}
		h.points[g.White] += w
		h.points[g.Black] += b
	}
	h.played = append(h.played, h.pairings)
	h.round++
	h.pending = false
	h.busy = 0
}

func (h *fakeHost) TournamentURL(id string) string {
	return "https://lichess.test/swiss/" + id
}

func (h *fakeHost) rating(id string) int {
	for _, p := range h.players {
		if p.ID == id {
			return p.Rating
		}
	}
	return 0
}

type publishCall struct {
	key   string
	isNew bool
}

type fakeStore struct {
	calls []publishCall
	err   error
}

func (s *fakeStore) Publish(ctx context.Context, key string, data []byte, isNew bool) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, publishCall{key: key, isNew: isNew})
	return nil
}

func (s *fakeStore) PublicURL(key string) string {
	return "https://brackets.test/" + key
}

type fakePresenter struct {
	snaps []*Snapshot
}

func (p *fakePresenter) Render(snap *Snapshot) ([]byte, error) {
	p.snaps = append(p.snaps, snap)
	return []byte("png"), nil
}

type fakeNotifier struct {
	msgs []string
}

func (n *fakeNotifier) Announce(ctx context.Context, msg string) error {
	n.msgs = append(n.msgs, msg)
	return nil
}
