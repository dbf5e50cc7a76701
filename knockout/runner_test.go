/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mikeb26/knockout-tdbot/config"
	"github.com/mikeb26/knockout-tdbot/internal"
)

func testOptions() config.Options {
	return config.Options{
		MaxParticipants: 4,
		MinParticipants: 4,
		StartAtMax:      true,
		GamesPerMatch:   1,
		Variant:         "standard",
		ClockInit:       180,
		ClockInc:        2,
		ChatScope:       config.ChatEveryone,
		EventName:       "Test Knockout",
		MinutesToStart:  60,
		TieBreak:        config.TieBreakRating,
	}
}

type harness struct {
	host      *fakeHost
	clock     *fakeClock
	store     *fakeStore
	presenter *fakePresenter
	notifier  *fakeNotifier
	runner    *Runner
	createdID string
}

func newHarness(opts config.Options, host *fakeHost) *harness {
	h := &harness{
		host:      host,
		clock:     newFakeClock(),
		store:     &fakeStore{},
		presenter: &fakePresenter{},
		notifier:  &fakeNotifier{},
	}
	h.runner = NewRunner(RunnerParams{
		Options:   opts,
		Host:      host,
		Store:     h.store,
		Presenter: h.presenter,
		Notifier:  h.notifier,
		Clock:     h.clock,
		Rand:      rand.New(rand.NewPCG(1, 2)),
		Log:       quietLogger(),
		OnCreated: func(id string) { h.createdID = id },
	})
	return h
}

func fourPlayers() []Standing {
	return []Standing{
		{ID: "delta", Username: "Delta", Rating: 1900},
		{ID: "bravo", Username: "Bravo", Rating: 2100},
		{ID: "alpha", Username: "Alpha", Rating: 2200},
		{ID: "charlie", Username: "Charlie", Rating: 2000},
	}
}

func roundIDs(pr PairingRound) []string {
	ids := make([]string, len(pr))
	for i, e := range pr {
		ids[i] = e.ParticipantID
	}
	return ids
}

func higherRatedWins(host *fakeHost) func(g Game) (float64, float64) {
	return func(g Game) (float64, float64) {
		if host.rating(g.White) > host.rating(g.Black) {
			return 1, 0
		}
		return 0, 1
	}
}

// checkMatchTotals verifies every decided match split exactly one point per
// game and has exactly one winner.
func checkMatchTotals(t *testing.T, snap *Snapshot) {
	t.Helper()
	for r, round := range snap.Rounds {
		for k := 0; k < round.NumMatches(); k++ {
			top, bottom := round.Match(k)
			if top.HasWon == bottom.HasWon {
				t.Errorf("round %v match %v: winners top=%v bottom=%v", r, k,
					top.HasWon, bottom.HasWon)
			}
			if top.IsBye() || bottom.IsBye() {
				continue
			}
			total := top.Score() + bottom.Score()
			if total != float64(snap.GamesPerMatch) {
				t.Errorf("round %v match %v: total %v, want %v", r, k, total,
					snap.GamesPerMatch)
			}
		}
	}
}

func TestRunFourPlayersByRating(t *testing.T) {
	host := newFakeHost(fourPlayers()...)
	host.outcome = higherRatedWins(host)
	host.busyPolls = 2
	h := newHarness(testOptions(), host)

	if err := h.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.createdID != "swiss42" {
		t.Errorf("OnCreated got %q", h.createdID)
	}

	snap := h.runner.Snapshot()
	if snap.TreeSize != 4 || snap.MatchRounds != 2 {
		t.Errorf("tree=%v matchRounds=%v, want 4 and 2", snap.TreeSize,
			snap.MatchRounds)
	}
	if len(snap.Rounds) != 2 {
		t.Fatalf("got %v rounds, want 2", len(snap.Rounds))
	}
	if diff := cmp.Diff([]string{"alpha", "delta", "bravo", "charlie"},
		roundIDs(snap.Rounds[0])); diff != "" {
		t.Errorf("round 0 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"alpha", "bravo"},
		roundIDs(snap.Rounds[1])); diff != "" {
		t.Errorf("final mismatch (-want +got):\n%s", diff)
	}
	var scores []float64
	for _, e := range snap.Rounds[0] {
		scores = append(scores, e.Score())
	}
	if diff := cmp.Diff([]float64{1, 0, 1, 0}, scores); diff != "" {
		t.Errorf("round 0 scores mismatch (-want +got):\n%s", diff)
	}
	checkMatchTotals(t, snap)

	winner, runnerUp := h.runner.Winner()
	if winner != "alpha" || runnerUp != "bravo" {
		t.Errorf("winner=%v runnerUp=%v", winner, runnerUp)
	}
	if h.runner.Phase() != PhaseFinalized {
		t.Errorf("phase %v", h.runner.Phase())
	}

	// two real rounds are below the host minimum so the surplus round is
	// closed once, after the final
	if host.created[0].TotalRounds != MinHostRounds {
		t.Errorf("created with %v rounds", host.created[0].TotalRounds)
	}
	if host.terminates != 1 {
		t.Errorf("terminate called %v times, want 1", host.terminates)
	}
	if len(host.played) != 2 || len(host.scheduled) != 1 {
		t.Errorf("played %v rounds, scheduled %v", len(host.played),
			len(host.scheduled))
	}

	if len(h.store.calls) == 0 || !h.store.calls[0].isNew {
		t.Fatalf("first publish should create: %+v", h.store.calls)
	}
	for _, c := range h.store.calls[1:] {
		if c.isNew || c.key != "swiss42.png" {
			t.Errorf("unexpected publish %+v", c)
		}
	}
	last := h.presenter.snaps[len(h.presenter.snaps)-1]
	if last.Winner != "alpha" || last.Preliminary {
		t.Errorf("final snapshot winner=%q preliminary=%v", last.Winner,
			last.Preliminary)
	}
	if len(h.notifier.msgs) != 1 || !strings.Contains(h.notifier.msgs[0], "alpha") {
		t.Errorf("announcements %q", h.notifier.msgs)
	}
}

func TestRunPushesDescriptionAllowListAndStart(t *testing.T) {
	host := newFakeHost(fourPlayers()...)
	host.outcome = higherRatedWins(host)
	h := newHarness(testOptions(), host)

	if err := h.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantStart := time.Date(2026, 3, 1, 13, 10, 0, 0, time.UTC)
	if !host.created[0].StartsAt.Equal(wantStart) {
		t.Errorf("created start %v, want %v", host.created[0].StartsAt,
			wantStart)
	}
	if !strings.Contains(host.edits[0].Description,
		"Pairings: https://brackets.test/swiss42.png") {
		t.Errorf("description edit %q", host.edits[0].Description)
	}

	// capacity closes registration early: the start moves up
	moved := host.edits[1]
	if moved.StartsAt.IsZero() || !moved.StartsAt.Before(wantStart) {
		t.Errorf("expected earlier start, got %v", moved.StartsAt)
	}
	wantAllow := []string{"alpha", "bravo", "charlie", "delta"}
	for _, e := range host.edits[1:] {
		if diff := cmp.Diff(wantAllow, e.AllowList); diff != "" {
			t.Errorf("allow list mismatch (-want +got):\n%s", diff)
		}
		if e.TotalRounds != MinHostRounds || e.ClockInit != 180 || e.ClockInc != 2 {
			t.Errorf("edit missing clock/rounds: %+v", e)
		}
	}

	first := []Game{{White: "alpha", Black: "delta"}, {White: "bravo", Black: "charlie"}}
	if !h.runner.colors.TopIsWhite(0, 0) {
		first = []Game{{White: "delta", Black: "alpha"}, {White: "charlie", Black: "bravo"}}
	}
	if diff := cmp.Diff(first, host.played[0]); diff != "" {
		t.Errorf("first round pairings mismatch (-want +got):\n%s", diff)
	}
}

func TestRunAbortsBelowMinimum(t *testing.T) {
	opts := testOptions()
	opts.StartAtMax = false
	opts.MinutesToStart = 5
	host := newFakeHost(fourPlayers()[:3]...)
	h := newHarness(opts, host)

	err := h.runner.Run(context.Background())
	if !errors.Is(err, ErrInsufficientParticipants) {
		t.Fatalf("got %v, want ErrInsufficientParticipants", err)
	}
	if host.terminates != 1 {
		t.Errorf("terminate called %v times, want 1", host.terminates)
	}
	for _, e := range host.edits {
		if len(e.ManualPairings) > 0 {
			t.Errorf("pairings pushed after abort: %+v", e)
		}
	}
	if h.clock.now.Before(host.created[0].StartsAt.Add(-CloseThreshold)) {
		t.Errorf("closed at %v, before the deadline", h.clock.now)
	}
	if len(h.notifier.msgs) != 1 || !strings.Contains(h.notifier.msgs[0], "aborted") {
		t.Errorf("announcements %q", h.notifier.msgs)
	}
	if len(h.store.calls) == 0 {
		t.Errorf("expected preliminary brackets while registration was open")
	}
	for _, s := range h.presenter.snaps {
		if !s.Preliminary {
			t.Errorf("non preliminary snapshot during registration")
		}
	}
}

func TestRunColorTieBreak(t *testing.T) {
	opts := testOptions()
	opts.GamesPerMatch = 3
	opts.TieBreak = config.TieBreakColor
	host := newFakeHost(fourPlayers()...)
	host.outcome = func(g Game) (float64, float64) { return 0.5, 0.5 }
	h := newHarness(opts, host)
	// top is black first in the semifinals and white first in the final
	h.runner.colors = ColorSchedule{false, true}

	if err := h.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := h.runner.Snapshot()
	checkMatchTotals(t, snap)
	semi := snap.Rounds[0]
	for k := 0; k < semi.NumMatches(); k++ {
		top, bottom := semi.Match(k)
		if top.Score() != 1.5 || bottom.Score() != 1.5 {
			t.Errorf("match %v scored %v-%v", k, top.Score(), bottom.Score())
		}
	}

	// the higher rated top seeds had black twice, so they advance even
	// though the rating rule would favour their opponents
	if diff := cmp.Diff([]string{"alpha", "bravo"},
		roundIDs(snap.Rounds[1])); diff != "" {
		t.Errorf("final mismatch (-want +got):\n%s", diff)
	}
	winner, runnerUp := h.runner.Winner()
	if winner != "bravo" || runnerUp != "alpha" {
		t.Errorf("winner=%v runnerUp=%v", winner, runnerUp)
	}

	wantColors := [][]Game{
		{{White: "delta", Black: "alpha"}, {White: "charlie", Black: "bravo"}},
		{{White: "alpha", Black: "delta"}, {White: "bravo", Black: "charlie"}},
		{{White: "delta", Black: "alpha"}, {White: "charlie", Black: "bravo"}},
		{{White: "alpha", Black: "bravo"}},
		{{White: "bravo", Black: "alpha"}},
		{{White: "alpha", Black: "bravo"}},
	}
	if diff := cmp.Diff(wantColors, host.played); diff != "" {
		t.Errorf("colour alternation mismatch (-want +got):\n%s", diff)
	}
	if host.created[0].TotalRounds != 6 || host.terminates != 0 {
		t.Errorf("rounds=%v terminates=%v", host.created[0].TotalRounds,
			host.terminates)
	}
}

func TestRunFiveWithByes(t *testing.T) {
	opts := testOptions()
	opts.MaxParticipants = 8
	opts.StartAtMax = false
	opts.MinutesToStart = 5
	players := append(fourPlayers(), Standing{ID: "echo", Username: "Echo",
		Rating: 1800})
	host := newFakeHost(players...)
	host.outcome = higherRatedWins(host)
	h := newHarness(opts, host)

	if err := h.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := h.runner.Snapshot()
	want := []string{"alpha", internal.Bye, "delta", "echo", "bravo",
		internal.Bye, "charlie", internal.Bye}
	if diff := cmp.Diff(want, roundIDs(snap.Rounds[0])); diff != "" {
		t.Fatalf("round 0 mismatch (-want +got):\n%s", diff)
	}

	byes := 0
	for k := 0; k < snap.Rounds[0].NumMatches(); k++ {
		top, bottom := snap.Rounds[0].Match(k)
		if !bottom.IsBye() {
			continue
		}
		byes++
		if !top.HasWon || bottom.HasWon {
			t.Errorf("%v did not advance past a bye", top.ParticipantID)
		}
		if diff := cmp.Diff([]float64{1}, top.GameScores); diff != "" {
			t.Errorf("%v bye scores (-want +got):\n%s", top.ParticipantID, diff)
		}
	}
	if byes != 3 {
		t.Errorf("got %v byes, want 3", byes)
	}
	checkMatchTotals(t, snap)

	// the byes are pushed to the host but never produce a real game
	playable := 0
	for _, g := range host.played[0] {
		if !g.IsBye() {
			playable++
		}
	}
	if playable != 1 || len(host.played[0]) != 4 {
		t.Errorf("first round pushed %v games, %v real", len(host.played[0]),
			playable)
	}
	for _, round := range snap.Rounds[1:] {
		for _, e := range round {
			if e.IsBye() {
				t.Errorf("bye carried into a later round")
			}
		}
	}
	if winner, _ := h.runner.Winner(); winner != "alpha" {
		t.Errorf("winner %v", winner)
	}
	if host.created[0].TotalRounds != 3 || host.terminates != 0 {
		t.Errorf("rounds=%v terminates=%v", host.created[0].TotalRounds,
			host.terminates)
	}
}

func TestRunShrinksRoundsForSmallField(t *testing.T) {
	opts := testOptions()
	opts.MaxParticipants = 16
	opts.StartAtMax = false
	opts.MinutesToStart = 5
	host := newFakeHost(fourPlayers()...)
	host.outcome = higherRatedWins(host)
	h := newHarness(opts, host)

	if err := h.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if host.created[0].TotalRounds != 4 {
		t.Errorf("created with %v rounds, want 4", host.created[0].TotalRounds)
	}
	last := host.edits[len(host.edits)-1]
	if last.TotalRounds != MinHostRounds {
		t.Errorf("final edits carry %v rounds, want %v", last.TotalRounds,
			MinHostRounds)
	}
	if snap := h.runner.Snapshot(); snap.TreeSize != 4 || len(snap.Rounds) != 2 {
		t.Errorf("tree=%v rounds=%v", snap.TreeSize, len(snap.Rounds))
	}
}

func TestRunHostFinishedEarly(t *testing.T) {
	host := newFakeHost(fourPlayers()...)
	host.finishEarly = true
	h := newHarness(testOptions(), host)

	err := h.runner.Run(context.Background())
	if !errors.Is(err, ErrTournamentEnded) {
		t.Fatalf("got %v, want ErrTournamentEnded", err)
	}
	if host.terminates != 0 {
		t.Errorf("terminate called %v times for an ended event",
			host.terminates)
	}
}

func TestRunInconsistentScores(t *testing.T) {
	host := newFakeHost(fourPlayers()...)
	host.outcome = func(g Game) (float64, float64) { return 1, 1 }
	h := newHarness(testOptions(), host)

	err := h.runner.Run(context.Background())
	if !errors.Is(err, ErrConsistency) {
		t.Fatalf("got %v, want ErrConsistency", err)
	}
	if host.terminates != 1 {
		t.Errorf("terminate called %v times, want 1", host.terminates)
	}
}

func TestRunStatusExhausted(t *testing.T) {
	host := newFakeHost(fourPlayers()...)
	host.failStatus = true
	host.terminateError = errFakeHost
	h := newHarness(testOptions(), host)

	err := h.runner.Run(context.Background())
	if !errors.Is(err, ErrRemoteExhausted) {
		t.Fatalf("got %v, want ErrRemoteExhausted", err)
	}
	if host.terminates != 1 {
		t.Errorf("terminate called %v times, want 1", host.terminates)
	}
}

func TestRunCreateExhausted(t *testing.T) {
	host := newFakeHost(fourPlayers()...)
	host.failCreate = true
	h := newHarness(testOptions(), host)

	err := h.runner.Run(context.Background())
	if !errors.Is(err, ErrRemoteExhausted) {
		t.Fatalf("got %v, want ErrRemoteExhausted", err)
	}
	if host.terminates != 0 || len(h.notifier.msgs) != 0 {
		t.Errorf("terminates=%v announcements=%q", host.terminates,
			h.notifier.msgs)
	}
	if h.clock.slept != 4*DefaultDelay {
		t.Errorf("slept %v between attempts", h.clock.slept)
	}
}

func TestRunRetriesTransientEdits(t *testing.T) {
	host := newFakeHost(fourPlayers()...)
	host.outcome = higherRatedWins(host)
	host.failEdits = DefaultAttempts - 1
	h := newHarness(testOptions(), host)

	if err := h.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if winner, _ := h.runner.Winner(); winner != "alpha" {
		t.Errorf("winner %v", winner)
	}
}

func TestRunRegistrationChurn(t *testing.T) {
	opts := testOptions()
	opts.MaxParticipants = 8
	opts.StartAtMax = false
	opts.MinutesToStart = 5
	players := fourPlayers()
	host := newFakeHost(players...)
	host.outcome = higherRatedWins(host)
	late := Standing{ID: "zulu", Username: "Zulu", Rating: 1500}
	host.registrants = func(call int) []Standing {
		switch {
		case call < 3:
			return append([]Standing{late}, players[:2]...)
		default:
			return players
		}
	}
	h := newHarness(opts, host)

	if err := h.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	snap := h.runner.Snapshot()
	if _, ok := snap.Participants["zulu"]; ok {
		t.Errorf("withdrawn player kept in the bracket")
	}
	if len(snap.Participants) != 4 {
		t.Errorf("got %v participants", len(snap.Participants))
	}
}

func TestRunCancelled(t *testing.T) {
	opts := testOptions()
	opts.StartAtMax = false
	host := newFakeHost(fourPlayers()[:2]...)
	h := newHarness(opts, host)

	ctx, cancel := context.WithCancel(context.Background())
	h.runner.onCreated = func(string) { cancel() }
	err := h.runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if host.terminates != 1 {
		t.Errorf("terminate called %v times, want 1", host.terminates)
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		in, want time.Time
	}{
		{time.Date(2026, 3, 1, 13, 3, 0, 0, time.UTC),
			time.Date(2026, 3, 1, 13, 10, 0, 0, time.UTC)},
		{time.Date(2026, 3, 1, 13, 10, 0, 0, time.UTC),
			time.Date(2026, 3, 1, 13, 10, 0, 0, time.UTC)},
		{time.Date(2026, 3, 1, 13, 59, 59, 0, time.UTC),
			time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		if got := alignUp(tc.in, StartAlignment); !got.Equal(tc.want) {
			t.Errorf("alignUp(%v)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRunPollsGamesAtNearCadence(t *testing.T) {
	host := newFakeHost(fourPlayers()...)
	host.outcome = higherRatedWins(host)
	host.busyPolls = 2
	clock := newFakeClock()
	runner := NewRunner(RunnerParams{
		Options: testOptions(),
		Host:    host,
		Clock:   clock,
		Rand:    rand.New(rand.NewPCG(1, 2)),
		Log:     quietLogger(),
		Cadence: Cadence{Near: 7 * time.Second, Far: 11 * time.Second},
	})

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	near := 0
	for _, d := range clock.sleeps {
		if d == 7*time.Second {
			near++
		}
	}
	// two game rounds, each polled twice while busy and once when done
	if near != 6 {
		t.Errorf("%v status polls paced at the near cadence, want 6", near)
	}
}
