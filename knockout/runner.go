/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mikeb26/knockout-tdbot/config"
	"github.com/mikeb26/knockout-tdbot/internal"
)

const (
	// StartAlignment is the boundary the scheduled start is rounded up to.
	StartAlignment = 10 * time.Minute
	// EarlyStartDelay is how soon the event starts once registration
	// closes ahead of schedule.
	EarlyStartDelay = 30 * time.Second
	// GameStartDelay is how far ahead each game round is scheduled.
	GameStartDelay = 15 * time.Second
)

type Phase int

const (
	PhaseCreated Phase = iota
	PhaseRegistering
	PhaseStarted
	PhasePlaying
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseRegistering:
		return "registering"
	case PhaseStarted:
		return "started"
	case PhasePlaying:
		return "playing"
	case PhaseFinalized:
		return "finalized"
	default:
		return "?"
	}
}

type RunnerParams struct {
	Options   config.Options
	Host      Host
	Store     ArtifactStore
	Presenter Presenter
	// Notifier is optional.
	Notifier Notifier
	Clock    Clock
	Rand     *rand.Rand
	Log      logrus.FieldLogger
	Cadence  Cadence
	Attempts int
	Delay    time.Duration
	// OnCreated is called with the tournament ID as soon as it exists
	// remotely.
	OnCreated func(id string)
}

// Runner drives one tournament from creation to the final. It is the sole
// owner of the roster and the bracket; presenters only ever see snapshots.
type Runner struct {
	opts      config.Options
	host      Host
	store     ArtifactStore
	presenter Presenter
	notifier  Notifier
	clock     Clock
	rng       *rand.Rand
	log       logrus.FieldLogger
	cadence   Cadence
	exec      *Executor
	onCreated func(id string)

	phase        Phase
	id           string
	url          string
	description  string
	startTime    time.Time
	reg          *Registration
	roster       []Participant
	participants map[string]*Participant
	allowList    []string
	matchRounds  int
	totalRounds  int
	colors       ColorSchedule
	state        BracketState
	published    bool
}

func NewRunner(p RunnerParams) *Runner {
	if p.Clock == nil {
		p.Clock = RealClock()
	}
	if p.Rand == nil {
		p.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if p.Log == nil {
		p.Log = logrus.StandardLogger()
	}
	if p.Cadence == (Cadence{}) {
		p.Cadence = DefaultCadence
	}
	if p.Attempts == 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Delay == 0 {
		p.Delay = DefaultDelay
	}

	r := &Runner{
		opts:         p.Options,
		host:         p.Host,
		store:        p.Store,
		presenter:    p.Presenter,
		notifier:     p.Notifier,
		clock:        p.Clock,
		rng:          p.Rand,
		log:          p.Log,
		cadence:      p.Cadence,
		exec:         NewExecutor(p.Attempts, p.Delay, p.Clock, p.Log),
		onCreated:    p.OnCreated,
		participants: make(map[string]*Participant),
		matchRounds:  p.Options.MatchRounds(),
		totalRounds:  p.Options.TotalRounds(),
	}
	r.reg = NewRegistration(p.Options, p.Rand)
	r.colors = NewColorSchedule(p.Rand, r.matchRounds)
	r.state = BracketState{
		TreeSize:      internal.NextPowerOfTwo(p.Options.MaxParticipants),
		MatchRounds:   r.matchRounds,
		GamesPerMatch: p.Options.GamesPerMatch,
	}

	return r
}

func (r *Runner) ID() string {
	return r.id
}

func (r *Runner) Phase() Phase {
	return r.phase
}

// Winner returns the champion and the runner-up once finalized.
func (r *Runner) Winner() (string, string) {
	return r.state.Winner, r.state.RunnerUp
}

// Run executes the whole lifecycle. Any returned error is terminal; a
// best-effort remote termination has already been attempted unless the
// host itself ended the event.
func (r *Runner) Run(ctx context.Context) error {
	err := r.run(ctx)
	if err == nil {
		return nil
	}

	if !errors.Is(err, ErrTournamentEnded) {
		r.exec.Terminate(ctx)
	}
	if r.id != "" {
		r.announce(ctx, fmt.Sprintf("Knock-out tournament %v was aborted: %v",
			r.url, err))
	}

	return err
}

func (r *Runner) run(ctx context.Context) error {
	if err := r.create(ctx); err != nil {
		return err
	}
	if err := r.waitForStart(ctx); err != nil {
		return err
	}
	if err := r.start(ctx); err != nil {
		return err
	}
	for m := 0; m < r.matchRounds; m++ {
		if err := r.playMatchRound(ctx, m); err != nil {
			return err
		}
	}

	return r.finalize(ctx)
}

// hostRounds is the round count sent to the host, which only accepts a
// bounded range; surplus rounds are removed by terminating after the final.
func (r *Runner) hostRounds() int {
	return min(max(r.totalRounds, MinHostRounds), MaxHostRounds)
}

func (r *Runner) baseEdit() EditRequest {
	return EditRequest{
		ClockInit:   r.opts.ClockInit,
		ClockInc:    r.opts.ClockInc,
		TotalRounds: r.hostRounds(),
		AllowList:   r.allowList,
	}
}

func (r *Runner) edit(ctx context.Context, name string, req EditRequest) error {
	return r.exec.Run(ctx, name, Abort, func(ctx context.Context) error {
		return r.host.Edit(ctx, r.id, req)
	})
}

func (r *Runner) artifactKey() string {
	return r.id + ".png"
}

func alignUp(t time.Time, d time.Duration) time.Time {
	a := t.Truncate(d)
	if a.Before(t) {
		a = a.Add(d)
	}
	return a
}

func (r *Runner) buildDescription() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Knock-out tournament for up to %v players. ",
		r.opts.MaxParticipants))
	if r.opts.GamesPerMatch == 1 {
		sb.WriteString("Each match is a single game. ")
	} else {
		sb.WriteString(fmt.Sprintf("Each match consists of %v games with alternating colours. ",
			r.opts.GamesPerMatch))
	}
	if r.opts.StartAtMax {
		sb.WriteString("Registration closes once the event is full or 30 seconds before the start. ")
	} else {
		sb.WriteString("Registration closes 30 seconds before the start. ")
	}
	if r.opts.RandomizeSeeds {
		sb.WriteString("Seeds are drawn at random. ")
	} else {
		sb.WriteString("Players are seeded by rating. ")
	}
	switch r.opts.TieBreak {
	case config.TieBreakColor:
		sb.WriteString("A tied match goes to the player who had black more often.")
	default:
		sb.WriteString("A tied match goes to the lower rated player.")
	}

	return sb.String()
}

func (r *Runner) create(ctx context.Context) error {
	r.startTime = alignUp(r.clock.Now().Add(
		time.Duration(r.opts.MinutesToStart)*time.Minute), StartAlignment)
	r.description = r.buildDescription()

	req := CreateRequest{
		Title:       r.opts.EventName,
		ClockInit:   r.opts.ClockInit,
		ClockInc:    r.opts.ClockInc,
		TotalRounds: r.hostRounds(),
		StartsAt:    r.startTime,
		Variant:     r.opts.Variant,
		Description: r.description,
		Rated:       r.opts.Rated,
		ChatScope:   r.opts.ChatScope,
	}
	r.log.Info("Creating tournament")
	id, err := Execute(ctx, r.exec, "create tournament", ReportAndExit,
		func(ctx context.Context) (string, error) {
			return r.host.Create(ctx, req)
		})
	if err != nil {
		return err
	}

	r.id = id
	r.url = r.host.TournamentURL(id)
	r.log = r.log.WithField("tournament", id)
	r.exec.log = r.log
	r.exec.SetAbort(func(ctx context.Context) error {
		return r.host.Terminate(ctx, id)
	})
	if r.onCreated != nil {
		r.onCreated(id)
	}
	r.log.Infof("Created tournament %v starting at %v", r.url,
		r.startTime.Format(time.RFC3339))

	r.description += "\n\nPairings: " + r.store.PublicURL(r.artifactKey())
	edit := r.baseEdit()
	edit.Description = r.description
	if err := r.edit(ctx, "set description", edit); err != nil {
		return err
	}
	r.phase = PhaseRegistering

	return nil
}

func (r *Runner) results(ctx context.Context) ([]Standing, error) {
	return Execute(ctx, r.exec, "fetch results", Abort,
		func(ctx context.Context) ([]Standing, error) {
			return r.host.Results(ctx, r.id)
		})
}

func (r *Runner) waitForStart(ctx context.Context) error {
	var live []Standing
	for {
		var err error
		live, err = r.results(ctx)
		if err != nil {
			return err
		}

		d := r.reg.Poll(live, r.clock.Now(), r.startTime, r.cadence)
		for _, id := range d.Added {
			r.log.Infof("%v joined", id)
		}
		for _, id := range d.Removed {
			r.log.Infof("%v withdrew", id)
		}
		if d.Close {
			r.log.Infof("Closing registration (%v) with %v players", d.Reason,
				r.reg.Len())
			break
		}

		r.log.Infof("Registered %v/%v; starts at %v\n%v", r.reg.Len(),
			r.opts.MaxParticipants, r.startTime.Format(time.RFC3339),
			BuildParticipantsOutput(r.reg.Roster()))
		r.publish(ctx)

		if err := r.clock.Sleep(ctx, d.Wait); err != nil {
			return err
		}
	}

	for _, id := range r.reg.Late(live) {
		r.log.Infof("Sorry %v, you were too late", id)
	}

	roster, err := r.reg.Close()
	if err != nil {
		return err
	}
	r.roster = roster
	r.allowList = make([]string, 0, len(roster))
	for i := range r.roster {
		p := &r.roster[i]
		r.participants[p.ID] = p
		r.allowList = append(r.allowList, p.ID)
	}

	if r.startTime.Sub(r.clock.Now()) > EarlyStartDelay {
		r.startTime = r.clock.Now().Add(EarlyStartDelay)
		edit := r.baseEdit()
		edit.StartsAt = r.startTime
		if err := r.edit(ctx, "move start", edit); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) start(ctx context.Context) error {
	if err := r.edit(ctx, "restrict entrants", r.baseEdit()); err != nil {
		return err
	}

	treeSize := internal.NextPowerOfTwo(len(r.roster))
	actual := internal.Log2(treeSize)
	if actual < r.matchRounds {
		r.log.Infof("Reducing to %v match rounds for %v players", actual,
			len(r.roster))
		r.matchRounds = actual
		r.totalRounds = actual * r.opts.GamesPerMatch
		if err := r.edit(ctx, "update round count", r.baseEdit()); err != nil {
			return err
		}
	}
	r.state.TreeSize = treeSize
	r.state.MatchRounds = r.matchRounds
	r.phase = PhaseStarted
	r.log.Infof("Starting with %v players\n%v", len(r.roster),
		BuildParticipantsOutput(r.roster))
	r.publish(ctx)

	return nil
}

func (r *Runner) playMatchRound(ctx context.Context, m int) error {
	r.state.MatchRound = m
	r.state.GameRound = 0

	var round PairingRound
	var err error
	if m == 0 {
		seeded := make([]string, len(r.roster))
		for i, p := range r.roster {
			seeded[i] = p.ID
		}
		round, err = PlaceSeeds(seeded, r.state.TreeSize)
	} else {
		round, err = r.state.Current().Advance()
	}
	if err != nil {
		return err
	}
	r.state.Rounds = append(r.state.Rounds, round)
	r.phase = PhasePlaying

	for g := 0; g < r.opts.GamesPerMatch; g++ {
		r.state.GameRound = g
		if err := r.startGames(ctx); err != nil {
			return err
		}
		if err := r.waitForGames(ctx); err != nil {
			return err
		}
		if err := r.finishGames(ctx); err != nil {
			return err
		}
	}

	return r.finishMatches(ctx)
}

// games returns the host pairings for one game of the current round.
func (r *Runner) games() []Game {
	round := r.state.Current()
	games := make([]Game, 0, round.NumMatches())
	for k := 0; k < round.NumMatches(); k++ {
		top, bottom := round.Match(k)
		switch {
		case top.IsBye() && bottom.IsBye():
			continue
		case bottom.IsBye():
			games = append(games, Game{White: top.ParticipantID})
		case top.IsBye():
			games = append(games, Game{White: bottom.ParticipantID})
		case r.colors.TopIsWhite(r.state.MatchRound, r.state.GameRound):
			games = append(games, Game{White: top.ParticipantID,
				Black: bottom.ParticipantID})
		default:
			games = append(games, Game{White: bottom.ParticipantID,
				Black: top.ParticipantID})
		}
	}
	return games
}

func (r *Runner) startGames(ctx context.Context) error {
	log := r.log.WithField("round", r.state.GlobalRound()+1)
	log.Infof("Starting game %v/%v of %v", r.state.GameRound+1,
		r.opts.GamesPerMatch, RoundTitle(len(r.state.Current())))

	edit := r.baseEdit()
	edit.ManualPairings = r.games()
	if err := r.edit(ctx, "push pairings", edit); err != nil {
		return err
	}

	startAt := r.clock.Now().Add(GameStartDelay)
	if r.state.GlobalRound() == 0 {
		first := edit
		first.StartsAt = startAt
		if err := r.edit(ctx, "schedule first round", first); err != nil {
			return err
		}
	} else {
		err := r.exec.Run(ctx, "schedule next round", Abort,
			func(ctx context.Context) error {
				return r.host.ScheduleNextRound(ctx, r.id, startAt)
			})
		if err != nil {
			return err
		}
	}

	if err := r.edit(ctx, "confirm pairings", edit); err != nil {
		return err
	}
	r.publish(ctx)

	return nil
}

// waitForGames blocks until the host reports the expected round complete,
// polling at the near cadence.
func (r *Runner) waitForGames(ctx context.Context) error {
	expected := r.state.GlobalRound() + 1
	for {
		st, err := Execute(ctx, r.exec, "fetch status", Abort,
			func(ctx context.Context) (*HostStatus, error) {
				return r.host.Status(ctx, r.id)
			}, WithDelay(r.cadence.Near))
		if err != nil {
			return err
		}
		if st.Round == expected && st.InProgress == 0 {
			return nil
		}
		if st.Status == StatusFinished {
			return fmt.Errorf("%w: finished while waiting for round %v",
				ErrTournamentEnded, expected)
		}
		r.log.Debugf("Waiting for round %v (host at %v, %v in progress)",
			expected, st.Round, st.InProgress)
	}
}

func (r *Runner) finishGames(ctx context.Context) error {
	standings, err := r.results(ctx)
	if err != nil {
		return err
	}

	deltas := make(map[string]float64, len(standings))
	for _, s := range standings {
		p, ok := r.participants[s.ID]
		if !ok {
			continue
		}
		deltas[s.ID] = s.Points - p.Points
		p.Points = s.Points
	}

	round := r.state.Current()
	for k := 0; k < round.NumMatches(); k++ {
		top, bottom := round.Match(k)
		switch {
		case top.IsBye() && bottom.IsBye():
			return fmt.Errorf("%w: match %v has no players", ErrConsistency,
				k+1)
		case top.IsBye():
			top.GameScores = append(top.GameScores, 0)
			bottom.GameScores = append(bottom.GameScores, 1)
		case bottom.IsBye():
			top.GameScores = append(top.GameScores, 1)
			bottom.GameScores = append(bottom.GameScores, 0)
		default:
			dt, db := deltas[top.ParticipantID], deltas[bottom.ParticipantID]
			if dt+db != 1 {
				return fmt.Errorf("%w: %v and %v scored %v and %v in round %v",
					ErrConsistency, top.ParticipantID, bottom.ParticipantID,
					dt, db, r.state.GlobalRound()+1)
			}
			top.GameScores = append(top.GameScores, dt)
			bottom.GameScores = append(bottom.GameScores, db)
		}
	}
	r.publish(ctx)

	return nil
}

func (r *Runner) side(e *PairingEntry, blacks int) Side {
	s := Side{Score: e.Score(), Blacks: blacks}
	if p, ok := r.participants[e.ParticipantID]; ok {
		s.Rating = p.Rating
	}
	return s
}

func (r *Runner) finishMatches(ctx context.Context) error {
	round := r.state.Current()
	topBlacks, bottomBlacks := r.colors.Blacks(r.state.MatchRound,
		r.opts.GamesPerMatch)
	for k := 0; k < round.NumMatches(); k++ {
		top, bottom := round.Match(k)
		switch {
		case top.IsBye():
			bottom.HasWon = true
		case bottom.IsBye():
			top.HasWon = true
		default:
			w := Resolve(r.opts.TieBreak, r.side(top, topBlacks),
				r.side(bottom, bottomBlacks))
			top.HasWon = w == 0
			bottom.HasWon = w == 1
		}
	}

	snap := r.Snapshot()
	r.log.Infof("%v complete\n%v", RoundTitle(len(round)),
		BuildMatchesOutput(snap, round))
	r.publish(ctx)

	return nil
}

func (r *Runner) finalize(ctx context.Context) error {
	last := r.state.Current()
	if last.NumMatches() != 1 {
		return fmt.Errorf("%w: final round has %v matches", ErrConsistency,
			last.NumMatches())
	}
	top, bottom := last.Match(0)
	if top.HasWon {
		r.state.Winner, r.state.RunnerUp = top.ParticipantID, bottom.ParticipantID
	} else {
		r.state.Winner, r.state.RunnerUp = bottom.ParticipantID, top.ParticipantID
	}
	r.phase = PhaseFinalized
	r.log.Infof("Winner: %v", r.state.Winner)
	r.publish(ctx)

	if r.totalRounds < MinHostRounds {
		// the host still has rounds scheduled that will never be paired
		if err := r.host.Terminate(ctx, r.id); err != nil {
			r.log.WithError(err).Warn("Failed to close unused rounds")
		}
	}
	r.announce(ctx, fmt.Sprintf("Thanks to those who played in %v! Congrats to the winner %v!",
		r.url, r.state.Winner))

	return nil
}

// Snapshot returns a deep copy of the visible bracket state. While
// registration is open it holds a tentative first round built from the
// current seeds.
func (r *Runner) Snapshot() *Snapshot {
	snap := &Snapshot{
		TournamentID:  r.id,
		TournamentURL: r.url,
		Title:         r.opts.EventName,
		TreeSize:      r.state.TreeSize,
		MatchRounds:   r.state.MatchRounds,
		GamesPerMatch: r.state.GamesPerMatch,
		MatchRound:    r.state.MatchRound,
		GameRound:     r.state.GameRound,
		Colors:        append(ColorSchedule(nil), r.colors...),
		Participants:  make(map[string]Participant),
		Winner:        r.state.Winner,
		RunnerUp:      r.state.RunnerUp,
	}

	if len(r.state.Rounds) == 0 {
		snap.Preliminary = r.phase < PhaseStarted
		roster := r.roster
		if roster == nil {
			roster = r.reg.Roster()
		}
		seeded := make([]string, 0, len(roster))
		for _, p := range roster {
			snap.Participants[p.ID] = p
			seeded = append(seeded, p.ID)
		}
		if len(seeded) <= snap.TreeSize {
			if round, err := PlaceSeeds(seeded, snap.TreeSize); err == nil {
				snap.Rounds = []PairingRound{round}
			}
		}
		return snap
	}

	for _, p := range r.participants {
		snap.Participants[p.ID] = *p
	}
	for _, round := range r.state.Rounds {
		snap.Rounds = append(snap.Rounds, round.clone())
	}

	return snap
}

// publish renders and stores the bracket. Failures are logged only.
func (r *Runner) publish(ctx context.Context) {
	if r.presenter == nil || r.store == nil {
		return
	}
	data, err := r.presenter.Render(r.Snapshot())
	if err != nil {
		r.log.WithError(err).Warn("Failed to render bracket")
		return
	}
	if err := r.store.Publish(ctx, r.artifactKey(), data, !r.published); err != nil {
		r.log.WithError(err).Warn("Failed to publish bracket")
		return
	}
	r.published = true
}

func (r *Runner) announce(ctx context.Context, msg string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Announce(context.WithoutCancel(ctx), msg); err != nil {
		r.log.WithError(err).Warn("Failed to post announcement")
	}
}
