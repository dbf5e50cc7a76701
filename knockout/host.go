/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"context"
	"time"

	"github.com/mikeb26/knockout-tdbot/config"
)

// The host schedules between MinHostRounds and MaxHostRounds game rounds.
const (
	MinHostRounds = 3
	MaxHostRounds = 100
)

type LifecycleStatus string

const (
	StatusCreated  LifecycleStatus = "created"
	StatusStarted  LifecycleStatus = "started"
	StatusFinished LifecycleStatus = "finished"
)

// Game is one manual pairing pushed to the host. An empty Black means White
// receives a bye.
type Game struct {
	White string
	Black string
}

func (g Game) IsBye() bool {
	return g.Black == ""
}

type CreateRequest struct {
	Title       string
	ClockInit   int
	ClockInc    int
	TotalRounds int
	StartsAt    time.Time
	Variant     string
	Description string
	Rated       bool
	ChatScope   config.ChatScope
}

// EditRequest always carries the clock and round count since the host
// requires them on every edit; the remaining fields are omitted when empty.
type EditRequest struct {
	ClockInit      int
	ClockInc       int
	TotalRounds    int
	Description    string
	AllowList      []string
	ManualPairings []Game
	StartsAt       time.Time
}

// Standing is one row of the host's results snapshot.
type Standing struct {
	ID       string
	Username string
	Points   float64
	Rating   int
}

type HostStatus struct {
	Round      int
	InProgress int
	Status     LifecycleStatus
	StartsAt   time.Time
}

// Host is the remote tournament service.
type Host interface {
	Create(ctx context.Context, req CreateRequest) (string, error)
	Edit(ctx context.Context, id string, req EditRequest) error
	ScheduleNextRound(ctx context.Context, id string, start time.Time) error
	Terminate(ctx context.Context, id string) error
	Results(ctx context.Context, id string) ([]Standing, error)
	Status(ctx context.Context, id string) (*HostStatus, error)
	TournamentURL(id string) string
}

// ArtifactStore persists rendered brackets. isNew distinguishes the first
// publish of a key from later updates.
type ArtifactStore interface {
	Publish(ctx context.Context, key string, data []byte, isNew bool) error
	PublicURL(key string) string
}

// Presenter renders a read-only bracket snapshot.
type Presenter interface {
	Render(snap *Snapshot) ([]byte, error)
}

// Notifier posts human readable announcements. Optional.
type Notifier interface {
	Announce(ctx context.Context, msg string) error
}
