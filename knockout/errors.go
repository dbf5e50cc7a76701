/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"errors"
)

var (
	// ErrRemoteExhausted means a host call failed on every attempt.
	ErrRemoteExhausted = errors.New("remote operation failed after all attempts")

	// ErrTournamentEnded means the host reported the event finished or gone
	// while rounds were still expected.
	ErrTournamentEnded = errors.New("tournament ended at host unexpectedly")

	// ErrConsistency marks a violated bracket invariant; it indicates a bug
	// in state tracking rather than an external fault.
	ErrConsistency = errors.New("bracket consistency error")

	// ErrInsufficientParticipants means registration closed below the
	// configured minimum.
	ErrInsufficientParticipants = errors.New("not enough participants")
)
