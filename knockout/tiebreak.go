/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"github.com/mikeb26/knockout-tdbot/config"
)

// Side is one participant's view of a completed match.
type Side struct {
	Score  float64
	Rating int
	Blacks int
}

// Resolve returns 0 when a advances and 1 when b advances. The higher score
// always wins. On a tie the rating mode favours the lower rating and the
// colour mode favours the side that played more games as black. Exchanging
// a and b exchanges the result, except when both sides are identical in
// every tie-break field, where a is chosen.
func Resolve(mode config.TieBreak, a, b Side) int {
	switch {
	case a.Score > b.Score:
		return 0
	case b.Score > a.Score:
		return 1
	}

	if mode == config.TieBreakColor && a.Blacks != b.Blacks {
		if a.Blacks > b.Blacks {
			return 0
		}
		return 1
	}

	if b.Rating < a.Rating {
		return 1
	}
	return 0
}
