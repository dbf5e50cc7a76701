/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"fmt"
	"sync"

	"github.com/mikeb26/knockout-tdbot/internal"
)

var (
	seedTreeMu    sync.Mutex
	seedTreeCache = map[int][]int{1: {1}}
)

// SeedTree returns the first-round slot order for a bracket of the given
// power-of-two size. Reading consecutive slots in pairs gives the opening
// matches; seeds 1 and 2 can only meet in the final, seeds 1-4 not before
// the semi-finals, and so on.
func SeedTree(size int) ([]int, error) {
	if size < 1 || internal.NextPowerOfTwo(size) != size {
		return nil, fmt.Errorf("knockout.SeedTree: size %v is not a power of two",
			size)
	}

	seedTreeMu.Lock()
	defer seedTreeMu.Unlock()

	return append([]int(nil), buildSeedTree(size)...), nil
}

// caller must hold seedTreeMu
func buildSeedTree(size int) []int {
	if tree, ok := seedTreeCache[size]; ok {
		return tree
	}

	half := buildSeedTree(size / 2)
	tree := make([]int, 0, size)
	for _, s := range half {
		tree = append(tree, s, size+1-s)
	}
	seedTreeCache[size] = tree

	return tree
}

// PlaceSeeds lays the seeded participants into the first round. Slots whose
// seed exceeds the field size receive a BYE.
func PlaceSeeds(seeded []string, treeSize int) (PairingRound, error) {
	if len(seeded) > treeSize {
		return nil, fmt.Errorf("%w: %v participants exceed bracket size %v",
			ErrConsistency, len(seeded), treeSize)
	}
	tree, err := SeedTree(treeSize)
	if err != nil {
		return nil, err
	}

	round := make(PairingRound, treeSize)
	for i, seed := range tree {
		if seed <= len(seeded) {
			round[i].ParticipantID = seeded[seed-1]
		} else {
			round[i].ParticipantID = internal.Bye
		}
	}

	return round, nil
}
