/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package render

import (
	"github.com/mikeb26/knockout-tdbot/internal"
)

const (
	BlockWidth  = 240
	RowHeight   = 22
	BlockHeight = 2 * RowHeight
	ColumnGap   = 48
	RowGap      = 16
	Margin      = 24
	HeaderSpace = 72
	FooterSpace = 36

	// MaxColumns bounds the image size for large fields; earlier rounds are
	// summarised in the header instead of drawn.
	MaxColumns = 7
)

type Rect struct {
	X, Y, W, H int
}

func (r Rect) MidY() int {
	return r.Y + r.H/2
}

func (r Rect) Right() int {
	return r.X + r.W
}

// Layout positions every match block of the drawn rounds plus the winner
// box to the right of the final.
type Layout struct {
	Width  int
	Height int
	// FirstRound is the index of the first drawn match round.
	FirstRound int
	// Blocks[i][k] is match k of match round FirstRound+i.
	Blocks    [][]Rect
	WinnerBox Rect
}

// ComputeLayout places a bracket of treeSize slots and matchRounds levels.
// Each block is vertically centred between the two blocks feeding it.
func ComputeLayout(treeSize, matchRounds int) Layout {
	var l Layout
	matchRounds = min(matchRounds, internal.Log2(treeSize))
	if matchRounds < 1 || treeSize < 2 {
		l.Width = 2*Margin + BlockWidth
		l.Height = HeaderSpace + BlockHeight + FooterSpace
		l.WinnerBox = Rect{X: Margin, Y: HeaderSpace, W: BlockWidth, H: RowHeight}
		return l
	}

	l.FirstRound = max(0, matchRounds-MaxColumns)
	columns := matchRounds - l.FirstRound
	firstMatches := max(1, treeSize>>(l.FirstRound+1))
	unit := BlockHeight + RowGap

	l.Width = 2*Margin + (columns+1)*(BlockWidth+ColumnGap) - ColumnGap
	l.Height = HeaderSpace + firstMatches*unit - RowGap + FooterSpace

	l.Blocks = make([][]Rect, columns)
	for c := 0; c < columns; c++ {
		x := Margin + c*(BlockWidth+ColumnGap)
		n := max(1, firstMatches>>c)
		l.Blocks[c] = make([]Rect, n)
		for k := 0; k < n; k++ {
			var y int
			if c == 0 {
				y = HeaderSpace + k*unit
			} else {
				a, b := l.Blocks[c-1][2*k], l.Blocks[c-1][2*k+1]
				y = (a.MidY()+b.MidY())/2 - BlockHeight/2
			}
			l.Blocks[c][k] = Rect{X: x, Y: y, W: BlockWidth, H: BlockHeight}
		}
	}

	final := l.Blocks[columns-1][0]
	l.WinnerBox = Rect{
		X: final.Right() + ColumnGap,
		Y: final.MidY() - RowHeight/2,
		W: BlockWidth,
		H: RowHeight,
	}

	return l
}
