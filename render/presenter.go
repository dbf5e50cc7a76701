/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/mikeb26/knockout-tdbot/internal"
	"github.com/mikeb26/knockout-tdbot/knockout"
)

// Palette holds the colours used to draw a bracket.
type Palette struct {
	Background drawing.Color
	Block      drawing.Color
	Border     drawing.Color
	Winner     drawing.Color
	Bye        drawing.Color
	Text       drawing.Color
	Muted      drawing.Color
	Line       drawing.Color
}

var DefaultPalette = Palette{
	Background: drawing.ColorFromHex("f8fafc"),
	Block:      drawing.ColorWhite,
	Border:     drawing.ColorFromHex("94a3b8"),
	Winner:     drawing.ColorFromHex("bbf7d0"),
	Bye:        drawing.ColorFromHex("e2e8f0"),
	Text:       drawing.ColorFromHex("0f172a"),
	Muted:      drawing.ColorFromHex("64748b"),
	Line:       drawing.ColorFromHex("475569"),
}

// Presenter draws a bracket snapshot as a PNG.
type Presenter struct {
	Palette Palette
}

func NewPresenter() *Presenter {
	return &Presenter{Palette: DefaultPalette}
}

var _ knockout.Presenter = (*Presenter)(nil)

func (p *Presenter) Render(snap *knockout.Snapshot) ([]byte, error) {
	layout := ComputeLayout(snap.TreeSize, snap.MatchRounds)

	r, err := chart.PNG(layout.Width, layout.Height)
	if err != nil {
		return nil, fmt.Errorf("render: creating canvas: %w", err)
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return nil, fmt.Errorf("render: loading font: %w", err)
	}
	r.SetFont(font)

	p.fillRect(r, Rect{W: layout.Width, H: layout.Height},
		p.Palette.Background)
	p.drawHeader(r, snap, layout)
	for c, blocks := range layout.Blocks {
		round := layout.FirstRound + c
		p.drawRoundTitle(r, snap, round, blocks[0].X)
		for k, b := range blocks {
			p.drawMatch(r, snap, round, k, b)
			if c+1 < len(layout.Blocks) {
				p.drawConnector(r, b, layout.Blocks[c+1][k/2])
			}
		}
	}
	p.drawWinner(r, snap, layout)

	var buf bytes.Buffer
	if err := r.Save(&buf); err != nil {
		return nil, fmt.Errorf("render: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Presenter) fillRect(r chart.Renderer, rect Rect, fill drawing.Color) {
	r.SetFillColor(fill)
	r.SetStrokeColor(p.Palette.Border)
	r.SetStrokeWidth(1)
	r.MoveTo(rect.X, rect.Y)
	r.LineTo(rect.Right(), rect.Y)
	r.LineTo(rect.Right(), rect.Y+rect.H)
	r.LineTo(rect.X, rect.Y+rect.H)
	r.Close()
	r.FillStroke()
}

func (p *Presenter) text(r chart.Renderer, s string, x, y int, size float64,
	color drawing.Color) {

	r.SetFontSize(size)
	r.SetFontColor(color)
	r.Text(s, x, y)
}

// fit shortens s with an ellipsis until it is at most width pixels wide.
func fit(r chart.Renderer, s string, width int) string {
	if r.MeasureText(s).Width() <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 1 {
		runes = runes[:len(runes)-1]
		if cand := string(runes) + "…"; r.MeasureText(cand).Width() <= width {
			return cand
		}
	}
	return string(runes)
}

func (p *Presenter) drawHeader(r chart.Renderer, snap *knockout.Snapshot,
	layout Layout) {

	title := snap.Title
	if title == "" {
		title = "Knock-out tournament"
	}
	if snap.Preliminary {
		title += " (preliminary)"
	}
	p.text(r, title, Margin, 30, 18, p.Palette.Text)

	sub := fmt.Sprintf("%v players, %v per match", len(snap.Participants),
		plural(snap.GamesPerMatch, "game"))
	if layout.FirstRound > 0 {
		sub += fmt.Sprintf("; first %v not shown",
			plural(layout.FirstRound, "round"))
	}
	p.text(r, sub, Margin, 48, 10, p.Palette.Muted)

	if snap.TournamentURL != "" {
		p.text(r, snap.TournamentURL, Margin, layout.Height-14, 10,
			p.Palette.Muted)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%v %vs", n, noun)
}

func (p *Presenter) drawRoundTitle(r chart.Renderer, snap *knockout.Snapshot,
	round, x int) {

	slots := snap.TreeSize >> round
	title := knockout.RoundTitle(slots)
	first := round*snap.GamesPerMatch + 1
	last := first + snap.GamesPerMatch - 1
	if first == last {
		title += fmt.Sprintf(" (round %v)", first)
	} else {
		title += fmt.Sprintf(" (rounds %v-%v)", first, last)
	}
	p.text(r, title, x, HeaderSpace-10, 11, p.Palette.Text)
}

func gameScores(e *knockout.PairingEntry) string {
	parts := make([]string, len(e.GameScores))
	for i, s := range e.GameScores {
		parts[i] = internal.ScoreToString(s)
	}
	return strings.Join(parts, " ")
}

func (p *Presenter) drawMatch(r chart.Renderer, snap *knockout.Snapshot,
	round, k int, b Rect) {

	var entries [2]*knockout.PairingEntry
	if round < len(snap.Rounds) && 2*k+1 < len(snap.Rounds[round]) {
		entries[0], entries[1] = snap.Rounds[round].Match(k)
	}

	for i, e := range entries {
		row := Rect{X: b.X, Y: b.Y + i*RowHeight, W: b.W, H: RowHeight}
		fill := p.Palette.Block
		switch {
		case e == nil:
		case e.IsBye():
			fill = p.Palette.Bye
		case e.HasWon:
			fill = p.Palette.Winner
		}
		p.fillRect(r, row, fill)
		if e == nil {
			continue
		}

		baseline := row.Y + RowHeight - 7
		color := p.Palette.Text
		if e.IsBye() {
			color = p.Palette.Muted
		}
		r.SetFontSize(10)
		scores := ""
		if !e.IsBye() && !isByeMatch(entries) {
			scores = gameScores(e)
			if snap.GamesPerMatch > 1 && len(e.GameScores) > 0 {
				scores += "  = " + internal.ScoreToString(e.Score())
			}
		}
		scoreWidth := 0
		if scores != "" {
			scoreWidth = r.MeasureText(scores).Width()
			p.text(r, scores, row.Right()-6-scoreWidth, baseline, 10, color)
		}
		label := fit(r, snap.Label(e.ParticipantID), row.W-18-scoreWidth)
		p.text(r, label, row.X+6, baseline, 10, color)
	}
}

func isByeMatch(entries [2]*knockout.PairingEntry) bool {
	for _, e := range entries {
		if e != nil && e.IsBye() {
			return true
		}
	}
	return false
}

func (p *Presenter) drawConnector(r chart.Renderer, from, to Rect) {
	midX := from.Right() + ColumnGap/2
	r.SetStrokeColor(p.Palette.Line)
	r.SetStrokeWidth(1)
	r.MoveTo(from.Right(), from.MidY())
	r.LineTo(midX, from.MidY())
	r.LineTo(midX, to.MidY())
	r.LineTo(to.X, to.MidY())
	r.Stroke()
}

func (p *Presenter) drawWinner(r chart.Renderer, snap *knockout.Snapshot,
	layout Layout) {

	if len(layout.Blocks) > 0 {
		final := layout.Blocks[len(layout.Blocks)-1][0]
		p.drawConnector(r, final, layout.WinnerBox)
	}
	fill := p.Palette.Block
	if snap.Winner != "" {
		fill = p.Palette.Winner
	}
	p.fillRect(r, layout.WinnerBox, fill)
	p.text(r, "Winner", layout.WinnerBox.X, layout.WinnerBox.Y-6, 11,
		p.Palette.Text)
	if snap.Winner != "" {
		label := fit(r, snap.Label(snap.Winner), layout.WinnerBox.W-12)
		p.text(r, label, layout.WinnerBox.X+6,
			layout.WinnerBox.Y+RowHeight-7, 10, p.Palette.Text)
	}
}
