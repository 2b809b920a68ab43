// Package render draws boards as text grids.
package render

import (
	"fmt"
	"io"
	"strings"

	"seabattle/internal/game"
)

// Symbols used for each cell state in the owner view.
const (
	SymWater      = '~'
	SymWaterShot  = 'o'
	SymShipIntact = 'B'
	SymShipHit    = 'X'
)

func symbol(st game.CellState) rune {
	switch st {
	case game.WaterShot:
		return SymWaterShot
	case game.ShipIntact:
		return SymShipIntact
	case game.ShipHit:
		return SymShipHit
	default:
		return SymWater
	}
}

// Rows renders v into one string per board row, cells separated by spaces.
// Pass Board.Fog() for the opponent view.
func Rows(v game.View) []string {
	n := v.Size()
	rows := make([]string, n)
	var sb strings.Builder
	for y := 0; y < n; y++ {
		sb.Reset()
		for x := 0; x < n; x++ {
			st, _ := v.Cell(game.Coord{X: x, Y: y})
			if x > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteRune(symbol(st))
		}
		rows[y] = sb.String()
	}
	return rows
}

// Owner writes the full board with a column header and row numbers.
func Owner(w io.Writer, b *game.Board) error {
	return grid(w, b)
}

// Opponent writes b as its opponent sees it: unhit ships read as water.
func Opponent(w io.Writer, b *game.Board) error {
	return grid(w, b.Fog())
}

func grid(w io.Writer, v game.View) error {
	n := v.Size()
	width := len(fmt.Sprint(n - 1))
	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", width+1))
	for x := 0; x < n; x++ {
		fmt.Fprintf(&sb, "%*d ", width, x)
	}
	sb.WriteByte('\n')
	for y := 0; y < n; y++ {
		fmt.Fprintf(&sb, "%*d ", width, y)
		for x := 0; x < n; x++ {
			st, _ := v.Cell(game.Coord{X: x, Y: y})
			fmt.Fprintf(&sb, "%*c ", width, symbol(st))
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
