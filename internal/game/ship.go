package game

import "fmt"

type Orientation uint8

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "Horizontal"
	case Vertical:
		return "Vertical"
	default:
		return "Unknown"
	}
}

// Ship describes one vessel by its anchor, orientation and length.
// It holds no damage state: hits live on the board it was placed on.
type Ship struct {
	Size        int         `json:"size"`
	Anchor      Coord       `json:"anchor"`
	Orientation Orientation `json:"orientation"`
}

// NewShip builds a ship descriptor. No validation happens here, see
// Board.CanPlace.
func NewShip(size, x, y int, o Orientation) Ship {
	return Ship{Size: size, Anchor: Coord{X: x, Y: y}, Orientation: o}
}

// Cells returns the coordinates the ship covers, starting at the anchor.
func (s Ship) Cells() []Coord {
	if s.Size <= 0 {
		return nil
	}
	cells := make([]Coord, s.Size)
	for i := range cells {
		cells[i] = s.cell(i)
	}
	return cells
}

func (s Ship) cell(i int) Coord {
	if s.Orientation == Vertical {
		return Coord{X: s.Anchor.X, Y: s.Anchor.Y + i}
	}
	return Coord{X: s.Anchor.X + i, Y: s.Anchor.Y}
}

// HitCount counts the ship's cells that read ShipHit on v.
func (s Ship) HitCount(v View) int {
	n := 0
	for i := 0; i < s.Size; i++ {
		if st, err := v.Cell(s.cell(i)); err == nil && st == ShipHit {
			n++
		}
	}
	return n
}

// IsAlive reports whether at least one cell of the ship is still unhit.
func (s Ship) IsAlive(v View) bool {
	return s.HitCount(v) < s.Size
}

func (s Ship) String() string {
	return fmt.Sprintf("ship(%d) at %s %s", s.Size, s.Anchor, s.Orientation)
}

// Fleet is the ordered set of ships belonging to one side.
type Fleet []Ship

// Destroyed reports whether every ship in the fleet is sunk.
func (f Fleet) Destroyed(v View) bool {
	for _, s := range f {
		if s.IsAlive(v) {
			return false
		}
	}
	return true
}

// Remaining counts the ships still afloat.
func (f Fleet) Remaining(v View) int {
	n := 0
	for _, s := range f {
		if s.IsAlive(v) {
			n++
		}
	}
	return n
}

// Cells is the total number of cells the fleet covers.
func (f Fleet) Cells() int {
	n := 0
	for _, s := range f {
		n += s.Size
	}
	return n
}
