package game

import (
	"errors"
	"fmt"
	"math"
)

// View is read access to a board's cells.
type View interface {
	Size() int
	Cell(c Coord) (CellState, error)
}

// Board is a size x size grid, stored row-major in one buffer.
type Board struct {
	size  int
	cells []CellState
	owner []int // index into ships, -1 for none
	ships Fleet
}

// NewBoard allocates a board with every cell set to Water.
func NewBoard(size int) (*Board, error) {
	if size <= 0 || size > math.MaxInt/size {
		return nil, fmt.Errorf("%w: board size %d", ErrInvalidConfiguration, size)
	}
	b := &Board{
		size:  size,
		cells: make([]CellState, size*size),
		owner: make([]int, size*size),
	}
	for i := range b.owner {
		b.owner[i] = -1
	}
	return b, nil
}

func (b *Board) Size() int { return b.size }

// InBounds reports whether c lies on the board.
func (b *Board) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < b.size && c.Y >= 0 && c.Y < b.size
}

func (b *Board) index(c Coord) int { return c.Y*b.size + c.X }

// Cell returns the state at c.
func (b *Board) Cell(c Coord) (CellState, error) {
	if !b.InBounds(c) {
		return Water, fmt.Errorf("%w: %s on %dx%d board", ErrOutOfBounds, c, b.size, b.size)
	}
	return b.cells[b.index(c)], nil
}

// CanPlace reports whether s fits on the board without touching any other
// ship, diagonals included.
func (b *Board) CanPlace(s Ship) bool {
	if s.Size <= 0 {
		return false
	}
	first, last := s.cell(0), s.cell(s.Size-1)
	if !b.InBounds(first) || !b.InBounds(last) {
		return false
	}
	for i := 0; i < s.Size; i++ {
		c := s.cell(i)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				n := Coord{X: c.X + dx, Y: c.Y + dy}
				if b.InBounds(n) && b.cells[b.index(n)] != Water {
					return false
				}
			}
		}
	}
	return true
}

// Place checks and commits s in one step. The board is left untouched when
// the placement is illegal.
func (b *Board) Place(s Ship) error {
	if !b.CanPlace(s) {
		return fmt.Errorf("%w: %s", ErrIllegalPlacement, s)
	}
	id := len(b.ships)
	b.ships = append(b.ships, s)
	for i := 0; i < s.Size; i++ {
		idx := b.index(s.cell(i))
		b.cells[idx] = ShipIntact
		b.owner[idx] = id
	}
	return nil
}

// Shoot resolves a shot at c. Only Water->WaterShot and ShipIntact->ShipHit
// ever change a cell.
func (b *Board) Shoot(c Coord) (ShotOutcome, error) {
	if !b.InBounds(c) {
		return OutOfBounds, fmt.Errorf("%w: %s on %dx%d board", ErrOutOfBounds, c, b.size, b.size)
	}
	idx := b.index(c)
	switch b.cells[idx] {
	case Water:
		b.cells[idx] = WaterShot
		return Miss, nil
	case ShipIntact:
		b.cells[idx] = ShipHit
		return Hit, nil
	default:
		return AlreadyTargeted, nil
	}
}

// IsFleetDestroyed reports whether no ShipIntact cell remains.
func (b *Board) IsFleetDestroyed() bool {
	for _, st := range b.cells {
		if st == ShipIntact {
			return false
		}
	}
	return true
}

// Ships returns a copy of the placed fleet in placement order.
func (b *Board) Ships() Fleet {
	out := make(Fleet, len(b.ships))
	copy(out, b.ships)
	return out
}

// ShipAt returns the ship covering c, if any.
func (b *Board) ShipAt(c Coord) (Ship, bool) {
	if !b.InBounds(c) {
		return Ship{}, false
	}
	id := b.owner[b.index(c)]
	if id < 0 {
		return Ship{}, false
	}
	return b.ships[id], true
}

// Untargeted lists every cell that has not been shot yet, row-major.
func (b *Board) Untargeted() []Coord {
	var out []Coord
	for i, st := range b.cells {
		if !st.Targeted() {
			out = append(out, Coord{X: i % b.size, Y: i / b.size})
		}
	}
	return out
}

// Count returns how many cells are in state st.
func (b *Board) Count(st CellState) int {
	n := 0
	for _, s := range b.cells {
		if s == st {
			n++
		}
	}
	return n
}

// Layout flattens the board to one bit per cell, 1 where a ship lies.
func (b *Board) Layout() []uint8 {
	out := make([]uint8, len(b.cells))
	for i, st := range b.cells {
		if st.HasShip() {
			out[i] = 1
		}
	}
	return out
}

// Fog returns a view of b that hides unhit ships.
func (b *Board) Fog() View { return fogView{b} }

type fogView struct{ b *Board }

func (f fogView) Size() int { return f.b.size }

func (f fogView) Cell(c Coord) (CellState, error) {
	st, err := f.b.Cell(c)
	if st == ShipIntact {
		st = Water
	}
	return st, err
}

// ValidateLayout checks a flattened layout for a size x size board.
func ValidateLayout(layout []uint8, size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: board size %d", ErrInvalidConfiguration, size)
	}
	if len(layout) != size*size {
		return fmt.Errorf("layout has %d cells, want %d", len(layout), size*size)
	}
	for _, v := range layout {
		if v != 0 && v != 1 {
			return errors.New("layout has non-binary cell")
		}
	}
	return nil
}
