package game

import "fmt"

// CellState is the state of one board cell.
type CellState uint8

const (
	Water      CellState = iota // untouched, no ship
	WaterShot                   // targeted, no ship
	ShipIntact                  // ship present, untouched
	ShipHit                     // ship present, hit
)

func (s CellState) String() string {
	switch s {
	case Water:
		return "Water"
	case WaterShot:
		return "WaterShot"
	case ShipIntact:
		return "ShipIntact"
	case ShipHit:
		return "ShipHit"
	default:
		return "Unknown"
	}
}

// Targeted reports whether a shot has already landed on the cell.
func (s CellState) Targeted() bool {
	return s == WaterShot || s == ShipHit
}

// HasShip reports whether a ship occupies the cell, hit or not.
func (s CellState) HasShip() bool {
	return s == ShipIntact || s == ShipHit
}

// ShotOutcome is the result of resolving one shot.
type ShotOutcome uint8

const (
	Miss ShotOutcome = iota
	Hit
	AlreadyTargeted
	OutOfBounds
)

func (o ShotOutcome) String() string {
	switch o {
	case Miss:
		return "Miss"
	case Hit:
		return "Hit"
	case AlreadyTargeted:
		return "AlreadyTargeted"
	case OutOfBounds:
		return "OutOfBounds"
	default:
		return "Unknown"
	}
}

// Counted reports whether the shot changed the board.
func (o ShotOutcome) Counted() bool {
	return o == Miss || o == Hit
}

func (o ShotOutcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *ShotOutcome) UnmarshalText(b []byte) error {
	for v := Miss; v <= OutOfBounds; v++ {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown shot outcome %q", b)
}

// Coord is a board coordinate. X is the column and Y the row.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}
