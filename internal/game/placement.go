package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

const DefaultMaxAttempts = 100

// FleetSpec describes how many ships a side gets and their length range.
type FleetSpec struct {
	Ships       int
	MinShipSize int
	MaxShipSize int
	MaxAttempts int
}

// DefaultFleet is five ships of length 2 to 4.
var DefaultFleet = FleetSpec{Ships: 5, MinShipSize: 2, MaxShipSize: 4, MaxAttempts: DefaultMaxAttempts}

func (fs FleetSpec) Validate() error {
	switch {
	case fs.Ships < 0:
		return fmt.Errorf("%w: negative ship count %d", ErrInvalidConfiguration, fs.Ships)
	case fs.MinShipSize < 1 || fs.MaxShipSize < fs.MinShipSize:
		return fmt.Errorf("%w: ship size range [%d, %d]", ErrInvalidConfiguration, fs.MinShipSize, fs.MaxShipSize)
	case fs.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts %d", ErrInvalidConfiguration, fs.MaxAttempts)
	}
	return nil
}

// RandomSizes draws one length per ship, uniform over [MinShipSize, MaxShipSize].
func (fs FleetSpec) RandomSizes(rng *rand.Rand) []int {
	sizes := make([]int, fs.Ships)
	span := fs.MaxShipSize - fs.MinShipSize + 1
	for i := range sizes {
		sizes[i] = fs.MinShipSize + rng.IntN(span)
	}
	return sizes
}

// PlaceRandomly samples a uniform anchor and orientation until the ship fits
// or maxAttempts runs out. There is no exhaustive fallback.
func PlaceRandomly(b *Board, size int, rng *rand.Rand, maxAttempts int) (Ship, error) {
	for try := 0; try < maxAttempts; try++ {
		o := Horizontal
		if rng.IntN(2) == 1 {
			o = Vertical
		}
		s := NewShip(size, rng.IntN(b.size), rng.IntN(b.size), o)
		if err := b.Place(s); err == nil {
			return s, nil
		}
	}
	return Ship{}, fmt.Errorf("%w: size %d after %d attempts", ErrPlacementFailed, size, maxAttempts)
}

// PlaceFleet places one ship per entry of sizes. Ships that cannot be placed
// are skipped; their errors are joined into the returned error, which is
// never fatal to the caller.
func PlaceFleet(b *Board, sizes []int, rng *rand.Rand, maxAttempts int) (Fleet, error) {
	var (
		fleet Fleet
		errs  []error
	)
	for _, size := range sizes {
		s, err := PlaceRandomly(b, size, rng, maxAttempts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fleet = append(fleet, s)
	}
	return fleet, errors.Join(errs...)
}
