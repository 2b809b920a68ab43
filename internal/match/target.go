package match

import (
	"context"
	"fmt"
	"math/rand/v2"

	"seabattle/internal/game"
)

// RandomTargeter picks uniformly random untargeted cells.
type RandomTargeter struct {
	rng *rand.Rand
}

func NewRandomTargeter(rng *rand.Rand) *RandomTargeter {
	return &RandomTargeter{rng: rng}
}

// NextTarget rejection-samples up to 4*size*size coordinates, then falls back
// to a uniform pick among the remaining untargeted cells.
func (rt *RandomTargeter) NextTarget(_ context.Context, v game.View) (game.Coord, error) {
	n := v.Size()
	for try := 0; try < 4*n*n; try++ {
		c := game.Coord{X: rt.rng.IntN(n), Y: rt.rng.IntN(n)}
		if st, err := v.Cell(c); err == nil && !st.Targeted() {
			return c, nil
		}
	}
	var open []game.Coord
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			c := game.Coord{X: x, Y: y}
			if st, err := v.Cell(c); err == nil && !st.Targeted() {
				open = append(open, c)
			}
		}
	}
	if len(open) == 0 {
		return game.Coord{}, fmt.Errorf("%w on %dx%d board", ErrNoTarget, n, n)
	}
	return open[rt.rng.IntN(len(open))], nil
}
