package game_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seabattle/internal/game"
)

func mustBoard(t *testing.T, size int) *game.Board {
	t.Helper()
	b, err := game.NewBoard(size)
	require.NoError(t, err)
	return b
}

func TestNewBoard_AllWater(t *testing.T) {
	for _, n := range []int{1, 3, 10} {
		b := mustBoard(t, n)
		assert.Equal(t, n, b.Size())
		assert.Equal(t, n*n, b.Count(game.Water))
		assert.True(t, b.IsFleetDestroyed(), "empty board has no intact ship cells")
	}
}

func TestNewBoard_InvalidSize(t *testing.T) {
	for _, n := range []int{0, -1, math.MaxInt, math.MaxInt/2 + 1} {
		_, err := game.NewBoard(n)
		assert.ErrorIs(t, err, game.ErrInvalidConfiguration, "size %d", n)
	}
}

func TestShip_Cells(t *testing.T) {
	h := game.NewShip(3, 2, 4, game.Horizontal)
	assert.Equal(t, []game.Coord{{X: 2, Y: 4}, {X: 3, Y: 4}, {X: 4, Y: 4}}, h.Cells())

	v := game.NewShip(3, 2, 4, game.Vertical)
	assert.Equal(t, []game.Coord{{X: 2, Y: 4}, {X: 2, Y: 5}, {X: 2, Y: 6}}, v.Cells())
}

func TestPlace_OccupiesExactCells(t *testing.T) {
	b := mustBoard(t, 6)
	s := game.NewShip(4, 1, 2, game.Horizontal)
	require.NoError(t, b.Place(s))

	want := map[game.Coord]bool{}
	for _, c := range s.Cells() {
		want[c] = true
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			c := game.Coord{X: x, Y: y}
			st, err := b.Cell(c)
			require.NoError(t, err)
			if want[c] {
				assert.Equal(t, game.ShipIntact, st, "cell %s", c)
			} else {
				assert.Equal(t, game.Water, st, "cell %s", c)
			}
		}
	}
}

func TestCanPlace_Bounds(t *testing.T) {
	b := mustBoard(t, 5)
	tests := []struct {
		name string
		ship game.Ship
		want bool
	}{
		{"fits horizontally at edge", game.NewShip(3, 2, 0, game.Horizontal), true},
		{"overhangs right edge", game.NewShip(3, 3, 0, game.Horizontal), false},
		{"fits vertically at edge", game.NewShip(2, 0, 3, game.Vertical), true},
		{"overhangs bottom edge", game.NewShip(2, 0, 4, game.Vertical), false},
		{"negative anchor", game.NewShip(2, -1, 0, game.Horizontal), false},
		{"zero length", game.NewShip(0, 0, 0, game.Horizontal), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.CanPlace(tt.ship))
		})
	}
}

func TestCanPlace_NoTouchDiagonal(t *testing.T) {
	b := mustBoard(t, 5)
	require.NoError(t, b.Place(game.NewShip(1, 1, 1, game.Horizontal)))

	// (0,0)-(1,0) is diagonal/orthogonal neighbour of (1,1).
	assert.False(t, b.CanPlace(game.NewShip(2, 0, 0, game.Horizontal)))
	// (0,0) alone touches (1,1) diagonally.
	assert.False(t, b.CanPlace(game.NewShip(1, 0, 0, game.Horizontal)))
	// overlapping
	assert.False(t, b.CanPlace(game.NewShip(2, 1, 1, game.Vertical)))
	// one cell of gap is fine
	assert.True(t, b.CanPlace(game.NewShip(2, 3, 0, game.Vertical)))
}

func TestPlace_IllegalLeavesBoardUntouched(t *testing.T) {
	b := mustBoard(t, 5)
	require.NoError(t, b.Place(game.NewShip(3, 0, 0, game.Horizontal)))
	before := b.Layout()

	err := b.Place(game.NewShip(3, 0, 1, game.Horizontal))
	assert.ErrorIs(t, err, game.ErrIllegalPlacement)
	assert.Equal(t, before, b.Layout())
	assert.Len(t, b.Ships(), 1)
}

func TestShoot_Scenario(t *testing.T) {
	b := mustBoard(t, 5)
	require.NoError(t, b.Place(game.NewShip(3, 0, 0, game.Horizontal)))

	out, err := b.Shoot(game.Coord{X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, game.Hit, out)
	st, _ := b.Cell(game.Coord{X: 0, Y: 0})
	assert.Equal(t, game.ShipHit, st)

	out, err = b.Shoot(game.Coord{X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, game.AlreadyTargeted, out)
	st, _ = b.Cell(game.Coord{X: 0, Y: 0})
	assert.Equal(t, game.ShipHit, st)

	out, err = b.Shoot(game.Coord{X: 4, Y: 4})
	require.NoError(t, err)
	assert.Equal(t, game.Miss, out)
	st, _ = b.Cell(game.Coord{X: 4, Y: 4})
	assert.Equal(t, game.WaterShot, st)
}

func TestShoot_OutOfBounds(t *testing.T) {
	b := mustBoard(t, 4)
	before := b.Layout()
	for _, c := range []game.Coord{{X: -1, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}} {
		out, err := b.Shoot(c)
		assert.ErrorIs(t, err, game.ErrOutOfBounds)
		assert.Equal(t, game.OutOfBounds, out)
	}
	assert.Equal(t, before, b.Layout())
	assert.Equal(t, 16, b.Count(game.Water))
}

func TestShoot_AlreadyTargetedIsNoOp(t *testing.T) {
	b := mustBoard(t, 6)
	require.NoError(t, b.Place(game.NewShip(2, 1, 1, game.Vertical)))
	_, _ = b.Shoot(game.Coord{X: 1, Y: 1})
	_, _ = b.Shoot(game.Coord{X: 5, Y: 5})

	snapshot := func() []game.CellState {
		var out []game.CellState
		for y := 0; y < 6; y++ {
			for x := 0; x < 6; x++ {
				st, _ := b.Cell(game.Coord{X: x, Y: y})
				out = append(out, st)
			}
		}
		return out
	}
	before := snapshot()
	for i := 0; i < 3; i++ {
		for _, c := range []game.Coord{{X: 1, Y: 1}, {X: 5, Y: 5}} {
			out, err := b.Shoot(c)
			require.NoError(t, err)
			assert.Equal(t, game.AlreadyTargeted, out)
		}
	}
	assert.Equal(t, before, snapshot())
}

// Every cell only ever moves Water->WaterShot or ShipIntact->ShipHit.
func TestShoot_OnlyLegalTransitions(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	b := mustBoard(t, 8)
	_, _ = game.PlaceFleet(b, []int{4, 3, 3, 2}, rng, game.DefaultMaxAttempts)

	legal := map[[2]game.CellState]bool{
		{game.Water, game.Water}:           true,
		{game.Water, game.WaterShot}:       true,
		{game.WaterShot, game.WaterShot}:   true,
		{game.ShipIntact, game.ShipIntact}: true,
		{game.ShipIntact, game.ShipHit}:    true,
		{game.ShipHit, game.ShipHit}:       true,
	}
	for i := 0; i < 300; i++ {
		c := game.Coord{X: rng.IntN(10) - 1, Y: rng.IntN(10) - 1}
		prev := make([]game.CellState, 0, 64)
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				st, _ := b.Cell(game.Coord{X: x, Y: y})
				prev = append(prev, st)
			}
		}
		_, _ = b.Shoot(c)
		k := 0
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				st, _ := b.Cell(game.Coord{X: x, Y: y})
				require.True(t, legal[[2]game.CellState{prev[k], st}], "illegal %s->%s at (%d,%d)", prev[k], st, x, y)
				k++
			}
		}
	}
}

func TestIsFleetDestroyed(t *testing.T) {
	b := mustBoard(t, 10)
	top := game.NewShip(3, 0, 0, game.Horizontal)
	low := game.NewShip(4, 2, 5, game.Horizontal)
	require.NoError(t, b.Place(top))
	require.NoError(t, b.Place(low))
	assert.False(t, b.IsFleetDestroyed())

	for _, c := range top.Cells() {
		_, _ = b.Shoot(c)
	}
	assert.False(t, b.IsFleetDestroyed())
	assert.False(t, top.IsAlive(b))
	assert.True(t, low.IsAlive(b))

	for _, c := range low.Cells() {
		_, _ = b.Shoot(c)
	}
	assert.True(t, b.IsFleetDestroyed())
	assert.Equal(t, 0, b.Count(game.ShipIntact))
	assert.True(t, b.Ships().Destroyed(b))
}

func TestShipAt_AndHitCount(t *testing.T) {
	b := mustBoard(t, 6)
	s := game.NewShip(3, 2, 1, game.Vertical)
	require.NoError(t, b.Place(s))

	got, ok := b.ShipAt(game.Coord{X: 2, Y: 2})
	require.True(t, ok)
	assert.Equal(t, s, got)
	_, ok = b.ShipAt(game.Coord{X: 0, Y: 0})
	assert.False(t, ok)

	_, _ = b.Shoot(game.Coord{X: 2, Y: 3})
	assert.Equal(t, 1, s.HitCount(b))
	assert.Equal(t, 1, s.HitCount(b.Fog()), "hits are visible through fog")
	assert.True(t, s.IsAlive(b))
}

func TestFog_HidesIntactShips(t *testing.T) {
	b := mustBoard(t, 4)
	require.NoError(t, b.Place(game.NewShip(2, 0, 0, game.Horizontal)))
	_, _ = b.Shoot(game.Coord{X: 0, Y: 0})
	_, _ = b.Shoot(game.Coord{X: 3, Y: 3})

	fog := b.Fog()
	st, _ := fog.Cell(game.Coord{X: 1, Y: 0})
	assert.Equal(t, game.Water, st)
	st, _ = fog.Cell(game.Coord{X: 0, Y: 0})
	assert.Equal(t, game.ShipHit, st)
	st, _ = fog.Cell(game.Coord{X: 3, Y: 3})
	assert.Equal(t, game.WaterShot, st)
}

func TestUntargeted(t *testing.T) {
	b := mustBoard(t, 2)
	_, _ = b.Shoot(game.Coord{X: 1, Y: 0})
	assert.Equal(t, []game.Coord{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}, b.Untargeted())
}

func TestValidateLayout(t *testing.T) {
	assert.NoError(t, game.ValidateLayout([]uint8{0, 1, 1, 0}, 2))
	assert.Error(t, game.ValidateLayout([]uint8{0, 1, 1}, 2))
	assert.Error(t, game.ValidateLayout([]uint8{0, 2, 1, 0}, 2))
	assert.ErrorIs(t, game.ValidateLayout(nil, 0), game.ErrInvalidConfiguration)
}
