package match_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seabattle/internal/game"
	"seabattle/internal/match"
)

func board(t *testing.T, size int, ships ...game.Ship) *game.Board {
	t.Helper()
	b, err := game.NewBoard(size)
	require.NoError(t, err)
	for _, s := range ships {
		require.NoError(t, b.Place(s))
	}
	return b
}

func scripted(coords ...game.Coord) match.Input {
	i := 0
	return match.InputFunc(func(context.Context, game.View) (game.Coord, error) {
		if i >= len(coords) {
			return game.Coord{}, errors.New("script exhausted")
		}
		c := coords[i]
		i++
		return c, nil
	})
}

func TestNew_SetsUpBothSides(t *testing.T) {
	m, err := match.New(match.DefaultConfig, rand.New(rand.NewPCG(1, 1)), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, match.StageInProgress, m.Stage())
	assert.Equal(t, match.Player, m.Turn())
	for _, side := range []match.Side{match.Player, match.Computer} {
		b := m.Board(side)
		assert.Equal(t, 10, b.Size())
		assert.Equal(t, m.Fleet(side).Cells(), b.Count(game.ShipIntact))
		assert.NotEmpty(t, m.Fleet(side))
		for _, s := range m.Fleet(side) {
			assert.GreaterOrEqual(t, s.Size, 2)
			assert.LessOrEqual(t, s.Size, 4)
		}
	}
}

func TestNew_InvalidConfiguration(t *testing.T) {
	for _, size := range []int{0, -3, match.MaxBoardSize + 1, math.MaxInt} {
		cfg := match.DefaultConfig
		cfg.BoardSize = size
		_, err := match.New(cfg, rand.New(rand.NewPCG(1, 1)), zerolog.Nop())
		assert.ErrorIs(t, err, game.ErrInvalidConfiguration, "size %d", size)
	}
}

func TestNew_PlacementFailureIsNotFatal(t *testing.T) {
	cfg := match.Config{
		BoardSize: 3,
		Fleet:     game.FleetSpec{Ships: 5, MinShipSize: 2, MaxShipSize: 3, MaxAttempts: 100},
	}
	m, err := match.New(cfg, rand.New(rand.NewPCG(4, 4)), zerolog.Nop())
	require.NoError(t, err)
	assert.Less(t, len(m.Fleet(match.Player)), 5)
	assert.Less(t, len(m.Fleet(match.Computer)), 5)
}

func TestFire_AlternatesPlayerFirst(t *testing.T) {
	m, err := match.FromBoards(match.DefaultConfig,
		board(t, 5, game.NewShip(2, 0, 0, game.Horizontal)),
		board(t, 5, game.NewShip(2, 0, 4, game.Horizontal)),
		zerolog.Nop())
	require.NoError(t, err)

	turn, err := m.Fire(game.Coord{X: 3, Y: 3})
	require.NoError(t, err)
	assert.Equal(t, match.Player, turn.Shooter)
	assert.Equal(t, game.Miss, turn.Outcome)
	assert.Equal(t, match.Computer, m.Turn())

	turn, err = m.Fire(game.Coord{X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, match.Computer, turn.Shooter)
	assert.Equal(t, game.Hit, turn.Outcome)
	assert.Equal(t, match.Player, m.Turn())

	st, _ := m.Board(match.Player).Cell(game.Coord{X: 0, Y: 0})
	assert.Equal(t, game.ShipHit, st, "computer shot lands on the player board")
	st, _ = m.Board(match.Computer).Cell(game.Coord{X: 3, Y: 3})
	assert.Equal(t, game.WaterShot, st, "player shot lands on the computer board")
}

func TestFire_InvalidShotForfeitsTurnByDefault(t *testing.T) {
	m, err := match.FromBoards(match.DefaultConfig,
		board(t, 5, game.NewShip(2, 0, 0, game.Horizontal)),
		board(t, 5, game.NewShip(2, 0, 4, game.Horizontal)),
		zerolog.Nop())
	require.NoError(t, err)

	turn, err := m.Fire(game.Coord{X: 99, Y: 99})
	require.NoError(t, err)
	assert.Equal(t, game.OutOfBounds, turn.Outcome)
	assert.Equal(t, match.Computer, m.Turn())

	_, err = m.Fire(game.Coord{X: 4, Y: 4})
	require.NoError(t, err)
	assert.Equal(t, match.Player, m.Turn())

	_, err = m.Fire(game.Coord{X: 2, Y: 2})
	require.NoError(t, err)
	_, err = m.Fire(game.Coord{X: 3, Y: 3})
	require.NoError(t, err)
	turn, err = m.Fire(game.Coord{X: 2, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, game.AlreadyTargeted, turn.Outcome)
	assert.Equal(t, match.Computer, m.Turn())

	assert.Equal(t, 2, m.Stats(match.Player).Invalid)
	assert.Equal(t, 1, m.Stats(match.Player).Shots)
	assert.Len(t, m.History(), 5)
}

func TestFire_RetryInvalidShotsKeepsTurn(t *testing.T) {
	cfg := match.DefaultConfig
	cfg.ForfeitInvalidShots = false
	m, err := match.FromBoards(cfg,
		board(t, 5, game.NewShip(2, 0, 0, game.Horizontal)),
		board(t, 5, game.NewShip(2, 0, 4, game.Horizontal)),
		zerolog.Nop())
	require.NoError(t, err)

	turn, err := m.Fire(game.Coord{X: 9, Y: 9})
	require.NoError(t, err)
	assert.Equal(t, game.OutOfBounds, turn.Outcome)
	assert.Equal(t, match.Player, m.Turn())

	_, err = m.Fire(game.Coord{X: 2, Y: 2})
	require.NoError(t, err)
	_, err = m.Fire(game.Coord{X: 4, Y: 4})
	require.NoError(t, err)

	turn, err = m.Fire(game.Coord{X: 2, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, game.AlreadyTargeted, turn.Outcome)
	assert.Equal(t, match.Player, m.Turn())
	assert.Equal(t, 2, m.Stats(match.Player).Invalid)
	assert.Equal(t, 1, m.Stats(match.Player).Shots)
}

func TestFire_PlayerSinksFleetAndWins(t *testing.T) {
	target := game.NewShip(3, 1, 1, game.Vertical)
	m, err := match.FromBoards(match.DefaultConfig,
		board(t, 6, game.NewShip(2, 4, 4, game.Horizontal)),
		board(t, 6, target),
		zerolog.Nop())
	require.NoError(t, err)

	misses := []game.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}}
	var last match.Turn
	for i, c := range target.Cells() {
		last, err = m.Fire(c)
		require.NoError(t, err)
		assert.Equal(t, game.Hit, last.Outcome)
		if i < len(misses) {
			assert.Nil(t, last.Sunk)
			assert.False(t, last.Finished)
			_, err = m.Fire(misses[i])
			require.NoError(t, err)
		}
	}

	require.NotNil(t, last.Sunk)
	assert.Equal(t, target, *last.Sunk)
	assert.True(t, last.Finished)
	assert.Equal(t, match.StageFinished, m.Stage())
	w, ok := m.Winner()
	assert.True(t, ok)
	assert.Equal(t, match.Player, w)
	assert.True(t, m.Board(match.Computer).IsFleetDestroyed())

	_, err = m.Fire(game.Coord{X: 5, Y: 5})
	assert.ErrorIs(t, err, match.ErrMatchFinished)

	stats := m.Stats(match.Player)
	assert.Equal(t, 3, stats.Hits)
	assert.Equal(t, 1, stats.ShipsRemaining)
	assert.Equal(t, 0, m.Stats(match.Computer).ShipsRemaining)
	assert.Len(t, m.History(), 5)
}

func TestFire_ComputerWins(t *testing.T) {
	m, err := match.FromBoards(match.DefaultConfig,
		board(t, 4, game.NewShip(1, 0, 0, game.Horizontal)),
		board(t, 4, game.NewShip(1, 3, 3, game.Horizontal)),
		zerolog.Nop())
	require.NoError(t, err)

	_, err = m.Fire(game.Coord{X: 1, Y: 1})
	require.NoError(t, err)
	turn, err := m.Fire(game.Coord{X: 0, Y: 0})
	require.NoError(t, err)
	assert.True(t, turn.Finished)
	w, ok := m.Winner()
	assert.True(t, ok)
	assert.Equal(t, match.Computer, w)
}

func TestStep_RoutesInputs(t *testing.T) {
	m, err := match.FromBoards(match.DefaultConfig,
		board(t, 4, game.NewShip(1, 0, 0, game.Horizontal)),
		board(t, 4, game.NewShip(1, 3, 3, game.Horizontal)),
		zerolog.Nop())
	require.NoError(t, err)

	player := scripted(game.Coord{X: 2, Y: 2}, game.Coord{X: 3, Y: 3})
	computer := scripted(game.Coord{X: 1, Y: 1})

	var seen []match.Turn
	winner, err := m.Run(context.Background(), player, computer, func(t match.Turn) { seen = append(seen, t) })
	require.NoError(t, err)
	assert.Equal(t, match.Player, winner)
	require.Len(t, seen, 3)
	assert.Equal(t, match.Player, seen[0].Shooter)
	assert.Equal(t, match.Computer, seen[1].Shooter)
	assert.Equal(t, match.Player, seen[2].Shooter)
}

func TestStep_InputErrorPropagates(t *testing.T) {
	m, err := match.FromBoards(match.DefaultConfig,
		board(t, 4, game.NewShip(1, 0, 0, game.Horizontal)),
		board(t, 4, game.NewShip(1, 3, 3, game.Horizontal)),
		zerolog.Nop())
	require.NoError(t, err)

	_, err = m.Step(context.Background(), scripted(), scripted())
	assert.ErrorContains(t, err, "Player input")
}

func TestRun_ComputerVsComputer(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, 1))
		m, err := match.New(match.DefaultConfig, rng, zerolog.Nop())
		require.NoError(t, err)

		winner, err := m.Run(context.Background(), match.NewRandomTargeter(rng), match.NewRandomTargeter(rng), nil)
		require.NoError(t, err)
		assert.True(t, m.Board(winner.Opponent()).IsFleetDestroyed())
		assert.False(t, m.Board(winner).IsFleetDestroyed())
		assert.LessOrEqual(t, len(m.History()), 2*100)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	m, err := match.New(match.DefaultConfig, rand.New(rand.NewPCG(2, 2)), zerolog.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Run(ctx, scripted(), scripted(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromBoards_Mismatch(t *testing.T) {
	_, err := match.FromBoards(match.DefaultConfig, board(t, 4), board(t, 5), zerolog.Nop())
	assert.ErrorIs(t, err, game.ErrInvalidConfiguration)
}

func TestFromBoards_EmptyFleetFinishesWithoutTurns(t *testing.T) {
	var buf bytes.Buffer
	m, err := match.FromBoards(match.DefaultConfig,
		board(t, 4, game.NewShip(1, 0, 0, game.Horizontal)),
		board(t, 4),
		zerolog.New(&buf))
	require.NoError(t, err)

	assert.Equal(t, match.StageFinished, m.Stage())
	w, ok := m.Winner()
	assert.True(t, ok)
	assert.Equal(t, match.Player, w)
	assert.Empty(t, m.History())

	var entry struct {
		Message string `json:"message"`
		Turns   int    `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "match finished", entry.Message)
	assert.Equal(t, 0, entry.Turns)
}

func TestFire_FinishLogsTurnCount(t *testing.T) {
	var buf bytes.Buffer
	m, err := match.FromBoards(match.DefaultConfig,
		board(t, 4, game.NewShip(1, 0, 0, game.Horizontal)),
		board(t, 4, game.NewShip(1, 3, 3, game.Horizontal)),
		zerolog.New(&buf).Level(zerolog.InfoLevel))
	require.NoError(t, err)

	_, err = m.Fire(game.Coord{X: 1, Y: 1})
	require.NoError(t, err)
	_, err = m.Fire(game.Coord{X: 2, Y: 2})
	require.NoError(t, err)
	turn, err := m.Fire(game.Coord{X: 3, Y: 3})
	require.NoError(t, err)
	require.True(t, turn.Finished)

	var entry struct {
		Message string `json:"message"`
		Turns   int    `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "match finished", entry.Message)
	assert.Equal(t, 3, entry.Turns)
}
