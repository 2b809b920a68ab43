package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"seabattle/internal/game"
)

var (
	ErrMatchFinished = errors.New("match is finished")
	ErrNoTarget      = errors.New("no untargeted cell left")
)

type Side uint8

const (
	Player Side = iota
	Computer
)

func (s Side) String() string {
	switch s {
	case Player:
		return "Player"
	case Computer:
		return "Computer"
	default:
		return "Unknown"
	}
}

// Opponent returns the other side.
func (s Side) Opponent() Side { return 1 - s }

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Player":
		*s = Player
	case "Computer":
		*s = Computer
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}

type Stage uint8

const (
	StageSetup Stage = iota
	StageInProgress
	StageFinished
)

func (s Stage) String() string {
	switch s {
	case StageSetup:
		return "Setup"
	case StageInProgress:
		return "InProgress"
	case StageFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(b []byte) error {
	for v := StageSetup; v <= StageFinished; v++ {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", b)
}

// Config holds everything needed to set up a match.
type Config struct {
	BoardSize int
	Fleet     game.FleetSpec
	// ForfeitInvalidShots makes out-of-bounds and repeated shots consume the
	// turn. Otherwise the same side shoots again.
	ForfeitInvalidShots bool
}

// MaxBoardSize bounds the grid so that size*size cells fit a depth-24
// commitment tree.
const MaxBoardSize = 4096

var DefaultConfig = Config{BoardSize: 10, Fleet: game.DefaultFleet, ForfeitInvalidShots: true}

func (c Config) Validate() error {
	if c.BoardSize <= 0 || c.BoardSize > MaxBoardSize {
		return fmt.Errorf("%w: board size %d, want 1..%d", game.ErrInvalidConfiguration, c.BoardSize, MaxBoardSize)
	}
	return c.Fleet.Validate()
}

// Turn records one resolved shot.
type Turn struct {
	Number  int              `json:"number"`
	Shooter Side             `json:"shooter"`
	Target  game.Coord       `json:"target"`
	Outcome game.ShotOutcome `json:"outcome"`
	Sunk    *game.Ship       `json:"sunk,omitempty"`
	// Finished is set on the turn that ended the match.
	Finished bool `json:"finished"`
}

// Stats summarises one side's shooting.
type Stats struct {
	Shots          int `json:"shots"`
	Hits           int `json:"hits"`
	Misses         int `json:"misses"`
	Invalid        int `json:"invalid"`
	ShipsRemaining int `json:"shipsRemaining"`
}

// Match owns both boards and alternates turns, player first.
type Match struct {
	cfg     Config
	log     zerolog.Logger
	boards  [2]*game.Board
	fleets  [2]game.Fleet
	turn    Side
	stage   Stage
	winner  Side
	history []Turn
	stats   [2]Stats
}

// New creates both boards and places both fleets. Only an invalid
// configuration is fatal; ships that cannot be placed are logged and left out.
func New(cfg Config, rng *rand.Rand, log zerolog.Logger) (*Match, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Match{cfg: cfg, log: log, stage: StageSetup, turn: Player}
	for _, side := range []Side{Player, Computer} {
		b, err := game.NewBoard(cfg.BoardSize)
		if err != nil {
			return nil, err
		}
		fleet, err := game.PlaceFleet(b, cfg.Fleet.RandomSizes(rng), rng, cfg.Fleet.MaxAttempts)
		if err != nil {
			log.Warn().Err(err).Stringer("side", side).Int("placed", len(fleet)).Int("wanted", cfg.Fleet.Ships).Msg("fleet placed partially")
		}
		m.boards[side] = b
		m.fleets[side] = fleet
	}
	m.stage = StageInProgress
	m.log.Debug().Int("size", cfg.BoardSize).Int("playerShips", len(m.fleets[Player])).Int("computerShips", len(m.fleets[Computer])).Msg("match set up")
	// A side that ended up with no ships at all has already lost.
	m.checkFinished(Computer, 0)
	m.checkFinished(Player, 0)
	return m, nil
}

// FromBoards starts a match on boards that are already populated.
func FromBoards(cfg Config, player, computer *game.Board, log zerolog.Logger) (*Match, error) {
	if player == nil || computer == nil || player.Size() != computer.Size() {
		return nil, fmt.Errorf("%w: boards must be non-nil and equally sized", game.ErrInvalidConfiguration)
	}
	cfg.BoardSize = player.Size()
	m := &Match{cfg: cfg, log: log, stage: StageInProgress, turn: Player}
	m.boards = [2]*game.Board{player, computer}
	m.fleets = [2]game.Fleet{player.Ships(), computer.Ships()}
	m.checkFinished(Computer, 0)
	m.checkFinished(Player, 0)
	return m, nil
}

func (m *Match) Stage() Stage { return m.stage }

// Turn returns the side due to shoot next.
func (m *Match) Turn() Side { return m.turn }

// Winner returns the winning side once the match is finished.
func (m *Match) Winner() (Side, bool) {
	return m.winner, m.stage == StageFinished
}

func (m *Match) Board(s Side) *game.Board { return m.boards[s] }

func (m *Match) Fleet(s Side) game.Fleet { return m.fleets[s] }

func (m *Match) Config() Config { return m.cfg }

// History returns a copy of every resolved turn.
func (m *Match) History() []Turn {
	out := make([]Turn, len(m.history))
	copy(out, m.history)
	return out
}

// Stats returns the shooting statistics of side s.
func (m *Match) Stats(s Side) Stats {
	st := m.stats[s]
	st.ShipsRemaining = m.fleets[s].Remaining(m.boards[s])
	return st
}

// Fire resolves the active side's shot at c on the opposing board.
func (m *Match) Fire(c game.Coord) (Turn, error) {
	if m.stage == StageFinished {
		return Turn{}, ErrMatchFinished
	}
	shooter := m.turn
	target := m.boards[shooter.Opponent()]

	out, err := target.Shoot(c)
	if err != nil && !errors.Is(err, game.ErrOutOfBounds) {
		return Turn{}, err
	}
	t := Turn{Number: len(m.history) + 1, Shooter: shooter, Target: c, Outcome: out}

	st := &m.stats[shooter]
	switch out {
	case game.Hit:
		st.Shots++
		st.Hits++
		if s, ok := target.ShipAt(c); ok && !s.IsAlive(target) {
			t.Sunk = &s
		}
	case game.Miss:
		st.Shots++
		st.Misses++
	default:
		st.Invalid++
	}

	t.Finished = m.checkFinished(shooter.Opponent(), t.Number)
	if !t.Finished && (out.Counted() || m.cfg.ForfeitInvalidShots) {
		m.turn = shooter.Opponent()
	}
	m.history = append(m.history, t)

	ev := m.log.Debug()
	if !out.Counted() {
		ev = m.log.Info()
	}
	ev.Int("turn", t.Number).Stringer("shooter", shooter).Stringer("target", c).Stringer("outcome", out).Bool("sunk", t.Sunk != nil).Msg("shot resolved")
	return t, nil
}

// checkFinished ends the match when side's fleet is gone. turns is the
// number of turns played so far, counting the one being resolved.
func (m *Match) checkFinished(side Side, turns int) bool {
	if m.stage == StageFinished {
		return true
	}
	if !m.boards[side].IsFleetDestroyed() {
		return false
	}
	m.stage = StageFinished
	m.winner = side.Opponent()
	m.log.Info().Stringer("winner", m.winner).Int("turns", turns).Msg("match finished")
	return true
}

// Input supplies targets for one side. It sees the opposing board through
// fog only.
type Input interface {
	NextTarget(ctx context.Context, opponent game.View) (game.Coord, error)
}

// InputFunc adapts a function to Input.
type InputFunc func(ctx context.Context, opponent game.View) (game.Coord, error)

func (f InputFunc) NextTarget(ctx context.Context, opponent game.View) (game.Coord, error) {
	return f(ctx, opponent)
}

// Step plays one turn, asking the active side's input for a target.
func (m *Match) Step(ctx context.Context, player, computer Input) (Turn, error) {
	if m.stage == StageFinished {
		return Turn{}, ErrMatchFinished
	}
	in := player
	if m.turn == Computer {
		in = computer
	}
	c, err := in.NextTarget(ctx, m.boards[m.turn.Opponent()].Fog())
	if err != nil {
		return Turn{}, fmt.Errorf("%s input: %w", m.turn, err)
	}
	return m.Fire(c)
}

// Run plays until the match is finished. observe, if set, sees every turn.
func (m *Match) Run(ctx context.Context, player, computer Input, observe func(Turn)) (Side, error) {
	for m.stage != StageFinished {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		t, err := m.Step(ctx, player, computer)
		if err != nil {
			return 0, err
		}
		if observe != nil {
			observe(t)
		}
	}
	return m.winner, nil
}
