package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"seabattle/internal/codec"
	"seabattle/internal/game"
	"seabattle/internal/match"
	"seabattle/internal/merkle"
	"seabattle/internal/zk"
)

var (
	ErrNotPlayerTurn   = errors.New("not the player's turn")
	ErrMatchInProgress = errors.New("match still in progress")
	ErrRevealMismatch  = errors.New("revealed layout does not match")
	// ErrProofFailed marks a shot that resolved but could not be proved.
	ErrProofFailed     = errors.New("shot proof failed")
)

// Options configures a session.
type Options struct {
	Match match.Config
	// Seed drives placement and computer targeting; 0 picks one from the clock.
	Seed uint64
	// Prover, when set, proves every player shot against the commitment.
	Prover *zk.Prover
	// SaltSource feeds the commitment salt; nil means crypto/rand.
	SaltSource io.Reader
	Log        zerolog.Logger
}

// Session is one human-vs-computer match with the computer's fleet
// committed up front.
type Session struct {
	m        *match.Match
	seed     uint64
	targeter *match.RandomTargeter
	commit   *merkle.Commitment
	prove    func(*zk.ShotCircuit) ([]byte, zk.ShotPublic, error) // nil without proofs
	log      zerolog.Logger
}

// Played is one resolved turn, with its proof when the player shot the
// committed board and proofs are on.
type Played struct {
	Turn  match.Turn
	Proof *codec.ShotProofPayload
}

func NewSession(opts Options) (*Session, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	m, err := match.New(opts.Match, rng, opts.Log)
	if err != nil {
		return nil, err
	}
	cm, err := merkle.Commit(m.Board(match.Computer).Layout(), opts.SaltSource)
	if err != nil {
		return nil, fmt.Errorf("commit fleet: %w", err)
	}
	if opts.Prover != nil && opts.Prover.Depth() != cm.Tree.Depth {
		return nil, fmt.Errorf("%w: prover depth %d, board needs %d", game.ErrInvalidConfiguration, opts.Prover.Depth(), cm.Tree.Depth)
	}
	s := &Session{
		m:        m,
		seed:     seed,
		targeter: match.NewRandomTargeter(rng),
		commit:   cm,
		log:      opts.Log,
	}
	if opts.Prover != nil {
		s.prove = opts.Prover.Prove
	}
	s.log.Info().Uint64("seed", seed).Str("root", merkle.Hex(cm.Root)).Bool("proofs", s.Proofs()).Msg("session started")
	return s, nil
}

func (s *Session) Match() *match.Match { return s.m }

func (s *Session) Seed() uint64 { return s.seed }

func (s *Session) Proofs() bool { return s.prove != nil }

// Public returns the commitment shown to the player before play.
func (s *Session) Public() codec.Public {
	return codec.Public{
		RootHex: merkle.Hex(s.commit.Root),
		Size:    s.m.Config().BoardSize,
		Depth:   s.commit.Tree.Depth,
	}
}

func (s *Session) Transcript() codec.Transcript {
	return codec.Transcript{Commitment: s.Public(), Turns: s.m.History()}
}

// Reveal discloses the committed layout and salt once the match is over.
func (s *Session) Reveal() (codec.Secret, error) {
	if s.m.Stage() != match.StageFinished {
		return codec.Secret{}, ErrMatchInProgress
	}
	return codec.Secret{
		Size:    s.m.Config().BoardSize,
		Layout:  s.m.Board(match.Computer).Layout(),
		SaltHex: merkle.Hex(s.commit.Salt),
	}, nil
}

// PlayerShot fires the player's shot at c. A proving failure is reported
// with ErrProofFailed alongside the resolved turn.
func (s *Session) PlayerShot(c game.Coord) (Played, error) {
	if s.m.Stage() != match.StageFinished && s.m.Turn() != match.Player {
		return Played{}, ErrNotPlayerTurn
	}
	t, err := s.m.Fire(c)
	if err != nil {
		return Played{}, err
	}
	p := Played{Turn: t}
	if s.prove == nil || !t.Outcome.Counted() {
		return p, nil
	}
	var bit uint8
	if t.Outcome == game.Hit {
		bit = 1
	}
	idx := c.Y*s.m.Config().BoardSize + c.X
	assign, err := zk.Assign(s.commit, idx, bit)
	if err != nil {
		return p, fmt.Errorf("%w at %s: %w", ErrProofFailed, c, err)
	}
	proof, pub, err := s.prove(assign)
	if err != nil {
		s.log.Error().Err(err).Stringer("target", c).Msg("shot proof failed")
		return p, fmt.Errorf("%w at %s: %w", ErrProofFailed, c, err)
	}
	p.Proof = &codec.ShotProofPayload{Proof: proof, Public: pub}
	return p, nil
}

// ComputerShot lets the computer take its turn.
func (s *Session) ComputerShot(ctx context.Context) (Played, error) {
	if s.m.Stage() == match.StageFinished {
		return Played{}, match.ErrMatchFinished
	}
	if s.m.Turn() != match.Computer {
		return Played{}, errors.New("not the computer's turn")
	}
	t, err := s.m.Step(ctx, nil, s.targeter)
	if err != nil {
		return Played{}, err
	}
	return Played{Turn: t}, nil
}

// Shoot resolves the player's shot and, if the turn passed, the computer's
// reply. reply is nil when the computer did not move. The reply is still
// played when only the proof failed; that error comes back with it.
func (s *Session) Shoot(ctx context.Context, c game.Coord) (shot Played, reply *Played, err error) {
	shot, err = s.PlayerShot(c)
	if err != nil && !errors.Is(err, ErrProofFailed) {
		return shot, nil, err
	}
	proofErr := err
	if s.m.Stage() == match.StageFinished || s.m.Turn() != match.Computer {
		return shot, nil, proofErr
	}
	r, err := s.ComputerShot(ctx)
	if err != nil {
		return shot, nil, err
	}
	return shot, &r, proofErr
}

// Run plays the session to the end, reading player targets from in.
func (s *Session) Run(ctx context.Context, in match.Input, observe func(Played)) (match.Side, error) {
	for s.m.Stage() != match.StageFinished {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var (
			p   Played
			err error
		)
		if s.m.Turn() == match.Player {
			var c game.Coord
			c, err = in.NextTarget(ctx, s.m.Board(match.Computer).Fog())
			if err != nil {
				return 0, fmt.Errorf("player input: %w", err)
			}
			p, err = s.PlayerShot(c)
		} else {
			p, err = s.ComputerShot(ctx)
		}
		if err != nil {
			return 0, err
		}
		if observe != nil {
			observe(p)
		}
	}
	w, _ := s.m.Winner()
	return w, nil
}

// VerifyReveal checks a revealed secret against the published commitment
// and against every player shot outcome in the transcript.
func VerifyReveal(sec codec.Secret, tr codec.Transcript) error {
	if sec.Size != tr.Commitment.Size {
		return fmt.Errorf("%w: size %d, committed %d", ErrRevealMismatch, sec.Size, tr.Commitment.Size)
	}
	if err := game.ValidateLayout(sec.Layout, sec.Size); err != nil {
		return fmt.Errorf("%w: %v", ErrRevealMismatch, err)
	}
	want, err := merkle.ParseHex(tr.Commitment.RootHex)
	if err != nil {
		return err
	}
	cm, err := sec.Commitment()
	if err != nil {
		return err
	}
	if cm.Root.Cmp(want) != 0 {
		return fmt.Errorf("%w: root %s, committed %s", ErrRevealMismatch, merkle.Hex(cm.Root), tr.Commitment.RootHex)
	}

	for _, t := range tr.Turns {
		if t.Shooter != match.Player || !t.Outcome.Counted() {
			continue
		}
		c := t.Target
		if c.X < 0 || c.Y < 0 || c.X >= sec.Size || c.Y >= sec.Size {
			return fmt.Errorf("%w: turn %d at %s is off the board", ErrRevealMismatch, t.Number, c)
		}
		ship := sec.Layout[c.Y*sec.Size+c.X] == 1
		if ship != (t.Outcome == game.Hit) {
			return fmt.Errorf("%w: turn %d at %s reported %s", ErrRevealMismatch, t.Number, c, t.Outcome)
		}
	}
	return nil
}

// VerifyProof checks a shot proof against a published commitment.
func VerifyProof(vkPath string, pub codec.Public, payload codec.ShotProofPayload) error {
	root, err := merkle.ParseHex(pub.RootHex)
	if err != nil {
		return err
	}
	if payload.Public.Depth != pub.Depth {
		return fmt.Errorf("%w: depth %d, committed %d", zk.ErrInvalidProof, payload.Public.Depth, pub.Depth)
	}
	if pub.Size > 0 && (payload.Public.Index < 0 || payload.Public.Index >= pub.Size*pub.Size) {
		return fmt.Errorf("%w: index %d off the %dx%d board", zk.ErrInvalidProof, payload.Public.Index, pub.Size, pub.Size)
	}
	return zk.VerifyShotFile(vkPath, payload.Proof, payload.Public, root)
}
