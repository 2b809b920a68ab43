package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"seabattle/internal/app"
	"seabattle/internal/codec"
	"seabattle/internal/config"
	"seabattle/internal/console"
	"seabattle/internal/game"
	"seabattle/internal/logging"
	"seabattle/internal/match"
	"seabattle/internal/merkle"
	"seabattle/internal/render"
	"seabattle/internal/server"
	"seabattle/internal/zk"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "play":
		cmdPlay(args)
	case "sim":
		cmdSim(args)
	case "serve":
		cmdServe(args)
	case "reveal":
		cmdReveal(args)
	case "verify-reveal":
		cmdVerifyReveal(args)
	case "verify-shot":
		cmdVerifyShot(args)
	case "keys":
		cmdKeys(args)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Sea Battle CLI

Commands:
  play          [--seed S] [--secret secret.json] [--transcript transcript.json] [--proofs-dir proofs]
  sim           --games N [--seed S]
  serve         [--addr :8080]
  reveal        --secret secret.json
  verify-reveal --secret secret.json --transcript transcript.json
  verify-shot   --root ROOT_HEX --proof proof.json [--vk keys/shot-d7.vk]
  keys          [--depth D]

Every command accepts --config-dir DIR (default ".") to locate ` + config.FileName + `.`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// setup loads configuration and builds the logger.
func setup(configDir string) zerolog.Logger {
	if err := config.Load(configDir); err != nil {
		fatal(err)
	}
	log := logging.New(os.Stderr, config.GetString("logLevel"), config.GetString("logFormat"))
	logging.WireProver(log)
	if f := config.ConfigFileUsed(); f != "" {
		log.Debug().Str("file", f).Msg("config loaded")
	}
	return log
}

func gameConfig(log zerolog.Logger) config.GameConfig {
	g := config.GetGameConfig()
	if err := g.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid game configuration")
	}
	return g
}

// prover returns nil when proofs are disabled.
func prover(log zerolog.Logger, size int) *zk.Prover {
	pc := config.GetProofConfig()
	if !pc.Enabled {
		return nil
	}
	p, err := zk.NewProver(pc.KeysDir, merkle.Depth(size*size), log)
	if err != nil {
		log.Fatal().Err(err).Str("dir", pc.KeysDir).Msg("cannot load shot keys")
	}
	return p
}

// === play ===

func cmdPlay(args []string) {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	seed := fs.Uint64("seed", 0, "placement and targeting seed (0 = config or clock)")
	secretOut := fs.String("secret", "secret.json", "where to write the revealed computer fleet")
	transcriptOut := fs.String("transcript", "transcript.json", "where to write the turn history")
	proofsDir := fs.String("proofs-dir", "proofs", "where to write shot proofs when proofs are enabled")
	_ = fs.Parse(args)

	log := setup(*configDir)
	g := gameConfig(log)
	if *seed != 0 {
		g.Seed = *seed
	}
	sess, err := app.NewSession(app.Options{
		Match:  g.Match(),
		Seed:   g.Seed,
		Prover: prover(log, g.BoardSize),
		Log:    log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cannot start session")
	}
	if sess.Proofs() {
		if err := os.MkdirAll(*proofsDir, 0o755); err != nil {
			log.Fatal().Err(err).Msg("cannot create proofs dir")
		}
	}

	m := sess.Match()
	fmt.Printf("Computer fleet committed: %s\n\n", sess.Public().RootHex)

	con := console.NewInput(os.Stdin, os.Stdout)
	in := match.InputFunc(func(ctx context.Context, v game.View) (game.Coord, error) {
		fmt.Println("Your board:")
		_ = render.Owner(os.Stdout, m.Board(match.Player))
		fmt.Println("\nComputer's board:")
		_ = render.Opponent(os.Stdout, m.Board(match.Computer))
		return con.NextTarget(ctx, v)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	winner, err := sess.Run(ctx, in, func(p app.Played) {
		fmt.Println(describe(p.Turn))
		if p.Proof != nil {
			path := filepath.Join(*proofsDir, fmt.Sprintf("shot-%03d.json", p.Turn.Number))
			if err := codec.SaveJSON(path, p.Proof); err != nil {
				log.Error().Err(err).Str("path", path).Msg("cannot save proof")
			}
		}
	})
	if err != nil {
		if errors.Is(err, console.ErrNoInput) || errors.Is(err, context.Canceled) {
			fmt.Println("\nGame abandoned.")
			return
		}
		log.Fatal().Err(err).Msg("match aborted")
	}

	fmt.Println("\nFinal boards:")
	_ = render.Owner(os.Stdout, m.Board(match.Player))
	fmt.Println()
	_ = render.Owner(os.Stdout, m.Board(match.Computer))
	if winner == match.Player {
		fmt.Println("Player wins!")
	} else {
		fmt.Println("Computer wins!")
	}

	sec, err := sess.Reveal()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot reveal")
	}
	if err := codec.SaveJSON(*secretOut, sec); err != nil {
		log.Fatal().Err(err).Msg("cannot save secret")
	}
	if err := codec.SaveJSON(*transcriptOut, sess.Transcript()); err != nil {
		log.Fatal().Err(err).Msg("cannot save transcript")
	}
	fmt.Printf("Secret written to %s, transcript to %s\n", *secretOut, *transcriptOut)
}

func describe(t match.Turn) string {
	s := fmt.Sprintf("#%d %s fires at %s: %s", t.Number, t.Shooter, t.Target, t.Outcome)
	if t.Sunk != nil {
		s += fmt.Sprintf(", sank a ship of size %d", t.Sunk.Size)
	}
	return s
}

// === sim ===

func cmdSim(args []string) {
	fs := flag.NewFlagSet("sim", flag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	games := fs.Int("games", 100, "number of computer-vs-computer matches")
	seed := fs.Uint64("seed", 0, "base seed (0 = config or clock)")
	_ = fs.Parse(args)

	log := setup(*configDir)
	g := gameConfig(log)
	base := g.Seed
	if *seed != 0 {
		base = *seed
	}
	if base == 0 {
		base = uint64(time.Now().UnixNano())
	}

	var (
		wins  [2]int
		turns int
	)
	for i := 0; i < *games; i++ {
		rng := rand.New(rand.NewPCG(base, uint64(i)))
		m, err := match.New(g.Match(), rng, log)
		if err != nil {
			log.Fatal().Err(err).Msg("cannot set up match")
		}
		w, err := m.Run(context.Background(), match.NewRandomTargeter(rng), match.NewRandomTargeter(rng), nil)
		if err != nil {
			log.Fatal().Err(err).Int("game", i).Msg("match aborted")
		}
		wins[w]++
		turns += len(m.History())
	}
	fmt.Printf("games: %d  seed: %d\n", *games, base)
	fmt.Printf("player wins: %d  computer wins: %d\n", wins[match.Player], wins[match.Computer])
	if *games > 0 {
		fmt.Printf("average turns: %.1f\n", float64(turns)/float64(*games))
	}
}

// === serve ===

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	_ = fs.Parse(args)

	log := setup(*configDir)
	g := gameConfig(log)
	sc := config.GetServerConfig()
	if *addr != "" {
		sc.Addr = *addr
	}
	if err := sc.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid server configuration")
	}

	srv, err := server.New(server.Options{
		Match:       g.Match(),
		Prover:      prover(log, g.BoardSize),
		KeysDir:     config.GetProofConfig().KeysDir,
		MaxSessions: sc.MaxSessions,
		Log:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create server")
	}
	mux := http.NewServeMux()
	srv.Routes(mux)

	hs := &http.Server{
		Addr:              sc.Addr,
		Handler:           server.WithCORS(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", sc.Addr).Msg("serving")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}

// === reveal ===

func cmdReveal(args []string) {
	fs := flag.NewFlagSet("reveal", flag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	secretPath := fs.String("secret", "secret.json", "secret written at the end of play")
	_ = fs.Parse(args)

	log := setup(*configDir)
	var sec codec.Secret
	if err := codec.LoadJSON(*secretPath, &sec); err != nil {
		log.Fatal().Err(err).Msg("cannot read secret")
	}
	if err := game.ValidateLayout(sec.Layout, sec.Size); err != nil {
		log.Fatal().Err(err).Msg("bad layout")
	}
	cm, err := sec.Commitment()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot rebuild commitment")
	}

	for y := 0; y < sec.Size; y++ {
		for x := 0; x < sec.Size; x++ {
			sym := render.SymWater
			if sec.Layout[y*sec.Size+x] == 1 {
				sym = render.SymShipIntact
			}
			fmt.Printf("%c ", sym)
		}
		fmt.Println()
	}
	fmt.Printf("root: %s\n", merkle.Hex(cm.Root))
}

// === verify-reveal ===

func cmdVerifyReveal(args []string) {
	fs := flag.NewFlagSet("verify-reveal", flag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	secretPath := fs.String("secret", "secret.json", "revealed secret")
	transcriptPath := fs.String("transcript", "transcript.json", "recorded commitment and turns")
	_ = fs.Parse(args)

	log := setup(*configDir)
	var (
		sec codec.Secret
		tr  codec.Transcript
	)
	if err := codec.LoadJSON(*secretPath, &sec); err != nil {
		log.Fatal().Err(err).Msg("cannot read secret")
	}
	if err := codec.LoadJSON(*transcriptPath, &tr); err != nil {
		log.Fatal().Err(err).Msg("cannot read transcript")
	}
	if err := app.VerifyReveal(sec, tr); err != nil {
		fmt.Println("INVALID:", err)
		os.Exit(1)
	}
	fmt.Printf("OK: layout matches %s and all %d turns\n", tr.Commitment.RootHex, len(tr.Turns))
}

// === verify-shot ===

func cmdVerifyShot(args []string) {
	fs := flag.NewFlagSet("verify-shot", flag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	vkPath := fs.String("vk", "", "verifying key (default: keysDir/shot-d<depth>.vk)")
	rootHex := fs.String("root", "", "published salted root (0x...)")
	proofPath := fs.String("proof", "proof.json", "shot proof payload")
	_ = fs.Parse(args)

	log := setup(*configDir)
	if *rootHex == "" {
		log.Fatal().Msg("--root is required")
	}
	var payload codec.ShotProofPayload
	if err := codec.LoadJSON(*proofPath, &payload); err != nil {
		log.Fatal().Err(err).Msg("cannot read proof")
	}
	vk := *vkPath
	if vk == "" {
		vk = zk.VKPath(config.GetProofConfig().KeysDir, payload.Public.Depth)
	}
	pub := codec.Public{RootHex: *rootHex, Depth: payload.Public.Depth}
	if err := app.VerifyProof(vk, pub, payload); err != nil {
		fmt.Println("INVALID:", err)
		os.Exit(1)
	}
	outcome := game.Miss
	if payload.Public.Hit == 1 {
		outcome = game.Hit
	}
	fmt.Printf("OK: cell %d is a %s under %s\n", payload.Public.Index, outcome, *rootHex)
}

// === keys ===

func cmdKeys(args []string) {
	fs := flag.NewFlagSet("keys", flag.ExitOnError)
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	depth := fs.Int("depth", 0, "tree depth (default: from board.size)")
	_ = fs.Parse(args)

	log := setup(*configDir)
	d := *depth
	if d == 0 {
		g := gameConfig(log)
		d = merkle.Depth(g.BoardSize * g.BoardSize)
	}
	dir := config.GetProofConfig().KeysDir
	if err := zk.EnsureKeys(dir, d, log); err != nil {
		log.Fatal().Err(err).Int("depth", d).Msg("cannot create keys")
	}
	fmt.Printf("keys ready: %s, %s\n", zk.PKPath(dir, d), zk.VKPath(dir, d))
}
