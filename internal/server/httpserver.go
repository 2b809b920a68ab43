package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"seabattle/internal/app"
	"seabattle/internal/codec"
	"seabattle/internal/game"
	"seabattle/internal/match"
	"seabattle/internal/render"
	"seabattle/internal/zk"
	"seabattle/web"
)

const instrumentationName = "seabattle/internal/server"

var errTooManySessions = errors.New("too many sessions in progress")

// Options configures a Server.
type Options struct {
	Match       match.Config
	Prover      *zk.Prover // nil disables shot proofs
	KeysDir     string
	MaxSessions int
	Log         zerolog.Logger
}

// Server hosts independent human-vs-computer sessions over HTTP.
type Server struct {
	opts Options
	log  zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*entry

	created  metric.Int64Counter
	shots    metric.Int64Counter
	finished metric.Int64Counter
}

// entry serialises access to one session.
type entry struct {
	mu      sync.Mutex
	sess    *app.Session
	started time.Time
}

// New creates a Server. Metrics go to the global OTel meter provider
// (no-op if not configured).
func New(opts Options) (*Server, error) {
	if opts.MaxSessions < 1 {
		return nil, fmt.Errorf("%w: max sessions %d", game.ErrInvalidConfiguration, opts.MaxSessions)
	}
	if err := opts.Match.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		opts:     opts,
		log:      opts.Log.With().Str("component", "server").Logger(),
		sessions: make(map[string]*entry),
	}

	m := otel.Meter(instrumentationName)
	var err error
	s.created, err = m.Int64Counter("seabattle.sessions.created",
		metric.WithDescription("Total sessions created"))
	if err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}
	s.shots, err = m.Int64Counter("seabattle.shots.fired",
		metric.WithDescription("Total shots resolved, by shooter and outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating shots counter: %w", err)
	}
	s.finished, err = m.Int64Counter("seabattle.matches.finished",
		metric.WithDescription("Total matches finished, by winner"))
	if err != nil {
		return nil, fmt.Errorf("creating finished counter: %w", err)
	}
	return s, nil
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sessions", s.handleCreate)
	mux.HandleFunc("/v1/sessions/{id}", s.handleStatus)
	mux.HandleFunc("/v1/sessions/{id}/shots", s.handleShot)
	mux.HandleFunc("/v1/sessions/{id}/reveal", s.handleReveal)
	mux.HandleFunc("/v1/vk", s.handleVK)

	// Serve embedded GUI at /
	mux.Handle("/", http.FileServer(web.FS()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// allow answers preflight and wrong-method requests. It reports whether
// the handler should go on.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// === Sessions ===

type createResp struct {
	ID      string `json:"id"`
	RootHex string `json:"rootHex"`
	Size    int    `json:"size"`
	Depth   int    `json:"depth"`
	Proofs  bool   `json:"proofs"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	sess, err := app.NewSession(app.Options{
		Match:  s.opts.Match,
		Prover: s.opts.Prover,
		Log:    s.opts.Log,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	id := uuid.NewString()
	if err := s.add(id, sess); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.created.Add(r.Context(), 1)
	s.log.Info().Str("session", id).Uint64("seed", sess.Seed()).Msg("session created")

	pub := sess.Public()
	writeJSON(w, http.StatusCreated, createResp{
		ID:      id,
		RootHex: pub.RootHex,
		Size:    pub.Size,
		Depth:   pub.Depth,
		Proofs:  sess.Proofs(),
	})
}

// add stores sess under id, evicting the oldest finished session when the
// table is full.
func (s *Server) add(id string, sess *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.opts.MaxSessions {
		var (
			oldest   string
			oldestAt time.Time
		)
		for sid, e := range s.sessions {
			e.mu.Lock()
			done := e.sess.Match().Stage() == match.StageFinished
			e.mu.Unlock()
			if done && (oldest == "" || e.started.Before(oldestAt)) {
				oldest, oldestAt = sid, e.started
			}
		}
		if oldest == "" {
			return errTooManySessions
		}
		delete(s.sessions, oldest)
		s.log.Debug().Str("session", oldest).Msg("session evicted")
	}
	s.sessions[id] = &entry{sess: sess, started: time.Now()}
	return nil
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*entry, bool) {
	id := r.PathValue("id")
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
	}
	return e, ok
}

// === Status ===

type statusResp struct {
	ID       string      `json:"id"`
	RootHex  string      `json:"rootHex"`
	Size     int         `json:"size"`
	Proofs   bool        `json:"proofs"`
	Stage    match.Stage `json:"stage"`
	Turn     match.Side  `json:"turn"`
	Winner   *match.Side `json:"winner,omitempty"`
	Board    []string    `json:"board"`    // player's own board
	Opponent []string    `json:"opponent"` // computer's board under fog
	Stats    struct {
		Player   match.Stats `json:"player"`
		Computer match.Stats `json:"computer"`
	} `json:"stats"`
	Turns int `json:"turns"`
}

// status must be called with e.mu held.
func status(id string, sess *app.Session) statusResp {
	m := sess.Match()
	st := statusResp{
		ID:       id,
		RootHex:  sess.Public().RootHex,
		Size:     m.Config().BoardSize,
		Proofs:   sess.Proofs(),
		Stage:    m.Stage(),
		Turn:     m.Turn(),
		Board:    render.Rows(m.Board(match.Player)),
		Opponent: render.Rows(m.Board(match.Computer).Fog()),
		Turns:    len(m.History()),
	}
	if w, ok := m.Winner(); ok {
		st.Winner = &w
	}
	st.Stats.Player = m.Stats(match.Player)
	st.Stats.Computer = m.Stats(match.Computer)
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	st := status(r.PathValue("id"), e.sess)
	e.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

// === Shots ===

type shotReq struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

type shotResp struct {
	Turn       match.Turn              `json:"turn"`
	Proof      *codec.ShotProofPayload `json:"proof,omitempty"`
	ProofError string                  `json:"proofError,omitempty"`
	Reply      *match.Turn             `json:"reply,omitempty"`
	Status     statusResp              `json:"status"`
}

func (s *Server) handleShot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req shotReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.X == nil || req.Y == nil {
		writeError(w, http.StatusBadRequest, "bad json: want {\"x\": int, \"y\": int}")
		return
	}
	c := game.Coord{X: *req.X, Y: *req.Y}

	e.mu.Lock()
	defer e.mu.Unlock()
	shot, reply, err := e.sess.Shoot(r.Context(), c)
	var proofErr string
	if errors.Is(err, app.ErrProofFailed) && shot.Turn.Number > 0 {
		// the shot stands; the client sees it without a proof
		proofErr = err.Error()
		s.log.Warn().Err(err).Str("session", r.PathValue("id")).Msg("shot resolved without proof")
		err = nil
	}
	switch {
	case errors.Is(err, match.ErrMatchFinished), errors.Is(err, app.ErrNotPlayerTurn):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		s.log.Error().Err(err).Str("session", r.PathValue("id")).Msg("shot failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := shotResp{Turn: shot.Turn, Proof: shot.Proof, ProofError: proofErr}
	s.count(r.Context(), shot.Turn)
	if reply != nil {
		resp.Reply = &reply.Turn
		s.count(r.Context(), reply.Turn)
	}
	resp.Status = status(r.PathValue("id"), e.sess)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) count(ctx context.Context, t match.Turn) {
	s.shots.Add(ctx, 1, metric.WithAttributes(
		attribute.String("shooter", t.Shooter.String()),
		attribute.String("outcome", t.Outcome.String()),
	))
	if t.Finished {
		s.finished.Add(ctx, 1, metric.WithAttributes(attribute.String("winner", t.Shooter.String())))
	}
}

// === Reveal ===

type revealResp struct {
	Secret     codec.Secret     `json:"secret"`
	Transcript codec.Transcript `json:"transcript"`
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sec, err := e.sess.Reveal()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, revealResp{Secret: sec, Transcript: e.sess.Transcript()})
}

// === Verifying key ===

func (s *Server) handleVK(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if s.opts.Prover == nil {
		writeError(w, http.StatusNotFound, "shot proofs are disabled")
		return
	}
	depth := s.opts.Prover.Depth()
	if q := r.URL.Query().Get("depth"); q != "" {
		d, err := strconv.Atoi(q)
		if err != nil || d < 1 || d > zk.MaxDepth {
			writeError(w, http.StatusBadRequest, "invalid depth")
			return
		}
		depth = d
	}
	data, err := os.ReadFile(zk.VKPath(s.opts.KeysDir, depth))
	if err != nil || len(data) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no verifying key for depth %d", depth))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"depth": depth,
		"vkB64": base64.StdEncoding.EncodeToString(data),
	})
}

// === CORS ===

func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// In dev we allow any origin. For production, set this to the specific origin(s).
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
