package zk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog"
)

var ErrInvalidProof = errors.New("invalid shot proof")

// MaxDepth bounds the tree depth, 2^MaxDepth cells.
const MaxDepth = 24

// ShotPublic carries the public inputs of a shot proof.
type ShotPublic struct {
	Depth int      `json:"depth"`
	Index int      `json:"index"`
	Root  *big.Int `json:"root"`
	Hit   uint8    `json:"hit"`
}

func PKPath(dir string, depth int) string {
	return filepath.Join(dir, fmt.Sprintf("shot-d%d.pk", depth))
}

func VKPath(dir string, depth int) string {
	return filepath.Join(dir, fmt.Sprintf("shot-d%d.vk", depth))
}

func compile(depth int) (constraint.ConstraintSystem, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("zk: depth %d out of range [1, %d]", depth, MaxDepth)
	}
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, NewShotCircuit(depth))
}

// Prover holds the compiled circuit and proving key for one tree depth.
type Prover struct {
	depth int
	cs    constraint.ConstraintSystem
	pk    groth16.ProvingKey
	vk    groth16.VerifyingKey

	mu sync.Mutex
}

// NewProver compiles the circuit for depth and loads its keys from dir.
// Missing or unreadable keys are regenerated and written back.
func NewProver(dir string, depth int, log zerolog.Logger) (*Prover, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	cs, err := compile(depth)
	if err != nil {
		return nil, err
	}
	p := &Prover{depth: depth, cs: cs}

	vkPath, pkPath := VKPath(dir, depth), PKPath(dir, depth)
	// If both key files exist AND can be parsed, reuse them; else regenerate.
	if vk, pk, err := readKeys(vkPath, pkPath); err == nil {
		p.vk, p.pk = vk, pk
		log.Debug().Int("depth", depth).Str("dir", dir).Msg("shot keys loaded")
		return p, nil
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return nil, err
	}
	if err := writeKey(vkPath, vk); err != nil {
		return nil, err
	}
	if err := writeKey(pkPath, pk); err != nil {
		return nil, err
	}
	p.vk, p.pk = vk, pk
	log.Info().Int("depth", depth).Int("constraints", cs.GetNbConstraints()).Str("dir", dir).Msg("shot keys generated")
	return p, nil
}

// EnsureKeys makes sure the key pair for depth exists in dir.
func EnsureKeys(dir string, depth int, log zerolog.Logger) error {
	_, err := NewProver(dir, depth, log)
	return err
}

func (p *Prover) Depth() int { return p.depth }

func (p *Prover) VerifyingKey() groth16.VerifyingKey { return p.vk }

// Prove one shot.
func (p *Prover) Prove(assign *ShotCircuit) ([]byte, ShotPublic, error) {
	if len(assign.Path) != p.depth {
		return nil, ShotPublic{}, fmt.Errorf("zk: path length %d, prover depth %d", len(assign.Path), p.depth)
	}
	pub, err := publicOf(p.depth, assign)
	if err != nil {
		return nil, ShotPublic{}, err
	}

	fullWit, err := frontend.NewWitness(assign, ecc.BN254.ScalarField())
	if err != nil {
		return nil, ShotPublic{}, err
	}

	p.mu.Lock()
	proof, err := groth16.Prove(p.cs, p.pk, fullWit)
	p.mu.Unlock()
	if err != nil {
		return nil, ShotPublic{}, err
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, ShotPublic{}, err
	}
	return buf.Bytes(), pub, nil
}

func publicOf(depth int, a *ShotCircuit) (ShotPublic, error) {
	idx, ok := a.Index.(int)
	if !ok {
		return ShotPublic{}, errors.New("zk: index must be an int")
	}
	root, ok := a.Root.(*big.Int)
	if !ok {
		return ShotPublic{}, errors.New("zk: root must be a *big.Int")
	}
	hit, ok := a.Hit.(uint8)
	if !ok {
		return ShotPublic{}, errors.New("zk: hit must be a uint8")
	}
	return ShotPublic{Depth: depth, Index: idx, Root: new(big.Int).Set(root), Hit: hit}, nil
}

// VerifyShot checks proofBin against pub and an expected salted root.
// A nil error means the proof is valid.
func VerifyShot(vk groth16.VerifyingKey, proofBin []byte, pub ShotPublic, root *big.Int) error {
	if pub.Root == nil {
		return errors.New("proof payload missing public root")
	}
	if root != nil && pub.Root.Cmp(root) != 0 {
		return fmt.Errorf("%w: root mismatch", ErrInvalidProof)
	}
	if pub.Hit > 1 {
		return fmt.Errorf("%w: hit %d", ErrInvalidProof, pub.Hit)
	}
	if pub.Depth < 1 || pub.Depth > MaxDepth {
		return fmt.Errorf("%w: depth %d", ErrInvalidProof, pub.Depth)
	}
	if pub.Index < 0 || pub.Index >= 1<<pub.Depth {
		return fmt.Errorf("%w: index %d outside depth %d", ErrInvalidProof, pub.Index, pub.Depth)
	}

	pubWit, err := frontend.NewWitness(publicAssign(pub.Depth, pub), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return err
	}
	pr := groth16.NewProof(ecc.BN254)
	if _, err := pr.ReadFrom(bytes.NewReader(proofBin)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if err := groth16.Verify(pr, vk, pubWit); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return nil
}

// VerifyShotFile is VerifyShot with the verifying key read from path.
func VerifyShotFile(vkPath string, proofBin []byte, pub ShotPublic, root *big.Int) error {
	vk, err := ReadVK(vkPath)
	if err != nil {
		return err
	}
	return VerifyShot(vk, proofBin, pub, root)
}

// --- key IO helpers using io.WriterTo / io.ReaderFrom ---

type keyWriter interface {
	WriteTo(w io.Writer) (int64, error)
}

func writeKey(path string, k keyWriter) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := k.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteVK serializes vk.
func WriteVK(w io.Writer, vk groth16.VerifyingKey) error {
	_, err := vk.WriteTo(w)
	return err
}

func ReadVK(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

// ParseVK decodes a verifying key from bytes.
func ParseVK(b []byte) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return vk, nil
}

func readPK(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func readKeys(vkPath, pkPath string) (groth16.VerifyingKey, groth16.ProvingKey, error) {
	vk, err := ReadVK(vkPath)
	if err != nil {
		return nil, nil, err
	}
	pk, err := readPK(pkPath)
	if err != nil {
		return nil, nil, err
	}
	return vk, pk, nil
}
