package merkle

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	bnmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// --- encode BN254 field elements as 32-byte big-endian ---
func feBytes(x *big.Int) []byte {
	b := x.Bytes()
	if len(b) == fr.Bytes {
		return b
	}
	out := make([]byte, fr.Bytes)
	copy(out[fr.Bytes-len(b):], b)
	return out
}

func bytesToFE(b []byte) *big.Int { return new(big.Int).SetBytes(b) }

func hash(xs ...*big.Int) *big.Int {
	h := bnmimc.NewMiMC()
	for _, x := range xs {
		// inputs are always reduced, Write only fails on non-canonical bytes
		_, _ = h.Write(feBytes(x))
	}
	return bytesToFE(h.Sum(nil))
}

// HashLeaf is MiMC(bit), matching the in-circuit leaf hash.
func HashLeaf(bit uint8) *big.Int {
	return hash(new(big.Int).SetUint64(uint64(bit)))
}

// HashNode is MiMC(left, right).
func HashNode(left, right *big.Int) *big.Int {
	return hash(left, right)
}

// SaltedRoot hides a tree root behind a salt: MiMC(salt, root).
func SaltedRoot(salt, root *big.Int) *big.Int {
	return hash(salt, root)
}

// Depth returns the tree depth needed for n leaves. It is at least 1.
func Depth(n int) int {
	d := 1
	for 1<<d < n {
		d++
	}
	return d
}

// Tree is a binary Merkle tree stored level-by-level.
type Tree struct {
	Depth  int          `json:"depth"`
	Levels [][]*big.Int `json:"levels"` // Levels[0]=leaves, Levels[Depth]=root
}

// Build hashes one leaf per bit and pads to the next power of two with
// water leaves.
func Build(bits []uint8) (*Tree, error) {
	if len(bits) == 0 {
		return nil, errors.New("merkle: no leaves")
	}
	depth := Depth(len(bits))
	pad := HashLeaf(0)

	levels := make([][]*big.Int, 0, depth+1)
	l0 := make([]*big.Int, 1<<depth)
	for i := range l0 {
		if i < len(bits) {
			if bits[i] > 1 {
				return nil, fmt.Errorf("merkle: leaf %d is %d, want 0 or 1", i, bits[i])
			}
			l0[i] = HashLeaf(bits[i])
		} else {
			l0[i] = pad
		}
	}
	levels = append(levels, l0)

	for n := len(l0); n > 1; n /= 2 {
		prev := levels[len(levels)-1]
		up := make([]*big.Int, n/2)
		for i := range up {
			up[i] = HashNode(prev[2*i], prev[2*i+1])
		}
		levels = append(levels, up)
	}
	return &Tree{Depth: depth, Levels: levels}, nil
}

func (t *Tree) Root() *big.Int { return new(big.Int).Set(t.Levels[t.Depth][0]) }

// Path returns sibling hashes + direction bits for index idx.
// dir[i]=0 ⇒ current is left child; dir[i]=1 ⇒ current is right child.
// The direction bits are the little-endian bits of idx.
func (t *Tree) Path(idx int) (path []*big.Int, dir []uint8, err error) {
	if idx < 0 || idx >= len(t.Levels[0]) {
		return nil, nil, fmt.Errorf("merkle: index %d out of range", idx)
	}
	path = make([]*big.Int, 0, t.Depth)
	dir = make([]uint8, 0, t.Depth)
	cur := idx
	for level := 0; level < t.Depth; level++ {
		bit := uint8(cur & 1)
		path = append(path, new(big.Int).Set(t.Levels[level][cur^1]))
		dir = append(dir, bit)
		cur >>= 1
	}
	return path, dir, nil
}

// Commitment is a salted tree root over a board layout.
type Commitment struct {
	Tree *Tree
	Salt *big.Int
	Root *big.Int
}

// Commit builds the tree for bits and salts its root. r supplies the salt
// entropy; nil means crypto/rand.
func Commit(bits []uint8, r io.Reader) (*Commitment, error) {
	t, err := Build(bits)
	if err != nil {
		return nil, err
	}
	salt, err := NewSalt(r)
	if err != nil {
		return nil, err
	}
	return &Commitment{Tree: t, Salt: salt, Root: SaltedRoot(salt, t.Root())}, nil
}

// NewSalt samples a uniform field element.
func NewSalt(r io.Reader) (*big.Int, error) {
	if r == nil {
		r = rand.Reader
	}
	s, err := rand.Int(r, fr.Modulus())
	if err != nil {
		return nil, fmt.Errorf("merkle: sample salt: %w", err)
	}
	return s, nil
}

// Recompute returns the salted root of a revealed layout.
func Recompute(bits []uint8, salt *big.Int) (*big.Int, error) {
	t, err := Build(bits)
	if err != nil {
		return nil, err
	}
	return SaltedRoot(salt, t.Root()), nil
}

// VerifyPath checks off-circuit that bit sits at idx under the salted root.
func VerifyPath(bit uint8, idx int, path []*big.Int, salt, root *big.Int) bool {
	cur := HashLeaf(bit)
	for i, sib := range path {
		if (idx>>i)&1 == 1 {
			cur = HashNode(sib, cur)
		} else {
			cur = HashNode(cur, sib)
		}
	}
	return SaltedRoot(salt, cur).Cmp(root) == 0
}

// Hex formats a field element as 0x-prefixed hex.
func Hex(x *big.Int) string { return fmt.Sprintf("0x%x", x) }

// ParseHex parses a 0x-prefixed hex field element.
func ParseHex(s string) (*big.Int, error) {
	if !strings.HasPrefix(s, "0x") || len(s) < 3 {
		return nil, fmt.Errorf("merkle: %q is not 0x-prefixed hex", s)
	}
	x, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		return nil, fmt.Errorf("merkle: cannot parse %q", s)
	}
	if x.Cmp(fr.Modulus()) >= 0 {
		return nil, fmt.Errorf("merkle: %s exceeds the field modulus", s)
	}
	return x, nil
}
