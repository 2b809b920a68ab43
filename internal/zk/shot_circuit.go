package zk

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"seabattle/internal/merkle"
)

// ShotCircuit proves that the cell at Index of the committed layout holds
// Hit. The path length fixes the tree depth and must be set before
// compiling; see NewShotCircuit.
type ShotCircuit struct {
	Bit  frontend.Variable   `gnark:",secret"`
	Salt frontend.Variable   `gnark:",secret"`
	Path []frontend.Variable `gnark:",secret"`

	Index frontend.Variable `gnark:",public"`
	Root  frontend.Variable `gnark:",public"`
	Hit   frontend.Variable `gnark:",public"`
}

func NewShotCircuit(depth int) *ShotCircuit {
	return &ShotCircuit{Path: make([]frontend.Variable, depth)}
}

func (c *ShotCircuit) Define(api frontend.API) error {
	api.AssertIsBoolean(c.Bit)
	api.AssertIsEqual(c.Hit, c.Bit)

	// direction bits are the bits of the public index, so the proof is
	// bound to the cell that was shot
	dir := api.ToBinary(c.Index, len(c.Path))

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Reset()
	h.Write(c.Bit)
	curr := h.Sum()

	for i := range c.Path {
		h.Reset()
		left := api.Select(dir[i], c.Path[i], curr)
		right := api.Select(dir[i], curr, c.Path[i])
		h.Write(left, right)
		curr = h.Sum()
	}

	h.Reset()
	h.Write(c.Salt, curr)
	api.AssertIsEqual(h.Sum(), c.Root)
	return nil
}

// Assign builds a full witness for the cell at idx of a committed layout.
func Assign(cm *merkle.Commitment, idx int, bit uint8) (*ShotCircuit, error) {
	if bit > 1 {
		return nil, fmt.Errorf("zk: bit %d, want 0 or 1", bit)
	}
	path, _, err := cm.Tree.Path(idx)
	if err != nil {
		return nil, err
	}
	a := NewShotCircuit(cm.Tree.Depth)
	a.Bit = bit
	a.Salt = cm.Salt
	for i, p := range path {
		a.Path[i] = p
	}
	a.Index = idx
	a.Root = cm.Root
	a.Hit = bit
	return a, nil
}

// publicAssign fills only the public inputs; secrets are zero.
func publicAssign(depth int, pub ShotPublic) *ShotCircuit {
	a := NewShotCircuit(depth)
	a.Bit = 0
	a.Salt = 0
	for i := range a.Path {
		a.Path[i] = 0
	}
	a.Index = pub.Index
	a.Root = new(big.Int).Set(pub.Root)
	a.Hit = pub.Hit
	return a
}
