package codec

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"seabattle/internal/match"
	"seabattle/internal/merkle"
	"seabattle/internal/zk"
)

// Secret is what a committer reveals at the end of a match.
type Secret struct {
	Size    int     `json:"size"`
	Layout  []uint8 `json:"layout"` // row-major ship bits, Size*Size entries
	SaltHex string  `json:"salt_hex"`
}

// Salt parses SaltHex.
func (s Secret) Salt() (*big.Int, error) {
	if s.SaltHex == "" {
		return nil, fmt.Errorf("missing salt in secret")
	}
	return merkle.ParseHex(s.SaltHex)
}

// Commitment rebuilds the salted tree for the revealed layout.
func (s Secret) Commitment() (*merkle.Commitment, error) {
	if s.Size <= 0 || len(s.Layout) != s.Size*s.Size {
		return nil, fmt.Errorf("secret layout has %d cells for size %d", len(s.Layout), s.Size)
	}
	salt, err := s.Salt()
	if err != nil {
		return nil, err
	}
	t, err := merkle.Build(s.Layout)
	if err != nil {
		return nil, err
	}
	return &merkle.Commitment{Tree: t, Salt: salt, Root: merkle.SaltedRoot(salt, t.Root())}, nil
}

// Public is the commitment published before play.
type Public struct {
	RootHex string `json:"root_hex"`
	Size    int    `json:"size"`
	Depth   int    `json:"depth"`
}

type ShotProofPayload struct {
	Proof  []byte        `json:"proof"`
	Public zk.ShotPublic `json:"public"` // index, salted root and hit bit
}

// Transcript is a finished match as seen by the player: the published
// commitment and every turn.
type Transcript struct {
	Commitment Public       `json:"commitment"`
	Turns      []match.Turn `json:"turns"`
}

func SaveJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func LoadJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
