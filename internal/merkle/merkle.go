// Package merkle implements the RFC 6962 hash tree used for batch
// aggregation: leaves are hashed as SHA256(0x00 || data) and interior nodes
// as SHA256(0x01 || left || right), so a leaf can never be reinterpreted as
// an interior node. When a level has an odd node count the last node is
// carried up unchanged to the next level (the certificate-transparency
// convention; it is NOT duplicated or hashed with itself).
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

// PositionLeft and PositionRight are the direction bits carried by audit
// path steps: the side the sibling hash sits on during recombination.
const (
	PositionLeft  = "left"
	PositionRight = "right"
)

var ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")

// ProofStep is one sibling hash in an inclusion proof.
type ProofStep struct {
	Hash     string `json:"hash"`
	Position string `json:"position"`
}

// Tree is a fully built hash tree retaining every level, leaves first.
type Tree struct {
	levels [][][]byte
}

// New builds a tree over the given leaf data. An empty leaf set produces the
// empty-tree root SHA256("").
func New(leaves [][]byte) *Tree {
	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = leafHash(leaf)
	}
	t := &Tree{levels: [][][]byte{level}}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				// Odd node: carried up unchanged.
				next = append(next, level[i])
			}
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t
}

// Root returns the tree root.
func (t *Tree) Root() []byte {
	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		empty := sha256.Sum256(nil)
		return empty[:]
	}
	return top[0]
}

// RootHex returns the root as lowercase hex.
func (t *Tree) RootHex() string {
	return hex.EncodeToString(t.Root())
}

// Len reports the number of leaves.
func (t *Tree) Len() int {
	return len(t.levels[0])
}

// AuditPath returns the sibling hashes proving inclusion of leaf i.
func (t *Tree) AuditPath(i int) ([]ProofStep, error) {
	if i < 0 || i >= t.Len() {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, t.Len())
	}
	path := []ProofStep{}
	idx := i
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			pos := PositionLeft
			if sibling > idx {
				pos = PositionRight
			}
			path = append(path, ProofStep{
				Hash:     hex.EncodeToString(level[sibling]),
				Position: pos,
			})
		}
		// An unpaired last node keeps its hash at idx/2 on the next level.
		idx /= 2
	}
	return path, nil
}

// VerifyInclusion walks an audit path from leaf data to a claimed root,
// recombining per each step's direction bit. Hex comparison is
// case-insensitive.
func VerifyInclusion(leafData []byte, path []ProofStep, rootHex string) bool {
	current := leafHash(leafData)
	for _, step := range path {
		sibling, err := hex.DecodeString(strings.ToLower(step.Hash))
		if err != nil {
			return false
		}
		switch step.Position {
		case PositionLeft:
			current = nodeHash(sibling, current)
		case PositionRight:
			current = nodeHash(current, sibling)
		default:
			return false
		}
	}
	return strings.EqualFold(hex.EncodeToString(current), rootHex)
}

// RootOverHex builds a tree over hex-encoded leaf data (event hashes) and
// returns the root in hex.
func RootOverHex(hashes []string) (string, error) {
	leaves := make([][]byte, len(hashes))
	for i, h := range hashes {
		b, err := hex.DecodeString(strings.ToLower(h))
		if err != nil {
			return "", fmt.Errorf("merkle: leaf %d is not hex: %w", i, err)
		}
		leaves[i] = b
	}
	return New(leaves).RootHex(), nil
}

func leafHash(data []byte) []byte {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(data)
	return h.Sum(nil)
}

func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{nodePrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
