package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func testLeaves(n int) [][]byte {
	leaves := make([][]byte, n)
	for i := range leaves {
		leaves[i] = sum([]byte(fmt.Sprintf("leaf-%d", i)))
	}
	return leaves
}

func TestEmptyTreeRoot(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		New(nil).RootHex())
}

func TestSingleLeafRootIsDomainSeparated(t *testing.T) {
	leaf := []byte("data")
	root := New([][]byte{leaf}).RootHex()
	assert.Equal(t, hex.EncodeToString(sum([]byte{0x00}, leaf)), root)
	// Without the leaf prefix the root would be a plain hash; the domain
	// prefix must change it.
	assert.NotEqual(t, hex.EncodeToString(sum(leaf)), root)
}

func TestOddNodeCarriedUpUnchanged(t *testing.T) {
	leaves := testLeaves(3)
	l0 := sum([]byte{0x00}, leaves[0])
	l1 := sum([]byte{0x00}, leaves[1])
	l2 := sum([]byte{0x00}, leaves[2])
	// Level 1: [node(l0,l1), l2 carried]; root = node(node(l0,l1), l2).
	want := sum([]byte{0x01}, sum([]byte{0x01}, l0, l1), l2)
	assert.Equal(t, hex.EncodeToString(want), New(leaves).RootHex())
}

func TestAuditPathRoundTrip(t *testing.T) {
	for n := 1; n <= 33; n++ {
		leaves := testLeaves(n)
		tree := New(leaves)
		root := tree.RootHex()
		for i := 0; i < n; i++ {
			path, err := tree.AuditPath(i)
			require.NoError(t, err)
			assert.True(t, VerifyInclusion(leaves[i], path, root),
				"leaf %d of %d must verify", i, n)
		}
	}
}

func TestCorruptLeafInvalidatesOnlyItsProof(t *testing.T) {
	leaves := testLeaves(27)
	tree := New(leaves)
	root := tree.RootHex()

	corrupted := 13
	bad := append([]byte{}, leaves[corrupted]...)
	bad[0] ^= 0xff

	for i := range leaves {
		path, err := tree.AuditPath(i)
		require.NoError(t, err)
		if i == corrupted {
			assert.False(t, VerifyInclusion(bad, path, root))
		} else {
			assert.True(t, VerifyInclusion(leaves[i], path, root))
		}
	}
}

func TestAuditPathIndexOutOfRange(t *testing.T) {
	tree := New(testLeaves(4))
	_, err := tree.AuditPath(4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = tree.AuditPath(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestVerifyInclusionRejectsBadSteps(t *testing.T) {
	leaves := testLeaves(4)
	tree := New(leaves)
	path, err := tree.AuditPath(0)
	require.NoError(t, err)

	flipped := append([]ProofStep{}, path...)
	flipped[0].Position = "up"
	assert.False(t, VerifyInclusion(leaves[0], flipped, tree.RootHex()))

	notHex := append([]ProofStep{}, path...)
	notHex[0].Hash = "zz"
	assert.False(t, VerifyInclusion(leaves[0], notHex, tree.RootHex()))
}

func TestRootOverHex(t *testing.T) {
	leaves := testLeaves(5)
	hexes := make([]string, len(leaves))
	for i, l := range leaves {
		hexes[i] = hex.EncodeToString(l)
	}
	root, err := RootOverHex(hexes)
	require.NoError(t, err)
	assert.Equal(t, New(leaves).RootHex(), root)

	_, err = RootOverHex([]string{"not-hex"})
	assert.Error(t, err)
}
