// internal/merkle/tree_test.go
package merkle

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestTree(t *testing.T, n int) *Tree {
	t.Helper()
	labels := make([]string, n)
	values := make([]string, n)
	for i := 0; i < n; i++ {
		labels[i] = fmt.Sprintf("layer_%d", i)
		values[i] = fmt.Sprintf("value-%d", i)
	}
	tree, err := Build(labels, values)
	require.NoError(t, err)
	return tree
}

func TestBuildRejectsEmptyAndMismatchedInput(t *testing.T) {
	_, err := Build(nil, nil)
	assert.ErrorIs(t, err, ErrNoLeaves)

	_, err = Build([]string{"a"}, []string{"x", "y"})
	assert.Error(t, err)
}

func TestProofRoundTripAllIndices(t *testing.T) {
	// Odd and even leaf counts exercise the self-paired last node.
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8} {
		tree := buildTestTree(t, n)
		for i, label := range tree.Labels {
			proof, ok := tree.Proof(label)
			require.True(t, ok, "n=%d label=%s", n, label)
			assert.True(t, VerifyProof(tree.Leaves[i], proof, tree.Root),
				"n=%d index=%d", n, i)
		}
	}
}

func TestVerifyProofRejectsWrongLeaf(t *testing.T) {
	tree := buildTestTree(t, 5)
	proof, ok := tree.Proof("layer_2")
	require.True(t, ok)

	tampered := HashLeaf("value-2-tampered")
	assert.False(t, VerifyProof(tampered, proof, tree.Root))
}

func TestTamperSensitivity(t *testing.T) {
	labels := []string{"a", "b", "c", "d", "e"}
	values := []string{"1", "2", "3", "4", "5"}
	original, err := Build(labels, values)
	require.NoError(t, err)

	for i := range values {
		mutated := append([]string(nil), values...)
		mutated[i] = mutated[i] + "x"
		changed, err := Build(labels, mutated)
		require.NoError(t, err)
		assert.NotEqual(t, original.Root, changed.Root, "leaf %d", i)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a := buildTestTree(t, 6)
	b := buildTestTree(t, 6)
	assert.Equal(t, a.Root, b.Root)
	assert.Equal(t, a.Leaves, b.Leaves)
}

func TestLeafSetCanonicalSkipsEmptyLayers(t *testing.T) {
	ls := LeafSet{
		VerificationCode: "code",
		OriginalSHA256:   "orig",
		ExactFrames:      "exact",
		MetadataHash:     "meta",
		Timestamp:        "ts",
	}

	labels, values := ls.Canonical()
	assert.Equal(t, []string{
		LabelVerificationCode, LabelOriginal, LabelExactFrames,
		LabelMetadata, LabelTimestamp,
	}, labels)
	assert.Len(t, values, 5)
	assert.NotContains(t, labels, LabelPerceptualFrames)
	assert.NotContains(t, labels, LabelAudio)
}

func TestFullLeafSetExtendsFastTree(t *testing.T) {
	fast := LeafSet{
		VerificationCode: "code",
		OriginalSHA256:   "orig",
		RenderedSHA256:   "rend",
		ExactFrames:      "exact",
		MetadataHash:     "meta",
		Timestamp:        "ts",
	}
	full := fast
	full.PerceptualFrames = "perc"
	full.AudioFingerprint = "audio"

	fastTree, err := BuildFromSet(fast)
	require.NoError(t, err)
	fullTree, err := BuildFromSet(full)
	require.NoError(t, err)

	assert.NotEqual(t, fastTree.Root, fullTree.Root)
	assert.Len(t, fullTree.Labels, len(fastTree.Labels)+2)

	// Shared layers keep their leaf hashes across the rebuild.
	fastLeaf, ok := fastTree.LeafFor(LabelOriginal)
	require.True(t, ok)
	fullLeaf, ok := fullTree.LeafFor(LabelOriginal)
	require.True(t, ok)
	assert.Equal(t, fastLeaf, fullLeaf)
}

func TestStale(t *testing.T) {
	tree := buildTestTree(t, 3)
	assert.False(t, tree.Stale())

	tree.SchemaVersion = SchemaVersion - 1
	assert.True(t, tree.Stale())
}

func TestRebuildFromLeavesMatchesOriginal(t *testing.T) {
	tree := buildTestTree(t, 5)

	rebuilt, err := RebuildFromLeaves(tree.Labels, tree.Leaves)
	require.NoError(t, err)
	assert.Equal(t, tree.Root, rebuilt.Root)
	assert.Equal(t, tree.Proofs, rebuilt.Proofs)
	assert.Equal(t, SchemaVersion, rebuilt.SchemaVersion)
}
