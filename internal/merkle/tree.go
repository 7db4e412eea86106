// internal/merkle/tree.go
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// SchemaVersion identifies the canonical leaf ordering below. A stored tree
// carrying a different version must be recomputed from the source hashes,
// never trusted as-is.
const SchemaVersion = 2

// Canonical leaf labels, in schema order. Layers not applicable to an
// asset's tier are skipped, the relative order of the rest never changes.
const (
	LabelVerificationCode = "verification_code"
	LabelOriginal         = "original_sha256"
	LabelRendered         = "rendered_sha256"
	LabelExactFrames      = "exact_frames"
	LabelPerceptualFrames = "perceptual_frames"
	LabelAudio            = "audio_fingerprint"
	LabelMetadata         = "metadata"
	LabelTimestamp        = "timestamp"
)

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ProofStep is one hop of an inclusion proof: the sibling hash and which
// side of the pair it sits on.
type ProofStep struct {
	Sibling string `json:"sibling"`
	Side    Side   `json:"side"`
}

// Tree is a binary Merkle tree over labeled verification layers. Leaves and
// Labels are parallel lists; Root summarizes all leaves and is recomputed,
// not mutated, whenever the leaf set changes.
type Tree struct {
	Leaves        []string               `json:"leaves"`
	Labels        []string               `json:"labels"`
	Root          string                 `json:"root"`
	Proofs        map[string][]ProofStep `json:"proofs"`
	SchemaVersion int                    `json:"schema_version"`
}

var ErrNoLeaves = errors.New("merkle: no leaves to build from")

func hashHex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashLeaf hashes one layer value into its leaf form.
func HashLeaf(value string) string {
	return hashHex([]byte(value))
}

func parentHash(left, right string) string {
	return hashHex([]byte(left + right))
}

// Build assembles a tree from parallel label/value lists. Each value is
// hashed into a leaf, parents hash the concatenation of sibling pairs, and
// an odd node at any level is paired with itself.
func Build(labels, values []string) (*Tree, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("merkle: %d labels for %d values", len(labels), len(values))
	}
	if len(labels) == 0 {
		return nil, ErrNoLeaves
	}

	leaves := make([]string, len(values))
	for i, v := range values {
		leaves[i] = HashLeaf(v)
	}

	t := &Tree{
		Leaves:        leaves,
		Labels:        append([]string(nil), labels...),
		Root:          rootOf(leaves),
		Proofs:        make(map[string][]ProofStep, len(leaves)),
		SchemaVersion: SchemaVersion,
	}
	for i, label := range labels {
		t.Proofs[label] = proofFor(leaves, i)
	}
	return t, nil
}

func rootOf(leaves []string) string {
	nodes := leaves
	for len(nodes) > 1 {
		next := make([]string, 0, (len(nodes)+1)/2)
		for i := 0; i < len(nodes); i += 2 {
			if i+1 < len(nodes) {
				next = append(next, parentHash(nodes[i], nodes[i+1]))
			} else {
				next = append(next, parentHash(nodes[i], nodes[i]))
			}
		}
		nodes = next
	}
	return nodes[0]
}

func proofFor(leaves []string, idx int) []ProofStep {
	if idx < 0 || idx >= len(leaves) {
		return nil
	}

	var proof []ProofStep
	nodes := leaves
	current := idx
	for len(nodes) > 1 {
		siblingIdx := current ^ 1
		sibling := nodes[current] // odd node pairs with itself
		if siblingIdx < len(nodes) {
			sibling = nodes[siblingIdx]
		}
		if current%2 == 0 {
			proof = append(proof, ProofStep{Sibling: sibling, Side: SideRight})
		} else {
			proof = append(proof, ProofStep{Sibling: sibling, Side: SideLeft})
		}

		next := make([]string, 0, (len(nodes)+1)/2)
		for i := 0; i < len(nodes); i += 2 {
			if i+1 < len(nodes) {
				next = append(next, parentHash(nodes[i], nodes[i+1]))
			} else {
				next = append(next, parentHash(nodes[i], nodes[i]))
			}
		}
		nodes = next
		current /= 2
	}
	return proof
}

// Proof returns the inclusion proof for a labeled layer.
func (t *Tree) Proof(label string) ([]ProofStep, bool) {
	steps, ok := t.Proofs[label]
	return steps, ok
}

// LeafFor returns the leaf hash for a labeled layer.
func (t *Tree) LeafFor(label string) (string, bool) {
	for i, l := range t.Labels {
		if l == label {
			return t.Leaves[i], true
		}
	}
	return "", false
}

// Stale reports whether the stored tree was built under a different leaf
// schema and must be recomputed before being trusted.
func (t *Tree) Stale() bool {
	return t.SchemaVersion != SchemaVersion
}

// VerifyProof replays the hash-pair chain from a leaf hash and compares the
// result to the expected root. A mismatch is a verification result, not an
// error: the checked layer simply does not belong to the claimed root.
func VerifyProof(leafHash string, proof []ProofStep, expectedRoot string) bool {
	h := leafHash
	for _, step := range proof {
		if step.Side == SideLeft {
			h = parentHash(step.Sibling, h)
		} else {
			h = parentHash(h, step.Sibling)
		}
	}
	return h == expectedRoot
}

// LeafSet collects the layer values available for one asset. Empty fields
// are layers not applicable to the asset's tier (or not yet computed) and
// are skipped when assembling the canonical leaf order.
type LeafSet struct {
	VerificationCode string
	OriginalSHA256   string
	RenderedSHA256   string
	ExactFrames      string
	PerceptualFrames string
	AudioFingerprint string
	MetadataHash     string
	Timestamp        string
}

// Canonical returns the labels and values present in the set, in schema
// order.
func (ls LeafSet) Canonical() (labels, values []string) {
	ordered := []struct {
		label string
		value string
	}{
		{LabelVerificationCode, ls.VerificationCode},
		{LabelOriginal, ls.OriginalSHA256},
		{LabelRendered, ls.RenderedSHA256},
		{LabelExactFrames, ls.ExactFrames},
		{LabelPerceptualFrames, ls.PerceptualFrames},
		{LabelAudio, ls.AudioFingerprint},
		{LabelMetadata, ls.MetadataHash},
		{LabelTimestamp, ls.Timestamp},
	}
	for _, entry := range ordered {
		if entry.value == "" {
			continue
		}
		labels = append(labels, entry.label)
		values = append(values, entry.value)
	}
	return labels, values
}

// BuildFromSet builds the tree for the canonical leaves present in ls.
func BuildFromSet(ls LeafSet) (*Tree, error) {
	labels, values := ls.Canonical()
	return Build(labels, values)
}

// RebuildFromLeaves reassembles a tree from already-hashed leaves, used to
// recompute the root and proofs of a tree stored under a stale schema.
func RebuildFromLeaves(labels, leaves []string) (*Tree, error) {
	if len(labels) != len(leaves) {
		return nil, fmt.Errorf("merkle: %d labels for %d leaves", len(labels), len(leaves))
	}
	if len(labels) == 0 {
		return nil, ErrNoLeaves
	}

	t := &Tree{
		Leaves:        append([]string(nil), leaves...),
		Labels:        append([]string(nil), labels...),
		Root:          rootOf(leaves),
		Proofs:        make(map[string][]ProofStep, len(leaves)),
		SchemaVersion: SchemaVersion,
	}
	for i, label := range labels {
		t.Proofs[label] = proofFor(leaves, i)
	}
	return t, nil
}
