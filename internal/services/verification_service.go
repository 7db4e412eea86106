// internal/services/verification_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mediaseal/mediaseal-backend/internal/merkle"
	"github.com/mediaseal/mediaseal-backend/internal/models"
)

var ErrCodeNotFound = errors.New("verification code not found")

// PublicRecord is the externally visible view of a verification record,
// safe to return to unauthenticated callers.
type PublicRecord struct {
	AssetID       uuid.UUID                 `json:"asset_id"`
	Status        models.VerificationStatus `json:"status"`
	MasterHash    string                    `json:"master_hash"`
	SchemaVersion int                       `json:"schema_version"`
	Layers        []string                  `json:"layers"`
	BlockchainRef string                    `json:"blockchain_ref,omitempty"`
	RegisteredAt  time.Time                 `json:"registered_at"`
}

type ProofResponse struct {
	Label         string             `json:"label"`
	LeafHash      string             `json:"leaf_hash"`
	Proof         []merkle.ProofStep `json:"proof"`
	Root          string             `json:"root"`
	SchemaVersion int                `json:"schema_version"`
}

// VerificationService serves public record lookups and Merkle
// inclusion-proof material.
type VerificationService struct {
	db *gorm.DB
}

func NewVerificationService(db *gorm.DB) *VerificationService {
	return &VerificationService{db: db}
}

func (s *VerificationService) LookupByCode(code string) (*PublicRecord, error) {
	record, err := s.recordByCode(code)
	if err != nil {
		return nil, err
	}

	tree, err := s.treeFor(record)
	if err != nil {
		return nil, err
	}

	return &PublicRecord{
		AssetID:       record.AssetID,
		Status:        record.Status,
		MasterHash:    record.MasterHash,
		SchemaVersion: record.SchemaVersion,
		Layers:        tree.Labels,
		BlockchainRef: record.BlockchainHash,
		RegisteredAt:  record.CreatedAt,
	}, nil
}

// ProofFor returns the inclusion proof for one layer of the record
// identified by code. The caller can replay the proof against the
// published master hash without access to the other layers.
func (s *VerificationService) ProofFor(code, label string) (*ProofResponse, error) {
	record, err := s.recordByCode(code)
	if err != nil {
		return nil, err
	}

	tree, err := s.treeFor(record)
	if err != nil {
		return nil, err
	}

	leaf, ok := tree.LeafFor(label)
	if !ok {
		return nil, fmt.Errorf("no layer %q in verification record", label)
	}
	proof, ok := tree.Proof(label)
	if !ok {
		return nil, fmt.Errorf("no proof for layer %q", label)
	}

	return &ProofResponse{
		Label:         label,
		LeafHash:      leaf,
		Proof:         proof,
		Root:          tree.Root,
		SchemaVersion: tree.SchemaVersion,
	}, nil
}

// CheckProof replays an inclusion proof. A mismatch is a verification
// result, not an error.
func (s *VerificationService) CheckProof(leafHash string, proof []merkle.ProofStep, expectedRoot string) bool {
	return merkle.VerifyProof(leafHash, proof, expectedRoot)
}

func (s *VerificationService) recordByCode(code string) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	if err := s.db.Where("verification_code = ?", code).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to load verification record: %w", err)
	}
	return &record, nil
}

// treeFor decodes the stored tree and recomputes it from its own leaves
// when the stored schema version is stale. No migration path exists for
// old schemas; a stale structure is never trusted as-is.
func (s *VerificationService) treeFor(record *models.VerificationRecord) (*merkle.Tree, error) {
	raw, err := json.Marshal(record.MerkleTree)
	if err != nil {
		return nil, fmt.Errorf("failed to read merkle tree: %w", err)
	}

	var tree merkle.Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode merkle tree: %w", err)
	}

	if tree.Stale() {
		rebuilt, err := merkle.RebuildFromLeaves(tree.Labels, tree.Leaves)
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild stale merkle tree: %w", err)
		}
		return rebuilt, nil
	}

	return &tree, nil
}
