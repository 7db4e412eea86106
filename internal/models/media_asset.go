// internal/models/media_asset.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type MediaAsset struct {
	BaseModel
	OwnerID       uuid.UUID  `json:"owner_id" gorm:"type:uuid;not null;index"`
	Tier          Tier       `json:"tier" gorm:"type:varchar(20);not null;default:'free'"`
	StorageRef    string     `json:"storage_ref" gorm:"size:512;not null"`
	RenderedRef   string     `json:"rendered_ref,omitempty" gorm:"size:512"`
	RetainedUntil *time.Time `json:"retained_until,omitempty"`

	// Relationships
	Record *VerificationRecord `json:"record,omitempty" gorm:"foreignKey:AssetID"`
}

// VerificationRecord ties a MediaAsset to its hash bundle and Merkle tree.
// Fast-path fields are written by the upload orchestrator; the slow layers
// (perceptual, audio) and the final tree are written by the background worker.
// Those writes target disjoint fields and never overlap for one asset.
type VerificationRecord struct {
	BaseModel
	AssetID          uuid.UUID `json:"asset_id" gorm:"type:uuid;not null;uniqueIndex"`
	VerificationCode string    `json:"verification_code" gorm:"size:64;uniqueIndex;not null"`

	// Hash bundle
	OriginalSHA256        string         `json:"original_sha256" gorm:"size:64;not null;index"`
	RenderedSHA256        string         `json:"rendered_sha256" gorm:"size:64"`
	ExactFrameHashes      pq.StringArray `json:"exact_frame_hashes" gorm:"type:text[]"`
	PerceptualFrameHashes pq.StringArray `json:"perceptual_frame_hashes" gorm:"type:text[]"`
	AudioFingerprint      string         `json:"audio_fingerprint" gorm:"size:128"`
	MetadataHash          string         `json:"metadata_hash" gorm:"size:64"`

	// Merkle aggregation. MasterHash always equals the most recently
	// computed tree root.
	MasterHash    string `json:"master_hash" gorm:"size:64;index"`
	MerkleTree    JSONB  `json:"merkle_tree" gorm:"type:jsonb"`
	SchemaVersion int    `json:"schema_version" gorm:"default:0"`

	Status         VerificationStatus `json:"verification_status" gorm:"type:varchar(20);default:'pending';index"`
	BlockchainHash string             `json:"blockchain_hash,omitempty" gorm:"size:66"`

	// Relationships
	Asset MediaAsset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
}
