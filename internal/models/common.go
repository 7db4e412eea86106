// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// JSONBFrom marshals any value into a JSONB column value.
func JSONBFrom(v interface{}) JSONB {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierFree:       0,
	TierPro:        1,
	TierEnterprise: 2,
}

func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t grants at least the hash-layer depth of other.
func (t Tier) AtLeast(other Tier) bool {
	return tierRank[t] >= tierRank[other]
}

type VerificationStatus string

const (
	VerificationStatusPending       VerificationStatus = "pending"
	VerificationStatusVerified      VerificationStatus = "verified"
	VerificationStatusFullyVerified VerificationStatus = "fully_verified"
)

type BanStatus string

const (
	BanStatusNone      BanStatus = "none"
	BanStatusTemporary BanStatus = "temporary"
	BanStatusPermanent BanStatus = "permanent"
)

type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

type MatchLayer string

const (
	MatchLayerExact      MatchLayer = "exact"
	MatchLayerPerceptual MatchLayer = "perceptual"
	MatchLayerAudio      MatchLayer = "audio"
)

type UploadStatus string

const (
	UploadStatusSuccess   UploadStatus = "success"
	UploadStatusDuplicate UploadStatus = "duplicate"
)
