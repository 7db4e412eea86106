// internal/models/violation.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ViolationRecord accumulates strikes per uploader. Created lazily on the
// first violation and never deleted; strikes are never reset, even after a
// temporary ban expires.
type ViolationRecord struct {
	BaseModel
	UploaderID   uuid.UUID  `json:"uploader_id" gorm:"type:uuid;not null;uniqueIndex"`
	StrikeCount  int        `json:"strike_count" gorm:"default:0"`
	BanStatus    BanStatus  `json:"ban_status" gorm:"type:varchar(20);default:'none';index"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`

	// Relationships
	Strikes []Strike `json:"strikes,omitempty" gorm:"foreignKey:ViolationID"`
}

type Strike struct {
	BaseModel
	ViolationID uuid.UUID `json:"violation_id" gorm:"type:uuid;not null;index"`
	Reason      string    `json:"reason" gorm:"size:100;not null"`
	Detail      string    `json:"detail" gorm:"type:text"`

	// Fingerprint of (video hash, original asset id). Repeated attempts on
	// the same content carry the same fingerprint and count once.
	Fingerprint string `json:"fingerprint" gorm:"size:64;not null;index"`
}
