package domain

import "time"

// Idempotency records the outcome of a certificate request, keyed by
// (session_id, key). A replay with the same key returns the stored outcome
// instead of running the pipeline again.
type Idempotency struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	SessionID      string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_session_key,priority:1"`
	Key            string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_session_key,priority:2"`
	PledgeID       string    `gorm:"type:varchar(32);not null"`
	CertificateURL string    `gorm:"type:text;not null;default:''"`
	Status         int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
