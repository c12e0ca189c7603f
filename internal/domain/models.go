// Package domain defines the persistence models for pledges, tracking links
// and link clicks, plus the pledge form values shared by the certificate and
// service layers. The models are mapped with GORM.
package domain

import "time"

// Pledge is the persisted record of one pledge. It is created by an upsert
// keyed on PledgeID; later upserts overwrite only the columns they carry so
// that a URL known later can be filled in without clearing the others.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - PledgeID: public identifier (AANIRBHA-YYYY-XXXXXX-Z); unique, immutable.
//   - Name .. Lang: the submitted form values and certificate language.
//   - SelfieURL: public URL of the stored selfie, or a data: URL fallback.
//   - CertificatePDFURL / CertificateImageURL: stored certificate by format.
//   - SelfieStatus / CertificateStatus: "uploaded", "fallback" or "failed".
//   - StorageLocation: "remote", "local" or "inline".
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Pledge struct {
	ID                  string    `json:"id"                    gorm:"type:char(36);primaryKey"`
	PledgeID            string    `json:"pledge_id"             gorm:"type:varchar(32);not null;uniqueIndex:ux_pledges_pledge_id"`
	Name                string    `json:"name"                  gorm:"type:varchar(255);not null;default:''"`
	Mobile              string    `json:"mobile"                gorm:"type:varchar(32);not null;default:''"`
	District            string    `json:"district"              gorm:"type:varchar(128);not null;default:'';index:idx_pledges_district"`
	Constituency        string    `json:"constituency"          gorm:"type:varchar(128);not null;default:''"`
	Village             string    `json:"village"               gorm:"type:varchar(255);not null;default:''"`
	Gender              string    `json:"gender"                gorm:"type:varchar(16);not null;default:''"`
	Profession          string    `json:"profession"            gorm:"type:varchar(64);not null;default:''"`
	Lang                string    `json:"lang"                  gorm:"type:varchar(8);not null;default:'en'"`
	SelfieURL           string    `json:"selfie_url"            gorm:"type:text;not null;default:''"`
	CertificatePDFURL   string    `json:"certificate_pdf_url"   gorm:"type:text;not null;default:''"`
	CertificateImageURL string    `json:"certificate_image_url" gorm:"type:text;not null;default:''"`
	SelfieStatus        string    `json:"selfie_status"         gorm:"type:varchar(16);not null;default:''"`
	CertificateStatus   string    `json:"certificate_status"    gorm:"type:varchar(16);not null;default:''"`
	StorageLocation     string    `json:"storage_location"      gorm:"type:varchar(16);not null;default:''"`
	CreatedAt           time.Time `json:"created_at"            gorm:"index:idx_pledges_created"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the database table name for Pledge.
func (Pledge) TableName() string { return "pledges" }

// TrackingLink maps a shareable tracking id to the pledge that shared it.
// There is at most one link per pledge.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - TrackingID: public token used in the share URL (unique).
//   - PledgeID: the sharing pledge (unique).
//   - OriginalPledgeID: the pledge the sharer arrived from, if any.
//   - Metadata: opaque JSON supplied by the caller.
//   - CreatedBy: free-form origin tag (e.g. "certificate").
type TrackingLink struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	TrackingID       string    `json:"tracking_id"        gorm:"type:varchar(64);not null;uniqueIndex:ux_tracking_links_tracking_id"`
	PledgeID         string    `json:"pledge_id"          gorm:"type:varchar(32);not null;uniqueIndex:ux_tracking_links_pledge_id"`
	OriginalPledgeID string    `json:"original_pledge_id" gorm:"type:varchar(32);not null;default:''"`
	Metadata         string    `json:"metadata"           gorm:"type:text;not null;default:'{}'"`
	CreatedBy        string    `json:"created_by"         gorm:"type:varchar(64);not null;default:''"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName returns the database table name for TrackingLink.
func (TrackingLink) TableName() string { return "tracking_links" }

// LinkClick is one visit through a tracking link. Rows are written by the
// click flow; this service only marks them converted.
type LinkClick struct {
	ID                 string    `json:"id"                   gorm:"type:char(36);primaryKey"`
	TrackingLinkID     string    `json:"tracking_link_id"     gorm:"type:char(36);not null;index:idx_link_clicks_link"`
	SessionID          string    `json:"session_id"           gorm:"type:varchar(64);not null;index:idx_link_clicks_session"`
	ClickedAt          time.Time `json:"clicked_at"           gorm:"not null"`
	ConvertedToPledge  bool      `json:"converted_to_pledge"  gorm:"not null;default:false"`
	ConversionPledgeID *string   `json:"conversion_pledge_id" gorm:"type:varchar(32)"`

	TrackingLink TrackingLink `json:"-" gorm:"foreignKey:TrackingLinkID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for LinkClick.
func (LinkClick) TableName() string { return "link_clicks" }
