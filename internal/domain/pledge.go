package domain

import "strings"

// Upload and storage outcomes recorded on a Pledge.
const (
	StatusUploaded = "uploaded"
	StatusFallback = "fallback"
	StatusFailed   = "failed"

	LocationRemote = "remote"
	LocationLocal  = "local"
	LocationInline = "inline"
)

// PledgeForm holds the values a pledger submitted. It is read-only input to
// certificate generation.
type PledgeForm struct {
	Name         string `json:"name"         form:"name"`
	Mobile       string `json:"mobile"       form:"mobile"`
	Gender       string `json:"gender"       form:"gender"`
	District     string `json:"district"     form:"district"`
	Constituency string `json:"constituency" form:"constituency"`
	Village      string `json:"village"      form:"village"`
	Profession   string `json:"profession"   form:"profession"`
}

// Trimmed returns f with surrounding whitespace removed from every field.
func (f PledgeForm) Trimmed() PledgeForm {
	return PledgeForm{
		Name:         strings.TrimSpace(f.Name),
		Mobile:       strings.TrimSpace(f.Mobile),
		Gender:       strings.TrimSpace(f.Gender),
		District:     strings.TrimSpace(f.District),
		Constituency: strings.TrimSpace(f.Constituency),
		Village:      strings.TrimSpace(f.Village),
		Profession:   strings.TrimSpace(f.Profession),
	}
}

// PledgeUpsert is the wire body of POST /pledges. A nil field is not sent
// and leaves the stored column untouched.
type PledgeUpsert struct {
	PledgeID            string  `json:"pledge_id"`
	Name                *string `json:"name,omitempty"`
	Mobile              *string `json:"mobile,omitempty"`
	District            *string `json:"district,omitempty"`
	Constituency        *string `json:"constituency,omitempty"`
	Village             *string `json:"village,omitempty"`
	Gender              *string `json:"gender,omitempty"`
	Profession          *string `json:"profession,omitempty"`
	Lang                *string `json:"lang,omitempty"`
	SelfieURL           *string `json:"selfie_url,omitempty"`
	CertificatePDFURL   *string `json:"certificate_pdf_url,omitempty"`
	CertificateImageURL *string `json:"certificate_image_url,omitempty"`
	SelfieStatus        *string `json:"selfie_status,omitempty"`
	CertificateStatus   *string `json:"certificate_status,omitempty"`
	StorageLocation     *string `json:"storage_location,omitempty"`
}

// Columns returns the database columns the upsert carries.
func (u PledgeUpsert) Columns() map[string]string {
	out := map[string]string{}
	for col, v := range map[string]*string{
		"name":                  u.Name,
		"mobile":                u.Mobile,
		"district":              u.District,
		"constituency":          u.Constituency,
		"village":               u.Village,
		"gender":                u.Gender,
		"profession":            u.Profession,
		"lang":                  u.Lang,
		"selfie_url":            u.SelfieURL,
		"certificate_pdf_url":   u.CertificatePDFURL,
		"certificate_image_url": u.CertificateImageURL,
		"selfie_status":         u.SelfieStatus,
		"certificate_status":    u.CertificateStatus,
		"storage_location":      u.StorageLocation,
	} {
		if v != nil {
			out[col] = *v
		}
	}
	return out
}

// UpsertFromForm fills the form columns of an upsert.
func UpsertFromForm(pledgeID string, f PledgeForm, lang string) PledgeUpsert {
	return PledgeUpsert{
		PledgeID:     pledgeID,
		Name:         Ptr(f.Name),
		Mobile:       Ptr(f.Mobile),
		District:     Ptr(f.District),
		Constituency: Ptr(f.Constituency),
		Village:      Ptr(f.Village),
		Gender:       Ptr(f.Gender),
		Profession:   Ptr(f.Profession),
		Lang:         Ptr(lang),
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
