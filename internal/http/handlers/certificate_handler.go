// Certificate HTTP handler.
//
// POST /certificates accepts the pledge form as multipart form fields (or a
// JSON body), the selfie as a "selfie" file part or a "selfie_data_url" field,
// and the output selection as query parameters. It runs the pipeline and
// either streams the certificate file (download=true) or answers with the
// stored URLs.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pledge-backend/internal/certificate"
	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/exif"
	"github.com/tbourn/go-pledge-backend/internal/http/middleware"
	"github.com/tbourn/go-pledge-backend/internal/localize"
	"github.com/tbourn/go-pledge-backend/internal/services"
)

// Response headers set on every successful certificate response.
const (
	HeaderPledgeID       = "X-Pledge-ID"
	HeaderCertificateURL = "X-Certificate-URL"
	HeaderTrackingLink   = "X-Tracking-Link"
	HeaderDegraded       = "X-Degraded"
)

//
// DTOs
//

// CertificateRequest is the form (or JSON) payload of POST /certificates.
type CertificateRequest struct {
	// PledgeID is reused when well-formed; otherwise a new id is issued.
	PledgeID     string `json:"pledge_id"       form:"pledge_id"`
	Name         string `json:"name"            form:"name"`
	Mobile       string `json:"mobile"          form:"mobile"`
	Gender       string `json:"gender"          form:"gender"`
	District     string `json:"district"        form:"district"`
	Constituency string `json:"constituency"    form:"constituency"`
	Village      string `json:"village"         form:"village"`
	Profession   string `json:"profession"      form:"profession"`
	Lang         string `json:"lang"            form:"lang"`
	TrackingID   string `json:"tracking_id"     form:"tracking_id"`
	SelfieData   string `json:"selfie_data_url" form:"selfie_data_url"`
}

func (r CertificateRequest) form() domain.PledgeForm {
	return domain.PledgeForm{
		Name:         r.Name,
		Mobile:       r.Mobile,
		Gender:       r.Gender,
		District:     r.District,
		Constituency: r.Constituency,
		Village:      r.Village,
		Profession:   r.Profession,
	}
}

// CertificateResponse describes a finished (or replayed) generation.
type CertificateResponse struct {
	PledgeID          string   `json:"pledge_id"`
	CertificateURL    string   `json:"certificate_url"`
	SelfieURL         string   `json:"selfie_url,omitempty"`
	TrackingLink      string   `json:"tracking_link,omitempty"`
	TrackingID        string   `json:"tracking_id,omitempty"`
	FileName          string   `json:"file_name,omitempty"`
	Format            string   `json:"format,omitempty"`
	CertificateStatus string   `json:"certificate_status,omitempty"`
	StorageLocation   string   `json:"storage_location,omitempty"`
	Degraded          []string `json:"degraded,omitempty"`
	Replayed          bool     `json:"replayed,omitempty"`
}

//
// Helpers
//

// certificateOptions reads preset, template, format, scale and quality from
// the query. A preset is the base that the other parameters override.
func certificateOptions(c *gin.Context) (certificate.Options, error) {
	var opts certificate.Options
	if p := c.Query("preset"); p != "" {
		preset, ok := certificate.Preset(p)
		if !ok {
			return opts, fmt.Errorf("unknown preset %q", p)
		}
		opts = preset
	}
	if t, ok := c.GetQuery("template"); ok {
		k, err := certificate.ParseKind(t)
		if err != nil {
			return opts, err
		}
		opts.Template = k
	}
	if f, ok := c.GetQuery("format"); ok {
		format, err := certificate.ParseFormat(f)
		if err != nil {
			return opts, err
		}
		opts.Format = format
	}
	if s := c.Query("scale"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 || v > 4 {
			return opts, fmt.Errorf("scale must be in (0, 4]")
		}
		opts.Scale = v
	}
	if q := c.Query("quality"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil || v <= 0 || v > 1 {
			return opts, fmt.Errorf("quality must be in (0, 1]")
		}
		opts.Quality = v
	}
	return opts, nil
}

// readSelfie returns the selfie bytes from the "selfie" file part or the
// data URL field. Neither present is not an error.
func (h *Handlers) readSelfie(c *gin.Context, dataURL string) ([]byte, error) {
	fh, err := c.FormFile("selfie")
	switch {
	case err == nil:
		return readPart(fh, h.MaxSelfieBytes)
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		return nil, err
	}
	if dataURL = strings.TrimSpace(dataURL); dataURL == "" {
		return nil, nil
	}
	if int64(len(dataURL)) > h.MaxSelfieBytes*4/3+64 {
		return nil, errSelfieTooLarge
	}
	b, _, err := exif.DecodeDataURL(dataURL)
	return b, err
}

var errSelfieTooLarge = errors.New("selfie too large")

func readPart(fh *multipart.FileHeader, max int64) ([]byte, error) {
	if fh.Size > max {
		return nil, errSelfieTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, errSelfieTooLarge
	}
	return b, nil
}

func wantsDownload(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.DefaultQuery("download", "false"))
	return err == nil && v
}

func setResultHeaders(c *gin.Context, pledgeID, certURL, link string, degraded []string) {
	h := c.Writer.Header()
	h.Set(HeaderPledgeID, pledgeID)
	if certURL != "" {
		h.Set(HeaderCertificateURL, certURL)
	}
	if link != "" {
		h.Set(HeaderTrackingLink, link)
	}
	if len(degraded) > 0 {
		h.Set(HeaderDegraded, strings.Join(degraded, ","))
	}
}

//
// Handlers
//

// CreateCertificate godoc
// @ID          createCertificate
// @Summary     Generate a pledge certificate
// @Description Composes the certificate, stores the selfie and certificate, records the pledge and returns the file or its URLs.
// @Tags        Certificates
// @Accept      multipart/form-data
// @Accept      json
// @Produce     json
// @Produce     image/png
// @Produce     image/jpeg
// @Produce     application/pdf
//
// @Param       X-Session-ID     header    string  false "Pledge session id"
// @Param       Idempotency-Key  header    string  false "Replays a completed request"
// @Param       name             formData  string  true  "Pledger name"
// @Param       selfie           formData  file    false "Selfie image"
// @Param       format           query     string  false "png|jpeg|pdf"
// @Param       template         query     string  false "raster|document|plain"
// @Param       preset           query     string  false "social|high|print"
// @Param       download         query     bool    false "Stream the file instead of JSON"
//
// @Success     201  {object}  handlers.CertificateResponse
// @Success     200  {object}  handlers.CertificateResponse "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse "Generation in progress for this session"
// @Failure     502  {object}  handlers.ErrorResponse "Template or encoder failure"
// @Router      /certificates [post]
func (h *Handlers) CreateCertificate(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := middleware.SessionID(c)
	key, _ := middleware.GetIdempotencyKey(c)

	if middleware.IsReplay(c) {
		if rec, found := h.certs.Replay(ctx, sessionID, key); found {
			if wantsDownload(c) && strings.HasPrefix(rec.CertificateURL, "http") {
				c.Redirect(http.StatusFound, rec.CertificateURL)
				return
			}
			setResultHeaders(c, rec.PledgeID, rec.CertificateURL, "", nil)
			ok(c, http.StatusOK, CertificateResponse{
				PledgeID:       rec.PledgeID,
				CertificateURL: rec.CertificateURL,
				Replayed:       true,
			})
			return
		}
	}

	opts, err := certificateOptions(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeUnsupportedFormat, err.Error())
		return
	}

	var req CertificateRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid certificate request")
		return
	}
	selfie, err := h.readSelfie(c, req.SelfieData)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.Is(err, errSelfieTooLarge) || errors.As(err, &mbe) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "selfie too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeInvalidSelfie, "selfie could not be read")
		return
	}

	lang := req.Lang
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}
	in := services.CertificateInput{
		PledgeID:       req.PledgeID,
		Form:           req.form(),
		Lang:           localize.ParseLang(lang),
		Selfie:         selfie,
		Options:        opts,
		TrackingID:     strings.TrimSpace(req.TrackingID),
		IdempotencyKey: key,
	}

	var delivery certificate.Delivery
	if wantsDownload(c) {
		// Run calls this only after the uploads and the pledge upsert.
		delivery = certificate.DeliveryFunc(func(_ context.Context, a certificate.Artifact) error {
			c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.FileName))
			c.Data(http.StatusCreated, a.ContentType, a.Data)
			return c.Request.Context().Err()
		})
	}

	res, err := h.certs.Run(ctx, h.session(c), in, delivery)
	switch {
	case errors.Is(err, services.ErrGenerationInProgress):
		fail(c, http.StatusConflict, ErrCodeGenerationInProgress, "a certificate is already being generated for this session")
		return
	case errors.Is(err, services.ErrMissingName):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	case errors.Is(err, services.ErrGenerationFailed):
		fail(c, http.StatusBadGateway, ErrCodeGenerationFailed, "certificate could not be generated, please retry")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}

	if delivery != nil {
		return
	}
	setResultHeaders(c, res.PledgeID, res.CertificateURL, res.TrackingLink, res.Degraded)
	ok(c, http.StatusCreated, CertificateResponse{
		PledgeID:          res.PledgeID,
		CertificateURL:    res.CertificateURL,
		SelfieURL:         inlineSafe(res.SelfieURL),
		TrackingLink:      res.TrackingLink,
		TrackingID:        res.TrackingID,
		FileName:          res.Artifact.FileName,
		Format:            string(res.Artifact.Format),
		CertificateStatus: res.CertificateStatus,
		StorageLocation:   res.StorageLocation,
		Degraded:          res.Degraded,
	})
}

// inlineSafe drops data URLs from responses; the caller already has the
// selfie it uploaded.
func inlineSafe(u string) string {
	if strings.HasPrefix(u, "data:") {
		return ""
	}
	return u
}
