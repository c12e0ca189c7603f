// Pledge HTTP handlers.
//
// This file exposes the pledge collaborator endpoints:
//   - POST /pledges                   (upsert one record or a batch)
//   - GET  /pledges/count             (running total, weak ETag support)
//   - GET  /certificate/{pledgeId}    (302 to the stored certificate)
//   - GET  /selfie/{pledgeId}         (302 to the stored selfie)
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/services"
)

// UpsertPledgesResponse acknowledges POST /pledges.
type UpsertPledgesResponse struct {
	OK    bool `json:"ok"`
	Saved int  `json:"saved"`
}

// decodeUpserts accepts a single object or an array of objects.
func decodeUpserts(raw []byte) ([]domain.PledgeUpsert, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty body")
	}
	if raw[0] == '[' {
		var batch []domain.PledgeUpsert
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return nil, errors.New("empty batch")
		}
		return batch, nil
	}
	var one domain.PledgeUpsert
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []domain.PledgeUpsert{one}, nil
}

// UpsertPledges godoc
// @ID          upsertPledges
// @Summary     Upsert pledge records
// @Description Inserts or updates pledges keyed on pledge_id. Only the fields present in a record are written.
// @Tags        Pledges
// @Accept      json
// @Produce     json
// @Param       body  body      domain.PledgeUpsert  true  "One record or an array of records"
// @Success     200   {object}  handlers.UpsertPledgesResponse
// @Failure     400   {object}  handlers.CollabError
// @Failure     500   {object}  handlers.CollabError
// @Router      /pledges [post]
func (h *Handlers) UpsertPledges(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		collabFail(c, http.StatusBadRequest, "could not read body", err.Error())
		return
	}
	batch, err := decodeUpserts(raw)
	if err != nil {
		collabFail(c, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	saved, err := h.pledges.Upsert(c.Request.Context(), batch)
	switch {
	case errors.Is(err, services.ErrMissingPledgeID):
		collabFail(c, http.StatusBadRequest, "pledge_id is required", "")
		return
	case err != nil:
		collabFail(c, http.StatusInternalServerError, "failed to save pledge", err.Error())
		return
	}
	ok(c, http.StatusOK, UpsertPledgesResponse{OK: true, Saved: len(saved)})
}

// PledgeCount godoc
// @ID          pledgeCount
// @Summary     Pledge counter
// @Description Returns the stored total and the display figure. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Pledges
// @Produce     json
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object}  services.PledgeCount
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.CollabError
// @Router      /pledges/count [get]
func (h *Handlers) PledgeCount(c *gin.Context) {
	n, err := h.pledges.Count(c.Request.Context())
	if err != nil {
		collabFail(c, http.StatusInternalServerError, "failed to count pledges", err.Error())
		return
	}

	var ts int64
	if n.Latest != nil {
		ts = n.Latest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"pledges:%d:%d"`, n.Total, ts)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=30")
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	ok(c, http.StatusOK, n)
}

// CertificateRedirect godoc
// @ID          certificateRedirect
// @Summary     Stored certificate
// @Description Redirects to the stored certificate, preferring the PDF.
// @Tags        Pledges
// @Param       pledgeId  path  string  true  "Pledge id"  example(AANIRBHA-2025-ABCDEF-1)
// @Success     302
// @Failure     404  {object}  handlers.CollabError
// @Router      /certificate/{pledgeId} [get]
func (h *Handlers) CertificateRedirect(c *gin.Context) {
	h.redirect(c, h.pledges.CertificateURL, "certificate")
}

// SelfieRedirect godoc
// @ID          selfieRedirect
// @Summary     Stored selfie
// @Tags        Pledges
// @Param       pledgeId  path  string  true  "Pledge id"  example(AANIRBHA-2025-ABCDEF-1)
// @Success     302
// @Failure     404  {object}  handlers.CollabError
// @Router      /selfie/{pledgeId} [get]
func (h *Handlers) SelfieRedirect(c *gin.Context) {
	h.redirect(c, h.pledges.SelfieURL, "selfie")
}

func (h *Handlers) redirect(c *gin.Context, lookup func(ctx context.Context, pledgeID string) (string, error), what string) {
	id := strings.TrimSpace(c.Param("pledgeId"))
	if id == "" {
		collabFail(c, http.StatusBadRequest, "pledgeId is required", "")
		return
	}
	u, err := lookup(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrPledgeNotFound):
		collabFail(c, http.StatusNotFound, "pledge not found", "")
		return
	case errors.Is(err, services.ErrNoStoredFile):
		collabFail(c, http.StatusNotFound, what+" not found", "")
		return
	case err != nil:
		collabFail(c, http.StatusInternalServerError, "lookup failed", err.Error())
		return
	}
	c.Redirect(http.StatusFound, u)
}
