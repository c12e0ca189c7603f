// Tracking HTTP handlers.
//
// This file exposes the tracking collaborator endpoints:
//   - POST /track-link          (issue or return the pledge's share link)
//   - GET  /track-link          (link details and counters, ?trackingId=)
//   - POST /track-conversion    (attribute a pledge to the click behind it)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pledge-backend/internal/http/middleware"
	"github.com/tbourn/go-pledge-backend/internal/services"
)

// TrackLinkRequest is the JSON payload of POST /track-link.
type TrackLinkRequest struct {
	PledgeID         string         `json:"pledgeId"`
	OriginalPledgeID string         `json:"originalPledgeId"`
	Metadata         map[string]any `json:"metadata"`
	CreatedBy        string         `json:"createdBy"`
}

// TrackConversionRequest is the JSON payload of POST /track-conversion.
type TrackConversionRequest struct {
	SessionID  string `json:"sessionId"`
	TrackingID string `json:"trackingId"`
	PledgeID   string `json:"pledgeId"`
}

// CreateTrackLink godoc
// @ID          createTrackLink
// @Summary     Create a share link
// @Description Returns the pledge's tracking link, creating it on first use.
// @Tags        Tracking
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.TrackLinkRequest  true  "Link request"
// @Success     201   {object}  services.TrackLink
// @Success     200   {object}  services.TrackLink "Existing link"
// @Failure     400   {object}  handlers.CollabError
// @Failure     500   {object}  handlers.CollabError
// @Router      /track-link [post]
func (h *Handlers) CreateTrackLink(c *gin.Context) {
	var req TrackLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		collabFail(c, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = middleware.SessionID(c)
	}

	link, err := h.tracking.CreateLink(c.Request.Context(), req.PledgeID, req.OriginalPledgeID, req.Metadata, createdBy)
	switch {
	case errors.Is(err, services.ErrMissingPledgeID):
		collabFail(c, http.StatusBadRequest, "pledgeId is required", "")
		return
	case err != nil:
		collabFail(c, http.StatusInternalServerError, "failed to create tracking link", err.Error())
		return
	}
	status := http.StatusCreated
	if link.Existing {
		status = http.StatusOK
	}
	ok(c, status, link)
}

// GetTrackLink godoc
// @ID          getTrackLink
// @Summary     Share link details
// @Tags        Tracking
// @Produce     json
// @Param       trackingId  query     string  true  "Tracking id"
// @Success     200         {object}  services.TrackLinkInfo
// @Failure     400         {object}  handlers.CollabError
// @Failure     404         {object}  handlers.CollabError
// @Router      /track-link [get]
func (h *Handlers) GetTrackLink(c *gin.Context) {
	id := strings.TrimSpace(c.Query("trackingId"))
	if id == "" {
		collabFail(c, http.StatusBadRequest, "trackingId is required", "")
		return
	}
	info, err := h.tracking.GetLink(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrTrackingLinkNotFound):
		collabFail(c, http.StatusNotFound, "tracking link not found", "")
		return
	case err != nil:
		collabFail(c, http.StatusInternalServerError, "failed to load tracking link", err.Error())
		return
	}
	ok(c, http.StatusOK, info)
}

// TrackConversion godoc
// @ID          trackConversion
// @Summary     Mark a conversion
// @Description Flags the latest click of the session (or tracking link) as converted to the pledge.
// @Tags        Tracking
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.TrackConversionRequest  true  "Conversion"
// @Success     200   {object}  handlers.OKResponse
// @Failure     400   {object}  handlers.CollabError
// @Failure     404   {object}  handlers.CollabError
// @Router      /track-conversion [post]
func (h *Handlers) TrackConversion(c *gin.Context) {
	var req TrackConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		collabFail(c, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	if strings.TrimSpace(req.PledgeID) == "" {
		collabFail(c, http.StatusBadRequest, "pledgeId is required", "")
		return
	}

	err := h.tracking.MarkConversion(c.Request.Context(), strings.TrimSpace(req.SessionID), strings.TrimSpace(req.TrackingID), strings.TrimSpace(req.PledgeID))
	switch {
	case errors.Is(err, services.ErrMissingTrackingKeys):
		collabFail(c, http.StatusBadRequest, "sessionId or trackingId is required", "")
		return
	case errors.Is(err, services.ErrTrackingLinkNotFound):
		collabFail(c, http.StatusNotFound, "tracking link not found", "")
		return
	case errors.Is(err, services.ErrClickNotFound):
		collabFail(c, http.StatusNotFound, "no click to convert", "")
		return
	case err != nil:
		collabFail(c, http.StatusInternalServerError, "failed to record conversion", err.Error())
		return
	}
	ok(c, http.StatusOK, OKResponse{OK: true})
}
