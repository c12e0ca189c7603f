// Package handlers provides HTTP handler implementations for the public API.
//
// Two error bodies are in use. The certificate routes and the router
// fallbacks answer with ErrorResponse:
//
//	HTTP/1.1 409 Conflict
//	{"request_id":"…","code":"generation_in_progress","message":"…"}
//
// The collaborator routes (pledges, certificate and selfie redirects,
// tracking) keep the {error, details} body their callers already parse:
//
//	HTTP/1.1 404 Not Found
//	{"error":"pledge not found"}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pledge-backend/internal/http/middleware"
)

// ErrorResponse is the error body of the certificate routes.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"9b2f6c1e-3d7a-4c44-a0c8-5e1f0d2b7a31"`
	Code      string `json:"code" example:"generation_failed"`
	Message   string `json:"message" example:"certificate could not be generated, please retry"`
}

// CollabError is the error body of the collaborator routes.
type CollabError struct {
	Error   string `json:"error" example:"pledge not found"`
	Details string `json:"details,omitempty"`
}

// OKResponse acknowledges a collaborator write.
type OKResponse struct {
	OK bool `json:"ok"`
}

// logServerError records 5xx answers on the request logger; 4xx are the
// caller's problem and already appear in the access log.
func logServerError(c *gin.Context, status int, fields map[string]any, msg string) {
	if status < http.StatusInternalServerError {
		return
	}
	middleware.LoggerFrom(c).Error().
		Int("status", status).
		Str("route", c.FullPath()).
		Fields(fields).
		Msg(msg)
}

func fail(c *gin.Context, status int, code, msg string) {
	logServerError(c, status, map[string]any{"code": code, "message": msg}, "api error")
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get(middleware.HeaderRequestID),
		Code:      code,
		Message:   msg,
	})
}

// Fail aborts with an ErrorResponse. The router uses it for 404 and 405.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func collabFail(c *gin.Context, status int, msg, details string) {
	logServerError(c, status, map[string]any{"error": msg, "details": details}, "collaborator api error")
	c.AbortWithStatusJSON(status, CollabError{Error: msg, Details: details})
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
