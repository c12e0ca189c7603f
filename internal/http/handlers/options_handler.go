package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-pledge-backend/internal/localize"
)

// FormOptionsResponse lists the dropdown choices of the pledge form.
type FormOptionsResponse struct {
	Lang        localize.Lang `json:"lang"`
	Districts   []string      `json:"districts"`
	Professions []string      `json:"professions"`
}

// FormOptions godoc
// @ID          formOptions
// @Summary     Pledge form choices
// @Description Lists the Rajasthan districts and the profession options in the requested language. A Devanagari district submitted back is stored under its English name.
// @Tags        Pledges
// @Produce     json
// @Param       lang             query   string  false "en or hi"
// @Param       Accept-Language  header  string  false "used when lang is absent"
// @Success     200  {object}  handlers.FormOptionsResponse
// @Router      /form-options [get]
func (h *Handlers) FormOptions(c *gin.Context) {
	lang := c.Query("lang")
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}
	l := localize.ParseLang(lang)
	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("Vary", "Accept-Language")
	ok(c, http.StatusOK, FormOptionsResponse{
		Lang:        l,
		Districts:   localize.DistrictOptions(l),
		Professions: localize.ProfessionOptions(l),
	})
}
