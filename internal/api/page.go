package api

import (
	"embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

func (h *Handler) index(c *gin.Context) {
	maxMB := h.media.MaxBytes() >> 20
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Accept":      acceptList(),
		"MaxUploadMB": maxMB,
		"Warning":     goalWarning,
	})
}
