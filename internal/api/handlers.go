package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vidgenius/internal/analysis"
	"vidgenius/internal/media"
	"vidgenius/internal/metrics"
	"vidgenius/internal/models"
	"vidgenius/internal/worker"
)

const goalWarning = "Please define optimization goals before analysis"

// Analyzer runs the remote workflow for one upload.
type Analyzer interface {
	Analyze(ctx context.Context, media *models.TempMedia, goal string, observe analysis.Observer) analysis.Outcome
}

// Handler wires HTTP routes to the media store and the analysis workflow.
type Handler struct {
	media    *media.Store
	analyzer Analyzer
	gate     *worker.Gate
	renderer *Renderer
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(store *media.Store, analyzer Analyzer, gate *worker.Gate, collector *metrics.Collector, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = worker.NewGate(1)
	}
	return &Handler{
		media:    store,
		analyzer: analyzer,
		gate:     gate,
		renderer: NewRenderer(),
		metrics:  collector,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))
	router.GET("/", h.index)
	router.GET("/healthz", h.healthz)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := router.Group("/api")
	api.POST("/media", h.uploadMedia)
	api.GET("/media/:id", h.previewMedia)
	api.DELETE("/media/:id", h.deleteMedia)
	api.POST("/media/:id/analyze", h.analyze)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uploads":   h.media.Len(),
		"in_flight": h.gate.InFlight(),
	})
}

func (h *Handler) uploadMedia(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if _, _, err := media.Extension(file.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if limit := h.media.MaxBytes(); limit > 0 && file.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	defer f.Close()

	m, err := h.media.Save(file.Filename, f)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrUnsupportedType):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, media.ErrTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		default:
			h.logger.Error("save upload failed", zap.String("file_name", file.Filename), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"media_id":    m.ID,
		"file_name":   m.FileName,
		"size":        m.Size,
		"mime":        m.MIMEType,
		"preview_url": "/api/media/" + m.ID,
		"expires_at":  m.ExpiresAt,
	})
}

func (h *Handler) previewMedia(c *gin.Context) {
	m, err := h.media.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}
	c.Header("Content-Type", m.MIMEType)
	c.Header("Cache-Control", "no-store")
	c.File(m.Path)
}

func (h *Handler) deleteMedia(c *gin.Context) {
	if err := h.media.Release(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "remove file failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

type analyzeRequest struct {
	Goal string `json:"goal"`
}

var stageMessages = map[analysis.Stage]string{
	analysis.StageUploading: "Uploading video for analysis...",
	analysis.StagePolling:   "Waiting for the video to be processed...",
	analysis.StagePrompting: "Generating editing suggestions...",
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := analysis.ValidateGoal(req.Goal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"warning": goalWarning})
		return
	}
	id := c.Param("id")
	if _, err := h.media.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}
	release, err := h.gate.TryAcquire()
	if err != nil {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	}
	defer release()
	// From here on the upload belongs to this request only.
	m, err := h.media.Claim(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}
	defer func() {
		_ = h.media.Discard(m)
	}()

	// SSE Request construction
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	observe := func(stage analysis.Stage) {
		msg, ok := stageMessages[stage]
		if !ok {
			return
		}
		if err := sendEvent("status", gin.H{"stage": stage, "message": msg}); err != nil {
			h.logger.Debug("status event dropped", zap.String("media_id", id), zap.Error(err))
		}
	}

	// A closed tab must not leave the remote round-trip half done.
	ctx := context.WithoutCancel(c.Request.Context())
	outcome := h.analyzer.Analyze(ctx, m, req.Goal, observe)
	if !outcome.OK() {
		_ = sendEvent("error", gin.H{"message": outcome.Err.Error()})
		return
	}

	report := analysis.Split(outcome.Text)
	summaryHTML, err := h.renderer.Render(report.Summary)
	if err != nil {
		_ = sendEvent("error", gin.H{"message": err.Error()})
		return
	}
	detailsHTML, err := h.renderer.Render(report.Details)
	if err != nil {
		_ = sendEvent("error", gin.H{"message": err.Error()})
		return
	}
	_ = sendEvent("done", gin.H{
		"summary":      report.Summary,
		"details":      report.Details,
		"summary_html": summaryHTML,
		"details_html": detailsHTML,
		"has_details":  report.HasDetails,
	})
}

func acceptList() string {
	exts := media.AllowedExtensions()
	out := make([]string, len(exts))
	for i, ext := range exts {
		out[i] = "." + ext
	}
	return strings.Join(out, ",")
}
