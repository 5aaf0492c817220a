package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studentdocs/profile-service/internal/records"
	"github.com/studentdocs/profile-service/internal/render"
	"github.com/studentdocs/profile-service/pkg/logger"
	"github.com/studentdocs/profile-service/pkg/metrics"
	"github.com/studentdocs/profile-service/pkg/middleware"
)

// RecordFetcher loads a single record from the record store.
type RecordFetcher interface {
	Fetch(ctx context.Context, tableID string, recordID int64) (records.Record, error)
}

// DocumentRenderer turns a record into a PDF.
type DocumentRenderer interface {
	Render(ctx context.Context, recordID int64, rec records.Record) (*render.Document, error)
}

// ProfileHandler serves rendered profile PDFs.
type ProfileHandler struct {
	records  RecordFetcher
	renderer DocumentRenderer
	tableID  string
}

func NewProfileHandler(f RecordFetcher, r DocumentRenderer, tableID string) *ProfileHandler {
	return &ProfileHandler{records: f, renderer: r, tableID: tableID}
}

// Register routes on r. Extra handlers (e.g. a rate limiter) run before the render.
func (h *ProfileHandler) Register(r gin.IRoutes, mw ...gin.HandlerFunc) {
	r.GET("/student-details/:id", append(append([]gin.HandlerFunc{}, mw...), h.Render)...)
}

// Render handles GET /student-details/:id
func (h *ProfileHandler) Render(c *gin.Context) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		metrics.RenderRequests.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "Student record not found"})
		return
	}
	log := logger.With("record_id", id, "request_id", middleware.GetRequestID(c))
	log.Infof("PDF generation requested")

	rec, err := h.records.Fetch(c.Request.Context(), h.tableID, id)
	if err != nil {
		log.Warnf("failed to fetch record: %v", err)
		metrics.RenderRequests.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "Student record not found"})
		return
	}

	start := time.Now()
	doc, err := h.renderer.Render(c.Request.Context(), id, rec)
	metrics.RenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		result := "render_error"
		if errors.Is(err, render.ErrTemplateRead) {
			result = "template_error"
		}
		log.Errorf("failed to render profile: %v", err)
		metrics.RenderRequests.WithLabelValues(result).Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render profile"})
		return
	}

	metrics.RenderRequests.WithLabelValues("ok").Inc()
	log.Infof("generated PDF %s (%d bytes)", doc.Filename, len(doc.Content))
	c.Header("Content-Disposition", `inline; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}
