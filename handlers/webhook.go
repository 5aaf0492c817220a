package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studentdocs/profile-service/internal/provisioning"
	"github.com/studentdocs/profile-service/internal/records"
	"github.com/studentdocs/profile-service/internal/webhook"
	"github.com/studentdocs/profile-service/pkg/logger"
	"github.com/studentdocs/profile-service/pkg/metrics"
	"github.com/studentdocs/profile-service/pkg/middleware"
)

const maxWebhookBody = 1 << 20

// Orchestrator runs provisioning for an accepted record.
type Orchestrator interface {
	Run(ctx context.Context, rec records.Record, recordID int64, tableID string) provisioning.Outcome
}

// WebhookHandler receives Baserow row webhooks.
type WebhookHandler struct {
	orchestrator Orchestrator
	// statusCodes answers 400 for rejected payloads and 502 for failed runs
	// instead of acknowledging everything with 200.
	statusCodes bool
}

func NewWebhookHandler(o Orchestrator, statusCodes bool) *WebhookHandler {
	return &WebhookHandler{orchestrator: o, statusCodes: statusCodes}
}

func (h *WebhookHandler) Register(r gin.IRoutes, mw ...gin.HandlerFunc) {
	r.POST("/handle-new-record", append(append([]gin.HandlerFunc{}, mw...), h.HandleNewRecord)...)
}

// HandleNewRecord handles POST /handle-new-record. Every failure is caught and
// reported in the body; see statusCodes for the HTTP status.
func (h *WebhookHandler) HandleNewRecord(c *gin.Context) {
	log := logger.With("request_id", middleware.GetRequestID(c))
	log.Infof("incoming webhook")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Errorf("failed to read webhook body: %v", err)
		h.respondError(c, http.StatusBadRequest, gin.H{"status": provisioning.StatusError, "reason": err.Error()})
		return
	}

	d := webhook.Classify(body)
	switch d.Kind {
	case webhook.Rejected:
		log.Warnf("rejected webhook: %v", d.Err)
		h.respondError(c, http.StatusBadRequest, gin.H{"status": provisioning.StatusError, "reason": d.Reason})
		return
	case webhook.Ignored:
		log.Infof("ignored webhook: %s", d.Reason)
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": d.Reason})
		return
	}

	log = log.With("record_id", d.RecordID, "table_id", d.TableID)
	if d.Dropped > 0 {
		log.Warnf("payload carried %d additional items; only the first is processed", d.Dropped)
	}
	log.Infof("processing new record")

	out := h.orchestrator.Run(c.Request.Context(), d.Record, d.RecordID, d.TableID)
	if out.Err != nil {
		h.respondError(c, http.StatusBadGateway, gin.H{"status": provisioning.StatusError, "reason": out.Err.Error(), "stage": string(out.Stage)})
		return
	}

	metrics.WebhookEvents.WithLabelValues(provisioning.StatusSuccess).Inc()
	c.JSON(http.StatusOK, gin.H{"status": provisioning.StatusSuccess, "folder_name": out.FolderName, "link_added": true})
}

func (h *WebhookHandler) respondError(c *gin.Context, code int, body gin.H) {
	metrics.WebhookEvents.WithLabelValues(provisioning.StatusError).Inc()
	if !h.statusCodes {
		code = http.StatusOK
	}
	c.JSON(code, body)
}
