package v1

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/healthwatch/core"
)

// IncidentHandler serves the incident query and acknowledge endpoints.
// All reads are side-effect free; acknowledgment is the single write an
// operator console is allowed.
type IncidentHandler struct {
	app *core.App
}

// NewIncidentHandler creates a new incident handler
func NewIncidentHandler(app *core.App) *IncidentHandler {
	return &IncidentHandler{app: app}
}

// ListIncidents handles GET /v1/incidents?status=&limit=
func (h *IncidentHandler) ListIncidents(c *gin.Context) {
	status := core.IncidentStatus(c.Query("status"))
	switch status {
	case "", core.IncidentActive, core.IncidentAcknowledged, core.IncidentResolved:
	default:
		SendBadRequest(c, "status must be 'active', 'acknowledged' or 'resolved'")
		return
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			SendBadRequest(c, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	incidents, err := h.app.Tracker().List(status, limit)
	if err != nil {
		SendInternalServerError(c, err)
		return
	}
	if incidents == nil {
		incidents = []core.Incident{}
	}

	SendSuccess(c, KindIncidentList, incidents, &ResponseMetadata{
		Total:       len(incidents),
		Limit:       limit,
		Filter:      string(status),
		GeneratedAt: time.Now(),
	})
}

// GetIncident handles GET /v1/incidents/:id
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	incident, err := h.app.Tracker().Get(c.Param("id"))
	if err != nil {
		SendInternalServerError(c, err)
		return
	}
	if incident == nil {
		SendNotFound(c, ErrorCodeIncidentNotFound, "incident not found: "+c.Param("id"))
		return
	}

	SendSuccess(c, KindIncident, incident, nil)
}

// GetTimeline handles GET /v1/incidents/:id/timeline
func (h *IncidentHandler) GetTimeline(c *gin.Context) {
	events, err := h.app.Tracker().Timeline(c.Param("id"), h.app.Config.Alerting)
	if err != nil {
		SendInternalServerError(c, err)
		return
	}
	if events == nil {
		SendNotFound(c, ErrorCodeIncidentNotFound, "incident not found: "+c.Param("id"))
		return
	}

	SendSuccess(c, KindTimeline, events, &ResponseMetadata{
		Total:       len(events),
		GeneratedAt: time.Now(),
	})
}

// AcknowledgeIncident handles POST /v1/incidents/:id/acknowledge
func (h *IncidentHandler) AcknowledgeIncident(c *gin.Context) {
	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendBadRequest(c, "acknowledged_by is required")
		return
	}

	incident, err := h.app.Acknowledge(c.Param("id"), req.AcknowledgedBy)
	if err != nil {
		SendInternalServerError(c, err)
		return
	}
	if incident == nil {
		SendNotFound(c, ErrorCodeIncidentNotFound, "incident not found: "+c.Param("id"))
		return
	}

	SendSuccess(c, KindIncident, incident, nil)
}
