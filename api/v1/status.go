package v1

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/healthwatch/core"
)

var errInvalidPeriod = errors.New("invalid period")

// StatusHandler serves the uptime, check-list and storage-info endpoints
type StatusHandler struct {
	app *core.App
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(app *core.App) *StatusHandler {
	return &StatusHandler{app: app}
}

// GetUptime handles GET /v1/uptime?check=&period=
func (h *StatusHandler) GetUptime(c *gin.Context) {
	checkName := c.Query("check")
	if checkName == "" {
		SendBadRequest(c, "check query parameter is required")
		return
	}

	period := c.DefaultQuery("period", "24h")
	window, err := parsePeriod(period)
	if err != nil {
		SendBadRequest(c, "period must be a duration like 24h, 7d or 30d")
		return
	}

	uptime, err := h.app.Storage().Uptime(checkName, window)
	if err != nil {
		SendInternalServerError(c, err)
		return
	}

	SendSuccess(c, KindUptime, UptimeResponse{
		CheckName:     checkName,
		Period:        period,
		UptimePercent: uptime * 100,
	}, nil)
}

// ListChecks handles GET /v1/checks
func (h *StatusHandler) ListChecks(c *gin.Context) {
	checks := h.app.Scheduler().Checks()
	statuses := make([]CheckStatusResponse, 0, len(checks))
	for _, check := range checks {
		entry := CheckStatusResponse{
			Name:            check.Name(),
			IntervalSeconds: int(check.Interval() / time.Second),
		}
		if last, ok := h.app.Scheduler().LastResult(check.Name()); ok {
			entry.LastStatus = string(last.Status)
			entry.LastError = last.ErrorMessage
			entry.LastDurationMS = last.DurationMS
			entry.LastRun = last.Timestamp
		}
		statuses = append(statuses, entry)
	}

	SendSuccess(c, KindCheckList, statuses, &ResponseMetadata{
		Total:       len(statuses),
		GeneratedAt: time.Now(),
	})
}

// GetStorageInfo handles GET /v1/storage/info
func (h *StatusHandler) GetStorageInfo(c *gin.Context) {
	SendSuccess(c, KindStorageInfo, h.app.Storage().GetStorageInfo(), nil)
}

// parsePeriod parses durations like "90m", "24h" plus a "d" suffix for days
func parsePeriod(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days < 1 {
			return 0, errInvalidPeriod
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errInvalidPeriod
	}
	return d, nil
}
