package controllers

import (
	"log"
	"net/http"

	"stockwatch_backend/services/alertcheck"
	"stockwatch_backend/services/notify"
	"stockwatch_backend/services/runlog"

	"github.com/gin-gonic/gin"
)

// MonitorController exposes the alert monitoring pipeline over HTTP: the
// scheduler-invoked run endpoint, the run-history status endpoint, and the
// trigger-event stream.
type MonitorController struct {
	runner *alertcheck.Runner
	ledger *runlog.Ledger
	hub    *notify.Hub
}

// NewMonitorController creates a new monitor controller
func NewMonitorController(runner *alertcheck.Runner, ledger *runlog.Ledger, hub *notify.Hub) *MonitorController {
	return &MonitorController{
		runner: runner,
		ledger: ledger,
		hub:    hub,
	}
}

// RunCheck executes one monitoring pass. Invoked by the external scheduler.
func (mc *MonitorController) RunCheck(c *gin.Context) {
	result, err := mc.runner.Run(c.Request.Context())
	if mc.ledger != nil {
		mc.ledger.Record(result, err)
	}

	if err != nil {
		log.Printf("Alert run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"checked":     result.Checked,
		"triggered":   result.Triggered,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

// Status returns recent run summaries from the ledger.
func (mc *MonitorController) Status(c *gin.Context) {
	if mc.ledger == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"runs":    []runlog.Entry{},
		})
		return
	}

	entries, err := mc.ledger.Recent(20)
	if err != nil {
		log.Printf("Failed to read run ledger: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "internal error",
		})
		return
	}
	if entries == nil {
		entries = []runlog.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"runs":    entries,
	})
}

// Stream upgrades the connection to the trigger-event websocket stream.
func (mc *MonitorController) Stream(c *gin.Context) {
	if mc.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "event stream disabled",
		})
		return
	}
	mc.hub.HandleWebSocket(c.Writer, c.Request)
}
