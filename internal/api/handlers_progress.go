// handlers_progress.go - Job progress polling and SSE stream
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taxonomix/backend/internal/models"
)

const (
	defaultStreamInterval = 250 * time.Millisecond
	defaultStreamTimeout  = 5 * time.Minute
)

// ProgressHandlerImpl implements the ProgressHandler interface
type ProgressHandlerImpl struct {
	source   ProgressSource
	interval time.Duration
	timeout  time.Duration
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(source ProgressSource) *ProgressHandlerImpl {
	return &ProgressHandlerImpl{
		source:   source,
		interval: defaultStreamInterval,
		timeout:  defaultStreamTimeout,
	}
}

// WithStreamTiming overrides the SSE poll interval and overall timeout.
func (h *ProgressHandlerImpl) WithStreamTiming(interval, timeout time.Duration) *ProgressHandlerImpl {
	h.interval = interval
	h.timeout = timeout
	return h
}

// HandleProgress returns the current status of a job. Unknown ids are
// reported as pending.
func (h *ProgressHandlerImpl) HandleProgress(c echo.Context) error {
	id := c.Param("taskId")
	if id == "" {
		return NewValidationError("taskId")
	}

	p, err := h.source.Status(c.Request().Context(), id)
	if err != nil {
		return NewServiceUnavailableError("job store unavailable")
	}
	return c.JSON(http.StatusOK, p)
}

// HandleProgressStream streams job progress via SSE until the job finishes
func (h *ProgressHandlerImpl) HandleProgressStream(c echo.Context) error {
	id := c.Param("taskId")
	if id == "" {
		return NewValidationError("taskId")
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	if done := h.push(c, id); done {
		return nil
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	timeout := time.NewTimer(h.timeout)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			if done := h.push(c, id); done {
				return nil
			}
		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// push sends the current status and reports whether the stream should end.
func (h *ProgressHandlerImpl) push(c echo.Context, id string) bool {
	p, err := h.source.Status(c.Request().Context(), id)
	if err != nil {
		sendSSEError(c, "job store unavailable")
		return true
	}
	sendSSEData(c, p)
	return p.Status == models.JobStatusDone || p.Status == models.JobStatusError
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
