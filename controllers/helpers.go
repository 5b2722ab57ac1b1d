package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"journal-workflow-api/middleware"
	"journal-workflow-api/services"
)

// Handler exposes the workflow services over HTTP.
type Handler struct {
	wf *services.Workflow
}

func NewHandler(wf *services.Workflow) *Handler {
	return &Handler{wf: wf}
}

var kindStatus = map[services.ErrorKind]int{
	services.KindUnauthorized:      http.StatusUnauthorized,
	services.KindForbidden:         http.StatusForbidden,
	services.KindNotFound:          http.StatusNotFound,
	services.KindConflict:          http.StatusConflict,
	services.KindInvalidTransition: http.StatusBadRequest,
	services.KindValidation:        http.StatusBadRequest,
}

// respondError writes a workflow error as {"error", "code"}; anything else is a 500.
func respondError(c *gin.Context, err error) {
	if we, ok := services.AsWorkflowError(err); ok {
		status, known := kindStatus[we.Kind]
		if !known {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": we.Message, "code": we.Reason})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "invalid_request"})
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func queryBool(c *gin.Context, name string) bool {
	raw := strings.TrimSpace(c.Query(name))
	return raw == "1" || strings.EqualFold(raw, "true")
}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errors.New("dates must be YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}

func optionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func actor(c *gin.Context) services.Actor {
	return middleware.ActorFrom(c)
}
