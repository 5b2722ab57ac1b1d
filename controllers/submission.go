package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"journal-workflow-api/services"
	"journal-workflow-api/utils"
)

// CreateSubmission registers a manuscript for the caller.
func (h *Handler) CreateSubmission(c *gin.Context) {
	var req struct {
		JournalID int    `json:"journal_id" binding:"required"`
		Title     string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	sub, err := h.wf.Submissions.Create(c.Request.Context(), actor(c), services.CreateSubmissionInput{
		JournalID: req.JournalID,
		Title:     utils.SanitizeText(req.Title),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "submission": sub})
}

func (h *Handler) GetSubmission(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sub, err := h.wf.Submissions.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submission": sub})
}

// ListSubmissions lists a journal's submissions with optional status and stage filters.
func (h *Handler) ListSubmissions(c *gin.Context) {
	journalID, ok := paramID(c, "journal_id")
	if !ok {
		return
	}
	status, err := utils.OptionalSubmissionStatus(c.Query("status"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	stage, err := utils.OptionalStage(c.Query("stage"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	subs, total, err := h.wf.Submissions.List(c.Request.Context(), actor(c), journalID, services.SubmissionFilter{
		Status: status,
		Stage:  stage,
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submissions": subs, "total": total})
}

func (h *Handler) ArchiveSubmission(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sub, err := h.wf.Submissions.Archive(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submission": sub})
}

func (h *Handler) GetSubmissionHistory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.wf.Submissions.History(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": rows})
}

// GetCapabilities reports what the caller may do in a journal.
func (h *Handler) GetCapabilities(c *gin.Context) {
	journalID, ok := paramID(c, "journal_id")
	if !ok {
		return
	}
	caps, err := h.wf.Guard.Capabilities(c.Request.Context(), actor(c), journalID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "capabilities": caps})
}
