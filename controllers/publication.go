package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"journal-workflow-api/services"
	"journal-workflow-api/utils"
)

func (h *Handler) AssignCopyeditor(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		CopyeditorID int `json:"copyeditor_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	assignment, err := h.wf.Production.AssignCopyeditor(c.Request.Context(), actor(c), submissionID, req.CopyeditorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "assignment": assignment})
}

func (h *Handler) ListCopyeditors(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.wf.Production.ListCopyeditors(c.Request.Context(), actor(c), submissionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "assignments": rows})
}

// UploadVersion records a file version; the file itself lives in external storage.
func (h *Handler) UploadVersion(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		FileID      string `json:"file_id" binding:"required"`
		VersionType string `json:"version_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if !utils.ValidFileID(req.FileID) {
		badRequest(c, "Invalid file_id")
		return
	}
	versionType, err := utils.ParseFileVersionType(req.VersionType)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	version, err := h.wf.Production.UploadVersion(c.Request.Context(), actor(c), submissionID, req.FileID, versionType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "version": version})
}

func (h *Handler) ListVersions(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.wf.Production.ListVersions(c.Request.Context(), actor(c), submissionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "versions": rows})
}

func (h *Handler) RecordAuthorApproval(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Approved *bool  `json:"approved" binding:"required"`
		Comments string `json:"comments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	approval, err := h.wf.Production.RecordAuthorApproval(c.Request.Context(), actor(c), submissionID, *req.Approved, utils.SanitizeText(req.Comments))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "approval": approval})
}

func (h *Handler) ScheduleForIssue(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		IssueID         int    `json:"issue_id" binding:"required"`
		PublicationDate string `json:"publication_date" binding:"required"`
		ArticleOrder    int    `json:"article_order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	date, err := parseDate(req.PublicationDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	schedule, err := h.wf.Production.ScheduleForIssue(c.Request.Context(), actor(c), services.ScheduleInput{
		SubmissionID:    submissionID,
		IssueID:         req.IssueID,
		PublicationDate: date,
		ArticleOrder:    req.ArticleOrder,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "schedule": schedule})
}

func (h *Handler) CreateIssue(c *gin.Context) {
	journalID, ok := paramID(c, "journal_id")
	if !ok {
		return
	}
	var req struct {
		Volume        int    `json:"volume"`
		Number        string `json:"number"`
		Year          int    `json:"year" binding:"required"`
		Title         string `json:"title"`
		DateScheduled string `json:"date_scheduled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	scheduled, err := optionalDate(req.DateScheduled)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	issue, err := h.wf.Production.CreateIssue(c.Request.Context(), actor(c), services.CreateIssueInput{
		JournalID:     journalID,
		Volume:        req.Volume,
		Number:        req.Number,
		Year:          req.Year,
		Title:         utils.SanitizeText(req.Title),
		DateScheduled: scheduled,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "issue": issue})
}

func (h *Handler) ListIssues(c *gin.Context) {
	journalID, ok := paramID(c, "journal_id")
	if !ok {
		return
	}
	rows, err := h.wf.Production.ListIssues(c.Request.Context(), actor(c), journalID, queryBool(c, "unpublished"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "issues": rows})
}

// ReleaseIssue publishes an issue and its scheduled articles.
func (h *Handler) ReleaseIssue(c *gin.Context) {
	issueID, ok := paramID(c, "issue_id")
	if !ok {
		return
	}
	result, err := h.wf.Production.ReleaseIssue(c.Request.Context(), actor(c), issueID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}
