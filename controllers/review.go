package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"journal-workflow-api/services"
	"journal-workflow-api/utils"
)

func (h *Handler) OpenReviewRound(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Stage string `json:"stage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	stage, err := utils.ParseStage(req.Stage)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	round, err := h.wf.Rounds.OpenRound(c.Request.Context(), actor(c), submissionID, stage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "round": round})
}

func (h *Handler) ListReviewRounds(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	stage, err := utils.OptionalStage(c.Query("stage"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rounds, err := h.wf.Rounds.ListRounds(c.Request.Context(), actor(c), submissionID, stage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rounds": rounds})
}

func (h *Handler) AdvanceReviewRound(c *gin.Context) {
	roundID, ok := paramID(c, "round_id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	status, err := utils.ParseRoundStatus(req.Status)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	round, err := h.wf.Rounds.AdvanceRoundStatus(c.Request.Context(), actor(c), roundID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "round": round})
}

func (h *Handler) AssignReviewer(c *gin.Context) {
	roundID, ok := paramID(c, "round_id")
	if !ok {
		return
	}
	var req struct {
		SubmissionID int    `json:"submission_id" binding:"required"`
		ReviewerID   int    `json:"reviewer_id" binding:"required"`
		DateDue      string `json:"date_due"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	due, err := optionalDate(req.DateDue)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	assignment, err := h.wf.Assignments.Assign(c.Request.Context(), actor(c), services.AssignReviewerInput{
		SubmissionID:  req.SubmissionID,
		ReviewRoundID: roundID,
		ReviewerID:    req.ReviewerID,
		DateDue:       due,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "assignment": assignment})
}

func (h *Handler) ListRoundAssignments(c *gin.Context) {
	roundID, ok := paramID(c, "round_id")
	if !ok {
		return
	}
	rows, err := h.wf.Assignments.ListForRound(c.Request.Context(), actor(c), roundID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "assignments": rows})
}

// ListMyReviews returns the caller's review assignments.
func (h *Handler) ListMyReviews(c *gin.Context) {
	rows, err := h.wf.Assignments.ListForReviewer(c.Request.Context(), actor(c), queryBool(c, "active"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "assignments": rows})
}

func (h *Handler) RespondToReview(c *gin.Context) {
	assignmentID, ok := paramID(c, "assignment_id")
	if !ok {
		return
	}
	var req struct {
		Accept *bool `json:"accept" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	assignment, err := h.wf.Assignments.Respond(c.Request.Context(), actor(c), assignmentID, *req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "assignment": assignment})
}

func (h *Handler) CompleteReview(c *gin.Context) {
	assignmentID, ok := paramID(c, "assignment_id")
	if !ok {
		return
	}
	var req struct {
		Recommendation string `json:"recommendation" binding:"required"`
		Comments       string `json:"comments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	rec, err := utils.ParseRecommendation(req.Recommendation)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	assignment, err := h.wf.Assignments.Complete(c.Request.Context(), actor(c), assignmentID, services.CompleteReviewInput{
		Recommendation: rec,
		Comments:       utils.SanitizeText(req.Comments),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "assignment": assignment})
}

func (h *Handler) CancelReview(c *gin.Context) {
	assignmentID, ok := paramID(c, "assignment_id")
	if !ok {
		return
	}
	assignment, err := h.wf.Assignments.Cancel(c.Request.Context(), actor(c), assignmentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "assignment": assignment})
}
