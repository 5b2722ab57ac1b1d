package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"journal-workflow-api/services"
	"journal-workflow-api/utils"
)

// RecordDecision handles an editor's decision on a submission.
func (h *Handler) RecordDecision(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Stage       string `json:"stage" binding:"required"`
		RoundNumber int    `json:"round_number"`
		Decision    string `json:"decision" binding:"required"`
		Comments    string `json:"comments"`
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
	decision, err := utils.ParseDecision(req.Decision)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.wf.Decisions.RecordDecision(c.Request.Context(), actor(c), services.DecisionInput{
		SubmissionID: submissionID,
		Stage:        stage,
		RoundNumber:  req.RoundNumber,
		Decision:     decision,
		Comments:     utils.SanitizeText(req.Comments),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (h *Handler) ListDecisions(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.wf.Decisions.ListDecisions(c.Request.Context(), actor(c), submissionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "decisions": rows})
}
