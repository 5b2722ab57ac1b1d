package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"journal-workflow-api/services"
	"journal-workflow-api/utils"
)

func (h *Handler) OpenQuery(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Stage          string `json:"stage" binding:"required"`
		Subject        string `json:"subject" binding:"required"`
		ParticipantIDs []int  `json:"participant_ids"`
		Note           string `json:"note"`
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

	query, err := h.wf.Discussions.OpenQuery(c.Request.Context(), actor(c), services.OpenQueryInput{
		SubmissionID:   submissionID,
		Stage:          stage,
		Subject:        utils.SanitizeText(req.Subject),
		ParticipantIDs: req.ParticipantIDs,
		FirstNote:      utils.SanitizeText(req.Note),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "query": query})
}

func (h *Handler) ListQueries(c *gin.Context) {
	submissionID, ok := paramID(c, "id")
	if !ok {
		return
	}
	stage, err := utils.OptionalStage(c.Query("stage"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	rows, err := h.wf.Discussions.ListQueries(c.Request.Context(), actor(c), submissionID, stage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "queries": rows})
}

func (h *Handler) AddQueryNote(c *gin.Context) {
	queryID, ok := paramID(c, "query_id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	note, err := h.wf.Discussions.AddNote(c.Request.Context(), actor(c), queryID, utils.SanitizeText(req.Content))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "note": note})
}

func (h *Handler) CloseQuery(c *gin.Context) {
	queryID, ok := paramID(c, "query_id")
	if !ok {
		return
	}
	query, err := h.wf.Discussions.CloseQuery(c.Request.Context(), actor(c), queryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "query": query})
}
