package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetNotifications(c *gin.Context) {
	items, err := h.wf.Notification.List(c.Request.Context(), actor(c),
		queryBool(c, "unreadOnly"), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) GetNotificationCounter(c *gin.Context) {
	n, err := h.wf.Notification.UnreadCount(c.Request.Context(), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := paramID(c, "notification_id")
	if !ok {
		return
	}
	if err := h.wf.Notification.MarkRead(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	if err := h.wf.Notification.MarkRead(c.Request.Context(), actor(c), 0); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
