package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"journal-workflow-api/controllers"
	"journal-workflow-api/middleware"
)

// SetupRoutes registers every endpoint under /api/v1. auth guards all workflow routes.
func SetupRoutes(router *gin.Engine, h *controllers.Handler, auth gin.HandlerFunc) {
	v1 := router.Group("/api/v1")
	{
		public := v1.Group("")
		{
			public.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"status":  "ok",
					"message": "Journal Workflow API is running",
				})
			})
		}

		protected := v1.Group("")
		protected.Use(auth)
		{
			journals := protected.Group("/journals/:journal_id")
			{
				journals.GET("/capabilities", h.GetCapabilities)
				journals.GET("/submissions", h.ListSubmissions)
				journals.GET("/issues", h.ListIssues)
				journals.POST("/issues", h.CreateIssue)
			}

			submissions := protected.Group("/submissions")
			{
				submissions.POST("", h.CreateSubmission)
				submissions.GET("/:id", h.GetSubmission)
				submissions.POST("/:id/archive", h.ArchiveSubmission)
				submissions.GET("/:id/history", h.GetSubmissionHistory)

				submissions.GET("/:id/rounds", h.ListReviewRounds)
				submissions.POST("/:id/rounds", h.OpenReviewRound)

				submissions.GET("/:id/decisions", h.ListDecisions)
				submissions.POST("/:id/decisions", h.RecordDecision)

				submissions.GET("/:id/copyeditors", h.ListCopyeditors)
				submissions.POST("/:id/copyeditors", h.AssignCopyeditor)
				submissions.GET("/:id/versions", h.ListVersions)
				submissions.POST("/:id/versions", h.UploadVersion)
				submissions.PUT("/:id/author-approval", h.RecordAuthorApproval)
				submissions.PUT("/:id/schedule", h.ScheduleForIssue)

				submissions.GET("/:id/queries", h.ListQueries)
				submissions.POST("/:id/queries", h.OpenQuery)
			}

			rounds := protected.Group("/rounds/:round_id")
			{
				rounds.PATCH("/status", h.AdvanceReviewRound)
				rounds.GET("/assignments", h.ListRoundAssignments)
				rounds.POST("/assignments", h.AssignReviewer)
			}

			reviews := protected.Group("/reviews")
			{
				reviews.GET("/mine", h.ListMyReviews)
				reviews.POST("/:assignment_id/respond", h.RespondToReview)
				reviews.POST("/:assignment_id/complete", h.CompleteReview)
				reviews.POST("/:assignment_id/cancel", h.CancelReview)
			}

			queries := protected.Group("/queries/:query_id")
			{
				queries.POST("/notes", h.AddQueryNote)
				queries.POST("/close", h.CloseQuery)
			}

			protected.POST("/issues/:issue_id/release", h.ReleaseIssue)

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.GetNotifications)
				notifications.GET("/counter", h.GetNotificationCounter)
				notifications.PATCH("/:notification_id/read", h.MarkNotificationRead)
				notifications.PATCH("/mark-all-read", h.MarkAllNotificationsRead)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found", "code": "not_found"})
	})
}

type RouterOptions struct {
	Logger       *zap.Logger
	AllowOrigins []string
}

// NewRouter builds the engine with the standard middleware chain.
func NewRouter(h *controllers.Handler, auth gin.HandlerFunc, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(middleware.Recovery(opts.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(opts.AllowOrigins))
	SetupRoutes(router, h, auth)
	return router
}
