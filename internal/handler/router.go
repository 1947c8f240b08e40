package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/inkwell-press/editorial-api/internal/middleware"
	"github.com/inkwell-press/editorial-api/internal/models"
	"github.com/inkwell-press/editorial-api/internal/service"
	"github.com/inkwell-press/editorial-api/pkg/config"
	"github.com/inkwell-press/editorial-api/pkg/logger"
	corsmiddleware "github.com/inkwell-press/editorial-api/pkg/middleware/cors"
	reqidmiddleware "github.com/inkwell-press/editorial-api/pkg/middleware/requestid"
	"go.uber.org/zap"
)

// RouterDeps bundles everything the HTTP surface needs.
type RouterDeps struct {
	Config        *config.Config
	Logger        *zap.Logger
	Tokens        *service.TokenService
	Metrics       *service.MetricsService
	Submissions   *SubmissionHandler
	Workflow      *WorkflowHandler
	Assignments   *AssignmentHandler
	Plagiarism    *PlagiarismHandler
	Notifications *NotificationHandler
	Reports       *ReportHandler
}

// NewRouter assembles the gin engine with middleware and all route groups.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	metricsHandler := NewMetricsHandler(deps.Metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := deps.Config.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	api.Use(middleware.JWT(deps.Tokens))

	managerOnly := middleware.RequireRoles(models.RoleContentManager, models.RoleAdmin)

	submissions := api.Group("/submissions")
	{
		submissions.POST("", middleware.RequireRoles(models.RoleAuthor, models.RoleAdmin), deps.Submissions.Create)
		submissions.GET("", deps.Submissions.List)
		submissions.GET("/:id", deps.Submissions.Get)
		submissions.GET("/:id/timeline", deps.Submissions.Timeline)

		submissions.POST("/:id/transitions", deps.Workflow.Transition)

		submissions.PUT("/:id/reviewer", managerOnly, deps.Assignments.AssignReviewer)
		submissions.DELETE("/:id/reviewer", managerOnly, deps.Assignments.UnassignReviewer)
		submissions.PUT("/:id/editor", managerOnly, deps.Assignments.AssignEditor)
		submissions.DELETE("/:id/editor", managerOnly, deps.Assignments.UnassignEditor)

		submissions.POST("/:id/scans", managerOnly, deps.Plagiarism.RecordScan)
		submissions.GET("/:id/scans", managerOnly, deps.Plagiarism.History)
		submissions.POST("/:id/scans/verify", managerOnly, deps.Plagiarism.Verify)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", deps.Notifications.List)
		notifications.GET("/unread", deps.Notifications.CountUnread)
		notifications.PATCH("/:id/read", deps.Notifications.MarkRead)
	}
	api.POST("/messages", deps.Notifications.SendMessage)

	if deps.Reports != nil {
		api.GET("/reports/submissions", managerOnly, deps.Reports.Export)
	}

	api.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	return r
}
