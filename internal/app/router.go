package app

import (
	"journey_backend/docs"
	"journey_backend/internal/middleware"
	"journey_backend/internal/model"
	"journey_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	router.Use(middleware.ConfigMiddleware(a.CurrentConfig))

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware())
	{
		a.registerAssessmentRoutes(authGroup, c)

		// 上传文件按文件ID访问，评估范围在控制器中校验
		authGroup.DELETE("/uploads/:id", c.document.Remove)
		authGroup.GET("/uploads/:id/download", c.document.Download)
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(authGroup, c)

	// 4. 生成执行者回调
	a.registerRunnerRoutes(router, c)
}

func (a *App) registerAssessmentRoutes(rg *gin.RouterGroup, c *controllers) {
	assessment := rg.Group("/assessments/:id")
	assessment.Use(middleware.AssessmentScope("id"))
	{
		assessment.GET("", c.assessment.Get)
		assessment.GET("/journey", c.questionnaire.GetJourney)

		assessment.POST("/generation", middleware.RoleMiddleware(model.RoleAdmin), c.generation.Trigger)
		assessment.GET("/generation", c.generation.Status)

		assessment.GET("/questionnaire", c.questionnaire.Get)
		assessment.POST("/answers", c.questionnaire.SaveAnswer)
		assessment.POST("/submit", middleware.RoleMiddleware(model.RoleCustomer), c.questionnaire.Submit)

		assessment.GET("/uploads", c.document.List)
		assessment.POST("/uploads", c.document.Upload)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.RoleAdmin))
	{
		admin.POST("/assessments", c.assessment.Create)
		admin.GET("/assessments", c.assessment.List)
		admin.POST("/assessments/:id/approve", c.generation.Approve)
	}
}

func (a *App) registerRunnerRoutes(router *gin.Engine, c *controllers) {
	runner := router.Group("/internal/generation/:id")
	runner.Use(middleware.RunnerTokenMiddleware())
	{
		runner.POST("/complete", c.generation.Complete)
		runner.POST("/fail", c.generation.Fail)
	}
}

