package app

import (
	"dropout_risk_backend/internal/config"
	"dropout_risk_backend/internal/middleware"
	"dropout_risk_backend/internal/model"
	"dropout_risk_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		// 教师相关接口
		a.registerTeacherRoutes(authGroup, c)

		// 管理员相关接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		courses := teacher.Group("/courses/:courseId")
		courses.GET("/predictions", c.prediction.GetCoursePredictions)
		courses.GET("/students/:userId/prediction", c.prediction.GetStudentPrediction)
		courses.GET("/students/:userId/comparison", c.benchmark.GetStudentComparison)
		courses.GET("/benchmarks", c.benchmark.GetCourseBenchmark)
		courses.POST("/benchmarks/refresh", c.benchmark.RefreshCourseBenchmark)

		teacher.GET("/models/active", c.model.GetActive)
	}
}

// Training jobs are CPU heavy and replace the model every teacher sees.
func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/models/train", c.model.Train)
		admin.POST("/models/kfold", c.model.KFold)
		admin.POST("/models/compare", c.model.Compare)
		admin.POST("/models/reload", c.model.Reload)
		admin.POST("/benchmarks/refresh", c.benchmark.RefreshAll)
	}
}
