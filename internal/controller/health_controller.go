package controller

import (
	"net/http"

	"dropout_risk_backend/internal/service"
	"dropout_risk_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB          *gorm.DB
	Predictions *service.PredictionService
}

func NewHealthController(db *gorm.DB, predictions *service.PredictionService) *HealthController {
	return &HealthController{DB: db, Predictions: predictions}
}

// @Summary 健康检查
// @Description 检查数据库和预测模型状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.PingContext(ctx.Request.Context()); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	// 模型未加载时服务仍可用，只是无法预测
	modelStatus := gin.H{"status": "not_loaded"}
	if p, location, err := c.Predictions.Predictor(); err == nil {
		m := p.Model().Manifest
		modelStatus = gin.H{
			"status":    "loaded",
			"name":      m.Name,
			"version":   m.Version,
			"location":  location,
			"trainedAt": m.TrainedAt,
		}
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"model":    modelStatus,
		},
	})
}
