package controller

import (
	"dropout_risk_backend/internal/service"
	"dropout_risk_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ModelController struct {
	TrainingService *service.TrainingService
}

func NewModelController(trainingService *service.TrainingService) *ModelController {
	return &ModelController{TrainingService: trainingService}
}

// swagger:model EvaluationRequest
type EvaluationRequest struct {
	K int `json:"k" binding:"omitempty,min=2,max=20"`
}

// Train godoc
// @Summary 训练风险模型
// @Description 使用全部有结课结果的数据训练模型，activate=true 时立即替换当前模型
// @Tags 模型
// @Accept json
// @Produce json
// @Param body body service.TrainRequest false "模型名称与版本"
// @Success 200 {object} util.Response{data=service.TrainOutcome}
// @Failure 409 {object} util.Response "版本已存在"
// @Failure 422 {object} util.Response "训练数据不足"
// @Router /api/models/train [post]
func (c *ModelController) Train(ctx *gin.Context) {
	var req service.TrainRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	out, err := c.TrainingService.Train(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}

// KFold godoc
// @Summary K折交叉验证
// @Tags 模型
// @Router /api/models/kfold [post]
func (c *ModelController) KFold(ctx *gin.Context) {
	k, ok := bindK(ctx)
	if !ok {
		return
	}
	res, err := c.TrainingService.KFold(ctx.Request.Context(), k)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// Compare godoc
// @Summary 多模型对比
// @Tags 模型
// @Router /api/models/compare [post]
func (c *ModelController) Compare(ctx *gin.Context) {
	k, ok := bindK(ctx)
	if !ok {
		return
	}
	res, err := c.TrainingService.Compare(ctx.Request.Context(), k)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

func (c *ModelController) GetActive(ctx *gin.Context) {
	entry, err := c.TrainingService.ActiveModel(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, entry)
}

// Reload reads the active model from the artifact store again.
func (c *ModelController) Reload(ctx *gin.Context) {
	if err := c.TrainingService.LoadActive(ctx.Request.Context()); err != nil {
		respondError(ctx, err)
		return
	}
	p, location, err := c.TrainingService.Predictions.Predictor()
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"manifest": p.Model().Manifest, "location": location})
}

func bindK(ctx *gin.Context) (int, bool) {
	var req EvaluationRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return 0, false
		}
	}
	return req.K, true
}
