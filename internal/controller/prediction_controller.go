package controller

import (
	"encoding/json"
	"errors"
	"strconv"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/ml/predictor"
	"dropout_risk_backend/internal/model"
	"dropout_risk_backend/internal/service"
	"dropout_risk_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PredictionController struct {
	PredictionService *service.PredictionService
}

func NewPredictionController(predictionService *service.PredictionService) *PredictionController {
	return &PredictionController{PredictionService: predictionService}
}

// PredictionView is a stored prediction with its suggestions decoded.
type PredictionView struct {
	model.Prediction
	Suggestions []predictor.Suggestion `json:"suggestions"`
}

func toView(p *model.Prediction) PredictionView {
	v := PredictionView{Prediction: *p}
	if p.Suggestions != "" {
		_ = json.Unmarshal([]byte(p.Suggestions), &v.Suggestions)
	}
	return v
}

func refreshRequested(ctx *gin.Context) bool {
	refresh, _ := strconv.ParseBool(ctx.DefaultQuery("refresh", "false"))
	return refresh
}

// GetCoursePredictions godoc
// @Summary 课程风险预测
// @Description 返回课程内每个学生的最新风险预测，refresh=true 时重新打分
// @Tags 预测
// @Produce json
// @Param courseId path string true "课程ID"
// @Param refresh query bool false "是否重新预测"
// @Success 200 {object} util.Response{data=[]PredictionView}
// @Failure 404 {object} util.Response "课程无数据"
// @Failure 503 {object} util.Response "模型未加载"
// @Router /api/courses/{courseId}/predictions [get]
func (c *PredictionController) GetCoursePredictions(ctx *gin.Context) {
	courseID := ctx.Param("courseId")
	reqCtx := ctx.Request.Context()

	var (
		predictions []model.Prediction
		err         error
	)
	if !refreshRequested(ctx) {
		predictions, err = c.PredictionService.LatestForCourse(reqCtx, courseID)
	}
	// 没有历史预测时直接打分
	if refreshRequested(ctx) || errors.Is(err, ml.ErrDataUnavailable) {
		predictions, err = c.PredictionService.PredictCourse(reqCtx, courseID)
	}
	if err != nil {
		respondError(ctx, err)
		return
	}

	views := make([]PredictionView, len(predictions))
	summary := map[model.RiskLevel]int{model.RiskHigh: 0, model.RiskMedium: 0, model.RiskLow: 0}
	for i := range predictions {
		views[i] = toView(&predictions[i])
		summary[predictions[i].RiskLevel]++
	}
	util.Success(ctx, gin.H{
		"courseId":    courseID,
		"total":       len(views),
		"summary":     summary,
		"predictions": views,
	})
}

// GetStudentPrediction returns the latest prediction of one student,
// scoring the student when none is stored or refresh=true.
func (c *PredictionController) GetStudentPrediction(ctx *gin.Context) {
	courseID := ctx.Param("courseId")
	userID, err := strconv.ParseUint(ctx.Param("userId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "无效的用户ID")
		return
	}
	reqCtx := ctx.Request.Context()

	var p *model.Prediction
	if !refreshRequested(ctx) {
		p, err = c.PredictionService.PredictionRepo.FindLatest(reqCtx, uint(userID), courseID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			util.LogInternalError(ctx, err)
			return
		}
	}
	if p == nil {
		p, err = c.PredictionService.PredictStudent(reqCtx, courseID, uint(userID))
		if err != nil {
			respondError(ctx, err)
			return
		}
	}
	util.Success(ctx, toView(p))
}
