package controller

import (
	"errors"
	"net/http"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/util"
	"dropout_risk_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps pipeline errors onto the response envelope.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ml.ErrDataUnavailable):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, ml.ErrModelVersionExists):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, ml.ErrInsufficientTrainingData):
		util.UnprocessableEntity(ctx, err.Error())
	case errors.Is(err, ml.ErrModelNotLoaded), ml.IsModelLoadError(err):
		logger.Log.Warn("预测模型不可用", zap.Error(err))
		util.ServiceUnavailable(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
