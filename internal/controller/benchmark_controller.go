package controller

import (
	"strconv"

	"dropout_risk_backend/internal/service"
	"dropout_risk_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type BenchmarkController struct {
	BenchmarkService *service.BenchmarkService
}

func NewBenchmarkController(benchmarkService *service.BenchmarkService) *BenchmarkController {
	return &BenchmarkController{BenchmarkService: benchmarkService}
}

// @Summary 课程基准
// @Tags 基准
// @Produce json
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=benchmark.CourseBenchmark}
// @Router /api/courses/{courseId}/benchmarks [get]
func (c *BenchmarkController) GetCourseBenchmark(ctx *gin.Context) {
	b, err := c.BenchmarkService.GetCourseBenchmark(ctx.Request.Context(), ctx.Param("courseId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, b)
}

func (c *BenchmarkController) RefreshCourseBenchmark(ctx *gin.Context) {
	b, err := c.BenchmarkService.RefreshCourse(ctx.Request.Context(), ctx.Param("courseId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, b)
}

func (c *BenchmarkController) RefreshAll(ctx *gin.Context) {
	all, err := c.BenchmarkService.RefreshAll(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"courses": len(all), "benchmarks": all})
}

// GetStudentComparison places a student against the course cohort.
func (c *BenchmarkController) GetStudentComparison(ctx *gin.Context) {
	userID, err := strconv.ParseUint(ctx.Param("userId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "无效的用户ID")
		return
	}
	cmp, err := c.BenchmarkService.CompareStudent(ctx.Request.Context(), ctx.Param("courseId"), uint(userID))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, cmp)
}
