// 每日风险预测
//
// 刷新课程基准后，用当前激活的模型为所有课程（或指定课程）重新打分，
// 结果写入 predictions 表。适合由 cron 每天执行一次。
//
// 用法: go run ./scripts/daily_prediction [-course course-v1:...]

package main

import (
	"context"
	"flag"
	"log"

	"dropout_risk_backend/internal/app"
	"dropout_risk_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	course := flag.String("course", "", "只预测该课程")
	skipBenchmarks := flag.Bool("skip-benchmarks", false, "不刷新课程基准")
	flag.Parse()

	_, services, closeFn, err := app.OpenServices(*configDir, false)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer closeFn()
	ctx := context.Background()

	if err := services.Training.LoadActive(ctx); err != nil {
		log.Fatalf("加载模型失败: %v", err)
	}

	if !*skipBenchmarks {
		if _, err := services.Benchmark.RefreshAll(ctx); err != nil {
			logger.Log.Warn("刷新课程基准失败", zap.Error(err))
		}
	}

	if *course != "" {
		predictions, err := services.Prediction.PredictCourse(ctx, *course)
		if err != nil {
			log.Fatalf("预测失败: %v", err)
		}
		log.Printf("课程 %s 预测完成，共 %d 名学生", *course, len(predictions))
		return
	}

	n, err := services.Prediction.PredictAll(ctx)
	if err != nil {
		log.Fatalf("预测失败: %v", err)
	}
	log.Printf("预测完成，共 %d 条记录", n)
}
