// 多模型对比
//
// 在相同的分层K折上比较逻辑回归、随机森林、SVM 和梯度提升树，
// 输出每个模型的平均指标以及各指标的最佳模型。
//
// 用法: go run ./scripts/model_comparison [-k 5] [-out comparison.json]

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"dropout_risk_backend/internal/app"
	"dropout_risk_backend/internal/ml/evaluation"
	"dropout_risk_backend/internal/ml/metrics"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	k := flag.Int("k", 0, "折数，默认 model.k_folds")
	out := flag.String("out", "", "JSON 报告输出路径")
	flag.Parse()

	_, services, closeFn, err := app.OpenServices(*configDir, false)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer closeFn()

	cmp, err := services.Training.Compare(context.Background(), *k)
	if err != nil {
		log.Fatalf("模型对比失败: %v", err)
	}

	printComparison(cmp)
	if *out != "" {
		data, err := json.MarshalIndent(cmp, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(*out, data, 0644); err != nil {
			log.Fatalf("写入报告失败: %v", err)
		}
		log.Printf("报告已保存到 %s", *out)
	}
}

func printComparison(cmp *evaluation.Comparison) {
	fmt.Printf("%d models, %d-fold, %d rows (fail rate %.1f%%)\n\n", len(cmp.Models), cmp.K, cmp.Rows, cmp.FailRate*100)
	fmt.Printf("%-26s", "model")
	for _, name := range metrics.MetricNames {
		fmt.Printf(" %16s", name)
	}
	fmt.Println()
	for _, mr := range cmp.Models {
		fmt.Printf("%-26s", mr.Model)
		for _, name := range metrics.MetricNames {
			s := mr.Summary[name]
			fmt.Printf("  %.4f ± %.4f", s.Mean, s.Std)
		}
		fmt.Println()
	}
	fmt.Println()
	for _, name := range metrics.MetricNames {
		fmt.Printf("best %-10s %s\n", name, cmp.Best[name])
	}
}
