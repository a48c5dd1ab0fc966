// K折交叉验证
//
// 用配置中的超参数做分层K折验证，输出每折指标、均值/标准差和稳定性评级。
//
// 用法: go run ./scripts/kfold_evaluation [-k 10] [-out kfold.json]

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

	res, err := services.Training.KFold(context.Background(), *k)
	if err != nil {
		log.Fatalf("K折验证失败: %v", err)
	}

	printReport(res)
	if *out != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(*out, data, 0644); err != nil {
			log.Fatalf("写入报告失败: %v", err)
		}
		log.Printf("报告已保存到 %s", *out)
	}
}

func printReport(res *evaluation.KFoldResult) {
	fmt.Printf("%d-fold cross-validation on %d rows (fail rate %.1f%%)\n\n", res.K, res.Rows, res.FailRate*100)
	fmt.Printf("%-5s %8s %8s %8s %8s %8s\n", "fold", "auc", "acc", "prec", "recall", "f1")
	for _, f := range res.Folds {
		m := f.Metrics
		fmt.Printf("%-5d %8.4f %8.4f %8.4f %8.4f %8.4f\n", f.Fold, m.AUC, m.Accuracy, m.Precision, m.Recall, m.F1)
	}
	fmt.Println()
	for _, name := range metrics.MetricNames {
		s := res.Summary[name]
		fmt.Printf("%-10s %.4f ± %.4f  [%.4f, %.4f]  %s\n", name, s.Mean, s.Std, s.Min, s.Max, res.Stability[name])
	}
	if res.Unstable {
		fmt.Printf("\nWARNING: AUC std above %.2f, the model is unstable across folds\n", evaluation.UnstableAUCStd)
	}
}
