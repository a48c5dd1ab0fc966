// 重新训练风险模型
//
// 读取所有有结课结果的学生快照，训练并评估新版本，注册到模型表。
// 默认激活新版本；运行中的服务通过 POST /api/models/reload 切换。
//
// 用法: go run ./scripts/retrain_model -version v2 [-activate=false] [-kfold]

package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"dropout_risk_backend/internal/app"
	"dropout_risk_backend/internal/service"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	name := flag.String("name", "", "模型名称，默认 model.active_name")
	version := flag.String("version", "", "模型版本，默认按时间生成；已存在的版本不会被覆盖")
	activate := flag.Bool("activate", true, "训练完成后激活该版本")
	kfold := flag.Bool("kfold", false, "训练前先做K折交叉验证，不稳定时中止")
	flag.Parse()

	_, services, closeFn, err := app.OpenServices(*configDir, false)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer closeFn()
	ctx := context.Background()

	if *kfold {
		res, err := services.Training.KFold(ctx, 0)
		if err != nil {
			log.Fatalf("K折验证失败: %v", err)
		}
		if res.Unstable {
			log.Fatalf("模型在各折间不稳定，已中止训练: %+v", res.Stability)
		}
		log.Printf("K折验证通过 (k=%d)", res.K)
	}

	out, err := services.Training.Train(ctx, service.TrainRequest{
		Name:     *name,
		Version:  *version,
		Activate: *activate,
	})
	if err != nil {
		log.Fatalf("训练失败: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal(err)
	}
}
