package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/taoyao-code/v93xx-probe/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	"github.com/taoyao-code/v93xx-probe/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（默认 PROBE_CONFIG 或 configs/probe.yaml）")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动
	if err := bootstrap.Run(cfg, logger); err != nil {
		logger.Fatal("probe exited", zap.Error(err))
	}
}
