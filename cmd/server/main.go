package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taoyao-code/zvt-tap/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	"github.com/taoyao-code/zvt-tap/internal/logging"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径（默认读取 ZVT_CONFIG 或 configs/example.yaml）")
	showVersion := pflag.BoolP("version", "v", false, "显示版本信息")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("zvt-tap %s\n", bootstrap.Version)
		return
	}

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 启动
	if err := bootstrap.Run(cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
