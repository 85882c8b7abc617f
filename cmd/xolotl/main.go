package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xolotl-project/xolotl/internal/apihandler"
	"github.com/xolotl-project/xolotl/internal/config"
	"github.com/xolotl-project/xolotl/internal/dnsserver"
	"github.com/xolotl-project/xolotl/pkg/registry/memory"
)

var (
	logger     config.Logger
	configFile string
	appConfig  *config.Config
)

func init() {
	// 解析命令行参数
	flag.StringVar(&configFile, "config", "", "配置文件路径")
}

func main() {
	flag.Parse()

	// 加载配置
	var err error
	appConfig, err = config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger, err = config.NewLogger(appConfig.Log.Level, appConfig.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	// 打印启动信息
	logger.Info("Xolotl Service Directory Starting...",
		zap.String("version", "0.1.0"),
		zap.Int("api_port", appConfig.Server.Port),
		zap.Bool("dns_enabled", appConfig.DNS.Enabled),
	)

	// 创建内存注册表，显式注入各传输层
	reg := memory.NewRegistry()

	// 启动HTTP API服务
	apiServer := apihandler.NewServer(appConfig, logger, reg)
	if err := apiServer.Start(); err != nil {
		logger.Fatal("启动API服务失败", zap.Error(err))
	}

	// 按配置启动DNS服务
	var dnsServer *dnsserver.Server
	if appConfig.DNS.Enabled {
		dnsServer = dnsserver.NewServer(appConfig, logger, reg)
		if err := dnsServer.Start(); err != nil {
			logger.Fatal("启动DNS服务失败", zap.Error(err))
		}
	}

	// 等待信号以优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("接收到关闭信号，正在优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if dnsServer != nil {
		if err := dnsServer.Stop(); err != nil {
			logger.Error("关闭DNS服务失败", zap.Error(err))
		}
	}

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("关闭API服务失败", zap.Error(err))
	}
}
