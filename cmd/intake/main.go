// =============================================================================
// intake 主入口
// =============================================================================
// 完整服务入口点，包含 WebSocket 驱动网关、健康检查、Prometheus 指标
//
// 使用方法:
//
//	intake serve                        # 启动服务
//	intake serve --config config.yaml   # 指定配置文件
//	intake version                      # 显示版本信息
//	intake validate-config              # 校验配置文件
//	intake health                       # 健康检查
// =============================================================================

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/intake/config"
	"github.com/BaSui01/intake/internal/gateway"
	"github.com/BaSui01/intake/internal/metrics"
	"github.com/BaSui01/intake/internal/telemetry"
	"github.com/BaSui01/intake/session"
	"github.com/BaSui01/intake/store"
	"github.com/BaSui01/intake/tools"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "validate-config":
		runValidateConfig(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	// 初始化日志
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting intake",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	// Initialize OpenTelemetry
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	// Prometheus 指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector("intake", registry, logger)

	// 记录写入器
	writer := store.NewFileWriter(cfg.Storage.DataRoot, logger,
		store.WithUUIDSuffix(cfg.Storage.UUIDSuffix),
	)

	// 工具注册表
	toolRegistry := tools.NewRegistry(logger)
	for _, tool := range tools.All() {
		if err := toolRegistry.Register(tool); err != nil {
			logger.Fatal("tool registration failed", zap.Error(err))
		}
	}

	// 可选的记录台账
	execOpts := []tools.ExecutorOption{tools.WithCollector(collector)}
	var index *store.Index
	if cfg.Index.Enabled {
		index, err = store.OpenIndex(cfg.Index.Path, logger)
		if err != nil {
			logger.Warn("record index unavailable", zap.Error(err))
		} else {
			execOpts = append(execOpts, tools.WithIndex(index))
		}
	}

	executor := tools.NewExecutor(toolRegistry, writer, logger, execOpts...)

	// 槽位存储: 启用 Redis 时接 Redis，否则用内存实现
	var slots session.SlotStore = session.NewMemorySlotStore()
	if cfg.Redis.Enabled {
		redisSlots, err := session.DialSlotStore(cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis unavailable, falling back to memory slot store", zap.Error(err))
		} else {
			slots = redisSlots
			defer redisSlots.Close()
		}
	}

	// 会话管理器 + 网关
	manager := session.NewManager(cfg.Session, executor, logger,
		session.WithManagerSlotStore(slots),
		session.WithManagerCollector(collector),
	)

	gw := gateway.New(cfg.Server, manager, logger)
	if err := gw.Start(); err != nil {
		logger.Fatal("failed to start gateway", zap.Error(err))
	}

	// Metrics 端点
	metricsServer := startMetricsServer(cfg.Server.MetricsPort, registry, logger)

	// 等待关闭信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := gw.Shutdown(ctx); err != nil {
		logger.Error("gateway shutdown failed", zap.Error(err))
	}
	if err := manager.Shutdown(ctx); err != nil {
		logger.Error("session manager shutdown failed", zap.Error(err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", zap.Error(err))
	}
	if index != nil {
		if err := index.Close(); err != nil {
			logger.Error("index close failed", zap.Error(err))
		}
	}
	if err := otelProviders.Shutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	logger.Info("intake stopped")
}

// startMetricsServer 在独立端口暴露 /metrics
func startMetricsServer(port int, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return server
}

// =============================================================================
// 🔍 validate-config 命令
// =============================================================================

func runValidateConfig(args []string) {
	fs := flag.NewFlagSet("validate-config", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	fs.Parse(args)

	loadConfig(*configPath)
	fmt.Println("Config OK")
}

// loadConfig 加载并校验配置，失败时退出
func loadConfig(path string) *config.Config {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Gateway address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("intake %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`intake - voice-driven structured record intake service

Usage:
  intake <command> [options]

Commands:
  serve            Start the gateway and metrics servers
  validate-config  Load and validate a config file
  version          Show version information
  health           Check gateway health
  help             Show this help message

Options for 'serve' and 'validate-config':
  --config <path>   Path to configuration file (YAML)

Examples:
  intake serve
  intake serve --config /etc/intake/config.yaml
  intake validate-config --config config.yaml
  intake health --addr http://localhost:8080
  intake version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
