package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"pdf-translator/internal/app"
	"pdf-translator/internal/config"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/server"
	"pdf-translator/internal/types"
)

// Command line flags
var (
	configFlag = flag.String("config", "", "Configuration file (.json or .toml), default ~/.config/pdftrans/"+config.DefaultConfigFileName)
	outputFlag = flag.String("o", "", "Output directory (overrides output_directory)")
	webFlag    = flag.Bool("web", false, "Start the HTTP server instead of translating files")
	addrFlag   = flag.String("addr", "", "HTTP listen address (overrides server_addr)")
	dataFlag   = flag.String("data", "", "Directory for uploads and results in web mode (default <output>/web)")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("pdftrans - 将扫描版中文 PDF 翻译成英文 PDF")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  pdftrans [选项] <input.pdf | 图片目录> ...")
	fmt.Println("  pdftrans -web [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Printf("  %s / %s   模型 API 密钥\n", config.EnvModelScopeAPIKey, config.EnvOpenAIAPIKey)
	fmt.Printf("  %s   模型 API 地址\n", config.EnvOpenAIBaseURL)
	fmt.Printf("  %s   DeepL 密钥 (translator = deepl)\n", config.EnvDeepLAPIKey)
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  pdftrans scan.pdf")
	fmt.Println("  pdftrans -o out ./pages")
	fmt.Println("  pdftrans -web -addr :8080")
	fmt.Println()
	fmt.Println("说明:")
	fmt.Println("  不提供输入文件时启动 HTTP 服务。")
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	// Console logging until the configured log file and level are known
	mgr, err := loadConfig(*configFlag, *outputFlag, logger.NewWriterLogger(os.Stderr, logger.LevelInfo))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := initLogging(mgr.GetConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	a, err := app.NewAppWithConfig(ctx, mgr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if types.HasCode(err, types.ErrConfig) {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n", mgr.GetConfigPath())
		}
		return 1
	}
	defer a.Shutdown()

	if *webFlag || flag.NArg() == 0 {
		return serve(ctx, a)
	}
	return translateFiles(ctx, a, flag.Args())
}

// loadConfig loads the configuration with bootstrap as the global logger and
// applies the output directory override.
func loadConfig(path, outputDir string, bootstrap logger.Logger) (*config.ConfigManager, error) {
	logger.SetGlobalLogger(bootstrap)

	mgr, err := config.NewConfigManager(path)
	if err != nil {
		return nil, err
	}
	if err := mgr.Load(); err != nil {
		return nil, err
	}
	if outputDir != "" {
		mgr.GetConfig().OutputDirectory = outputDir
	}
	return mgr, nil
}

// initLogging replaces the bootstrap logger with one built from cfg
func initLogging(cfg *types.Config) error {
	logConfig := logger.DefaultConfig()
	if cfg.LogFile != "" {
		logConfig.LogFilePath = cfg.LogFile
	}
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logConfig.Level = level
	}
	return logger.Init(logConfig)
}

func serve(ctx context.Context, a *app.App) int {
	addr := a.Config().ServerAddr
	if *addrFlag != "" {
		addr = *addrFlag
	}
	dataDir := *dataFlag
	if dataDir == "" {
		dataDir = filepath.Join(a.Config().OutputDirectory, "web")
	}

	fmt.Printf("Listening on %s\n", addr)
	if err := server.New(a.Pipeline(), dataDir).ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func translateFiles(ctx context.Context, a *app.App, inputs []string) int {
	failed := 0
	for _, input := range inputs {
		fmt.Printf("Translating %s\n", input)
		out, err := a.TranslateFile(ctx, input, "", printEvent)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", input, err)
			failed++
			if ctx.Err() != nil {
				break
			}
			continue
		}
		fmt.Printf("Done: %s\n", out)
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func printEvent(e pipeline.Event) {
	switch e.Stage {
	case pipeline.StageStarted:
		fmt.Printf("  %d pages\n", e.Total)
	case pipeline.StageComposited:
		fmt.Printf("  [%d/%d] page done\n", e.Page, e.Total)
	case pipeline.StageDegraded:
		fmt.Printf("  [%d/%d] warning: %s\n", e.Page, e.Total, e.Message)
	}
}
