package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"pdf-translator/internal/failures"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/server"
	"pdf-translator/internal/types"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
)

//go:embed all:frontend/dist
var assets embed.FS

// Command line flags
var (
	pdfFlag    = flag.String("pdf", "", "Comma-separated PDF files to translate")
	outputFlag = flag.String("output", "", "Comma-separated output paths, one per input PDF")
	configFlag = flag.String("config", "", "Configuration file path")
	serveFlag  = flag.Bool("serve", false, "Serve the HTTP API instead of starting the GUI")
	addrFlag   = flag.String("addr", "", "Listen address for --serve (default from config)")
	retryFlag  = flag.Bool("retry-failed", false, "Retry every previously failed PDF (CLI mode)")
	exportFlag = flag.String("export-failed", "", "Write the failed PDF paths to this file, one per line (CLI mode)")
	detailFlag = flag.Bool("detailed", false, "Report every document's outcome instead of stopping at the first failure (CLI mode)")
	cliFlag    = flag.Bool("cli", false, "Run in CLI mode without GUI")
)

// printHelp displays the help information for command line usage.
func printHelp() {
	fmt.Println("PDF Translator - 提取 PDF 文本，翻译后生成新的 PDF")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  pdf-translator [选项]")
	fmt.Println()
	fmt.Println("选项:")
	fmt.Println("  --pdf <A,B,...>       待翻译的 PDF 文件 (逗号分隔)")
	fmt.Println("  --output <A,B,...>    输出 PDF 路径 (逗号分隔，与 --pdf 一一对应；省略时生成 *_translated.pdf)")
	fmt.Println("  --config <PATH>       配置文件路径")
	fmt.Println("  --serve               以 HTTP 服务模式运行")
	fmt.Println("  --addr <ADDR>         HTTP 服务监听地址 (默认读取配置, 127.0.0.1:8080)")
	fmt.Println("  --detailed            输出每个文件的翻译结果 (用于 CLI 模式)")
	fmt.Println("  --retry-failed        重新翻译之前失败的文件 (用于 CLI 模式)")
	fmt.Println("  --export-failed <F>   将失败文件列表导出到 F，每行一个 (用于 CLI 模式)")
	fmt.Println("  --cli                 命令行模式运行 (不启动 GUI)")
	fmt.Println("  -h, --help            显示帮助信息")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  pdf-translator                                   # 启动 GUI 界面")
	fmt.Println("  pdf-translator --cli --pdf a.pdf,b.pdf --output a_fr.pdf,b_fr.pdf")
	fmt.Println("  pdf-translator --cli --pdf paper.pdf --detailed")
	fmt.Println("  pdf-translator --cli --retry-failed")
	fmt.Println("  pdf-translator --cli --export-failed failed.txt")
	fmt.Println("  pdf-translator --serve --addr 127.0.0.1:8080")
	fmt.Println()
	fmt.Println("说明:")
	fmt.Println("  目标语言与 API Key 从设置文件中读取 (TRANSLATE_TO, OPENAI_API_KEY)。")
	fmt.Println("  环境变量 PDFTRANS_* 可覆盖配置文件中的同名项。")
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// defaultOutputPaths derives "<name>_translated.pdf" next to each input.
func defaultOutputPaths(inputs []string) []string {
	outputs := make([]string, len(inputs))
	for i, in := range inputs {
		ext := filepath.Ext(in)
		outputs[i] = strings.TrimSuffix(in, ext) + "_translated.pdf"
	}
	return outputs
}

// PDFHandler serves local PDF files to the frontend for preview.
type PDFHandler struct{}

func (h *PDFHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/pdf/") {
		http.NotFound(w, r)
		return
	}

	// URL format: /pdf/C:/path/to/file.pdf or /pdf//path/to/file.pdf
	filePath, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/pdf/"))
	if err != nil || !strings.EqualFold(filepath.Ext(filePath), ".pdf") {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(filePath); err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, filePath)
}

func newApp() *App {
	if *configFlag == "" {
		return NewApp()
	}
	app, err := NewAppWithConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
	return app
}

func main() {
	flag.Usage = printHelp
	flag.Parse()

	if *cliFlag && *exportFlag != "" {
		os.Exit(runExportCLI(*exportFlag))
	}
	if *cliFlag && *retryFlag {
		os.Exit(runRetryCLI())
	}
	if *cliFlag {
		os.Exit(runTranslationCLI(splitList(*pdfFlag), splitList(*outputFlag), *detailFlag))
	}

	if *serveFlag {
		os.Exit(runServer(*addrFlag))
	}

	app := newApp()
	app.SetWailsRuntime(true)

	err := wails.Run(&options.App{
		Title:  "PDF 翻译",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Assets:  assets,
			Handler: &PDFHandler{},
		},
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// runTranslationCLI translates inputs in CLI mode and returns the exit code.
func runTranslationCLI(inputs, outputs []string, detailed bool) int {
	fmt.Println("=== PDF 翻译 (CLI 模式) ===")
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "错误: 未指定 --pdf")
		printHelp()
		return 1
	}
	if len(outputs) == 0 {
		outputs = defaultOutputPaths(inputs)
	}

	app := newApp()
	app.startup(context.Background())
	defer app.shutdown(context.Background())

	if app.config != nil {
		fmt.Printf("Endpoint: %s\n", app.config.GetEndpointURL())
		fmt.Printf("Model: %s\n", app.config.GetModel())
		fmt.Printf("Settings: %s\n", app.config.GetSettingsPath())
	}
	fmt.Printf("正在翻译 %d 个文件...\n", len(inputs))

	if detailed {
		batch, err := app.TranslateMultiplePDFsDetailed(inputs, outputs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
			return 1
		}
		printBatch(batch)
		if batch.Failed > 0 {
			return 1
		}
		return 0
	}

	paths, err := app.TranslateMultiplePDFs(inputs, outputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: 翻译失败 [%s]: %v\n", types.CodeOf(err), err)
		return 1
	}

	fmt.Println()
	fmt.Println("=== 翻译完成 ===")
	for i, p := range paths {
		fmt.Printf("%s -> %s\n", inputs[i], p)
	}
	return 0
}

// runRetryCLI retries the recorded failures and returns the exit code.
func runRetryCLI() int {
	fmt.Println("=== 重试失败文件 (CLI 模式) ===")
	app := newApp()
	app.startup(context.Background())
	defer app.shutdown(context.Background())

	failed := app.ListFailedPDFs()
	if len(failed) == 0 {
		fmt.Println("没有失败记录")
		return 0
	}
	for _, r := range failed {
		fmt.Printf("  %s -> %s [%s: %s, 已重试 %d 次]\n",
			r.InputPath, r.OutputPath, failures.GetStageDisplayName(r.Stage), r.Code, r.RetryCount)
	}

	batch, err := app.RetryFailedPDFs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	printBatch(batch)
	if batch.Failed > 0 {
		return 1
	}
	return 0
}

// runExportCLI writes the recorded failures to path and returns the exit code.
func runExportCLI(path string) int {
	app := newApp()
	app.startup(context.Background())
	defer app.shutdown(context.Background())

	if err := app.ExportFailedPDFs(path); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	fmt.Printf("已导出 %d 条失败记录到 %s\n", len(app.ListFailedPDFs()), path)
	return 0
}

func printBatch(batch *types.BatchResult) {
	fmt.Println()
	fmt.Printf("=== 批次 %s: 成功 %d, 失败 %d ===\n", batch.BatchID, batch.Succeeded, batch.Failed)
	for _, r := range batch.Results {
		if r.Succeeded() {
			fmt.Printf("  [OK]   %s -> %s (%d ms)\n", r.InputPath, r.OutputPath, r.DurationMs)
		} else {
			stage := failures.GetStageDisplayName(failures.StageOf(r.Code))
			fmt.Printf("  [FAIL] %s: %s [%s] %s\n", r.InputPath, stage, r.Code, r.Error)
		}
	}
}

// runServer serves the HTTP API until SIGINT or SIGTERM and returns the exit code.
func runServer(addr string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp()
	app.startup(ctx)
	defer app.shutdown(context.Background())

	if app.orchestrator == nil {
		fmt.Fprintln(os.Stderr, "错误: 初始化失败")
		return 1
	}
	if addr == "" {
		addr = app.config.GetServerAddr()
	}

	if err := server.New(app.orchestrator, pdf.Inspect).ListenAndServe(ctx, addr); err != nil {
		logger.Error("HTTP server failed", err, logger.String("addr", addr))
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
