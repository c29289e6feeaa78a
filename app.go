package main

import (
	"context"
	"os"
	"sort"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"pdf-translator/internal/config"
	"pdf-translator/internal/failures"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/settings"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

// EventJobFinished is emitted to the frontend once per finished job.
const EventJobFinished = "pdf-job-finished"

// App struct holds the application state and all module dependencies
type App struct {
	ctx          context.Context
	config       *config.ConfigManager
	store        *settings.Store
	renderer     *pdf.Renderer
	cache        *translator.TranslationCache
	failures     *failures.Manager
	orchestrator *pipeline.Orchestrator

	// isWailsRuntime indicates if the app is running in a Wails environment
	// This is used to safely skip EventsEmit calls during tests
	isWailsRuntime bool

	// exitFunc terminates the process; tests replace it
	exitFunc func(code int)
}

// safeEmit safely emits an event to the frontend.
// It only emits events when running in a Wails environment.
func (a *App) safeEmit(eventName string, data ...interface{}) {
	if !a.isWailsRuntime {
		logger.Debug("event emit skipped (not in Wails runtime)",
			logger.String("event", eventName))
		return
	}
	runtime.EventsEmit(a.ctx, eventName, data...)
}

// SetWailsRuntime sets the Wails runtime flag.
// This should be called from main.go when the app is started in Wails mode.
func (a *App) SetWailsRuntime(isWails bool) {
	a.isWailsRuntime = isWails
}

// NewApp creates a new App application struct.
// Modules are created in startup once the configuration is known.
func NewApp() *App {
	return &App{exitFunc: os.Exit}
}

// NewAppWithConfig creates a new App with a custom config path.
// This is useful for testing or when a specific configuration location is needed.
func NewAppWithConfig(configPath string) (*App, error) {
	configMgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	return &App{config: configMgr, exitFunc: os.Exit}, nil
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods. It loads the configuration,
// opens the settings store and builds the translation pipeline.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	if a.config == nil {
		configMgr, err := config.NewConfigManager("")
		if err != nil {
			logger.Error("failed to create config manager", err)
			return
		}
		a.config = configMgr
	}

	if err := a.config.Load(); err != nil {
		logger.Warn("failed to load config, using defaults", logger.Err(err))
	}

	if err := logger.Init(a.config.LoggerConfig()); err != nil {
		logger.Warn("failed to initialize logger, keeping previous", logger.Err(err))
	}
	logger.Info("application starting up", logger.String("config", a.config.GetConfigPath()))

	// A malformed store still yields a usable empty store.
	store, _ := settings.NewStore(a.config.GetSettingsPath())
	a.store = store

	if mgr, err := failures.NewManager(a.config.GetFailuresDir()); err != nil {
		logger.Warn("failed to open failure records", logger.Err(err))
	} else {
		a.failures = mgr
	}

	a.buildPipeline()
	logger.Info("application startup complete")
}

// buildPipeline wires extractor, translator and renderer into the orchestrator.
func (a *App) buildPipeline() {
	var sender translator.Sender
	switch a.config.GetBackend() {
	case config.BackendEino:
		sender = translator.NewEinoSender(a.config.GetEndpointURL(), a.config.GetModel(), a.config.GetRequestTimeout())
	default:
		sender = translator.NewHTTPSender(a.config.GetEndpointURL(), a.config.GetRequestTimeout())
	}

	client := translator.NewClient(a.store, sender, a.config.GetModel())
	var tr pipeline.Translator = client
	if path := a.config.GetCachePath(); path != "" {
		a.cache = translator.NewTranslationCache(path)
		if err := a.cache.Load(); err != nil {
			logger.Warn("failed to load translation cache, starting empty", logger.Err(err))
		}
		tr = translator.NewCachedClient(client, a.cache)
	}

	a.renderer = pdf.NewRenderer(a.config.GetFontPath())
	p := pipeline.New(pdf.NewExtractor(), tr, a.renderer)
	a.orchestrator = pipeline.NewOrchestrator(p,
		pipeline.WithMaxConcurrency(a.config.GetMaxConcurrency()),
		pipeline.WithJobCallback(a.onJobFinished),
	)

	logger.Info("translation pipeline initialized",
		logger.String("backend", a.config.GetBackend()),
		logger.String("endpoint", a.config.GetEndpointURL()),
		logger.String("model", a.config.GetModel()),
		logger.String("font", a.config.GetFontPath()),
		logger.Int("maxConcurrency", a.config.GetMaxConcurrency()),
		logger.Bool("cache", a.cache != nil))
}

func (a *App) onJobFinished(batchID string, result types.PipelineResult) {
	if a.failures != nil {
		if err := a.failures.Track(batchID, result); err != nil {
			logger.Warn("failed to update failure records", logger.Err(err))
		}
	}
	a.safeEmit(EventJobFinished, map[string]interface{}{
		"batchId":    batchID,
		"index":      result.Index,
		"inputPath":  result.InputPath,
		"outputPath": result.OutputPath,
		"error":      result.Error,
		"code":       result.Code,
		"durationMs": result.DurationMs,
	})
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	logger.Info("application shutting down")
	if a.cache != nil {
		if err := a.cache.Save(); err != nil {
			logger.Warn("failed to save translation cache", logger.Err(err))
		} else {
			logger.Debug("translation cache saved",
				logger.String("path", a.cache.GetCachePath()),
				logger.Int("entries", a.cache.Size()))
		}
	}
	if err := logger.Close(); err != nil {
		logger.Warn("failed to close logger", logger.Err(err))
	}
}

func (a *App) ensureStarted() error {
	if a.orchestrator == nil {
		return types.NewAppError(types.ErrInternal, "application not started", nil)
	}
	return nil
}

func (a *App) context() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

// TranslateMultiplePDFs translates each PDF in pdfPaths into the file at the
// same position in outputPaths and returns the output paths in order.
// If any document fails, the error of the first failing document is returned.
func (a *App) TranslateMultiplePDFs(pdfPaths []string, outputPaths []string) ([]string, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	logger.Info("translating PDFs", logger.Int("count", len(pdfPaths)))
	return a.orchestrator.Run(a.context(), pdfPaths, outputPaths)
}

// TranslateMultiplePDFsDetailed translates like TranslateMultiplePDFs but
// reports the outcome of every document.
func (a *App) TranslateMultiplePDFsDetailed(pdfPaths []string, outputPaths []string) (*types.BatchResult, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	return a.orchestrator.RunDetailed(a.context(), pdfPaths, outputPaths)
}

// InspectPDF reports page count and validity of a PDF without translating it.
func (a *App) InspectPDF(path string) (*types.PDFInfo, error) {
	return pdf.Inspect(path)
}

// ExitApp terminates the application immediately with status 0.
func (a *App) ExitApp() {
	logger.Info("exit requested")
	a.shutdown(a.context())
	a.exitFunc(0)
}

// GetSettings returns the stored settings with the API key masked.
func (a *App) GetSettings() map[string]interface{} {
	out := map[string]interface{}{}
	if a.store == nil {
		return out
	}
	for _, key := range a.store.Keys() {
		v, _ := a.store.Get(key)
		if key == settings.KeyOpenAIAPIKey {
			if s, ok := v.(string); ok {
				v = maskKey(s)
			}
		}
		out[key] = v
	}
	return out
}

// SaveSettings stores the target language and API key used by later
// translations. An empty apiKey keeps the stored key.
func (a *App) SaveSettings(translateTo, apiKey string) error {
	if a.store == nil {
		return types.NewAppError(types.ErrInternal, "application not started", nil)
	}
	var err error
	if apiKey == "" {
		err = a.store.Set(settings.KeyTranslateTo, translateTo)
	} else {
		err = a.store.SetMany(map[string]interface{}{
			settings.KeyTranslateTo:  translateTo,
			settings.KeyOpenAIAPIKey: apiKey,
		})
	}
	if err != nil {
		logger.Error("failed to save settings", err)
		return err
	}
	logger.Info("settings saved", logger.String("translateTo", translateTo))
	return nil
}

// ClearAPIKey removes the stored API key. Later translations fail with
// CONFIG_KEY_MISSING until a new key is saved.
func (a *App) ClearAPIKey() error {
	if a.store == nil {
		return types.NewAppError(types.ErrInternal, "application not started", nil)
	}
	if err := a.store.Delete(settings.KeyOpenAIAPIKey); err != nil {
		logger.Error("failed to clear API key", err)
		return err
	}
	logger.Info("API key cleared")
	return nil
}

// ClearTranslationCache empties the translation cache and saves the empty
// cache file. It does nothing when caching is disabled.
func (a *App) ClearTranslationCache() error {
	if a.cache == nil {
		return nil
	}
	a.cache.Clear()
	logger.Info("translation cache cleared", logger.String("path", a.cache.GetCachePath()))
	return a.cache.Save()
}

// ListFailedPDFs returns the documents whose last translation failed.
func (a *App) ListFailedPDFs() []*failures.Record {
	if a.failures == nil {
		return nil
	}
	return a.failures.List()
}

// RetryFailedPDFs translates every recorded failure again, to the output path
// it was originally headed for.
func (a *App) RetryFailedPDFs() (*types.BatchResult, error) {
	if err := a.ensureStarted(); err != nil {
		return nil, err
	}
	if a.failures == nil {
		return &types.BatchResult{}, nil
	}

	records := a.failures.List()
	inputs := make([]string, len(records))
	outputs := make([]string, len(records))
	for i, r := range records {
		inputs[i], outputs[i] = r.InputPath, r.OutputPath
		if err := a.failures.IncrementRetry(r.InputPath, r.OutputPath); err != nil {
			logger.Warn("failed to count retry", logger.String("input", r.InputPath), logger.Err(err))
		}
	}
	logger.Info("retrying failed PDFs", logger.Int("count", len(records)))
	return a.orchestrator.RunDetailed(a.context(), inputs, outputs)
}

// ClearFailedPDFs forgets every recorded failure.
func (a *App) ClearFailedPDFs() error {
	if a.failures == nil {
		return nil
	}
	return a.failures.ClearAll()
}

// ExportFailedPDFs writes the input paths of every recorded failure to path,
// one per line.
func (a *App) ExportFailedPDFs(path string) error {
	if a.failures == nil {
		return types.NewAppError(types.ErrInternal, "failure records unavailable", nil)
	}
	if err := a.failures.ExportInputs(path); err != nil {
		logger.Error("failed to export failed PDFs", err, logger.String("path", path))
		return err
	}
	return nil
}

// OpenPDFDialog opens a file selection dialog for PDF files.
// Returns the selected paths, or nil if cancelled.
func (a *App) OpenPDFDialog() []string {
	selection, err := runtime.OpenMultipleFilesDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "选择 PDF 文件",
		Filters: []runtime.FileFilter{
			{DisplayName: "PDF 文件 (*.pdf)", Pattern: "*.pdf"},
			{DisplayName: "所有文件 (*.*)", Pattern: "*.*"},
		},
	})
	if err != nil {
		logger.Error("file dialog error", err)
		return nil
	}
	sort.Strings(selection)
	return selection
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) > 4 {
		return "********" + key[len(key)-4:]
	}
	return "********"
}
