package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"pdf-translator/internal/settings"
	"pdf-translator/internal/translator"
	"pdf-translator/internal/types"
)

// newTestApp starts an App whose config, settings and log file live in a temp dir.
func newTestApp(t *testing.T, overrides map[string]interface{}) (*App, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := map[string]interface{}{
		"settings_path": filepath.Join(dir, "storeTradFile.json"),
		"log_file":      filepath.Join(dir, "app.log"),
		"failures_dir":  filepath.Join(dir, "failures"),
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "config.json")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	app, err := NewAppWithConfig(configPath)
	if err != nil {
		t.Fatalf("NewAppWithConfig() returned error: %v", err)
	}
	app.startup(context.Background())
	t.Cleanup(func() { app.shutdown(context.Background()) })
	return app, dir
}

func writeSamplePDF(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	for _, line := range lines {
		doc.CellFormat(0, 10, line, "", 1, "L", false, 0, "")
	}
	path := filepath.Join(dir, name)
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatalf("failed to write sample PDF: %v", err)
	}
	return path
}

func findFont(t *testing.T) string {
	t.Helper()
	for _, c := range []string{
		"fonts/LiberationSans-Regular.ttf",
		"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		"/usr/share/fonts/liberation/LiberationSans-Regular.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	} {
		if _, err := os.Stat(c); err == nil {
			abs, _ := filepath.Abs(c)
			return abs
		}
	}
	t.Skip("no TrueType font available on this machine")
	return ""
}

func codeOf(t *testing.T, err error) types.ErrorCode {
	t.Helper()
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	if app == nil {
		t.Fatal("NewApp() returned nil")
	}
	if app.exitFunc == nil {
		t.Error("exitFunc should default to os.Exit")
	}
}

func TestNewAppWithConfig(t *testing.T) {
	app, err := NewAppWithConfig(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("NewAppWithConfig() returned error: %v", err)
	}
	if app.config == nil {
		t.Fatal("App config should not be nil")
	}
}

func TestApp_Startup(t *testing.T) {
	app, dir := newTestApp(t, nil)

	if app.ctx == nil {
		t.Error("Context was not set")
	}
	if app.store == nil {
		t.Fatal("settings store should be initialized after startup")
	}
	if got := app.store.GetFilePath(); got != filepath.Join(dir, "storeTradFile.json") {
		t.Errorf("settings path = %q", got)
	}
	if app.orchestrator == nil {
		t.Error("orchestrator should be initialized after startup")
	}
	if app.renderer == nil {
		t.Error("renderer should be initialized after startup")
	}
}

func TestApp_StartupEinoBackend(t *testing.T) {
	app, _ := newTestApp(t, map[string]interface{}{"backend": "eino", "max_concurrency": 2})
	if app.orchestrator == nil {
		t.Fatal("orchestrator should be initialized with the eino backend")
	}
	if got := app.config.GetMaxConcurrency(); got != 2 {
		t.Errorf("max concurrency = %d, want 2", got)
	}
}

func TestApp_TranslationCacheSavedOnShutdown(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache", "translations.json")
	app, _ := newTestApp(t, map[string]interface{}{"cache_path": cachePath})
	if app.cache == nil {
		t.Fatal("translation cache should be enabled when cache_path is set")
	}
	app.cache.Set("French", "Hello", "Bonjour")
	app.shutdown(context.Background())

	if _, err := os.Stat(cachePath); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
}

func TestApp_ClearTranslationCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "translations.json")
	app, _ := newTestApp(t, map[string]interface{}{"cache_path": cachePath})
	app.cache.Set("French", "Hello", "Bonjour")

	if err := app.ClearTranslationCache(); err != nil {
		t.Fatalf("ClearTranslationCache failed: %v", err)
	}
	if app.cache.Size() != 0 {
		t.Errorf("cache size = %d, want 0", app.cache.Size())
	}
	reloaded := translator.NewTranslationCache(cachePath)
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	if reloaded.Size() != 0 {
		t.Errorf("persisted cache size = %d, want 0", reloaded.Size())
	}

	// Caching disabled: nothing to clear.
	plain, _ := newTestApp(t, nil)
	if err := plain.ClearTranslationCache(); err != nil {
		t.Errorf("ClearTranslationCache without cache: %v", err)
	}
}

func TestApp_TranslateBeforeStartup(t *testing.T) {
	app := NewApp()
	_, err := app.TranslateMultiplePDFs([]string{"a.pdf"}, []string{"b.pdf"})
	if code := codeOf(t, err); code != types.ErrInternal {
		t.Errorf("code = %s, want %s", code, types.ErrInternal)
	}
	if err := app.SaveSettings("French", "k"); err == nil {
		t.Error("SaveSettings before startup should fail")
	}
}

func TestApp_TranslateMultiplePDFs_MismatchedLengths(t *testing.T) {
	app, _ := newTestApp(t, nil)

	out, err := app.TranslateMultiplePDFs([]string{"a.pdf", "b.pdf"}, []string{"a_out.pdf"})
	if out != nil {
		t.Errorf("expected no outputs, got %v", out)
	}
	if code := codeOf(t, err); code != types.ErrValidation {
		t.Errorf("code = %s, want %s", code, types.ErrValidation)
	}
}

func TestApp_TranslateMultiplePDFs_MissingLanguage(t *testing.T) {
	var calls int32
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer endpoint.Close()

	app, dir := newTestApp(t, map[string]interface{}{"endpoint_url": endpoint.URL})
	input := writeSamplePDF(t, dir, "in.pdf", "Hello")

	_, err := app.TranslateMultiplePDFs([]string{input}, []string{filepath.Join(dir, "out.pdf")})
	if code := codeOf(t, err); code != types.ErrConfigKeyMissing {
		t.Errorf("code = %s, want %s", code, types.ErrConfigKeyMissing)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("endpoint should not be called without configuration")
	}
	if _, err := os.Stat(filepath.Join(dir, "out.pdf")); !os.IsNotExist(err) {
		t.Error("no output should be written on failure")
	}
}

func TestApp_TranslateMultiplePDFs_EndToEnd(t *testing.T) {
	font := findFont(t)
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Bonjour le monde"}}]}`))
	}))
	defer endpoint.Close()

	app, dir := newTestApp(t, map[string]interface{}{"endpoint_url": endpoint.URL, "font_path": font})
	if err := app.SaveSettings("French", "sk-test"); err != nil {
		t.Fatal(err)
	}

	inputs := []string{
		writeSamplePDF(t, dir, "a.pdf", "Hello world"),
		writeSamplePDF(t, dir, "b.pdf", "Good morning"),
	}
	outputs := []string{filepath.Join(dir, "a_fr.pdf"), filepath.Join(dir, "b_fr.pdf")}

	got, err := app.TranslateMultiplePDFs(inputs, outputs)
	if err != nil {
		t.Fatalf("TranslateMultiplePDFs() error: %v", err)
	}
	if !reflect.DeepEqual(got, outputs) {
		t.Errorf("outputs = %v, want %v", got, outputs)
	}
	for _, p := range outputs {
		if info, err := app.InspectPDF(p); err != nil || !info.Valid || info.PageCount < 1 {
			t.Errorf("InspectPDF(%s) = %+v, %v", p, info, err)
		}
	}

	batch, err := app.TranslateMultiplePDFsDetailed(inputs, outputs)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Succeeded != 2 || batch.Failed != 0 || batch.BatchID == "" {
		t.Errorf("batch = %+v", batch)
	}
}

func TestApp_FailuresRecordedAndRetried(t *testing.T) {
	var calls int32
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Bonjour"}}]}`))
	}))
	defer endpoint.Close()

	app, dir := newTestApp(t, map[string]interface{}{"endpoint_url": endpoint.URL})
	input := writeSamplePDF(t, dir, "in.pdf", "Hello")
	output := filepath.Join(dir, "out.pdf")

	batch, err := app.TranslateMultiplePDFsDetailed([]string{input}, []string{output})
	if err != nil {
		t.Fatal(err)
	}
	if batch.Failed != 1 || batch.Results[0].Code != string(types.ErrConfigKeyMissing) {
		t.Fatalf("batch = %+v", batch)
	}

	failed := app.ListFailedPDFs()
	if len(failed) != 1 || failed[0].InputPath != input || failed[0].OutputPath != output {
		t.Fatalf("ListFailedPDFs() = %+v", failed)
	}

	// Still unconfigured: the retry fails again and the count goes up.
	if _, err := app.RetryFailedPDFs(); err != nil {
		t.Fatal(err)
	}
	if failed = app.ListFailedPDFs(); len(failed) != 1 || failed[0].RetryCount != 1 {
		t.Errorf("after retry = %+v", failed)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("endpoint should not be called without configuration")
	}

	exportPath := filepath.Join(dir, "failed.txt")
	if err := app.ExportFailedPDFs(exportPath); err != nil {
		t.Fatalf("ExportFailedPDFs failed: %v", err)
	}
	if data, _ := os.ReadFile(exportPath); strings.TrimSpace(string(data)) != input {
		t.Errorf("exported %q, want %q", data, input)
	}

	if err := app.ClearFailedPDFs(); err != nil {
		t.Fatal(err)
	}
	if got := app.ListFailedPDFs(); len(got) != 0 {
		t.Errorf("after clear = %+v", got)
	}
}

func TestApp_SaveAndGetSettings(t *testing.T) {
	app, dir := newTestApp(t, nil)

	if err := app.SaveSettings("German", "sk-abcdef1234"); err != nil {
		t.Fatal(err)
	}
	got := app.GetSettings()
	if got[settings.KeyTranslateTo] != "German" {
		t.Errorf("TRANSLATE_TO = %v", got[settings.KeyTranslateTo])
	}
	if got[settings.KeyOpenAIAPIKey] != "********1234" {
		t.Errorf("OPENAI_API_KEY should be masked, got %v", got[settings.KeyOpenAIAPIKey])
	}

	// An empty key keeps the stored one.
	if err := app.SaveSettings("Spanish", ""); err != nil {
		t.Fatal(err)
	}
	reopened, err := settings.NewStore(filepath.Join(dir, "storeTradFile.json"))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := reopened.Get(settings.KeyOpenAIAPIKey); v != "sk-abcdef1234" {
		t.Errorf("persisted key = %v", v)
	}
	if v, _ := reopened.Get(settings.KeyTranslateTo); v != "Spanish" {
		t.Errorf("persisted language = %v", v)
	}

	if err := app.ClearAPIKey(); err != nil {
		t.Fatal(err)
	}
	if _, ok := app.GetSettings()[settings.KeyOpenAIAPIKey]; ok {
		t.Error("API key should be gone after ClearAPIKey")
	}
	if got := app.GetSettings()[settings.KeyTranslateTo]; got != "Spanish" {
		t.Errorf("ClearAPIKey should keep the language, got %v", got)
	}
}

func TestApp_ExitApp(t *testing.T) {
	app := NewApp()
	code := -1
	app.exitFunc = func(c int) { code = c }

	app.ExitApp()
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "********"},
		{"sk-12345678", "********5678"},
	}
	for _, tt := range tests {
		if got := maskKey(tt.in); got != tt.want {
			t.Errorf("maskKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a.pdf", []string{"a.pdf"}},
		{"a.pdf, b.pdf,,", []string{"a.pdf", "b.pdf"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultOutputPaths(t *testing.T) {
	got := defaultOutputPaths([]string{"docs/a.pdf", "b"})
	want := []string{"docs/a_translated.pdf", "b_translated.pdf"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("defaultOutputPaths() = %v, want %v", got, want)
	}
}

func TestPDFHandler(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeSamplePDF(t, dir, "preview.pdf", "x")
	textPath := filepath.Join(dir, "notes.txt")
	os.WriteFile(textPath, []byte("secret"), 0644)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"pdf", "/pdf/" + filepath.ToSlash(pdfPath), http.StatusOK},
		{"missing", "/pdf/" + filepath.ToSlash(filepath.Join(dir, "none.pdf")), http.StatusNotFound},
		{"not a pdf", "/pdf/" + filepath.ToSlash(textPath), http.StatusNotFound},
		{"other prefix", "/assets/app.js", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			(&PDFHandler{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
