// Package types defines core data types and error codes for the PDF translator application.
package types

import "errors"

// Config 应用配置
type Config struct {
	SettingsPath          string `json:"settings_path" mapstructure:"settings_path"`     // key-value store 文件路径
	EndpointURL           string `json:"endpoint_url" mapstructure:"endpoint_url"`       // chat completions 接口地址
	Model                 string `json:"model" mapstructure:"model"`                     // 翻译模型
	Backend               string `json:"backend" mapstructure:"backend"`                 // "http" 或 "eino"
	FontPath              string `json:"font_path" mapstructure:"font_path"`             // 渲染字体 (TTF)
	MaxConcurrency        int    `json:"max_concurrency" mapstructure:"max_concurrency"` // 0 表示不限制
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	LogFile               string `json:"log_file" mapstructure:"log_file"`
	LogLevel              string `json:"log_level" mapstructure:"log_level"`
	LogFormat             string `json:"log_format" mapstructure:"log_format"` // "text" 或 "json"
	LogConsole            bool   `json:"log_console" mapstructure:"log_console"`
	ServerAddr            string `json:"server_addr" mapstructure:"server_addr"`
	CachePath             string `json:"cache_path" mapstructure:"cache_path"` // 为空表示不缓存翻译结果
	FailuresDir           string `json:"failures_dir" mapstructure:"failures_dir"` // 失败记录目录
}

// TranslationJob 单个文档的翻译任务
type TranslationJob struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
}

// PipelineResult 单个任务的执行结果
type PipelineResult struct {
	Index      int    `json:"index"`
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Succeeded reports whether the job produced its output document.
func (r PipelineResult) Succeeded() bool {
	return r.Error == ""
}

// BatchResult 批量翻译的完整结果
type BatchResult struct {
	BatchID   string           `json:"batch_id"`
	Results   []PipelineResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// PDFInfo PDF 基本信息
type PDFInfo struct {
	Path      string `json:"path"`
	PageCount int    `json:"page_count"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrValidation         ErrorCode = "VALIDATION_ERROR"
	ErrExtract            ErrorCode = "EXTRACT_ERROR"
	ErrConfigKeyMissing   ErrorCode = "CONFIG_KEY_MISSING"
	ErrConfigValueInvalid ErrorCode = "CONFIG_VALUE_INVALID"
	ErrNetwork            ErrorCode = "NETWORK_ERROR"
	ErrParseFailure       ErrorCode = "PARSE_FAILURE"
	ErrFontLoad           ErrorCode = "FONT_LOAD_ERROR"
	ErrWrite              ErrorCode = "WRITE_ERROR"
	ErrConfig             ErrorCode = "CONFIG_ERROR"
	ErrInternal           ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error renders message, details and cause joined by ": ".
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// CodeOf returns the ErrorCode carried by err, or ErrInternal when err is
// not (and does not wrap) an *AppError.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
