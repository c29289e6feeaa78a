// Package failures keeps a persistent record of documents whose translation
// failed, so they can be listed and retried later.
package failures

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// FileName is the record file inside the manager's directory.
const FileName = "failures.json"

// Stage 出错阶段
type Stage string

const (
	StageValidation  Stage = "validation"  // 输入校验
	StageExtract     Stage = "extract"     // 文本提取
	StageTranslation Stage = "translation" // 翻译 (配置、网络、响应解析)
	StageRender      Stage = "render"      // PDF 生成
	StageInternal    Stage = "internal"    // 内部错误
)

// Record 失败记录
type Record struct {
	InputPath  string    `json:"input_path"`  // 输入 PDF
	OutputPath string    `json:"output_path"` // 目标输出路径，与 InputPath 共同作为唯一标识
	Stage      Stage     `json:"stage"`       // 出错阶段
	Code       string    `json:"code"`        // 错误码
	ErrorMsg   string    `json:"error_msg"`   // 错误信息
	BatchID    string    `json:"batch_id"`    // 所属批次
	Timestamp  time.Time `json:"timestamp"`   // 发生时间
	RetryCount int       `json:"retry_count"` // 重试次数
	LastRetry  time.Time `json:"last_retry"`  // 最后重试时间
}

// Manager 失败记录管理器
type Manager struct {
	baseDir string
	mu      sync.RWMutex
	records map[string]*Record // key: recordKey(InputPath, OutputPath)
}

func recordKey(inputPath, outputPath string) string {
	return inputPath + "\x00" + outputPath
}

// NewManager opens the records stored under baseDir, creating the directory.
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrWrite, "failed to create failures directory", baseDir, err)
	}

	m := &Manager{
		baseDir: baseDir,
		records: make(map[string]*Record),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// StageOf maps an error code to the pipeline stage that produces it.
func StageOf(code string) Stage {
	switch types.ErrorCode(code) {
	case types.ErrValidation:
		return StageValidation
	case types.ErrExtract:
		return StageExtract
	case types.ErrConfigKeyMissing, types.ErrConfigValueInvalid, types.ErrNetwork, types.ErrParseFailure:
		return StageTranslation
	case types.ErrFontLoad, types.ErrWrite:
		return StageRender
	default:
		return StageInternal
	}
}

// GetStageDisplayName 获取阶段的显示名称
func GetStageDisplayName(stage Stage) string {
	switch stage {
	case StageValidation:
		return "输入校验"
	case StageExtract:
		return "文本提取"
	case StageTranslation:
		return "翻译"
	case StageRender:
		return "PDF生成"
	case StageInternal:
		return "内部错误"
	default:
		return string(stage)
	}
}

// Track records a failed result or clears the record of a succeeded one.
func (m *Manager) Track(batchID string, result types.PipelineResult) error {
	if result.Succeeded() {
		return m.Remove(result.InputPath, result.OutputPath)
	}
	return m.Record(batchID, result)
}

// Record stores a failure, keeping the retry count of an earlier record for
// the same input and output.
func (m *Manager) Record(batchID string, result types.PipelineResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := &Record{
		InputPath:  result.InputPath,
		OutputPath: result.OutputPath,
		Stage:      StageOf(result.Code),
		Code:       result.Code,
		ErrorMsg:   result.Error,
		BatchID:    batchID,
		Timestamp:  time.Now(),
	}
	key := recordKey(result.InputPath, result.OutputPath)
	if existing, ok := m.records[key]; ok {
		record.RetryCount = existing.RetryCount
		record.LastRetry = existing.LastRetry
	}
	m.records[key] = record

	logger.Debug("failure recorded",
		logger.String("input", result.InputPath),
		logger.String("stage", string(record.Stage)))
	return m.save()
}

// IncrementRetry 增加重试次数
func (m *Manager) IncrementRetry(inputPath, outputPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[recordKey(inputPath, outputPath)]
	if !ok {
		return types.NewAppErrorWithDetails(types.ErrValidation, "failure record not found", inputPath, nil)
	}
	record.RetryCount++
	record.LastRetry = time.Now()
	return m.save()
}

// Remove 移除失败记录（翻译成功后）
func (m *Manager) Remove(inputPath, outputPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey(inputPath, outputPath)
	if _, ok := m.records[key]; !ok {
		return nil
	}
	delete(m.records, key)
	return m.save()
}

// Get 获取特定失败记录
func (m *Manager) Get(inputPath, outputPath string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[recordKey(inputPath, outputPath)]
	if !ok {
		return nil, false
	}
	recordCopy := *record
	return &recordCopy, true
}

// List returns copies of all records, oldest first.
func (m *Manager) List() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		recordCopy := *record
		records = append(records, &recordCopy)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			if records[i].InputPath == records[j].InputPath {
				return records[i].OutputPath < records[j].OutputPath
			}
			return records[i].InputPath < records[j].InputPath
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records
}

// ClearAll 清除所有失败记录
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]*Record)
	return m.save()
}

// ExportInputs writes the failed input paths to outputPath, one per line,
// sorted and without duplicates, so the list can be fed back to the CLI.
func (m *Manager) ExportInputs(outputPath string) error {
	m.mu.RLock()
	seen := make(map[string]bool, len(m.records))
	inputs := make([]string, 0, len(m.records))
	for _, record := range m.records {
		if !seen[record.InputPath] {
			seen[record.InputPath] = true
			inputs = append(inputs, record.InputPath)
		}
	}
	m.mu.RUnlock()

	sort.Strings(inputs)
	content := ""
	if len(inputs) > 0 {
		content = strings.Join(inputs, "\n") + "\n"
	}
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrWrite, "failed to export failed inputs", outputPath, err)
	}
	return nil
}

func (m *Manager) load() error {
	filePath := filepath.Join(m.baseDir, FileName)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to read failures file", filePath, err)
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to parse failures file", filePath, err)
	}
	for _, record := range records {
		m.records[recordKey(record.InputPath, record.OutputPath)] = record
	}
	return nil
}

// save must be called with mu held.
func (m *Manager) save() error {
	records := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to marshal failures", err)
	}

	filePath := filepath.Join(m.baseDir, FileName)
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrWrite, "failed to write failures file", filePath, err)
	}
	return nil
}
