package translator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// cacheFileVersion 缓存文件格式版本
const cacheFileVersion = "1.0"

// CacheEntry 缓存条目
type CacheEntry struct {
	Hash        string    `json:"hash"`
	Language    string    `json:"language"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

type cacheFile struct {
	Version string       `json:"version"`
	Entries []CacheEntry `json:"entries"`
}

// TranslationCache 负责缓存翻译结果，按 (目标语言, 原文) 索引
type TranslationCache struct {
	cachePath string
	cache     map[string]CacheEntry // hash -> CacheEntry
	mu        sync.RWMutex
}

// NewTranslationCache 创建新的翻译缓存实例。cachePath 为空时仅在内存中缓存。
func NewTranslationCache(cachePath string) *TranslationCache {
	return &TranslationCache{
		cachePath: cachePath,
		cache:     make(map[string]CacheEntry),
	}
}

// ComputeHash 计算 (语言, 文本) 的 SHA256 哈希
func ComputeHash(language, text string) string {
	h := sha256.New()
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Get 获取缓存的翻译
func (c *TranslationCache) Get(language, text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[ComputeHash(language, text)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set 设置翻译缓存
func (c *TranslationCache) Set(language, text, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := ComputeHash(language, text)
	c.cache[hash] = CacheEntry{
		Hash:        hash,
		Language:    language,
		Translation: translation,
		CreatedAt:   time.Now(),
	}
}

// Load 从文件加载缓存。文件不存在时保持空缓存。
func (c *TranslationCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachePath == "" {
		return nil
	}

	data, err := os.ReadFile(c.cachePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to read cache file", c.cachePath, err)
	}

	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		return types.NewAppErrorWithDetails(types.ErrInternal, "failed to parse cache file", c.cachePath, err)
	}

	c.cache = make(map[string]CacheEntry, len(f.Entries))
	for _, entry := range f.Entries {
		c.cache[entry.Hash] = entry
	}
	return nil
}

// Save 保存缓存到文件
func (c *TranslationCache) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachePath == "" {
		return nil
	}

	f := cacheFile{Version: cacheFileVersion, Entries: make([]CacheEntry, 0, len(c.cache))}
	for _, entry := range c.cache {
		f.Entries = append(f.Entries, entry)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to marshal cache", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0755); err != nil {
		return types.NewAppErrorWithDetails(types.ErrWrite, "failed to create cache directory", c.cachePath, err)
	}
	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrWrite, "failed to write cache file", c.cachePath, err)
	}
	return nil
}

// Size 返回缓存中的条目数量
func (c *TranslationCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear 清空缓存
func (c *TranslationCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]CacheEntry)
}

// GetCachePath 返回缓存文件路径
func (c *TranslationCache) GetCachePath() string {
	return c.cachePath
}

// CachedClient serves repeated translations from a TranslationCache and
// delegates misses to a Client.
type CachedClient struct {
	client *Client
	cache  *TranslationCache
}

// NewCachedClient wraps client with cache.
func NewCachedClient(client *Client, cache *TranslationCache) *CachedClient {
	return &CachedClient{client: client, cache: cache}
}

// Translate validates the configuration exactly as Client does, so a missing
// or malformed key fails even when the text is cached. The placeholder for an
// empty reply is never cached.
func (c *CachedClient) Translate(ctx context.Context, text string) (string, error) {
	cfg, err := LoadConfig(c.client.provider)
	if err != nil {
		return "", err
	}

	if translated, ok := c.cache.Get(cfg.TargetLanguage, text); ok {
		logger.Debug("translation served from cache", logger.String("language", cfg.TargetLanguage))
		return translated, nil
	}

	translated, err := c.client.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	if translated != NoTranslationPlaceholder {
		c.cache.Set(cfg.TargetLanguage, text, translated)
	}
	return translated, nil
}
