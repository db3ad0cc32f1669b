package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// CacheEntry is one cached translation
type CacheEntry struct {
	Hash        string    `json:"hash"`
	Original    string    `json:"original"`
	Translation string    `json:"translation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheFile is the on-disk cache layout
type CacheFile struct {
	Version string       `json:"version"`
	Scope   string       `json:"scope"`
	Entries []CacheEntry `json:"entries"`
}

// TranslationCache 负责缓存翻译结果
type TranslationCache struct {
	cachePath string
	scope     string
	cache     map[string]CacheEntry // hash -> CacheEntry
	mu        sync.RWMutex
}

// NewTranslationCache 创建新的翻译缓存实例。scope 区分语言对，例如 "zh>en"
func NewTranslationCache(cachePath, scope string) *TranslationCache {
	return &TranslationCache{
		cachePath: cachePath,
		scope:     scope,
		cache:     make(map[string]CacheEntry),
	}
}

// ComputeHash 计算文本哈希（使用 SHA256），包含语言对
func (c *TranslationCache) ComputeHash(text string) string {
	hash := sha256.Sum256([]byte(c.scope + "\x00" + text))
	return hex.EncodeToString(hash[:])
}

// Get 获取缓存的翻译
func (c *TranslationCache) Get(text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.cache[c.ComputeHash(text)]
	if !ok {
		return "", false
	}
	return entry.Translation, true
}

// Set 设置翻译缓存
func (c *TranslationCache) Set(text, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := c.ComputeHash(text)
	c.cache[hash] = CacheEntry{
		Hash:        hash,
		Original:    text,
		Translation: translation,
		CreatedAt:   time.Now(),
	}
}

// Load 从文件加载缓存
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
		return types.NewAppError(types.ErrConfig, "failed to read cache file", err)
	}

	var cacheFile CacheFile
	if err := json.Unmarshal(data, &cacheFile); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to parse cache file", err)
	}

	c.cache = make(map[string]CacheEntry, len(cacheFile.Entries))
	for _, entry := range cacheFile.Entries {
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

	entries := make([]CacheEntry, 0, len(c.cache))
	for _, entry := range c.cache {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Hash < entries[j].Hash })

	data, err := json.MarshalIndent(CacheFile{Version: "1.0", Scope: c.scope, Entries: entries}, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal cache", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0755); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to create cache directory", err)
	}
	if err := os.WriteFile(c.cachePath, data, 0644); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to write cache file", err)
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

// Cached serves repeated texts from a TranslationCache
type Cached struct {
	next  Translator
	cache *TranslationCache
}

// NewCached wraps next with cache
func NewCached(next Translator, cache *TranslationCache) *Cached {
	return &Cached{next: next, cache: cache}
}

// Translate implements Translator. Only successful, non-empty results are
// stored.
func (c *Cached) Translate(ctx context.Context, text string) (string, error) {
	if translation, ok := c.cache.Get(text); ok {
		logger.Debug("translation cache hit", logger.Int("length", len(text)))
		return translation, nil
	}

	translation, err := c.next.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	if translation != "" {
		c.cache.Set(text, translation)
	}
	return translation, nil
}
