// Package catalog fetches and caches model capability metadata. The chat
// core consults it before a turn is sent - never during streaming - to know
// a model's context window and which request parameters it supports.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orchat/config"
)

// ModelInfo is the capability metadata for one model.
type ModelInfo struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	ContextLength       int      `json:"context_length"`
	SupportedParameters []string `json:"supported_parameters"`
}

// Supports reports whether the model accepts the named request parameter
// (for example "reasoning" or "web_search_options").
func (m ModelInfo) Supports(param string) bool {
	for _, p := range m.SupportedParameters {
		if p == param {
			return true
		}
	}
	return false
}

// DisplayName strips the vendor prefix for UI display.
// "meta-llama/llama-3.2-90b-instruct" -> "llama-3.2-90b-instruct"
func (m ModelInfo) DisplayName() string {
	if idx := strings.Index(m.ID, "/"); idx != -1 {
		return m.ID[idx+1:]
	}
	return m.ID
}

// Catalog serves the model list, refreshing a disk cache when it goes
// stale. Fetch failures fall back to the stale cache when one exists.
type Catalog struct {
	baseURL   string
	cachePath string
	ttl       time.Duration
	httpc     *http.Client
	now       func() time.Time
}

// DefaultTTL is how long a cached model list stays fresh.
const DefaultTTL = 24 * time.Hour

// New creates a catalog for the given backend, caching under dataDir.
func New(baseURL, dataDir string) *Catalog {
	return &Catalog{
		baseURL:   baseURL,
		cachePath: filepath.Join(dataDir, "models.json"),
		ttl:       DefaultTTL,
		httpc:     &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

type cacheFile struct {
	FetchedAt time.Time   `json:"fetched_at"`
	Models    []ModelInfo `json:"models"`
}

type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// Models returns the model list, from cache when fresh.
func (c *Catalog) Models(ctx context.Context) ([]ModelInfo, error) {
	cached, cacheErr := c.readCache()
	if cacheErr == nil && c.now().Sub(cached.FetchedAt) < c.ttl {
		return cached.Models, nil
	}

	models, err := c.fetch(ctx)
	if err != nil {
		// A stale cache beats no models at all.
		if cacheErr == nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[catalog] fetch failed, serving stale cache: %v", err)
			}
			return cached.Models, nil
		}
		return nil, err
	}

	if err := c.writeCache(models); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[catalog] failed to write cache: %v", err)
	}
	return models, nil
}

// Lookup returns the metadata for one model id.
func (c *Catalog) Lookup(ctx context.Context, id string) (ModelInfo, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return ModelInfo{}, err
	}
	for _, m := range models {
		if m.ID == id {
			return m, nil
		}
	}
	return ModelInfo{}, fmt.Errorf("model %s not in catalog", id)
}

func (c *Catalog) fetch(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build models request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models endpoint returned status %d", resp.StatusCode)
	}

	var out modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	return out.Data, nil
}

func (c *Catalog) readCache() (*cacheFile, error) {
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return nil, err
	}
	var cached cacheFile
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (c *Catalog) writeCache(models []ModelInfo) error {
	data, err := json.Marshal(cacheFile{FetchedAt: c.now(), Models: models})
	if err != nil {
		return err
	}
	return os.WriteFile(c.cachePath, data, 0600)
}
