package dataset

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/snappy"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// SpillCache persists item series to snappy-compressed files so large
// catalogs never need to be fully memory-resident. One file per item.
type SpillCache struct {
	dir string
	mu  sync.RWMutex
}

// NewSpillCache creates the cache directory if needed
func NewSpillCache(dir string) (*SpillCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create spill dir %s: %w", dir, err)
	}
	return &SpillCache{dir: dir}, nil
}

func (c *SpillCache) path(sku string) string {
	// hex-escape path separators so arbitrary item ids stay on one level
	safe := make([]byte, 0, len(sku))
	for i := 0; i < len(sku); i++ {
		b := sku[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9', b == '-', b == '_':
			safe = append(safe, b)
		default:
			safe = append(safe, []byte(fmt.Sprintf("%%%02x", b))...)
		}
	}
	return filepath.Join(c.dir, string(safe)+".sp")
}

// Store writes one series to the cache, replacing any previous version
func (c *SpillCache) Store(series *timeseries.Series) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(series); err != nil {
		return fmt.Errorf("encode series %s: %w", series.SKU, err)
	}
	compressed := snappy.Encode(nil, buf.Bytes())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.WriteFile(c.path(series.SKU), compressed, 0644); err != nil {
		return fmt.Errorf("spill series %s: %w", series.SKU, err)
	}
	return nil
}

// Load reads one series back from the cache
func (c *SpillCache) Load(sku string) (*timeseries.Series, error) {
	c.mu.RLock()
	compressed, err := os.ReadFile(c.path(sku))
	c.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("read spilled series %s: %w", sku, err)
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress series %s: %w", sku, err)
	}

	var series timeseries.Series
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&series); err != nil {
		return nil, fmt.Errorf("decode series %s: %w", sku, err)
	}
	return &series, nil
}

// Remove deletes one cached series, ignoring missing files
func (c *SpillCache) Remove(sku string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.path(sku))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes the whole cache directory
func (c *SpillCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(c.dir)
}
