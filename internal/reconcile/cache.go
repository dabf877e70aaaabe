package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Cache persists the last-known unread snapshot per user so a reload can
// render badges before the network snapshot returns. Fast path only, never
// authoritative.
type Cache struct {
	dir string
}

// NewCache builds a Cache rooted at dir, creating it if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(userID int) string {
	return filepath.Join(c.dir, fmt.Sprintf("unread-%d.json", userID))
}

// Load reads the cached snapshot; a missing file yields nil, nil.
func (c *Cache) Load(userID int) (map[string]int, error) {
	raw, err := os.ReadFile(c.path(userID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var counts map[string]int
	if err := json.Unmarshal(raw, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// Save writes the snapshot atomically via rename.
func (c *Cache) Save(userID int, counts map[string]int) error {
	raw, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	tmp := c.path(userID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path(userID))
}
