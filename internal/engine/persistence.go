package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Persistence handles the disk I/O for the Engine.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	// Ensure the data directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir}, nil
}

// SaveCollection writes a single collection's documents to a JSON file
// atomically: write to a temp file, then rename. A crash leaves either the
// old file or the new one, never a torn one.
func (p *Persistence) SaveCollection(collection string, data map[string]map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := filepath.Join(p.DataDir, fmt.Sprintf("%s.json", collection))
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, filePath)
}

// LoadAll returns all collection data found in the data directory.
func (p *Persistence) LoadAll() (map[string]map[string]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string]map[string]map[string]any)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}
		collection := file.Name()[:len(file.Name())-5] // Strip .json

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			log.Printf("Warning: Could not read collection file %s: %v", file.Name(), err)
			continue // Skip corrupted/unreadable files
		}

		var docs map[string]map[string]any
		if err := json.Unmarshal(content, &docs); err != nil {
			log.Printf("Warning: Could not unmarshal collection data from %s: %v", file.Name(), err)
			continue
		}
		for _, fields := range docs {
			reviveTimestamps(fields)
		}
		allData[collection] = docs
	}
	return allData, nil
}

// reviveTimestamps turns persisted RFC 3339 strings back into time.Time
// values so ordered queries keep working after a reload. Timestamp fields
// follow one naming convention across the schema: an "At" suffix, plus the
// user-chosen deadline field on tasks.
func reviveTimestamps(fields map[string]any) {
	for k, v := range fields {
		if !strings.HasSuffix(k, "At") && k != "deadline" {
			continue
		}
		if s, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				fields[k] = t
			}
		}
	}
}
