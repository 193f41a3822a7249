package notification

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileChannel appends alert messages to a file, one per line, with the
// send time prefixed. Writes are serialized by an internal mutex since
// os.File is not safe for concurrent appends of variable-length
// records.
type FileChannel struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileChannel opens path for append, creating parent directories if
// needed.
func NewFileChannel(path string) (*FileChannel, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("notification: create dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("notification: open %s: %w", path, err)
	}
	return &FileChannel{path: path, file: f}, nil
}

func (c *FileChannel) Name() string { return "file" }

func (c *FileChannel) Send(ctx context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.file, "%s %s\n", time.Now().UTC().Format(time.RFC3339), message)
	return err
}

func (c *FileChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Close()
}
