package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashureev/chatshop/internal/domain"
)

// FileSink appends one JSON record per line to a file.
type FileSink struct {
	path string
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewFileSink prepares an NDJSON sink at path, creating parent directories.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create order log directory: %w", err)
	}
	return &FileSink{path: path, seen: make(map[string]struct{})}, nil
}

// Append implements Sink. Ids already written by this process are skipped.
func (f *FileSink) Append(_ context.Context, order domain.Order) error {
	line, err := json.Marshal(NewRecord(order))
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[order.ID]; ok {
		return nil
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open order log: %w", err)
	}
	if _, err := file.Write(line); err != nil {
		_ = file.Close()
		return fmt.Errorf("write order log: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close order log: %w", err)
	}
	f.seen[order.ID] = struct{}{}
	return nil
}
