package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileKV keeps every key in a single JSON object on disk, mirroring the
// origin-scoped key-value store a browser would provide. Writes replace the
// file atomically through a temp file and rename.
type FileKV struct {
	mu   sync.Mutex
	path string
}

// NewFileKV prepares path for use, creating its parent directory.
func NewFileKV(path string) (*FileKV, error) {
	if path == "" {
		return nil, errors.New("data file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("error creating data directory: %w", err)
	}
	return &FileKV{path: path}, nil
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not valid JSON", key)
	}
	doc[key] = json.RawMessage(value)
	return f.write(doc)
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.write(doc)
}

func (f *FileKV) Close() error { return nil }

// read returns an empty document when the file does not exist yet.
func (f *FileKV) read() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", f.path, err)
	}

	doc := map[string]json.RawMessage{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *FileKV) write(doc map[string]json.RawMessage) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".wellspring-*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
