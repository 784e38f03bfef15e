package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the corpus as a single JSON file using whole-snapshot
// load-merge-save writes. A mutex serializes writers within the process;
// concurrent writers from other processes are not supported.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed store at path. The file is created on
// first write; a missing file reads as an empty corpus.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("corpus path not set")
	}
	return &FileStore{path: path}, nil
}

// Upsert merges docs into the persisted corpus. Existing URLs are replaced in
// place, preserving their original insertion position; new URLs append in the
// order given.
func (s *FileStore) Upsert(ctx context.Context, docs []*Document) error {
	for _, doc := range docs {
		if doc.Content == "" {
			return fmt.Errorf("%w: %s", ErrEmptyContent, doc.URL)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}

	index := make(map[string]int, len(existing))
	for i, doc := range existing {
		index[doc.URL] = i
	}

	for _, doc := range docs {
		if i, ok := index[doc.URL]; ok {
			existing[i] = doc
		} else {
			index[doc.URL] = len(existing)
			existing = append(existing, doc)
		}
	}

	return s.save(existing)
}

// Get returns the document stored under url.
func (s *FileStore) Get(ctx context.Context, url string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if doc.URL == url {
			return doc, nil
		}
	}
	return nil, ErrDocumentNotFound
}

// List returns every stored document in insertion order.
func (s *FileStore) List(ctx context.Context) ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Count returns the number of stored documents.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.load()
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

// load reads the whole corpus. Callers must hold the mutex.
func (s *FileStore) load() ([]*Document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var docs []*Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	return docs, nil
}

// save writes the whole corpus through a temp file and rename so a crashed
// write never leaves a truncated corpus behind. Callers must hold the mutex.
func (s *FileStore) save(docs []*Document) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".corpus-*.json")
	if err != nil {
		return fmt.Errorf("create temp corpus: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close corpus: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace corpus: %w", err)
	}
	return nil
}
