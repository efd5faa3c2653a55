package strips

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStore keeps strips in a JSON document that the editing host may also
// rewrite. Every call reads the file so external edits are always visible.
type FileStore struct {
	path string

	mu          sync.Mutex
	lastWritten uint64
}

type fileStoreDocument struct {
	Strips []Strip `json:"strips"`
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) List(ctx context.Context) ([]Strip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Strips, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (Strip, error) {
	if err := ctx.Err(); err != nil {
		return Strip{}, err
	}
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return Strip{}, err
	}
	for _, strip := range doc.Strips {
		if strip.ID == id {
			return strip, nil
		}
	}
	return Strip{}, ErrStripNotFound
}

func (s *FileStore) Put(ctx context.Context, strip Strip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	strip.ID = strings.TrimSpace(strip.ID)
	if err := strip.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range doc.Strips {
		if doc.Strips[i].ID == strip.ID {
			doc.Strips[i] = strip
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Strips = append(doc.Strips, strip)
	}
	return s.save(doc)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	for i := range doc.Strips {
		if doc.Strips[i].ID == id {
			doc.Strips = append(doc.Strips[:i], doc.Strips[i+1:]...)
			return s.save(doc)
		}
	}
	return ErrStripNotFound
}

func (s *FileStore) Close() error {
	return nil
}

// Watch reports changes to the strip file made by other writers. Writes made
// through this store are not reported.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	// The directory is watched because saves replace the file by rename.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	target := filepath.Clean(s.path)
	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
					continue
				}
				if s.ownWrite() {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return changes, nil
}

func (s *FileStore) ownWrite() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWritten != 0 && contentHash(data) == s.lastWritten
}

func (s *FileStore) load() (fileStoreDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileStoreDocument{}, nil
		}
		return fileStoreDocument{}, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return fileStoreDocument{}, nil
	}
	var doc fileStoreDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fileStoreDocument{}, err
	}
	return doc, nil
}

func (s *FileStore) save(doc fileStoreDocument) error {
	if doc.Strips == nil {
		doc.Strips = []Strip{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}
	s.lastWritten = contentHash(data)
	return nil
}

func contentHash(data []byte) uint64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write(data)
	return hasher.Sum64()
}
