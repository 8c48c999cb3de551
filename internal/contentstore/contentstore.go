// Package contentstore abstracts raw artifact byte storage. The engine only
// ever hands over fully read buffers; streaming stays in the request layer.
package contentstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sigil/pkg/platform/sentinel"
)

// Store uploads and downloads artifact bytes by opaque ref.
type Store interface {
	Upload(ctx context.Context, data []byte, originalName string) (string, error)
	Download(ctx context.Context, ref string) ([]byte, error)
}

const filesystemScheme = "local://files/"

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// FilesystemStore keeps artifacts on the local disk under a configured
// directory, mirroring how the object-storage collaborator behaves in
// development deployments.
type FilesystemStore struct {
	dir string
}

func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FilesystemStore{dir: dir}, nil
}

func (s *FilesystemStore) Upload(_ context.Context, data []byte, originalName string) (string, error) {
	safe := unsafeNameChars.ReplaceAllString(originalName, "_")
	name := fmt.Sprintf("%d_%s_%s", time.Now().UnixMilli(), uuid.NewString()[:8], safe)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return filesystemScheme + name, nil
}

func (s *FilesystemStore) Download(_ context.Context, ref string) ([]byte, error) {
	name, ok := strings.CutPrefix(ref, filesystemScheme)
	if !ok || strings.Contains(name, "/") {
		return nil, fmt.Errorf("unsupported content ref %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// MemoryStore keeps artifacts in a map for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Upload(_ context.Context, data []byte, originalName string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := "mem://" + uuid.NewString() + "/" + originalName
	s.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

func (s *MemoryStore) Download(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Put overwrites a blob in place; tamper-scenario tests use it to corrupt a
// stored artifact.
func (s *MemoryStore) Put(ref string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = append([]byte(nil), data...)
}

var (
	_ Store = (*FilesystemStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
