package storagesvc

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
)

var ErrObjectNotFound = errors.New("object not found")

// MemoryStorage keeps objects in memory; used in development and tests.
type MemoryStorage struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]memObject // {bucket/path: object}
}

type memObject struct {
	core.StoredObject
	content []byte
}

var _ core.FileStorage = (*MemoryStorage)(nil)

func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &MemoryStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]memObject),
	}
}

func memKey(bucket, path string) string { return bucket + "/" + path }

func (s *MemoryStorage) Upload(_ context.Context, bucket, path, contentType string, r io.Reader) (core.StoredObject, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return core.StoredObject{}, errors.Wrap(err, "reading object content")
	}
	obj := memObject{
		StoredObject: core.StoredObject{Bucket: bucket, Path: path, ContentType: contentType, Size: int64(len(content))},
		content:      content,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[memKey(bucket, path)]; exists {
		return core.StoredObject{}, errors.Errorf("object %s already exists", memKey(bucket, path))
	}
	s.objects[memKey(bucket, path)] = obj
	return obj.StoredObject, nil
}

func (s *MemoryStorage) Delete(_ context.Context, bucket, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[memKey(bucket, path)]; !ok {
		return ErrObjectNotFound
	}
	delete(s.objects, memKey(bucket, path))
	return nil
}

func (s *MemoryStorage) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, bucket, escapePath(path))
}

func (s *MemoryStorage) SignedURL(_ context.Context, bucket, path string, expiresIn time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[memKey(bucket, path)]
	s.mu.RUnlock()
	if !ok {
		return "", ErrObjectNotFound
	}
	q := url.Values{"expires": {strconv.FormatInt(core.NowFunc().Add(expiresIn).Unix(), 10)}}
	return fmt.Sprintf("%s/storage/v1/object/sign/%s/%s?%s", s.baseURL, bucket, escapePath(path), q.Encode()), nil
}

// Object returns a stored object and its content.
func (s *MemoryStorage) Object(bucket, path string) (core.StoredObject, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[memKey(bucket, path)]
	return obj.StoredObject, obj.content, ok
}

func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// escapePath escapes each segment of an object path, keeping the separators.
func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
