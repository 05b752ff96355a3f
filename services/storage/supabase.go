package storagesvc

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	storage "github.com/supabase-community/storage-go"

	"github.com/trezcool/quizforge/core"
)

// ErrNotConfigured is returned by every call when the project URL or service key is missing.
var ErrNotConfigured = errors.New("supabase storage is not configured")

// supabaseStorage talks to Supabase Storage with the service role key.
type supabaseStorage struct {
	apiURL string // <project>/storage/v1
	key    string
}

var _ core.FileStorage = (*supabaseStorage)(nil)

func NewSupabaseStorage(conf core.StorageConfig) core.FileStorage {
	s := &supabaseStorage{key: conf.ServiceKey}
	if base := strings.TrimRight(conf.URL, "/"); base != "" {
		s.apiURL = base + "/storage/v1"
	}
	return s
}

func (s *supabaseStorage) configured() bool {
	return s.apiURL != "" && s.key != ""
}

// client returns a fresh client per call: uploads set their headers on the client itself.
func (s *supabaseStorage) client() *storage.Client {
	return storage.NewClient(s.apiURL, s.key, map[string]string{"apikey": s.key})
}

func (s *supabaseStorage) Upload(ctx context.Context, bucket, path, contentType string, r io.Reader) (core.StoredObject, error) {
	if !s.configured() {
		return core.StoredObject{}, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return core.StoredObject{}, err
	}

	var buf bytes.Buffer
	size, err := io.Copy(&buf, r)
	if err != nil {
		return core.StoredObject{}, errors.Wrap(err, "reading object content")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false
	if _, err := s.client().UploadFile(bucket, path, &buf, storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return core.StoredObject{}, errors.Wrapf(err, "supabase storage: uploading %s/%s", bucket, path)
	}

	return core.StoredObject{Bucket: bucket, Path: path, ContentType: contentType, Size: size}, nil
}

func (s *supabaseStorage) Delete(ctx context.Context, bucket, path string) error {
	if !s.configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client().RemoveFile(bucket, []string{path}); err != nil {
		return errors.Wrapf(err, "supabase storage: deleting %s/%s", bucket, path)
	}
	return nil
}

func (s *supabaseStorage) PublicURL(bucket, path string) string {
	return s.client().GetPublicUrl(bucket, path).SignedURL
}

func (s *supabaseStorage) SignedURL(ctx context.Context, bucket, path string, expiresIn time.Duration) (string, error) {
	if !s.configured() {
		return "", ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := s.client().CreateSignedUrl(bucket, path, int(expiresIn/time.Second))
	if err != nil {
		return "", errors.Wrapf(err, "supabase storage: signing %s/%s", bucket, path)
	}
	if res.SignedURL == s.apiURL {
		return "", errors.New("supabase storage: empty signed url")
	}
	return res.SignedURL, nil
}
