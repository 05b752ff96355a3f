package storagesvc

import (
	"context"
		"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizforge/core"
)

type recordedRequest struct {
	method, path, auth, contentType, body string
}

func newSupabaseServer(t *testing.T, status int, respBody string) (*httptest.Server, *[]recordedRequest) {
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqs = append(reqs, recordedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestSupabaseStorage_Upload(t *testing.T) {
	srv, reqs := newSupabaseServer(t, http.StatusOK, `{"Key":"documents/u1/file.pdf"}`)
	s := NewSupabaseStorage(core.StorageConfig{URL: srv.URL + "/", ServiceKey: "key"})

	obj, err := s.Upload(context.Background(), "documents", "u1/20240101-id-my_file.pdf", "application/pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, core.StoredObject{
		Bucket: "documents", Path: "u1/20240101-id-my_file.pdf", ContentType: "application/pdf", Size: 5,
	}, obj)

	require.Len(t, *reqs, 1)
	req := (*reqs)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/storage/v1/object/documents/u1/20240101-id-my_file.pdf", req.path)
	assert.Equal(t, "Bearer key", req.auth)
	assert.Equal(t, "application/pdf", req.contentType)
	assert.Equal(t, "hello", req.body)
}

func TestSupabaseStorage_UploadError(t *testing.T) {
	srv, _ := newSupabaseServer(t, http.StatusConflict, `{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`)
	s := NewSupabaseStorage(core.StorageConfig{URL: srv.URL, ServiceKey: "key"})

	_, err := s.Upload(context.Background(), "documents", "a.txt", "", strings.NewReader("x"))
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "documents/a.txt")
		assert.Contains(t, err.Error(), "The resource already exists")
	}
}

func TestSupabaseStorage_Delete(t *testing.T) {
	srv, reqs := newSupabaseServer(t, http.StatusOK, `[{"name":"u1/a.png"}]`)
	s := NewSupabaseStorage(core.StorageConfig{URL: srv.URL, ServiceKey: "key"})

	require.NoError(t, s.Delete(context.Background(), "avatars", "u1/a.png"))
	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodDelete, (*reqs)[0].method)
	assert.Equal(t, "/storage/v1/object/avatars", (*reqs)[0].path)
	assert.JSONEq(t, `{"prefixes": ["u1/a.png"]}`, (*reqs)[0].body)
}

func TestSupabaseStorage_SignedURL(t *testing.T) {
	srv, reqs := newSupabaseServer(t, http.StatusOK, `{"signedURL":"/object/sign/documents/u1/a.pdf?token=abc"}`)
	s := NewSupabaseStorage(core.StorageConfig{URL: srv.URL, ServiceKey: "key"})

	u, err := s.SignedURL(context.Background(), "documents", "u1/a.pdf", 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/storage/v1/object/sign/documents/u1/a.pdf?token=abc", u)

	require.Len(t, *reqs, 1)
	assert.Equal(t, "/storage/v1/object/sign/documents/u1/a.pdf", (*reqs)[0].path)
	assert.JSONEq(t, `{"expiresIn": 120}`, (*reqs)[0].body)
}

func TestSupabaseStorage_PublicURL(t *testing.T) {
	s := NewSupabaseStorage(core.StorageConfig{URL: "https://proj.supabase.co/", ServiceKey: "key"})
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/avatars/u1/a.png", s.PublicURL("avatars", "u1/a.png"))
}

func TestSupabaseStorage_NotConfigured(t *testing.T) {
	s := NewSupabaseStorage(core.StorageConfig{})
	_, err := s.Upload(context.Background(), "documents", "a", "", strings.NewReader("x"))
	assert.Equal(t, ErrNotConfigured, err)
	assert.Equal(t, ErrNotConfigured, s.Delete(context.Background(), "documents", "a"))
	_, err = s.SignedURL(context.Background(), "documents", "a", time.Minute)
	assert.Equal(t, ErrNotConfigured, err)
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage("http://files.test/")

	obj, err := s.Upload(ctx, "documents", "u1/a.txt", "text/plain", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), obj.Size)

	_, err = s.Upload(ctx, "documents", "u1/a.txt", "text/plain", strings.NewReader("abc"))
	assert.Error(t, err, "duplicate path")

	_, content, ok := s.Object("documents", "u1/a.txt")
	require.True(t, ok)
	assert.Equal(t, "abc", string(content))

	assert.Equal(t, "http://files.test/storage/v1/object/public/documents/u1/a.txt", s.PublicURL("documents", "u1/a.txt"))

	u, err := s.SignedURL(ctx, "documents", "u1/a.txt", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://files.test/storage/v1/object/sign/documents/u1/a.txt?expires="))

	_, err = s.SignedURL(ctx, "documents", "missing", time.Hour)
	assert.Equal(t, ErrObjectNotFound, err)

	require.NoError(t, s.Delete(ctx, "documents", "u1/a.txt"))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, ErrObjectNotFound, s.Delete(ctx, "documents", "u1/a.txt"))
}
