package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

func TestSupabaseClient_Upload(t *testing.T) {
	var gotPath, gotBody string
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"Key":"x"}`))
	}))
	t.Cleanup(srv.Close)

	c, err := NewSupabaseClient(srv.URL+"/", "svc-key", "product-images")
	require.NoError(t, err)

	err = c.Upload(context.Background(), "905551112233/d1/abc.jpeg", []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	require.Equal(t, "/storage/v1/object/product-images/905551112233/d1/abc.jpeg", gotPath)
	require.Equal(t, "jpeg-bytes", gotBody)
	require.Equal(t, "Bearer svc-key", gotHeader.Get("Authorization"))
	require.Equal(t, "svc-key", gotHeader.Get("apikey"))
	require.Equal(t, "image/jpeg", gotHeader.Get("Content-Type"))
}

func TestSupabaseClient_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Duplicate"}`, http.StatusConflict)
	}))
	t.Cleanup(srv.Close)

	c, err := NewSupabaseClient(srv.URL, "k", "b")
	require.NoError(t, err)

	err = c.Upload(context.Background(), "p", []byte("x"), "image/png")
	var he *HTTPStatusError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusConflict, he.HTTPStatusCode())
	require.Contains(t, he.Body, "Duplicate")
}

func TestNewSupabaseClient_Validation(t *testing.T) {
	_, err := NewSupabaseClient("", "k", "b")
	require.Error(t, err)
	_, err = NewSupabaseClient("http://x", "", "b")
	require.Error(t, err)
	_, err = NewSupabaseClient("http://x", "k", "")
	require.Error(t, err)
}

type fakePutter struct {
	bucket, name, contentType string
	data                      []byte
	err                       error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, name string, r *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	f.bucket, f.name, f.contentType = bucket, name, opts.ContentType
	f.data = make([]byte, size)
	_, _ = r.Read(f.data)
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

func TestMinioClient_Upload(t *testing.T) {
	fp := &fakePutter{}
	c := &MinioClient{api: fp, bucket: "media"}

	require.NoError(t, c.Upload(context.Background(), "u/d/o.jpeg", []byte("abc"), ""))
	require.Equal(t, "media", fp.bucket)
	require.Equal(t, "u/d/o.jpeg", fp.name)
	require.Equal(t, "application/octet-stream", fp.contentType)
	require.Equal(t, "abc", string(fp.data))

	fp.err = errors.New("access denied")
	require.ErrorContains(t, c.Upload(context.Background(), "p", []byte("x"), "image/jpeg"), "access denied")
}

func TestNewMinioClient_RequiresEndpointAndBucket(t *testing.T) {
	_, err := NewMinioClient(MinioConfig{Bucket: "b"})
	require.Error(t, err)

	c, err := NewMinioClient(MinioConfig{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestDisabled(t *testing.T) {
	require.ErrorIs(t, Disabled{}.Upload(context.Background(), "p", nil, ""), ErrNotConfigured)
}
