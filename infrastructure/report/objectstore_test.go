package report

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-covenant/internal/ports"
)

// fakeS3 answers the handful of S3 calls the store makes.
type fakeS3 struct {
	mu           sync.Mutex
	bucketExists bool
	denyPut      bool
	requests     []string
	objects      map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.Trim(r.URL.Path, "/")
	f.requests = append(f.requests, r.Method+" /"+path)

	parts := strings.SplitN(path, "/", 2)
	switch {
	case r.Method == http.MethodHead && len(parts) == 1:
		if !f.bucketExists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && len(parts) == 1:
		f.bucketExists = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		if f.denyPut {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.objects[parts[1]] = string(body)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) count(req string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r == req {
			n++
		}
	}
	return n
}

func newTestObjectStore(t *testing.T, fake *fakeS3) *ObjectStore {
	t.Helper()
	fake.objects = map[string]string{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewObjectStore(ObjectStoreConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "covenant",
	})
	require.NoError(t, err)
	return s
}

func TestObjectStore_Publish(t *testing.T) {
	// Given an existing bucket
	fake := &fakeS3{bucketExists: true}
	s := newTestObjectStore(t, fake)
	ctx := context.Background()

	// When two reports are published for one run
	link, err := s.Publish(ctx, "run-1", "report.csv", []byte("Clause ID,Contract Clause\n"), "text/csv")
	require.NoError(t, err)
	_, err = s.Publish(ctx, "run-1", "digest.txt", []byte("digest"), "")
	require.NoError(t, err)

	// Then objects land under the run prefix and the bucket is checked once
	assert.Contains(t, fake.objects["run-1/report.csv"], "Clause ID")
	assert.Contains(t, fake.objects, "run-1/digest.txt")
	assert.Equal(t, 1, fake.count("HEAD /covenant"))
	assert.Zero(t, fake.count("PUT /covenant"))

	// And the link is a presigned GET for the object
	assert.Contains(t, link, "/covenant/run-1/report.csv")
	assert.Contains(t, link, "X-Amz-Signature=")
	assert.Contains(t, link, "X-Amz-Expires=259200")
}

func TestObjectStore_CreatesMissingBucket(t *testing.T) {
	fake := &fakeS3{}
	s := newTestObjectStore(t, fake)

	_, err := s.Publish(context.Background(), "run-2", "report.csv", []byte("rows"), "text/csv")

	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("PUT /covenant"))
	assert.Equal(t, 1, fake.count("PUT /covenant/run-2/report.csv"))
}

func TestObjectStore_PublishErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing run id", func(t *testing.T) {
		s := newTestObjectStore(t, &fakeS3{bucketExists: true})
		_, err := s.Publish(ctx, " ", "report.csv", nil, "")
		var storeErr *ports.StoreError
		require.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "publish", storeErr.Operation)
	})

	t.Run("missing name", func(t *testing.T) {
		s := newTestObjectStore(t, &fakeS3{bucketExists: true})
		_, err := s.Publish(ctx, "run", "", nil, "")
		assert.Error(t, err)
	})

	t.Run("upload denied", func(t *testing.T) {
		s := newTestObjectStore(t, &fakeS3{bucketExists: true, denyPut: true})
		_, err := s.Publish(ctx, "run", "report.csv", []byte("rows"), "text/csv")
		var storeErr *ports.StoreError
		require.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "put", storeErr.Operation)
	})
}

func TestNewObjectStore_Validation(t *testing.T) {
	valid := ObjectStoreConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "b"}

	tests := []struct {
		name   string
		mutate func(*ObjectStoreConfig)
	}{
		{"no endpoint", func(c *ObjectStoreConfig) { c.Endpoint = "" }},
		{"no access key", func(c *ObjectStoreConfig) { c.AccessKey = "" }},
		{"no secret key", func(c *ObjectStoreConfig) { c.SecretKey = " " }},
		{"no bucket", func(c *ObjectStoreConfig) { c.Bucket = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewObjectStore(cfg)
			assert.Error(t, err)
		})
	}

	s, err := NewObjectStore(valid)
	require.NoError(t, err)
	assert.Equal(t, DefaultLinkExpiry, s.expiry)
	assert.Equal(t, DefaultRegion, s.region)

	valid.LinkExpiry = 30 * 24 * time.Hour
	s, err = NewObjectStore(valid)
	require.NoError(t, err)
	assert.Equal(t, maxLinkExpiry, s.expiry)
}
