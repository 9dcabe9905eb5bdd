package archive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/newthinker/signalwatch/internal/core"
)

func TestS3Storage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*S3Storage)(nil)
}

func TestS3Storage_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "summaries/2024/01/02.json", "summaries/2024/01/02.json"},
		{"signalwatch", "summaries/2024/01/02.json", "signalwatch/summaries/2024/01/02.json"},
		{"signalwatch/", "file.json", "signalwatch/file.json"},
	}

	for _, tt := range tests {
		s, _ := NewS3(S3Config{Bucket: "b", Region: "us-east-1", Prefix: tt.prefix})
		if got := s.key(tt.path); got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
		if got := s.relative(s.key(tt.path)); got != tt.path {
			t.Errorf("relative(key(%q)) = %q", tt.path, got)
		}
	}
}

// fakeS3 stores objects in memory and answers PUT, GET and HEAD in path style.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3Storage_WriteReadExists(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewS3(S3Config{
		Bucket:    "reports",
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "AKID",
		SecretKey: "SECRET",
		Prefix:    "signalwatch",
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	ctx := context.Background()

	if err := s.Write(ctx, "summaries/2024/01/02.json", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok := fake.objects["reports/signalwatch/summaries/2024/01/02.json"]; !ok {
		t.Fatalf("object not stored under bucket/prefix: %v", fake.objects)
	}
	if ct := fake.types["reports/signalwatch/summaries/2024/01/02.json"]; ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	got, err := s.Read(ctx, "summaries/2024/01/02.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("Read = %q", got)
	}

	ok, err := s.Exists(ctx, "summaries/2024/01/02.json")
	if err != nil || !ok {
		t.Errorf("Exists(existing) = %v, %v", ok, err)
	}
	ok, err = s.Exists(ctx, "summaries/2024/01/03.json")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}

	if _, err := s.Read(ctx, "summaries/2024/01/03.json"); !errors.Is(err, core.ErrPersistence) {
		t.Errorf("Read(missing) error = %v, want persistence error", err)
	}
}
