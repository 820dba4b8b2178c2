package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gezibash/arc-ledger/internal/storage"
	arcerrors "github.com/gezibash/arc-ledger/pkg/errors"
)

func runStoreTests(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if names, err := s.List(ctx); err != nil || len(names) != 0 {
		t.Fatalf("List on empty store = %v, %v", names, err)
	}
	if _, err := s.Get(ctx, "missing.cbor"); !errors.Is(err, arcerrors.ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}

	for _, name := range []string{"b.cbor", "a.cbor"} {
		if err := s.Put(ctx, name, []byte("data-"+name)); err != nil {
			t.Fatalf("Put %s: %v", name, err)
		}
	}
	got, err := s.Get(ctx, "a.cbor")
	if err != nil || string(got) != "data-a.cbor" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	names, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a.cbor" || names[1] != "b.cbor" {
		t.Fatalf("List = %v", names)
	}
}

func TestFSStore(t *testing.T) {
	s, err := Open(context.Background(), "fs", map[string]string{KeyPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	runStoreTests(t, s)

	if err := s.Put(context.Background(), "../escape", nil); !errors.Is(err, arcerrors.ErrInvalidInput) {
		t.Fatalf("Put with path = %v", err)
	}
}

func TestOpenUnknownStore(t *testing.T) {
	if _, err := Open(context.Background(), "tape", nil); err == nil {
		t.Fatal("expected error")
	}
	if got := Stores(); len(got) != 2 || got[0] != "fs" || got[1] != "s3" {
		t.Fatalf("Stores = %v", got)
	}
}

// mockS3Server emulates the handful of S3 calls the store makes.
func mockS3Server() *httptest.Server {
	var (
		mu      sync.Mutex
		objects = make(map[string][]byte)
	)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		// Path-style: /bucket or /bucket/key
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
		if len(parts) < 2 || parts[1] == "" {
			if r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2" {
				writeList(w, objects, r.URL.Query().Get("prefix"))
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		key := parts[1]
		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			objects[key] = data
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			data, ok := objects[key]
			if !ok {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`))
				return
			}
			w.Write(data)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
}

func writeList(w http.ResponseWriter, objects map[string][]byte, prefix string) {
	var keys []string
	for k := range objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, `<Name>test-bucket</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>`, prefix, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, `<Contents><Key>%s</Key><Size>%d</Size></Contents>`, k, len(objects[k]))
	}
	b.WriteString(`</ListBucketResult>`)

	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(b.String()))
}

func TestS3Store(t *testing.T) {
	srv := mockS3Server()
	t.Cleanup(srv.Close)

	s, err := Open(context.Background(), "s3", map[string]string{
		KeyBucket:          "test-bucket",
		KeyEndpoint:        srv.URL,
		KeyForcePathStyle:  "true",
		KeyAccessKeyID:     "test",
		KeySecretAccessKey: "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	runStoreTests(t, s)
}

func TestS3StoreConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]string
		field  string
	}{
		{"missing bucket", map[string]string{}, KeyBucket},
		{"bad path style", map[string]string{KeyBucket: "b", KeyForcePathStyle: "maybe"}, KeyForcePathStyle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), "s3", tt.config)
			var cfgErr *storage.ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Fatalf("err = %v, want ConfigError on %s", err, tt.field)
			}
		})
	}
}
