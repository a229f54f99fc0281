package blob

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestPutReturnsRetrievableURL(t *testing.T) {
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	url, err := s.Put(context.Background(), "photo.png", "image/png", strings.NewReader("pngdata"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("url = %q, want file:// prefix", url)
	}

	data, err := os.ReadFile(strings.TrimPrefix(url, "file://"))
	if err != nil {
		t.Fatalf("read stored blob: %v", err)
	}
	if string(data) != "pngdata" {
		t.Errorf("stored data = %q, want pngdata", data)
	}
}

func TestPutUniqueNames(t *testing.T) {
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	u1, err := s.Put(context.Background(), "a.txt", "text/plain", strings.NewReader("one"))
	if err != nil {
		t.Fatal(err)
	}
	u2, err := s.Put(context.Background(), "a.txt", "text/plain", strings.NewReader("two"))
	if err != nil {
		t.Fatal(err)
	}
	if u1 == u2 {
		t.Errorf("same URL for two uploads of the same name: %q", u1)
	}
}

func TestPutSanitizesName(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}

	url, err := s.Put(context.Background(), "../../etc/passwd", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	path := strings.TrimPrefix(url, "file://")
	if !strings.HasPrefix(path, dir) {
		t.Errorf("blob escaped store dir: %q", path)
	}
}
