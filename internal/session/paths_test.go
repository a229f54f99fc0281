package session

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestPathsAreUnderSessionDir(t *testing.T) {
	name := "work"
	dir := Dir(name)

	paths := map[string]string{
		"lock":  LockPath(name),
		"store": StorePath(name),
		"blobs": BlobDir(name),
		"log":   LogPath(name),
	}
	for label, p := range paths {
		if !strings.HasPrefix(p, dir) {
			t.Errorf("%s path %q not under session dir %q", label, p, dir)
		}
	}
}

func TestStorePathFilename(t *testing.T) {
	if got := filepath.Base(StorePath("main")); got != "parley.db" {
		t.Errorf("store filename = %q, want parley.db", got)
	}
}

func TestConfigPathInBaseDir(t *testing.T) {
	if !strings.HasPrefix(ConfigPath(), BaseDir()) {
		t.Errorf("config path %q not under base dir %q", ConfigPath(), BaseDir())
	}
}
