package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/blob"
	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/config"
	"github.com/matheus3301/parley/internal/docstore/localstore"
	"github.com/matheus3301/parley/internal/gateway"
	"github.com/matheus3301/parley/internal/identity"
	"github.com/matheus3301/parley/internal/lock"
	"github.com/matheus3301/parley/internal/realtime"
	"github.com/matheus3301/parley/internal/status"
)

// TestDaemonLifecycle assembles the full daemon stack by hand, the way
// the fx module wires it, and walks one session end to end.
func TestDaemonLifecycle(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "parley-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	sessionDir := filepath.Join(tmpDir, "test")
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		t.Fatal(err)
	}

	lk, err := lock.Acquire(sessionDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	db, err := localstore.Open(filepath.Join(sessionDir, "parley.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	blobs, err := blob.NewFS(filepath.Join(sessionDir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}

	const secret = "daemon-test-secret"
	logger, _ := zap.NewDevelopment()
	b := bus.New()
	machine := status.NewMachine(b)
	cfg := &config.Config{IdentitySecret: secret}
	srv := gateway.NewServer(cfg, logger, b, db, realtime.NewMemory(),
		identity.NewTokenProvider(secret, logger), blobs, machine)
	defer func() { _ = srv.Shutdown() }()

	_ = machine.Transition(status.AuthRequired)
	if machine.Current() != status.AuthRequired {
		t.Fatalf("status = %s, want AUTH_REQUIRED", machine.Current())
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub":  "u1",
		"name": "Ana Silva",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/session/signin",
		strings.NewReader(`{"token":"`+signed+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign-in status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	if machine.Current() != status.Ready {
		t.Errorf("status = %s, want READY", machine.Current())
	}

	// Sign-in created the user document with a lowercased search key.
	u, err := db.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if u.SearchKey != "ana silva" {
		t.Errorf("searchKey = %q, want %q", u.SearchKey, "ana silva")
	}
}

// A second daemon on the same session must be refused by the lock.
func TestSecondDaemonRefused(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "parley-lock-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	lk, err := lock.Acquire(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	if _, err := lock.Acquire(tmpDir); err == nil {
		t.Fatal("second Acquire succeeded, want LockHeldError")
	}
}
