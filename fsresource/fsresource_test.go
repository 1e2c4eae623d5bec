package fsresource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mcprelay/mcprelay/registry"
	"github.com/mcprelay/mcprelay/request"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRegisterAndRead(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", "# Readme\n")
	writeFile(t, dir, "nested/config.json", `{"k":1}`)

	p, err := New(dir, "files")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	reg := registry.New()
	if err := p.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	resources := reg.Resources()
	if len(resources) != 2 {
		t.Fatalf("resource count: %d", len(resources))
	}

	byURI := map[string]registry.ResourceEntry{}
	for _, r := range resources {
		byURI[r.Descriptor.URI] = r
	}

	readme, ok := byURI["files://readme.md"]
	if !ok {
		t.Fatalf("readme missing: %+v", byURI)
	}
	if !strings.HasPrefix(readme.Descriptor.MimeType, "text/markdown") {
		t.Fatalf("mime: %q", readme.Descriptor.MimeType)
	}

	got, err := readme.Handler.Read(context.Background(), request.NewContext(), nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got.([]byte)) != "# Readme\n" {
		t.Fatalf("content: %q", got)
	}

	nested, ok := byURI["files://nested/config.json"]
	if !ok {
		t.Fatalf("nested missing: %+v", byURI)
	}
	if !strings.HasPrefix(nested.Descriptor.MimeType, "application/json") {
		t.Fatalf("nested mime: %q", nested.Descriptor.MimeType)
	}
}

func TestMissingRoot(t *testing.T) {
	if _, err := New("/nonexistent/resource/root", "files"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWatchReportsChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "watched.txt", "v1")

	p, err := New(dir, "files")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 16)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- p.Watch(ctx, func(uri string) { changes <- uri })
	}()

	// Give the watcher a moment to arm before mutating.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "watched.txt", "v2")

	select {
	case uri := <-changes:
		if uri != "files://watched.txt" {
			t.Fatalf("changed uri: %q", uri)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("change never reported")
	}

	cancel()
	select {
	case err := <-watchErr:
		if err != context.Canceled {
			t.Fatalf("watch exit: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not stop")
	}
}
