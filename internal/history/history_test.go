package history_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgellow/mcp-stress/internal/history"
	api "github.com/dgellow/mcp-stress/lib-stress"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

func writeRunFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "src.ndjson")
	content := `{"type":"meta","runId":"r1","startedAt":"2025-06-01T12:00:00Z","config":{"transport":"stdio","concurrency":1,"timeoutMs":1000}}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidName(t *testing.T) {
	for name, want := range map[string]bool{
		"baseline":        true,
		"run_2025-06-01":  true,
		"A1":              true,
		"":                false,
		"no spaces":       false,
		"dot.dot":         false,
		"slash/attack":    false,
		"../../etc/cron":  false,
		"unicode-héllo":   false,
	} {
		if got := history.ValidName(name); got != want {
			t.Errorf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSaveListRemove(t *testing.T) {
	home := setupHome(t)
	src := writeRunFile(t, t.TempDir())

	saved, err := history.Save("first", src)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(saved) != filepath.Join(home, ".mcp-stress", "runs") {
		t.Errorf("saved to %s", saved)
	}

	entries, err := history.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "first" {
		t.Fatalf("entries = %+v", entries)
	}

	path, err := history.Path("first")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if _, err := api.LoadRun(path); err != nil {
		t.Errorf("stored run unreadable: %v", err)
	}

	if err := history.Remove("first"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	entries, err = history.List()
	if err != nil {
		t.Fatalf("List after remove: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries after remove = %+v", entries)
	}
}

func TestRemoveMissing(t *testing.T) {
	setupHome(t)
	if err := history.Remove("nope"); err == nil {
		t.Error("Remove succeeded for a missing run")
	}
}

func TestSaveInvalidName(t *testing.T) {
	setupHome(t)
	src := writeRunFile(t, t.TempDir())
	_, err := history.Save("../escape", src)
	if !errors.Is(err, api.ErrInvalidArgumentValue) {
		t.Errorf("err = %v, want ErrInvalidArgumentValue", err)
	}
}

func TestListEmptyLibrary(t *testing.T) {
	setupHome(t)
	entries, err := history.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %+v, want nil", entries)
	}
}
