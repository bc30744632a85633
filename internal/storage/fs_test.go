package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/jotpad/internal/models"
)

func tempDownloads(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempDownloads(t)
	content := []byte("milk\neggs\n")
	if err := s.Write("list.txt", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(s.Root(), "list.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestExport(t *testing.T) {
	s := tempDownloads(t)
	exp := models.Export{Filename: "Shopping.txt", MIMEType: "text/plain", Content: []byte("milk")}

	path, err := s.Export(exp)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if path != filepath.Join(s.Root(), "Shopping.txt") {
		t.Errorf("path = %q", path)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "milk" {
		t.Errorf("content = %q", got)
	}
}

func TestExportNeverOverwrites(t *testing.T) {
	s := tempDownloads(t)
	exp := models.Export{Filename: "Plan.txt", Content: []byte("v1")}

	first, err := s.Export(exp)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	exp.Content = []byte("v2")
	second, err := s.Export(exp)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Base(second) != "Plan (1).txt" {
		t.Errorf("second export = %q, want Plan (1).txt", filepath.Base(second))
	}
	if got, _ := os.ReadFile(first); string(got) != "v1" {
		t.Errorf("first export overwritten: %q", got)
	}
}

func TestExportSanitizesTitle(t *testing.T) {
	s := tempDownloads(t)

	path, err := s.Export(models.Export{Filename: "../../etc/passwd.txt", Content: []byte("x")})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if filepath.Dir(path) != s.Root() {
		t.Errorf("export escaped root: %q", path)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Shopping.txt":       "Shopping.txt",
		"a/b\\c.txt":         "a_b_c.txt",
		"What? Now*.txt":     "What_ Now_.txt",
		"  .txt":             models.DefaultTitle + ".txt",
		"tab\there.txt":      "tab_here.txt",
		"no extension":       "no extension.txt",
		"Привет мир.txt":     "Привет мир.txt",
		"../../etc/pass.txt": "_.._etc_pass.txt",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempDownloads(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.txt",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.safePath(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempDownloads(t)
	_ = s.Write("atomic.txt", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.txt", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(s.Root(), "atomic.txt"))
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".jotpad-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads", "notes")
	if _, err := NewFS(dir); err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("download dir not created: %v", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "jotpad-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
