package helper

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSafeFileName(t *testing.T) {
	cases := map[string]string{
		"paper.pdf":              "paper.pdf",
		"../../etc/paper.pdf":    "paper.pdf",
		`C:\Users\me\report.pdf`: "report.pdf",
		"/abs/path/notes v2.pdf": "notes v2.pdf",
	}
	for in, want := range cases {
		got, ok := SafeFileName(in)
		if !ok || got != want {
			t.Fatalf("SafeFileName(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "/", "..", "   "} {
		if got, ok := SafeFileName(in); ok {
			t.Fatalf("SafeFileName(%q) = %q, want rejection", in, got)
		}
	}
}

func TestCreateFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := CreateFolder(dir); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("folder not created: %v", err)
	}
	// existing folder is fine
	if err := CreateFolder(dir); err != nil {
		t.Fatalf("CreateFolder on existing dir: %v", err)
	}
}

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	if err != nil {
		t.Fatalf("GenerateUUID: %v", err)
	}
	b, _ := GenerateUUID()
	if len(a) != 36 || a == b {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
}
