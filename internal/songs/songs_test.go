package songs

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDiscoverBottomUp(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "pack", "b", "info.dat"))
	touch(t, filepath.Join(root, "pack", "a", "Info.DAT"))
	touch(t, filepath.Join(root, "pack", "info.json"))
	touch(t, filepath.Join(root, "pack", "c", "readme.txt"))
	touch(t, filepath.Join(root, "z", "info.dat"))

	got, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		filepath.Join(root, "pack", "a"),
		filepath.Join(root, "pack", "b"),
		filepath.Join(root, "pack"),
		filepath.Join(root, "z"),
	}
	if len(got) != len(want) {
		t.Fatalf("Discover = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Discover[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestSplitBoundaries(t *testing.T) {
	folders := make([]string, 10)
	for i := range folders {
		folders[i] = string(rune('a' + i))
	}
	parts := Split(folders, 0.8, 0.1)
	if len(parts[Train]) != 8 || len(parts[Validation]) != 1 || len(parts[Test]) != 1 {
		t.Fatalf("unexpected split sizes %d/%d/%d", len(parts[Train]), len(parts[Validation]), len(parts[Test]))
	}
	if parts[Validation][0] != "i" || parts[Test][0] != "j" {
		t.Fatalf("split reordered folders: %v", parts)
	}

	small := Split([]string{"only"}, 0.8, 0.1)
	if len(small[Train]) != 0 || len(small[Validation]) != 0 || len(small[Test]) != 1 {
		t.Fatalf("unexpected split of one folder: %v", small)
	}
}
