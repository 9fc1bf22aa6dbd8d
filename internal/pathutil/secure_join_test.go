package pathutil

import (
	"path/filepath"
	"testing"
)

func TestSecureJoinRejectsEscapes(t *testing.T) {
	root := t.TempDir()

	cases := []string{
		"../outside",
		"../../etc/passwd",
		"a/../../b",
	}
	for _, unsafe := range cases {
		if _, err := SecureJoin(root, unsafe); err == nil {
			t.Errorf("SecureJoin(%q, %q) = nil error, want escape error", root, unsafe)
		}
	}
}

func TestSecureJoinRejectsAbsolute(t *testing.T) {
	root := t.TempDir()
	if _, err := SecureJoin(root, filepath.Join(root, "..", "abs")); err == nil {
		t.Fatalf("expected error for path escaping root")
	}
	if _, err := SecureJoin(root, "/etc/passwd"); err == nil {
		t.Fatalf("expected error for absolute path")
	}
}

func TestSecureJoinAllowsDescendants(t *testing.T) {
	root := t.TempDir()

	cases := map[string]string{
		"mods/foo.jar":        filepath.Join(root, "mods", "foo.jar"),
		"./overrides/a.txt":   filepath.Join(root, "overrides", "a.txt"),
		"a/b/../c":            filepath.Join(root, "a", "c"),
	}
	for unsafe, want := range cases {
		got, err := SecureJoin(root, unsafe)
		if err != nil {
			t.Fatalf("SecureJoin(%q, %q) returned error: %v", root, unsafe, err)
		}
		if got != want {
			t.Errorf("SecureJoin(%q, %q) = %q, want %q", root, unsafe, got, want)
		}
	}
}
