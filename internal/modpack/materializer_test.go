package modpack

import "testing"

func TestTranslateCurseForgeLoaders(t *testing.T) {
	raw := []struct {
		ID      string `json:"id"`
		Primary bool   `json:"primary"`
	}{
		{ID: "forge-43.2.0", Primary: true},
	}
	got := translateCurseForgeLoaders(raw)
	if len(got) != 1 || got[0].Type != "forge" || got[0].Version != "43.2.0" {
		t.Errorf("translateCurseForgeLoaders = %+v", got)
	}
}

func TestCopyOverridesSkipsMissingDir(t *testing.T) {
	dst := t.TempDir()
	if err := copyOverrides(dst+"/does-not-exist", dst); err != nil {
		t.Errorf("copyOverrides on missing src should be a no-op, got %v", err)
	}
}
