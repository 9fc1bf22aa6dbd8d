package modmeta

import (
	"archive/zip"
	"bytes"
	"testing"
)

func buildJar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestParseJarModsToml(t *testing.T) {
	jar := buildJar(t, map[string]string{
		"META-INF/mods.toml": `
[[mods]]
modId = "examplemod"
version = "1.2.3"
displayName = "Example Mod"
description = "does things"
authors = "Someone"
`,
	})

	meta, err := ParseJar(jar)
	if err != nil {
		t.Fatalf("ParseJar: %v", err)
	}
	if meta == nil {
		t.Fatal("expected metadata, got nil")
	}
	if meta.ModID != "examplemod" || meta.Version != "1.2.3" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestParseJarModsTomlResolvesJarVersionPlaceholder(t *testing.T) {
	jar := buildJar(t, map[string]string{
		"META-INF/mods.toml": `
[[mods]]
modId = "examplemod"
version = "${file.jarVersion}"
displayName = "Example Mod"
`,
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\r\nImplementation-Version: 4.5.6\r\n",
	})

	meta, err := ParseJar(jar)
	if err != nil {
		t.Fatalf("ParseJar: %v", err)
	}
	if meta.Version != "4.5.6" {
		t.Errorf("version = %q, want 4.5.6 (resolved from MANIFEST.MF)", meta.Version)
	}
}

func TestParseJarMcmodInfoLegacyArray(t *testing.T) {
	jar := buildJar(t, map[string]string{
		"mcmod.info": `[{"modid":"legacymod","name":"Legacy Mod","version":"0.1","authorList":["A","B"]}]`,
	})

	meta, err := ParseJar(jar)
	if err != nil {
		t.Fatalf("ParseJar: %v", err)
	}
	if meta.ModID != "legacymod" || meta.Authors != "A, B" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestParseJarMcmodInfoModListWrapper(t *testing.T) {
	jar := buildJar(t, map[string]string{
		"mcmod.info": `{"modList":[{"modid":"wrapped","name":"Wrapped Mod","version":"2.0"}]}`,
	})

	meta, err := ParseJar(jar)
	if err != nil {
		t.Fatalf("ParseJar: %v", err)
	}
	if meta.ModID != "wrapped" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestParseJarReturnsNilWhenNoMetadataPresent(t *testing.T) {
	jar := buildJar(t, map[string]string{"some/class/File.class": "not metadata"})

	meta, err := ParseJar(jar)
	if err != nil {
		t.Fatalf("ParseJar: %v", err)
	}
	if meta != nil {
		t.Errorf("expected nil metadata, got %+v", meta)
	}
}
