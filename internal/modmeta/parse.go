package modmeta

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Metadata is the parsed mod descriptor of spec.md §4.7's step 3/4.
type Metadata struct {
	ModID       string
	Name        string
	Version     string
	Description string
	Authors     string
}

// modsToml mirrors the new-style Forge META-INF/mods.toml shape.
type modsToml struct {
	Mods []struct {
		ModID       string `toml:"modId"`
		Version     string `toml:"version"`
		DisplayName string `toml:"displayName"`
		Description string `toml:"description"`
		Authors     string `toml:"authors"`
	} `toml:"mods"`
}

// legacyModInfo is one entry of the old-style mcmod.info array, and also
// the element type of the new-style {modList: [...]} wrapper.
type legacyModInfo struct {
	ModID       string   `json:"modid"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	AuthorList  []string `json:"authorList"`
}

type legacyModInfoWrapper struct {
	ModList []legacyModInfo `json:"modList"`
}

// ParseJar opens jarData as a zip archive and extracts mod metadata,
// trying META-INF/mods.toml first, then mcmod.info, per spec.md §4.7
// step 3. Returns (nil, nil) if the jar carries neither file.
func ParseJar(jarData []byte) (*Metadata, error) {
	zr, err := zip.NewReader(bytes.NewReader(jarData), int64(len(jarData)))
	if err != nil {
		return nil, fmt.Errorf("open jar as zip: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	if f, ok := files["META-INF/mods.toml"]; ok {
		meta, err := parseModsToml(f)
		if err != nil {
			return nil, fmt.Errorf("parse mods.toml: %w", err)
		}
		if meta != nil && meta.Version == "${file.jarVersion}" {
			if v, err := readManifestImplementationVersion(files); err == nil && v != "" {
				meta.Version = v
			}
		}
		return meta, nil
	}

	if f, ok := files["mcmod.info"]; ok {
		return parseMcmodInfo(f)
	}

	return nil, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func parseModsToml(f *zip.File) (*Metadata, error) {
	data, err := readZipFile(f)
	if err != nil {
		return nil, err
	}

	var doc modsToml
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Mods) == 0 {
		return nil, nil
	}
	m := doc.Mods[0]
	return &Metadata{
		ModID:       m.ModID,
		Name:        m.DisplayName,
		Version:     m.Version,
		Description: m.Description,
		Authors:     m.Authors,
	}, nil
}

// parseMcmodInfo handles both the legacy bare-array shape and the newer
// {modList: [...]} wrapper, per spec.md §4.7.
func parseMcmodInfo(f *zip.File) (*Metadata, error) {
	data, err := readZipFile(f)
	if err != nil {
		return nil, err
	}

	var entries []legacyModInfo
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
	} else {
		var wrapper legacyModInfoWrapper
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, err
		}
		entries = wrapper.ModList
	}

	if len(entries) == 0 {
		return nil, nil
	}
	e := entries[0]
	return &Metadata{
		ModID:       e.ModID,
		Name:        e.Name,
		Version:     e.Version,
		Description: e.Description,
		Authors:     strings.Join(e.AuthorList, ", "),
	}, nil
}

// readManifestImplementationVersion reads Implementation-Version from
// META-INF/MANIFEST.MF, used to resolve mods.toml's "${file.jarVersion}"
// placeholder per spec.md §4.7.
func readManifestImplementationVersion(files map[string]*zip.File) (string, error) {
	f, ok := files["META-INF/MANIFEST.MF"]
	if !ok {
		return "", fmt.Errorf("no MANIFEST.MF in jar")
	}
	data, err := readZipFile(f)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "Implementation-Version:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Implementation-Version:")), nil
		}
	}
	return "", nil
}
