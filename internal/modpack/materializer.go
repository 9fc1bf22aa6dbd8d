package modpack

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nickheyer/launcherd/internal/download"
	"github.com/nickheyer/launcherd/internal/pathutil"
	"github.com/nickheyer/launcherd/internal/vtask"
	"github.com/nickheyer/launcherd/pkg/files"
)

const maxFingerprintBatch = 20

// Materializer expands a pending modpack descriptor into a ready instance,
// per spec.md §4.4.
type Materializer struct {
	curseforge *CurseForgeClient
	modrinth   *ModrinthClient
	downloads  *download.Scheduler
}

func NewMaterializer(cf *CurseForgeClient, mr *ModrinthClient, dl *download.Scheduler) *Materializer {
	return &Materializer{curseforge: cf, modrinth: mr, downloads: dl}
}

// ModpackCompleteMarker is the hidden marker file written directly under
// instanceRoot once materialization succeeds. It survives the .setup/
// cleanup below, so a later prepare() can tell the modpack is already in
// place and skip straight to the launch assembler, per spec.md §8's
// "calling prepare again runs the launch assembler but not the
// materializer".
const ModpackCompleteMarker = ".modpack-complete"

// AlreadyMaterialized reports whether instanceRoot has already been
// through a successful Materialize call.
func AlreadyMaterialized(instanceRoot string) bool {
	_, err := os.Stat(filepath.Join(instanceRoot, ModpackCompleteMarker))
	return err == nil
}

// Materialize expands src into instanceRoot, exposing subtasks
// request(1)/extract_files(4)/download_files(10)/addon_metadata(4) on
// task, per spec.md §4.4. On success it writes ModpackCompleteMarker and
// removes .setup/ entirely; on failure .setup/ is left for the next
// prepare() attempt to resume from.
func (m *Materializer) Materialize(ctx context.Context, task *vtask.Task, src Source, instanceRoot string) (*Info, error) {
	tRequest := task.Subtask("request", 1)
	tExtract := task.Subtask("extract_files", 4)
	tDownload := task.Subtask("download_files", 10)
	tMetadata := task.Subtask("addon_metadata", 4)

	tRequest.Start(vtask.Opaque(true))
	archivePath, err := m.obtainArchive(ctx, src, instanceRoot)
	if err != nil {
		return nil, fmt.Errorf("obtain archive: %w", err)
	}
	tRequest.Start(vtask.Opaque(false))

	var info *Info
	switch src.Platform {
	case CurseForge:
		info, err = m.materializeCurseForge(ctx, archivePath, instanceRoot, tExtract, tDownload, tMetadata)
	case Modrinth:
		info, err = m.materializeModrinth(ctx, archivePath, instanceRoot, tExtract, tDownload)
	default:
		return nil, fmt.Errorf("unsupported platform %q", src.Platform)
	}
	if err != nil {
		return nil, err
	}

	marker := filepath.Join(instanceRoot, ModpackCompleteMarker)
	if err := os.WriteFile(marker, []byte{}, 0o644); err != nil {
		return nil, fmt.Errorf("write modpack-complete marker: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(instanceRoot, ".setup")); err != nil {
		return nil, fmt.Errorf("clean up .setup: %w", err)
	}

	return info, nil
}

func (m *Materializer) obtainArchive(ctx context.Context, src Source, instanceRoot string) (string, error) {
	switch src.Kind {
	case LocalManaged, Unmanaged:
		return src.ArchivePath, nil
	case RemoteManaged:
		return m.downloadRemotePack(ctx, src, instanceRoot)
	default:
		return "", fmt.Errorf("unsupported source kind %q", src.Kind)
	}
}

func (m *Materializer) downloadRemotePack(ctx context.Context, src Source, instanceRoot string) (string, error) {
	setupDir := filepath.Join(instanceRoot, ".setup")
	if err := os.MkdirAll(setupDir, 0o755); err != nil {
		return "", fmt.Errorf("create .setup dir: %w", err)
	}

	switch src.Platform {
	case CurseForge:
		projectID, _ := strconv.Atoi(src.ProjectID)
		fileID, _ := strconv.Atoi(src.FileID)
		file, err := m.curseforge.GetModFile(ctx, projectID, fileID)
		if err != nil {
			return "", fmt.Errorf("get modpack file: %w", err)
		}
		archivePath := filepath.Join(setupDir, "pack.zip")
		if err := m.downloads.Run(ctx, []download.Downloadable{
			{URL: file.DownloadURL, Path: archivePath, Size: file.FileLength},
		}, nil, nil); err != nil {
			return "", fmt.Errorf("download curseforge pack: %w", err)
		}
		return archivePath, nil

	case Modrinth:
		version, err := m.modrinth.GetVersion(ctx, src.FileID)
		if err != nil {
			return "", fmt.Errorf("get modpack version: %w", err)
		}
		var primary *ModrinthFile
		for i := range version.Files {
			if version.Files[i].Primary {
				primary = &version.Files[i]
				break
			}
		}
		if primary == nil && len(version.Files) > 0 {
			primary = &version.Files[0]
		}
		if primary == nil {
			return "", fmt.Errorf("modrinth version %s has no files", src.FileID)
		}
		archivePath := filepath.Join(setupDir, "pack.mrpack")
		if err := m.downloads.Run(ctx, []download.Downloadable{
			{URL: primary.URL, Path: archivePath, Size: primary.Size},
		}, nil, nil); err != nil {
			return "", fmt.Errorf("download modrinth pack: %w", err)
		}
		return archivePath, nil

	default:
		return "", fmt.Errorf("unsupported platform %q", src.Platform)
	}
}

// materializeCurseForge implements spec.md §4.4's "CurseForge pack" rule.
func (m *Materializer) materializeCurseForge(
	ctx context.Context, archivePath, instanceRoot string,
	tExtract, tDownload, tMetadata *vtask.Subtask,
) (*Info, error) {
	extractDir, err := os.MkdirTemp("", "curseforge-pack-*")
	if err != nil {
		return nil, fmt.Errorf("create temp extract dir: %w", err)
	}
	defer os.RemoveAll(extractDir)

	tExtract.Start(vtask.Opaque(true))
	if err := files.ExtractArchive(ctx, archivePath, extractDir); err != nil {
		return nil, fmt.Errorf("extract curseforge pack: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(extractDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("read manifest.json: %w", err)
	}
	var manifest CurseForgeManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest.json: %w", err)
	}

	overridesDir := manifest.Overrides
	if overridesDir == "" {
		overridesDir = "overrides"
	}
	if err := copyOverrides(filepath.Join(extractDir, overridesDir), instanceRoot); err != nil {
		return nil, fmt.Errorf("copy overrides: %w", err)
	}
	tExtract.Start(vtask.Opaque(false))

	var required []struct {
		ProjectID, FileID int
	}
	for _, f := range manifest.Files {
		if f.Required {
			required = append(required, struct{ ProjectID, FileID int }{f.ProjectID, f.FileID})
		}
	}

	tMetadata.Start(vtask.Item{Current: 0, Total: uint64(len(required))})
	var downloadables []download.Downloadable
	for i := 0; i < len(required); i += maxFingerprintBatch {
		end := i + maxFingerprintBatch
		if end > len(required) {
			end = len(required)
		}
		batch := required[i:end]
		for _, ref := range batch {
			file, err := m.curseforge.GetModFile(ctx, ref.ProjectID, ref.FileID)
			if err != nil {
				return nil, fmt.Errorf("get mod file %d/%d: %w", ref.ProjectID, ref.FileID, err)
			}
			target := filepath.Join(instanceRoot, "mods", file.FileName)
			downloadables = append(downloadables, download.Downloadable{
				URL: file.DownloadURL, Path: target, Size: file.FileLength,
			})
			tMetadata.Update(vtask.Item{Current: uint64(len(downloadables)), Total: uint64(len(required))})
		}
	}

	if err := m.downloads.Run(ctx, downloadables, nil, tDownload); err != nil {
		return nil, fmt.Errorf("download mod files: %w", err)
	}

	return &Info{
		Release:    manifest.Minecraft.Version,
		ModLoaders: translateCurseForgeLoaders(manifest.Minecraft.ModLoaders),
		Name:       manifest.Name,
		Version:    manifest.Version,
	}, nil
}

// materializeModrinth implements spec.md §4.4's ".mrpack" rule.
func (m *Materializer) materializeModrinth(
	ctx context.Context, archivePath, instanceRoot string,
	tExtract, tDownload *vtask.Subtask,
) (*Info, error) {
	extractDir, err := os.MkdirTemp("", "modrinth-pack-*")
	if err != nil {
		return nil, fmt.Errorf("create temp extract dir: %w", err)
	}
	defer os.RemoveAll(extractDir)

	tExtract.Start(vtask.Opaque(true))
	if err := files.ExtractArchive(ctx, archivePath, extractDir); err != nil {
		return nil, fmt.Errorf("extract modrinth pack: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(extractDir, "modrinth.index.json"))
	if err != nil {
		return nil, fmt.Errorf("read modrinth.index.json: %w", err)
	}
	var index ModrinthIndex
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("parse modrinth.index.json: %w", err)
	}

	for _, dir := range []string{"overrides", "client-overrides"} {
		if err := copyOverrides(filepath.Join(extractDir, dir), instanceRoot); err != nil {
			return nil, fmt.Errorf("copy %s: %w", dir, err)
		}
	}
	tExtract.Start(vtask.Opaque(false))

	var downloadables []download.Downloadable
	for _, f := range index.Files {
		if f.Env.Client != "required" && f.Env.Client != "optional" {
			continue
		}
		if len(f.Downloads) == 0 {
			continue
		}
		target, err := pathutil.SecureJoin(instanceRoot, f.Path)
		if err != nil {
			return nil, fmt.Errorf("unsafe modpack file path %q: %w", f.Path, err)
		}
		var checksum *download.Checksum
		if f.Hashes.SHA1 != "" {
			checksum = &download.Checksum{Algo: download.SHA1, Hex: f.Hashes.SHA1}
		}
		downloadables = append(downloadables, download.Downloadable{
			URL: f.Downloads[0], Mirrors: f.Downloads[1:], Path: target, Size: f.FileSize, Checksum: checksum,
		})
	}

	if err := m.downloads.Run(ctx, downloadables, nil, tDownload); err != nil {
		return nil, fmt.Errorf("download modpack files: %w", err)
	}

	release := index.Dependencies["minecraft"]
	var loaders []ModLoaderRef
	for key, version := range index.Dependencies {
		switch key {
		case "forge":
			loaders = append(loaders, ModLoaderRef{Type: "forge", Version: version})
		case "fabric-loader":
			loaders = append(loaders, ModLoaderRef{Type: "fabric", Version: version})
		case "quilt-loader":
			loaders = append(loaders, ModLoaderRef{Type: "quilt", Version: version})
		}
	}
	sort.Slice(loaders, func(i, j int) bool { return loaders[i].Type < loaders[j].Type })

	return &Info{Release: release, ModLoaders: loaders, Name: index.Name}, nil
}

// translateCurseForgeLoaders maps ids like "forge-43.2.0" to {Forge,
// "43.2.0"}, per spec.md §4.4.
func translateCurseForgeLoaders(raw []struct {
	ID      string `json:"id"`
	Primary bool   `json:"primary"`
}) []ModLoaderRef {
	var out []ModLoaderRef
	for _, l := range raw {
		parts := strings.SplitN(l.ID, "-", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, ModLoaderRef{Type: parts[0], Version: parts[1]})
	}
	return out
}

func copyOverrides(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target, err := pathutil.SecureJoin(dst, rel)
		if err != nil {
			return fmt.Errorf("unsafe override path %q: %w", rel, err)
		}
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
