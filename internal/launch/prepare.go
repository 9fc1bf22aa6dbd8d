package launch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nickheyer/launcherd/internal/download"
	"github.com/nickheyer/launcherd/internal/loader"
	"github.com/nickheyer/launcherd/internal/vtask"
)

// Options carries the scalars an Assembler needs beyond the merged
// manifest itself: account identity, the configured Java binary, and
// launcher branding for the placeholder set.
type Options struct {
	JavaBin         string
	AuthPlayerName  string
	AuthUUID        string
	AuthAccessToken string
	UserType        string
	LauncherName    string
	LauncherVersion string
}

// Assembler drives the "download libraries/assets → extract natives"
// steps of instance preparation, per spec.md §4.6 and the ordering rule in
// §5: "request metadata → modpack materialize → download libraries/assets
// → extract natives → run processors → (optional) launch". Processors are
// not run here; loader.RunProcessors runs them after Prepare returns.
type Assembler struct {
	downloads *download.Scheduler
	roots     Roots
}

func NewAssembler(downloads *download.Scheduler, roots Roots) *Assembler {
	return &Assembler{downloads: downloads, roots: roots}
}

// Prepare downloads the client jar, asset index + objects, and libraries,
// then extracts natives, returning the resolved library paths needed for
// classpath/processor construction. It reports progress on two subtasks:
// download_assets and extract_natives.
func (a *Assembler) Prepare(ctx context.Context, task *vtask.Task, manifest *loader.VersionManifest, features map[string]bool) ([]LibraryPaths, string, error) {
	tDownload := task.Subtask("download_assets", 10)
	tNatives := task.Subtask("extract_natives", 1)

	clientDL, err := BuildClientJarDownload(manifest, a.roots)
	if err != nil {
		return nil, "", err
	}

	indexDL := BuildAssetIndexDownload(manifest, a.roots)
	tDownload.Start(vtask.Download{})
	if err := a.downloads.Run(ctx, []download.Downloadable{*clientDL, indexDL}, nil, nil); err != nil {
		return nil, "", fmt.Errorf("download client jar and asset index: %w", err)
	}

	raw, err := os.ReadFile(indexDL.Path)
	if err != nil {
		return nil, "", fmt.Errorf("read asset index: %w", err)
	}
	var assetIndex AssetIndex
	if err := json.Unmarshal(raw, &assetIndex); err != nil {
		return nil, "", fmt.Errorf("decode asset index: %w", err)
	}

	objectDownloads := BuildAssetObjectDownloads(assetIndex, a.roots)
	libraryDownloads, libraryPaths, err := BuildLibraryDownloads(manifest, a.roots, features)
	if err != nil {
		return nil, "", err
	}

	all := append(objectDownloads, libraryDownloads...)
	if err := a.downloads.Run(ctx, all, nil, tDownload); err != nil {
		return nil, "", fmt.Errorf("download assets and libraries: %w", err)
	}

	tNatives.Start(vtask.Opaque(true))
	if err := ExtractNatives(libraryPaths, a.roots.Instance); err != nil {
		return nil, "", fmt.Errorf("extract natives: %w", err)
	}

	return libraryPaths, clientDL.Path, nil
}

// Launch assembles the JVM argv from the merged manifest and spawns the
// child process, per spec.md §4.6's "Process supervision" rule.
func Launch(ctx context.Context, manifest *loader.VersionManifest, paths []LibraryPaths, clientJar string, opts Options, roots Roots) (*Process, error) {
	gameDir := GameDirectory(roots.Instance)
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		return nil, fmt.Errorf("create game directory: %w", err)
	}

	classpath := BuildClasspath(paths, clientJar)
	pctx := PlaceholderContext{
		AuthPlayerName:  opts.AuthPlayerName,
		VersionName:     manifest.ID,
		GameDirectory:   gameDir,
		AssetsRoot:      roots.Assets,
		AssetsIndexName: manifest.AssetIndex.ID,
		AuthUUID:        opts.AuthUUID,
		AuthAccessToken: opts.AuthAccessToken,
		UserType:        opts.UserType,
		VersionType:     manifest.Type,
		NativesDir:      filepath.Join(roots.Instance, "natives"),
		LauncherName:    opts.LauncherName,
		LauncherVersion: opts.LauncherVersion,
		Classpath:       classpath,
	}

	jvmArgs, gameArgs := AssembleArguments(manifest, pctx, nil)
	return Spawn(ctx, opts.JavaBin, gameDir, jvmArgs, manifest.MainClass, gameArgs)
}
