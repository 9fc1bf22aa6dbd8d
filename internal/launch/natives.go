package launch

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nickheyer/launcherd/internal/pathutil"
)

// ExtractNatives unpacks each library's native-classifier jar into
// <instance>/natives/, excluding any path matching the library's
// extract.exclude list, per spec.md §4.6's "Natives" rule.
func ExtractNatives(paths []LibraryPaths, instanceDir string) error {
	nativesDir := filepath.Join(instanceDir, "natives")
	if err := os.MkdirAll(nativesDir, 0o755); err != nil {
		return fmt.Errorf("create natives dir: %w", err)
	}

	for _, lp := range paths {
		if lp.NativePath == "" {
			continue
		}
		var exclude []string
		if lp.Library.Extract != nil {
			exclude = lp.Library.Extract.Exclude
		}
		if err := extractNativeJar(lp.NativePath, nativesDir, exclude); err != nil {
			return fmt.Errorf("extract natives from %s: %w", lp.NativePath, err)
		}
	}
	return nil
}

func extractNativeJar(jarPath, destDir string, exclude []string) error {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || isExcluded(f.Name, exclude) {
			continue
		}
		if err := extractNativeEntry(f, destDir); err != nil {
			return err
		}
	}
	return nil
}

func isExcluded(name string, exclude []string) bool {
	for _, prefix := range exclude {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func extractNativeEntry(f *zip.File, destDir string) error {
	target, err := pathutil.SecureJoin(destDir, filepath.FromSlash(f.Name))
	if err != nil {
		return fmt.Errorf("native entry %q escapes destination: %w", f.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
