package loader

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
)

// ProcessorContext carries the paths and scalars processors' placeholder
// substitution needs, per spec.md §4.5's "always injected" augmentations.
type ProcessorContext struct {
	JavaBin      string
	LibrariesDir string
	ClientJar    string
	Release      string
	InstanceDir  string
}

var mavenPlaceholder = regexp.MustCompile(`^\[(.+)\]$`)

// RunProcessors executes each processor whose sides include "client", in
// manifest order, per spec.md §4.5. A nonzero exit aborts preparation.
func RunProcessors(ctx context.Context, manifest *VersionManifest, pctx ProcessorContext) error {
	for i, proc := range manifest.Processors {
		if len(proc.Sides) > 0 && !slices.Contains(proc.Sides, "client") {
			continue
		}
		if err := runProcessor(ctx, proc, manifest.Data, pctx); err != nil {
			return fmt.Errorf("processor %d (%s): %w", i, proc.JAR, err)
		}
	}
	return nil
}

func runProcessor(ctx context.Context, proc Processor, data map[string]DataEntry, pctx ProcessorContext) error {
	classpathCoords := append(append([]string{}, proc.Classpath...), proc.JAR)
	classpath := make([]string, 0, len(classpathCoords))
	for _, coord := range classpathCoords {
		path, err := ResolvePath(pctx.LibrariesDir, coord, "")
		if err != nil {
			return fmt.Errorf("resolve classpath entry %q: %w", coord, err)
		}
		classpath = append(classpath, path)
	}

	jarPath, err := ResolvePath(pctx.LibrariesDir, proc.JAR, "")
	if err != nil {
		return fmt.Errorf("resolve processor jar %q: %w", proc.JAR, err)
	}
	mainClass, err := readMainClass(jarPath)
	if err != nil {
		return fmt.Errorf("read Main-Class from %s: %w", jarPath, err)
	}

	args := make([]string, 0, len(proc.Args))
	for _, a := range proc.Args {
		args = append(args, substitutePlaceholder(a, data, pctx))
	}

	sep := string(os.PathListSeparator)
	cmd := exec.CommandContext(ctx, pctx.JavaBin, append([]string{"-cp", strings.Join(classpath, sep), mainClass}, args...)...)
	cmd.Dir = pctx.InstanceDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("process exited non-zero: %w (output: %s)", err, out)
	}
	return nil
}

// substitutePlaceholder handles {NAME}, [maven:coord], and the always-
// injected augmentations named in spec.md §4.5.
func substitutePlaceholder(arg string, data map[string]DataEntry, pctx ProcessorContext) string {
	switch arg {
	case "{SIDE}":
		return "client"
	case "{MINECRAFT_JAR}":
		return pctx.ClientJar
	case "{MINECRAFT_VERSION}":
		return pctx.Release
	case "{ROOT}":
		return pctx.InstanceDir
	case "{LIBRARY_DIR}":
		return pctx.LibrariesDir
	}

	if strings.HasPrefix(arg, "{") && strings.HasSuffix(arg, "}") {
		name := strings.TrimSuffix(strings.TrimPrefix(arg, "{"), "}")
		if entry, ok := data[name]; ok {
			return resolveDataValue(entry.Client, pctx)
		}
	}

	if m := mavenPlaceholder.FindStringSubmatch(arg); m != nil {
		coord := strings.TrimPrefix(m[1], "maven:")
		if path, err := ResolvePath(pctx.LibrariesDir, coord, ""); err == nil {
			return path
		}
	}

	return arg
}

func resolveDataValue(value string, pctx ProcessorContext) string {
	if m := mavenPlaceholder.FindStringSubmatch(value); m != nil {
		coord := strings.TrimPrefix(m[1], "maven:")
		if path, err := ResolvePath(pctx.LibrariesDir, coord, ""); err == nil {
			return path
		}
	}
	return value
}

// readMainClass opens jarPath and reads Main-Class from
// META-INF/MANIFEST.MF, per spec.md §4.5.
func readMainClass(jarPath string) (string, error) {
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", fmt.Errorf("open jar: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open manifest: %w", err)
		}
		defer rc.Close()

		buf := make([]byte, f.UncompressedSize64)
		if _, err := readFull(rc, buf); err != nil {
			return "", fmt.Errorf("read manifest: %w", err)
		}
		for _, line := range strings.Split(string(buf), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.HasPrefix(line, "Main-Class:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "Main-Class:")), nil
			}
		}
	}
	return "", fmt.Errorf("no META-INF/MANIFEST.MF in %s", jarPath)
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

// currentOSName maps runtime.GOOS onto the windows|linux|osx vocabulary of
// spec.md §4.6's rule evaluation.
func currentOSName() string {
	switch runtime.GOOS {
	case "darwin":
		return "osx"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}
