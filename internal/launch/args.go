package launch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nickheyer/launcherd/internal/loader"
)

// PlaceholderContext carries the scalars substituted into
// arguments.jvm/arguments.game, per spec.md §4.6's standard placeholder
// list.
type PlaceholderContext struct {
	AuthPlayerName  string
	VersionName     string
	GameDirectory   string
	AssetsRoot      string
	AssetsIndexName string
	AuthUUID        string
	AuthAccessToken string
	UserType        string
	VersionType     string
	NativesDir      string
	LauncherName    string
	LauncherVersion string
	Classpath       string
}

var placeholderOrder = []string{
	"auth_player_name", "version_name", "game_directory", "assets_root",
	"assets_index_name", "auth_uuid", "auth_access_token", "user_type",
	"version_type", "natives_directory", "launcher_name", "launcher_version",
	"classpath",
}

func (c PlaceholderContext) values() map[string]string {
	return map[string]string{
		"auth_player_name":  c.AuthPlayerName,
		"version_name":      c.VersionName,
		"game_directory":    c.GameDirectory,
		"assets_root":       c.AssetsRoot,
		"assets_index_name": c.AssetsIndexName,
		"auth_uuid":         c.AuthUUID,
		"auth_access_token": c.AuthAccessToken,
		"user_type":         c.UserType,
		"version_type":      c.VersionType,
		"natives_directory": c.NativesDir,
		"launcher_name":     c.LauncherName,
		"launcher_version":  c.LauncherVersion,
		"classpath":         c.Classpath,
	}
}

func substitutePlaceholders(s string, values map[string]string) string {
	for _, key := range placeholderOrder {
		s = strings.ReplaceAll(s, "${"+key+"}", values[key])
	}
	return s
}

// BuildClasspath joins every library artifact path plus the client jar
// using the platform path separator, per spec.md §4.6's classpath rule.
func BuildClasspath(paths []LibraryPaths, clientJar string) string {
	entries := make([]string, 0, len(paths)+1)
	for _, lp := range paths {
		if lp.ArtifactPath != "" {
			entries = append(entries, lp.ArtifactPath)
		}
	}
	entries = append(entries, clientJar)
	return strings.Join(entries, string(os.PathListSeparator))
}

// AssembleArguments filters arguments.jvm/arguments.game by their rule
// sets and substitutes placeholders, per spec.md §4.6's "Argument
// assembly" rule.
func AssembleArguments(manifest *loader.VersionManifest, ctx PlaceholderContext, features map[string]bool) (jvm, game []string) {
	values := ctx.values()
	return expandArgs(manifest.Arguments.JVM, values, features), expandArgs(manifest.Arguments.Game, values, features)
}

func expandArgs(args []loader.Argument, values map[string]string, features map[string]bool) []string {
	var out []string
	for _, a := range args {
		if a.Rules != nil {
			if !EvaluateRules(a.Rules, features) {
				continue
			}
			for _, v := range a.Value {
				out = append(out, substitutePlaceholders(v, values))
			}
			continue
		}
		out = append(out, substitutePlaceholders(a.Plain, values))
	}
	return out
}

// GameDirectory returns <instance>/minecraft, the working directory the
// launched process runs in.
func GameDirectory(instanceDir string) string {
	return filepath.Join(instanceDir, "minecraft")
}
