package launch

import (
	"runtime"

	"github.com/nickheyer/launcherd/internal/loader"
)

// CurrentOSName maps runtime.GOOS onto the windows|linux|osx vocabulary
// used by library/argument rules, per spec.md §4.6: "osx aliases macOS".
func CurrentOSName() string {
	switch runtime.GOOS {
	case "darwin":
		return "osx"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// CurrentArch maps runtime.GOARCH onto the arch vocabulary version
// manifests use.
func CurrentArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "arm64"
	case "386":
		return "x86"
	default:
		return runtime.GOARCH
	}
}

// EvaluateRules applies rules in order and returns the final decision, per
// spec.md §4.6's "a rule whose conditions match sets the running decision
// to its action; the decision after the last matching rule wins. Absent
// rules mean allowed."
func EvaluateRules(rules []loader.Rule, features map[string]bool) bool {
	if len(rules) == 0 {
		return true
	}

	allowed := false
	for _, r := range rules {
		if !ruleMatches(r, features) {
			continue
		}
		allowed = r.Action == "allow"
	}
	return allowed
}

func ruleMatches(r loader.Rule, features map[string]bool) bool {
	if r.OS != nil {
		if r.OS.Name != "" && r.OS.Name != CurrentOSName() {
			return false
		}
		if r.OS.Arch != "" && r.OS.Arch != CurrentArch() {
			return false
		}
	}
	for feature, want := range boolFeatures(r.Features) {
		have, ok := features[feature]
		if !ok {
			have = false
		}
		if have != want {
			return false
		}
	}
	return true
}

func boolFeatures(raw map[string]any) map[string]bool {
	out := make(map[string]bool, len(raw))
	for k, v := range raw {
		if b, ok := v.(bool); ok {
			out[k] = b
		}
	}
	return out
}

// LibraryAllowed reports whether lib may be downloaded/used under the
// current platform and the given active feature set.
func LibraryAllowed(lib loader.Library, features map[string]bool) bool {
	return EvaluateRules(lib.Rules, features)
}
