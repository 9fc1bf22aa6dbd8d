package modmeta

import (
	"context"
	"strconv"

	"github.com/nickheyer/launcherd/internal/modpack"
)

// PlatformClients adapts the CurseForge/Modrinth materializer clients to
// the PlatformReconciler interface the background reconcile loop calls
// against, per spec.md §4.7's "query each platform's batch fingerprint/hash
// endpoint" rule.
type PlatformClients struct {
	CurseForge *modpack.CurseForgeClient
	Modrinth   *modpack.ModrinthClient
}

// ReconcileCurseForge maps fingerprints to their owning sha1 before
// delegating to the CurseForge batch fingerprint-match endpoint, then
// re-keys the result by sha1 for the cache manager.
func (p PlatformClients) ReconcileCurseForge(fingerprints map[uint32]string) (map[string]CurseForgeMatch, error) {
	keys := make([]uint32, 0, len(fingerprints))
	for fp := range fingerprints {
		keys = append(keys, fp)
	}

	matches, err := p.CurseForge.MatchFingerprints(context.Background(), keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string]CurseForgeMatch, len(matches))
	for fp, file := range matches {
		sha1, ok := fingerprints[fp]
		if !ok {
			continue
		}
		out[sha1] = CurseForgeMatch{
			ProjectID: strconv.Itoa(file.ModID),
			FileID:    strconv.Itoa(file.ID),
		}
	}
	return out, nil
}

// ReconcileModrinth delegates to the Modrinth batch sha1-match endpoint.
func (p PlatformClients) ReconcileModrinth(sha1Hashes []string) (map[string]ModrinthMatch, error) {
	matches, err := p.Modrinth.MatchBySHA1(context.Background(), sha1Hashes)
	if err != nil {
		return nil, err
	}

	out := make(map[string]ModrinthMatch, len(matches))
	for sha1, v := range matches {
		out[sha1] = ModrinthMatch{
			ProjectID: v.ProjectID,
			VersionID: v.ID,
		}
	}
	return out, nil
}
