package modpack

import (
	"context"
	"strconv"
)

// Lookup adapts CurseForgeClient/ModrinthClient to the instance store's
// "latest file/version id for a project" shape, used to compute
// modpack_update_{platform} per spec.md §165.
type Lookup struct {
	CurseForge *CurseForgeClient
	Modrinth   *ModrinthClient
}

func (l Lookup) LatestCurseForgeFileID(ctx context.Context, projectID string) (string, error) {
	id, err := strconv.Atoi(projectID)
	if err != nil {
		return "", err
	}
	file, err := l.CurseForge.GetLatestFile(ctx, id)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(file.ID), nil
}

func (l Lookup) LatestModrinthVersionID(ctx context.Context, projectID string) (string, error) {
	v, err := l.Modrinth.GetLatestVersion(ctx, projectID)
	if err != nil {
		return "", err
	}
	return v.ID, nil
}
