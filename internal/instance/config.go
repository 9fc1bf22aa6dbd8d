// Package instance implements the instance store of spec.md §4.3: the
// authoritative in-memory InstanceId -> Instance map backed by
// <runtime>/instances/<shortpath>/instance.json on disk, plus group
// ordering via the fractional group_index scheme.
package instance

import (
	"encoding/json"
	"time"
)

// Icon is Default | RelativePath per spec.md §3.
type Icon struct {
	Default      bool   `json:"default"`
	RelativePath string `json:"relative_path,omitempty"`
}

// ModpackRef identifies the modpack an instance was materialized from.
type ModpackRef struct {
	Platform  string `json:"platform"` // curseforge|modrinth
	ProjectID string `json:"project_id"`
	FileID    string `json:"file_id"` // file_id (CurseForge) or version_id (Modrinth)
}

// ModLoaderRef is one element of Standard{modloaders}.
type ModLoaderRef struct {
	Type    string `json:"type"` // forge|fabric|quilt
	Version string `json:"version"`
}

// StandardVersion is the Standard{release, modloaders} sum-type arm.
type StandardVersion struct {
	Release    string         `json:"release"`
	ModLoaders []ModLoaderRef `json:"modloaders"`
}

// VersionField is the version sum type: Standard{...} | Custom{raw_json}.
type VersionField struct {
	Standard *StandardVersion `json:"standard,omitempty"`
	Custom   json.RawMessage  `json:"custom,omitempty"`
}

// MemoryRange is the JVM heap range of the game configuration.
type MemoryRange struct {
	MinMB int `json:"min_mb"`
	MaxMB int `json:"max_mb"`
}

// GameConfiguration is the {version, global_java_args, extra_java_args,
// memory_range} group named in spec.md §3.
type GameConfiguration struct {
	Version        VersionField `json:"version"`
	GlobalJavaArgs string       `json:"global_java_args,omitempty"`
	ExtraJavaArgs  string       `json:"extra_java_args,omitempty"`
	MemoryRange    MemoryRange  `json:"memory_range"`
}

// Config is the configuration document persisted as instance.json.
type Config struct {
	Name              string            `json:"name"`
	Icon              Icon              `json:"icon"`
	LastPlayed        *time.Time        `json:"last_played,omitempty"`
	SecondsPlayed     uint64            `json:"seconds_played"`
	Modpack           *ModpackRef       `json:"modpack,omitempty"`
	GameConfiguration GameConfiguration `json:"game_configuration"`
	Notes             string            `json:"notes,omitempty"`
}
