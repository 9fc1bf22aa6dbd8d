package modmeta

import "time"

// FileCacheRow mirrors the original_source's mod_file_cache table: a
// (instance, relative path, size) keyed pointer to the content-derived
// FileCacheRow.SHA1, letting cache_metadata skip unchanged files cheaply.
type FileCacheRow struct {
	InstanceID   int64  `gorm:"primaryKey;autoIncrement:false"`
	RelativePath string `gorm:"primaryKey"`
	SizeBytes    int64  `gorm:"not null"`
	SHA1         string `gorm:"not null;index"`
}

func (FileCacheRow) TableName() string { return "mod_file_cache" }

// MetadataRow is the spec.md §4.7 mod metadata cache row, keyed by sha1.
type MetadataRow struct {
	SHA1        string `gorm:"primaryKey"`
	Murmur2     uint32 `gorm:"index"`
	ModID       string
	Name        string
	Version     string
	Description string
	Authors     string
	CachedAt    time.Time

	CurseForgeProjectID string
	CurseForgeFileID    string
	CurseForgeLogoURL   string
	CurseForgeCachedAt  *time.Time

	ModrinthProjectID  string
	ModrinthVersionID  string
	ModrinthLogoURL    string
	ModrinthCachedAt   *time.Time

	NeedsEnrichment bool `gorm:"index"`
}

func (MetadataRow) TableName() string { return "mod_metadata" }

// AllModels is passed to AutoMigrate alongside internal/db's model set.
func AllModels() []any {
	return []any{&FileCacheRow{}, &MetadataRow{}}
}
