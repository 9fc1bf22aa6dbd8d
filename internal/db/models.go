// Package db holds the gorm-backed persistence models for the instance
// group ordering table (§4.3) plus the shared ModLoaderType vocabulary
// used by the loader merger, following the struct-tagging and CRUD-store
// conventions of the teacher's internal/db/models.go + internal/db/store.go
// (Server/ServerConfig there, InstanceGroup here).
package db

import (
	"time"

	"gorm.io/gorm"
)

// ModLoaderType enumerates the three supported loaders, per spec.md §3.
// Forge > Fabric > Quilt is the deterministic precedence order used by the
// loader merger (§4.5) when more than one is present.
type ModLoaderType string

const (
	LoaderForge  ModLoaderType = "forge"
	LoaderFabric ModLoaderType = "fabric"
	LoaderQuilt  ModLoaderType = "quilt"
)

// ModLoaderPrecedence ranks loader types; lower is higher precedence.
func ModLoaderPrecedence(t ModLoaderType) int {
	switch t {
	case LoaderForge:
		return 0
	case LoaderFabric:
		return 1
	case LoaderQuilt:
		return 2
	default:
		return 99
	}
}

// InstanceGroup is a named ordered container of instances, per spec.md §3.
type InstanceGroup struct {
	ID         uint    `gorm:"primarykey"`
	Name       string  `gorm:"not null"`
	GroupIndex float64 `gorm:"not null;index"`
	IsDefault  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (InstanceGroup) TableName() string { return "instance_group" }

// AllModels is passed to AutoMigrate/gormigrate; keeping it centralized
// avoids the migration list silently drifting from the model set.
//
// Instance/mod state itself is not modeled here: the instance store
// (internal/instance) treats each <runtime>/instances/<shortpath>/instance.json
// file as authoritative and the mods/ directory on disk as the live mod
// list, per spec.md's Non-goals on the persisted schema. InstanceGroup is
// the one piece of instance-adjacent state gorm actually owns, since group
// ordering has no natural home on disk.
func AllModels() []any {
	return []any{
		&InstanceGroup{},
	}
}

// DefaultGroupName matches spec.md §3's "the default group ... plus one
// ungrouped bucket" language; callers seed this group on first run.
const DefaultGroupName = "Default"

// EnsureDefaultGroup returns the group marked is_default, creating it if
// no such group exists yet.
func EnsureDefaultGroup(db *gorm.DB) (*InstanceGroup, error) {
	var g InstanceGroup
	err := db.Where("is_default = ?", true).First(&g).Error
	if err == nil {
		return &g, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	g = InstanceGroup{Name: DefaultGroupName, GroupIndex: 0, IsDefault: true}
	if err := db.Create(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}
