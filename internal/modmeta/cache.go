package modmeta

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/nickheyer/launcherd/pkg/logger"
)

// Manager watches every instance's mods/ directory, per spec.md §4.7:
// cache_metadata enqueues a path for foreground hash+parse, and a
// background loop reconciles un-enriched rows against CurseForge/Modrinth
// on a cron-driven schedule with per-row exponential back-off.
type Manager struct {
	db  *gorm.DB
	log *logger.Logger

	cacheCh chan cacheRequest

	backoffMu sync.Mutex
	backoff   map[string]backoffState // keyed by sha1

	cron *cron.Cron

	platforms PlatformReconciler
}

type cacheRequest struct {
	InstanceID int64
	Root       string
	RelPath    string
}

type backoffState struct {
	attempts int
	nextTry  time.Time
}

// PlatformReconciler abstracts the CurseForge/Modrinth enrichment calls so
// the cache manager can be tested without live network access.
type PlatformReconciler interface {
	// ReconcileCurseForge looks up mods by fingerprint in bounded batches.
	ReconcileCurseForge(fingerprints map[uint32]string) (map[string]CurseForgeMatch, error)
	// ReconcileModrinth looks up mods by SHA-1 in bounded batches; SHA-512
	// hashes are neither computed nor sent.
	ReconcileModrinth(sha1Hashes []string) (map[string]ModrinthMatch, error)
}

// CurseForgeMatch is an enrichment result keyed by sha1.
type CurseForgeMatch struct {
	ProjectID string
	FileID    string
	LogoURL   string
}

// ModrinthMatch is an enrichment result keyed by sha1.
type ModrinthMatch struct {
	ProjectID string
	VersionID string
	LogoURL   string
}

const ignoreBackoffBase = 2 * time.Second
const maxBackoffAttempts = 6

// NewManager constructs a Manager. Call Start to launch its background
// goroutines; callers push paths to cache via CacheMetadata.
func NewManager(db *gorm.DB, log *logger.Logger, platforms PlatformReconciler) *Manager {
	return &Manager{
		db:        db,
		log:       log,
		cacheCh:   make(chan cacheRequest, 1024),
		backoff:   make(map[string]backoffState),
		cron:      cron.New(),
		platforms: platforms,
	}
}

// CacheMetadata registers instanceID's file at root/relPath for hashing
// and metadata extraction, per spec.md §4.7's "cache_metadata(path)".
func (m *Manager) CacheMetadata(instanceID int64, root, relPath string) {
	select {
	case m.cacheCh <- cacheRequest{InstanceID: instanceID, Root: root, RelPath: relPath}:
	default:
		m.log.Warn("mod metadata cache channel full, dropping %s", relPath)
	}
}

// Start launches the foreground scan consumer and the background
// reconciliation cron job. May only be called once.
func (m *Manager) Start() {
	go m.consumeLoop()

	// "@every" is a robfig/cron directive, not a calendar expression;
	// it drives the periodic background reconciliation sweep named in
	// spec.md §4.7; each sweep sleeps 200ms between its CurseForge and
	// Modrinth queries.
	_, _ = m.cron.AddFunc("@every 30s", m.reconcileOnce)
	m.cron.Start()
}

// Stop halts the background cron scheduler.
func (m *Manager) Stop() {
	m.cron.Stop()
}

func (m *Manager) consumeLoop() {
	for req := range m.cacheCh {
		if err := m.cacheOne(req); err != nil {
			m.log.Error("mod metadata cache: %v", err)
		}
	}
}

// cacheOne implements spec.md §4.7 steps 1-4 for a single file.
func (m *Manager) cacheOne(req cacheRequest) error {
	path := filepath.Join(req.Root, req.RelPath)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	var cached FileCacheRow
	err = m.db.Where("instance_id = ? AND relative_path = ?", req.InstanceID, req.RelPath).First(&cached).Error
	if err == nil && cached.SizeBytes == info.Size() {
		return nil
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("lookup file cache: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	fp := ComputeFingerprint(data)
	meta, err := ParseJar(data)
	if err != nil {
		return fmt.Errorf("parse metadata for %s: %w", path, err)
	}
	if meta == nil {
		return nil
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("instance_id = ? AND relative_path = ?", req.InstanceID, req.RelPath).
			Delete(&FileCacheRow{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&FileCacheRow{
			InstanceID: req.InstanceID, RelativePath: req.RelPath,
			SizeBytes: info.Size(), SHA1: fp.SHA1,
		}).Error; err != nil {
			return err
		}

		if err := tx.Where("sha1 = ?", fp.SHA1).Delete(&MetadataRow{}).Error; err != nil {
			return err
		}
		return tx.Create(&MetadataRow{
			SHA1: fp.SHA1, Murmur2: fp.Murmur2,
			ModID: meta.ModID, Name: meta.Name, Version: meta.Version,
			Description: meta.Description, Authors: meta.Authors,
			CachedAt: time.Now(), NeedsEnrichment: true,
		}).Error
	})
}

// reconcileOnce pulls up to 1000 un-enriched rows and queries the
// platform APIs, per spec.md §4.7's background loop.
func (m *Manager) reconcileOnce() {
	var rows []MetadataRow
	if err := m.db.Where("needs_enrichment = ?", true).Limit(1000).Find(&rows).Error; err != nil {
		m.log.Error("mod metadata reconcile: list rows: %v", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	due := rows[:0:0]
	now := time.Now()
	m.backoffMu.Lock()
	for _, r := range rows {
		if st, ok := m.backoff[r.SHA1]; ok && now.Before(st.nextTry) {
			continue
		}
		due = append(due, r)
	}
	m.backoffMu.Unlock()
	if len(due) == 0 {
		return
	}

	fingerprints := make(map[uint32]string, len(due))
	var sha1s []string
	for _, r := range due {
		fingerprints[r.Murmur2] = r.SHA1
		sha1s = append(sha1s, r.SHA1)
	}

	cfMatches, cfErr := m.platforms.ReconcileCurseForge(fingerprints)
	if cfErr != nil {
		m.log.Warn("curseforge reconcile: %v", cfErr)
	}
	time.Sleep(200 * time.Millisecond)
	mrMatches, mrErr := m.platforms.ReconcileModrinth(sha1s)
	if mrErr != nil {
		m.log.Warn("modrinth reconcile: %v", mrErr)
	}

	matched := make(map[string]bool)
	for _, r := range due {
		cf, cfOK := cfMatches[r.SHA1]
		mr, mrOK := mrMatches[r.SHA1]
		if !cfOK && !mrOK {
			m.bumpBackoff(r.SHA1)
			continue
		}
		matched[r.SHA1] = true

		updates := map[string]any{"needs_enrichment": false}
		if cfOK {
			updates["curse_forge_project_id"] = cf.ProjectID
			updates["curse_forge_file_id"] = cf.FileID
			updates["curse_forge_logo_url"] = cf.LogoURL
			updates["curse_forge_cached_at"] = now
		}
		if mrOK {
			updates["modrinth_project_id"] = mr.ProjectID
			updates["modrinth_version_id"] = mr.VersionID
			updates["modrinth_logo_url"] = mr.LogoURL
			updates["modrinth_cached_at"] = now
		}
		if err := m.db.Model(&MetadataRow{}).Where("sha1 = ?", r.SHA1).Updates(updates).Error; err != nil {
			m.log.Error("mod metadata reconcile: update %s: %v", r.SHA1, err)
		}
	}

	m.backoffMu.Lock()
	for sha1 := range matched {
		delete(m.backoff, sha1)
	}
	m.backoffMu.Unlock()
}

func (m *Manager) bumpBackoff(sha1 string) {
	m.backoffMu.Lock()
	defer m.backoffMu.Unlock()
	st := m.backoff[sha1]
	if st.attempts < maxBackoffAttempts {
		st.attempts++
	}
	delay := ignoreBackoffBase << uint(st.attempts-1)
	st.nextTry = time.Now().Add(delay)
	m.backoff[sha1] = st
}
