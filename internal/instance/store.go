package instance

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gdb "github.com/nickheyer/launcherd/internal/db"
	"github.com/nickheyer/launcherd/internal/download"
	"github.com/nickheyer/launcherd/internal/events"
	"github.com/nickheyer/launcherd/internal/modmeta"
)

// Id is the monotonically increasing integer identifying an instance.
type Id int64

// State is the classification from spec.md §4.3's scan(): Valid, Invalid,
// or Installing. No other states exist.
type State int

const (
	Valid State = iota
	Invalid
	Installing
)

// InvalidReason captures why an instance failed to parse, per spec.md §3's
// Invalid.JsonMissing / Invalid.JsonError{syntax|data|eof, message, line}.
type InvalidReason struct {
	Kind       string // json_missing | syntax | data | eof
	Message    string
	Line       int
	ConfigText string
}

// Mod is the in-memory mirror of a mods/ directory entry, per spec.md §3.
type Mod struct {
	ID         string // hex(SHA-1 of bytes)
	Filename   string
	Enabled    bool
	ModLoaders []string
	ModID      string
	Name       string
	Version    string
	Description string
	Authors    string
}

// Instance is the in-memory representation held in the store's
// authoritative map, per spec.md §4.3.
type Instance struct {
	ID         Id
	GroupID    uint
	GroupIndex float64
	Shortpath  string
	State      State
	Invalid    *InvalidReason
	Config     Config
	Mods       []Mod
}

// Group mirrors db.InstanceGroup for in-memory ordering decisions.
type Group struct {
	ID         uint
	Name       string
	GroupIndex float64
	IsDefault  bool
}

// MoveTarget is target ∈ {Before(id2), EndOfGroup(gid)} from spec.md §4.3.
type MoveTarget struct {
	BeforeID    *Id
	EndOfGroup  *uint
}

// Store is the instance store of spec.md §4.3: a single read/write lock
// guards the in-memory map; filesystem writes happen while holding the
// write lock; heavy parsing happens outside the lock, per §5.
type Store struct {
	root string // <runtime>/instances
	db   *gdb.Store
	bus  *events.Bus

	nextID atomic.Int64

	mu        sync.RWMutex
	instances map[Id]*Instance
	groups    map[uint]*Group

	metaManager *modmeta.Manager
	downloads   *download.Scheduler

	modpackLookup   ModpackLookup
	modpackUpdateMu sync.Mutex
	modpackUpdate   map[string]modpackUpdateEntry
}

// ModpackLookup resolves the latest published file/version id for a
// modpack project, used to compute modpack_update_{platform} per
// spec.md §165. Errors are treated as "no update known" by callers.
type ModpackLookup interface {
	LatestCurseForgeFileID(ctx context.Context, projectID string) (string, error)
	LatestModrinthVersionID(ctx context.Context, projectID string) (string, error)
}

type modpackUpdateEntry struct {
	latestID  string
	checkedAt time.Time
}

const modpackUpdateCacheTTL = 24 * time.Hour

// SetMetaManager wires the mod metadata cache's ingestion entry point, per
// spec.md §4.7. Without it, mods are still enumerated but never hashed or
// enriched.
func (s *Store) SetMetaManager(m *modmeta.Manager) { s.metaManager = m }

// SetDownloads wires the scheduler InstallMod uses to fetch a mod file.
func (s *Store) SetDownloads(d *download.Scheduler) { s.downloads = d }

// SetModpackLookup wires the CurseForge/Modrinth "latest file/version"
// lookups InstanceDetails uses to compute modpack_update_{platform}.
func (s *Store) SetModpackLookup(l ModpackLookup) { s.modpackLookup = l }

// Open constructs a Store rooted at instanceRoot, ensures a default group
// exists, and runs an initial scan().
func Open(instanceRoot string, store *gdb.Store, bus *events.Bus) (*Store, error) {
	if err := os.MkdirAll(instanceRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create instance root: %w", err)
	}

	s := &Store{
		root:          instanceRoot,
		db:            store,
		bus:           bus,
		instances:     make(map[Id]*Instance),
		groups:        make(map[uint]*Group),
		modpackUpdate: make(map[string]modpackUpdateEntry),
	}

	if _, err := gdb.EnsureDefaultGroup(store.DB); err != nil {
		return nil, fmt.Errorf("ensure default group: %w", err)
	}
	if err := s.loadGroups(); err != nil {
		return nil, err
	}
	if err := s.Scan(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadGroups() error {
	var rows []gdb.InstanceGroup
	if err := s.db.DB.Order("group_index asc").Find(&rows).Error; err != nil {
		return fmt.Errorf("load groups: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.groups[r.ID] = &Group{ID: r.ID, Name: r.Name, GroupIndex: r.GroupIndex, IsDefault: r.IsDefault}
	}
	return nil
}

func (s *Store) defaultGroupID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, g := range s.groups {
		if g.IsDefault {
			return id
		}
	}
	return 0
}

// instanceJSONPath returns <root>/<shortpath>/instance.json.
func (s *Store) instanceJSONPath(shortpath string) string {
	return filepath.Join(s.root, shortpath, "instance.json")
}

func (s *Store) setupDir(shortpath string) string {
	return filepath.Join(s.root, shortpath, ".setup")
}

// GameDir returns the game working directory for shortpath, per §6's
// filesystem layout (`minecraft/`).
func (s *Store) GameDir(shortpath string) string {
	return filepath.Join(s.root, shortpath, "minecraft")
}

// modsDir returns the mods/ directory under an instance's game directory.
func (s *Store) modsDir(shortpath string) string {
	return filepath.Join(s.GameDir(shortpath), "mods")
}

// scanMods walks gameDir/mods and returns one Mod per jar (enabled or
// .disabled), consulting the mod metadata cache for enrichment and
// enqueuing newly-seen files for background ingestion, per spec.md §4.7.
func (s *Store) scanMods(instanceID Id, gameDir string) []Mod {
	modsDir := filepath.Join(gameDir, "mods")
	entries, err := os.ReadDir(modsDir)
	if err != nil {
		return nil
	}

	var mods []Mod
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if mod := s.scanOneMod(instanceID, modsDir, e.Name()); mod != nil {
			mods = append(mods, *mod)
		}
	}
	return mods
}

// scanOneMod fingerprints a single mods/ directory entry and, if the
// metadata cache already has an enriched row for its sha1, fills in the
// mod's display fields. It also enqueues the file for foreground hashing
// via the metadata manager so newly-added mods eventually get cached,
// per spec.md §4.7's cache_metadata(path) entry point.
func (s *Store) scanOneMod(instanceID Id, modsDir, name string) *Mod {
	enabled := !strings.HasSuffix(name, ".disabled")
	filename := strings.TrimSuffix(name, ".disabled")
	if !strings.HasSuffix(filename, ".jar") {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(modsDir, name))
	if err != nil {
		return nil
	}
	sum := sha1.Sum(data)
	id := hex.EncodeToString(sum[:])

	mod := Mod{ID: id, Filename: filename, Enabled: enabled}

	if s.db != nil {
		var row modmeta.MetadataRow
		if err := s.db.DB.Where("sha1 = ?", id).First(&row).Error; err == nil {
			mod.ModID = row.ModID
			mod.Name = row.Name
			mod.Version = row.Version
			mod.Description = row.Description
			mod.Authors = row.Authors
		}
	}

	if s.metaManager != nil {
		s.metaManager.CacheMetadata(int64(instanceID), modsDir, name)
	}

	return &mod
}

// Scan enumerates the instance root, parses each child, and classifies it
// Valid/Invalid/Installing, per spec.md §4.3. Parsing happens without
// holding the write lock; the map swap is the only locked section.
func (s *Store) Scan() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read instance root: %w", err)
	}

	defaultGroup := s.defaultGroupID()

	parsed := make(map[Id]*Instance)
	var nextID int64
	var idx float64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		shortpath := e.Name()
		inst := s.parseOne(shortpath, defaultGroup, idx)
		idx++
		id := Id(nextID + 1)
		nextID++
		inst.ID = id
		if inst.State == Valid {
			inst.Mods = s.scanMods(id, s.GameDir(shortpath))
		}
		parsed[id] = inst
	}

	s.mu.Lock()
	s.instances = parsed
	if nextID > s.nextID.Load() {
		s.nextID.Store(nextID)
	}
	s.mu.Unlock()

	return nil
}

func (s *Store) parseOne(shortpath string, defaultGroup uint, idx float64) *Instance {
	dir := filepath.Join(s.root, shortpath)

	if _, err := os.Stat(filepath.Join(dir, ".setup")); err == nil {
		return &Instance{Shortpath: shortpath, GroupID: defaultGroup, GroupIndex: idx, State: Installing}
	}

	path := s.instanceJSONPath(shortpath)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Instance{
				Shortpath: shortpath, GroupID: defaultGroup, GroupIndex: idx, State: Invalid,
				Invalid: &InvalidReason{Kind: "json_missing", Message: "instance.json not found"},
			}
		}
		return &Instance{
			Shortpath: shortpath, GroupID: defaultGroup, GroupIndex: idx, State: Invalid,
			Invalid: &InvalidReason{Kind: "eof", Message: err.Error()},
		}
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		kind, line := classifyJSONError(err, raw)
		return &Instance{
			Shortpath: shortpath, GroupID: defaultGroup, GroupIndex: idx, State: Invalid,
			Invalid: &InvalidReason{Kind: kind, Message: err.Error(), Line: line, ConfigText: string(raw)},
		}
	}

	return &Instance{
		Shortpath: shortpath, GroupID: defaultGroup, GroupIndex: idx, State: Valid, Config: cfg,
	}
}

// classifyJSONError maps an encoding/json error onto spec.md's
// syntax|data|eof taxonomy and derives a 1-based line number.
func classifyJSONError(err error, raw []byte) (kind string, line int) {
	var offset int64
	switch e := err.(type) {
	case *json.SyntaxError:
		kind, offset = "syntax", e.Offset
	case *json.UnmarshalTypeError:
		kind, offset = "data", e.Offset
	default:
		return "eof", 0
	}
	line = 1
	for i, b := range raw {
		if int64(i) >= offset {
			break
		}
		if b == '\n' {
			line++
		}
	}
	return kind, line
}

// CreateInstance allocates a shortpath, writes .setup/ then instance.json
// then removes .setup/, per spec.md §4.3's lifecycle. Returns the new Id.
func (s *Store) CreateInstance(groupID uint, name string, icon Icon, version VersionField) (Id, error) {
	s.mu.Lock()
	taken := make(map[string]bool, len(s.instances))
	for _, inst := range s.instances {
		taken[inst.Shortpath] = true
	}
	s.mu.Unlock()

	shortpath := UniqueShortpath(Slugify(name), taken)
	dir := filepath.Join(s.root, shortpath)

	if err := os.MkdirAll(s.setupDir(shortpath), 0o755); err != nil {
		return 0, fmt.Errorf("create .setup: %w", err)
	}
	if err := os.MkdirAll(s.GameDir(shortpath), 0o755); err != nil {
		return 0, fmt.Errorf("create game dir: %w", err)
	}

	cfg := Config{
		Name: name,
		Icon: icon,
		GameConfiguration: GameConfiguration{
			Version: version,
		},
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal instance.json: %w", err)
	}
	if err := writeAtomic(s.instanceJSONPath(shortpath), raw); err != nil {
		return 0, err
	}
	if err := os.RemoveAll(s.setupDir(shortpath)); err != nil {
		return 0, fmt.Errorf("remove .setup: %w", err)
	}

	s.mu.Lock()
	id := Id(s.nextID.Add(1))

	group := s.groups[groupID]
	if group == nil {
		s.mu.Unlock()
		_ = os.RemoveAll(dir)
		return 0, fmt.Errorf("unknown group %d", groupID)
	}
	maxIdx := 0.0
	any := false
	for _, inst := range s.instances {
		if inst.GroupID == groupID && (!any || inst.GroupIndex > maxIdx) {
			maxIdx = inst.GroupIndex
			any = true
		}
	}
	var groupIndex float64
	if any {
		groupIndex = maxIdx + 1
	}

	s.instances[id] = &Instance{
		ID: id, GroupID: groupID, GroupIndex: groupIndex, Shortpath: shortpath,
		State: Valid, Config: cfg,
	}
	s.mu.Unlock()

	s.bus.Publish(events.Event{Type: events.EventGetGroups})
	return id, nil
}

// UpdateInstance rewrites instance.json atomically with the given deltas.
func (s *Store) UpdateInstance(id Id, name *string, icon *Icon) error {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidInstanceId, id)
	}
	if name != nil {
		inst.Config.Name = *name
	}
	if icon != nil {
		inst.Config.Icon = *icon
	}
	cfg := inst.Config
	shortpath := inst.Shortpath
	s.mu.Unlock()

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal instance.json: %w", err)
	}
	if err := writeAtomic(s.instanceJSONPath(shortpath), raw); err != nil {
		return err
	}

	s.bus.Publish(events.Event{Type: events.EventInstanceDetails, InstanceID: int64(id)})
	return nil
}

// DeleteInstance removes id from the in-memory map and its group, moves
// the directory to a trash path, and schedules best-effort deletion, per
// spec.md §3's delete_instance lifecycle.
func (s *Store) DeleteInstance(id Id, trashRoot string) error {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidInstanceId, id)
	}
	delete(s.instances, id)
	shortpath := inst.Shortpath
	s.mu.Unlock()

	src := filepath.Join(s.root, shortpath)
	if err := os.MkdirAll(trashRoot, 0o755); err != nil {
		return fmt.Errorf("create trash dir: %w", err)
	}
	dst := filepath.Join(trashRoot, fmt.Sprintf("%s-%d", shortpath, time.Now().UnixNano()))
	if err := os.Rename(src, dst); err != nil {
		// The instance is already out of the map; a failed move is returned
		// to the caller and is not logged here. The background removal
		// below discards its own error.
		s.bus.Publish(events.Event{Type: events.EventGetGroups})
		return fmt.Errorf("move to trash: %w", err)
	}

	go func() { _ = os.RemoveAll(dst) }()

	s.bus.Publish(events.Event{Type: events.EventGetGroups})
	return nil
}

// MoveInstance recomputes group_index as the midpoint between neighbours,
// or renumbers the group if precision collapses, per spec.md §4.3.
func (s *Store) MoveInstance(id Id, target MoveTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidInstanceId, id)
	}

	var groupID uint
	if target.EndOfGroup != nil {
		groupID = *target.EndOfGroup
	} else if target.BeforeID != nil {
		other, ok := s.instances[*target.BeforeID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrInvalidInstanceId, *target.BeforeID)
		}
		groupID = other.GroupID
	} else {
		return fmt.Errorf("move target must specify Before or EndOfGroup")
	}

	ordered := s.orderedGroupMembersLocked(groupID, id)

	var newIndex float64
	switch {
	case target.EndOfGroup != nil:
		var before *float64
		if len(ordered) > 0 {
			v := ordered[len(ordered)-1].GroupIndex
			before = &v
		}
		newIndex = MidpointIndex(before, nil)
	default:
		beforeIdx := -1
		for i, other := range ordered {
			if other.ID == *target.BeforeID {
				beforeIdx = i
				break
			}
		}
		if beforeIdx == -1 {
			return fmt.Errorf("%w: %d", ErrInvalidInstanceId, *target.BeforeID)
		}
		var before, after *float64
		if beforeIdx > 0 {
			v := ordered[beforeIdx-1].GroupIndex
			before = &v
		}
		v := ordered[beforeIdx].GroupIndex
		after = &v
		newIndex = MidpointIndex(before, after)

		if before != nil && IndicesCollapsed(*before, *after) {
			s.renumberGroupLocked(groupID)
			return s.moveAfterRenumberLocked(id, target)
		}
	}

	inst.GroupID = groupID
	inst.GroupIndex = newIndex

	s.bus.Publish(events.Event{Type: events.EventGetGroups})
	return nil
}

func (s *Store) moveAfterRenumberLocked(id Id, target MoveTarget) error {
	// After renumbering, indices are integral and collapse cannot recur
	// for this move; recurse once to place id using the fresh spacing.
	s.mu.Unlock()
	err := s.MoveInstance(id, target)
	s.mu.Lock()
	return err
}

func (s *Store) orderedGroupMembersLocked(groupID uint, exclude Id) []*Instance {
	var members []*Instance
	for iid, inst := range s.instances {
		if inst.GroupID == groupID && iid != exclude {
			members = append(members, inst)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].GroupIndex < members[j].GroupIndex })
	return members
}

func (s *Store) renumberGroupLocked(groupID uint) {
	members := s.orderedGroupMembersLocked(groupID, -1)
	for i, m := range members {
		m.GroupIndex = float64(i)
	}
}

// CreateGroup inserts a new group at the end of the group ordering.
func (s *Store) CreateGroup(name string) (uint, error) {
	s.mu.RLock()
	maxIdx := 0.0
	any := false
	for _, g := range s.groups {
		if !any || g.GroupIndex > maxIdx {
			maxIdx = g.GroupIndex
			any = true
		}
	}
	s.mu.RUnlock()

	idx := maxIdx
	if any {
		idx = maxIdx + 1
	}

	row := gdb.InstanceGroup{Name: name, GroupIndex: idx}
	if err := s.db.DB.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("create group: %w", err)
	}

	s.mu.Lock()
	s.groups[row.ID] = &Group{ID: row.ID, Name: row.Name, GroupIndex: row.GroupIndex}
	s.mu.Unlock()

	s.bus.Publish(events.Event{Type: events.EventGetGroups})
	return row.ID, nil
}

// DeleteGroup removes a non-default group. Deleting the default group is
// rejected, per spec.md §4.3.
func (s *Store) DeleteGroup(id uint) error {
	s.mu.Lock()
	g, ok := s.groups[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown group %d", id)
	}
	if g.IsDefault {
		s.mu.Unlock()
		return fmt.Errorf("cannot delete the default group")
	}
	delete(s.groups, id)
	s.mu.Unlock()

	if err := s.db.DB.Where("id = ?", id).Delete(&gdb.InstanceGroup{}).Error; err != nil {
		return fmt.Errorf("delete group: %w", err)
	}

	s.bus.Publish(events.Event{Type: events.EventGetGroups})
	return nil
}

// MoveGroup recomputes a group's fractional index. Only a target with
// EndOfGroup set is supported, which moves the group after every other
// group; any other target returns an error and leaves the order unchanged.
func (s *Store) MoveGroup(id uint, target MoveTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return fmt.Errorf("unknown group %d", id)
	}

	var ordered []*Group
	for gid, other := range s.groups {
		if gid != id {
			ordered = append(ordered, other)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].GroupIndex < ordered[j].GroupIndex })

	var newIndex float64
	if target.EndOfGroup != nil { // reused field: "end of list" sentinel
		var before *float64
		if len(ordered) > 0 {
			v := ordered[len(ordered)-1].GroupIndex
			before = &v
		}
		newIndex = MidpointIndex(before, nil)
	} else {
		return fmt.Errorf("unsupported group move target")
	}

	g.GroupIndex = newIndex
	return s.db.DB.Model(&gdb.InstanceGroup{}).Where("id = ?", id).Update("group_index", newIndex).Error
}

// Details projects an instance's configuration into a frontend-shaped
// view, per spec.md §4.3's instance_details(id). ModpackUpdateCurseForge/
// ModpackUpdateModrinth answer spec.md §165's "is a newer pack version
// available" question for a modpack-backed instance.
type Details struct {
	ID         Id
	Shortpath  string
	Name       string
	State      State
	Invalid    *InvalidReason
	Config     Config
	GroupID    uint
	GroupIndex float64
	Mods       []Mod

	ModpackUpdateCurseForge bool
	ModpackUpdateModrinth   bool
}

func (s *Store) InstanceDetails(ctx context.Context, id Id) (*Details, error) {
	s.mu.RLock()
	inst, ok := s.instances[id]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: %d", ErrInvalidInstanceId, id)
	}
	details := &Details{
		ID: inst.ID, Shortpath: inst.Shortpath, Name: inst.Config.Name,
		State: inst.State, Invalid: inst.Invalid, Config: inst.Config,
		GroupID: inst.GroupID, GroupIndex: inst.GroupIndex,
		Mods: append([]Mod{}, inst.Mods...),
	}
	modpack := inst.Config.Modpack
	s.mu.RUnlock()

	details.ModpackUpdateCurseForge, details.ModpackUpdateModrinth = s.modpackUpdateFlags(ctx, modpack)
	return details, nil
}

// modpackUpdateFlags reports whether ref's installed file/version id lags
// the project's latest, per platform. Network/lookup failures resolve to
// "no update known" rather than failing instanceDetails.
func (s *Store) modpackUpdateFlags(ctx context.Context, ref *ModpackRef) (curseforge, modrinth bool) {
	if ref == nil || s.modpackLookup == nil {
		return false, false
	}
	switch ref.Platform {
	case "curseforge":
		latest, err := s.cachedLatestID(ctx, "cf:"+ref.ProjectID, func(ctx context.Context) (string, error) {
			return s.modpackLookup.LatestCurseForgeFileID(ctx, ref.ProjectID)
		})
		curseforge = err == nil && latest != "" && latest != ref.FileID
	case "modrinth":
		latest, err := s.cachedLatestID(ctx, "mr:"+ref.ProjectID, func(ctx context.Context) (string, error) {
			return s.modpackLookup.LatestModrinthVersionID(ctx, ref.ProjectID)
		})
		modrinth = err == nil && latest != "" && latest != ref.FileID
	}
	return curseforge, modrinth
}

// cachedLatestID serves fetch results from a 24h-TTL cache keyed by
// cacheKey, so instanceDetails doesn't hit CurseForge/Modrinth on every
// poll.
func (s *Store) cachedLatestID(ctx context.Context, cacheKey string, fetch func(context.Context) (string, error)) (string, error) {
	s.modpackUpdateMu.Lock()
	if e, ok := s.modpackUpdate[cacheKey]; ok && time.Since(e.checkedAt) < modpackUpdateCacheTTL {
		s.modpackUpdateMu.Unlock()
		return e.latestID, nil
	}
	s.modpackUpdateMu.Unlock()

	latest, err := fetch(ctx)
	if err != nil {
		return "", err
	}

	s.modpackUpdateMu.Lock()
	s.modpackUpdate[cacheKey] = modpackUpdateEntry{latestID: latest, checkedAt: time.Now()}
	s.modpackUpdateMu.Unlock()
	return latest, nil
}

// EnableMod restores modID's original filename, reversing DisableMod, per
// spec.md §8 scenario 4.
func (s *Store) EnableMod(id Id, modID string) error {
	return s.toggleMod(id, modID, true)
}

// DisableMod renames modID's file to "<name>.disabled" so the game loader
// skips it, per spec.md §4.3's "an enabled and disabled file for the same
// mod cannot both exist on disk; the operation is a single rename".
func (s *Store) DisableMod(id Id, modID string) error {
	return s.toggleMod(id, modID, false)
}

func (s *Store) toggleMod(id Id, modID string, enable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidInstanceId, id)
	}

	var target *Mod
	for i := range inst.Mods {
		if inst.Mods[i].ID == modID {
			target = &inst.Mods[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrModNotFound, modID)
	}
	if target.Enabled == enable {
		if enable {
			return ErrModAlreadyEnabled
		}
		return ErrModAlreadyDisabled
	}

	dir := s.modsDir(inst.Shortpath)
	var oldName, newName string
	if enable {
		oldName, newName = target.Filename+".disabled", target.Filename
	} else {
		oldName, newName = target.Filename, target.Filename+".disabled"
	}
	if err := os.Rename(filepath.Join(dir, oldName), filepath.Join(dir, newName)); err != nil {
		return fmt.Errorf("rename mod file: %w", err)
	}
	target.Enabled = enable

	s.bus.Publish(events.Event{Type: events.EventInstanceDetails, InstanceID: int64(id)})
	return nil
}

// DeleteMod removes modID's file from disk and from the instance's mod
// list, per spec.md §211's deleteMod RPC.
func (s *Store) DeleteMod(id Id, modID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidInstanceId, id)
	}

	idx := -1
	for i := range inst.Mods {
		if inst.Mods[i].ID == modID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrModNotFound, modID)
	}

	mod := inst.Mods[idx]
	name := mod.Filename
	if !mod.Enabled {
		name += ".disabled"
	}
	if err := os.Remove(filepath.Join(s.modsDir(inst.Shortpath), name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete mod file: %w", err)
	}
	inst.Mods = append(inst.Mods[:idx], inst.Mods[idx+1:]...)

	s.bus.Publish(events.Event{Type: events.EventInstanceDetails, InstanceID: int64(id)})
	return nil
}

// InstallMod downloads url into the instance's mods/ directory as
// filename, then registers it in the instance's mod list, per spec.md
// §211's installMod RPC.
func (s *Store) InstallMod(ctx context.Context, id Id, url, filename string) error {
	s.mu.RLock()
	inst, ok := s.instances[id]
	var shortpath string
	if ok {
		shortpath = inst.Shortpath
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidInstanceId, id)
	}
	if s.downloads == nil {
		return fmt.Errorf("no download scheduler configured")
	}

	dir := s.modsDir(shortpath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mods dir: %w", err)
	}
	target := filepath.Join(dir, filename)
	if err := s.downloads.Run(ctx, []download.Downloadable{{URL: url, Path: target}}, nil, nil); err != nil {
		return fmt.Errorf("download mod: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok = s.instances[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidInstanceId, id)
	}
	if mod := s.scanOneMod(id, dir, filename); mod != nil {
		inst.Mods = append(inst.Mods, *mod)
	}

	s.bus.Publish(events.Event{Type: events.EventInstanceDetails, InstanceID: int64(id)})
	return nil
}

// Get returns the live Instance pointer for id (callers must not mutate
// fields outside the store's own methods, which hold the write lock).
func (s *Store) Get(id Id) (*Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	return inst, ok
}

// List returns a snapshot of all known instances.
func (s *Store) List() []*Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	return out
}

// writeAtomic writes data to a sibling temp file then renames it into
// place, per spec.md §4.3's "rewrite instance.json atomically."
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-instance-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
