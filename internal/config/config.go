package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the launcher's layered configuration, per SPEC_FULL.md's
// Ambient Stack: runtime/instance roots, shared cache roots, download
// concurrency, the HTTP cache's max TTL ceiling, and modpack-platform
// credentials.
type Config struct {
	Runtime   RuntimeConfig   `mapstructure:"runtime" json:"runtime"`
	Cache     CacheConfig     `mapstructure:"cache" json:"cache"`
	Download  DownloadConfig  `mapstructure:"download" json:"download"`
	HTTP      HTTPConfig      `mapstructure:"http" json:"http"`
	Platforms PlatformsConfig `mapstructure:"platforms" json:"platforms"`
	Java      JavaConfig      `mapstructure:"java" json:"java"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging"`
	Transport TransportConfig `mapstructure:"transport" json:"transport"`
}

// RuntimeConfig holds the root directories that persist launcher state.
type RuntimeConfig struct {
	DataDir      string `mapstructure:"data_dir" json:"data_dir"`
	InstanceDir  string `mapstructure:"instance_dir" json:"instance_dir"`
	TrashDir     string `mapstructure:"trash_dir" json:"trash_dir"`
	DatabasePath string `mapstructure:"database_path" json:"database_path"`
}

// CacheConfig holds the shared, content-addressed download caches shared
// across every instance, per spec.md §6's filesystem layout.
type CacheConfig struct {
	LibrariesDir string `mapstructure:"libraries_dir" json:"libraries_dir"`
	AssetsDir    string `mapstructure:"assets_dir" json:"assets_dir"`
	VersionsDir  string `mapstructure:"versions_dir" json:"versions_dir"`
}

// DownloadConfig holds the download limits of spec.md §4.8. They are
// validated on load, but internal/download does not read them: the
// scheduler uses its own fixed cap of 10 concurrent transfers and 3
// attempts per URL.
type DownloadConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent" json:"max_concurrent"`
	MaxAttempts   int `mapstructure:"max_attempts" json:"max_attempts"`
}

// HTTPConfig holds HTTP client settings for spec.md §4.1's conditional
// HTTP cache.
type HTTPConfig struct {
	UserAgent   string `mapstructure:"user_agent" json:"user_agent"`
	MaxCacheTTL int    `mapstructure:"max_cache_ttl" json:"max_cache_ttl"` // seconds; loaded but not applied by internal/httpcache
}

// PlatformsConfig carries modpack-platform API credentials and endpoints.
// CurseForgeBaseURL and ModrinthBaseURL are loaded but not read: the
// platform clients in internal/modpack use their built-in base URLs.
type PlatformsConfig struct {
	CurseForgeAPIKey  string `mapstructure:"curseforge_api_key" json:"curseforge_api_key"`
	CurseForgeBaseURL string `mapstructure:"curseforge_base_url" json:"curseforge_base_url"`
	ModrinthBaseURL   string `mapstructure:"modrinth_base_url" json:"modrinth_base_url"`
	ManifestListURL   string `mapstructure:"manifest_list_url" json:"manifest_list_url"`
	ForgeMetaURL      string `mapstructure:"forge_meta_url" json:"forge_meta_url"`
	FabricMetaURL     string `mapstructure:"fabric_meta_url" json:"fabric_meta_url"`
	QuiltMetaURL      string `mapstructure:"quilt_meta_url" json:"quilt_meta_url"`
}

// JavaConfig carries the launcher's Java discovery override, per spec.md
// §6's "GDL_JAVA_PATH augments PATH for Java discovery" environment note.
type JavaConfig struct {
	BinaryOverride string `mapstructure:"binary_override" json:"binary_override"`
}

// LoggingConfig configures the rotating logger, per the teacher's
// pkg/logger conventions.
type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	FilePath   string `mapstructure:"file_path" json:"file_path"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// TransportConfig binds the thin HTTP/JSON + websocket transport layer.
type TransportConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port string `mapstructure:"port" json:"port"`
}

// Load reads configPath (or the conventional search locations), applies
// defaults, overlays LAUNCHERD_-prefixed environment variables, and
// validates/expands the result — mirroring the teacher's viper-based
// Load(configPath string) shape.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/launcherd")

	setDefaults(v)

	v.SetEnvPrefix("LAUNCHERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("runtime.data_dir", "./data")
	v.SetDefault("runtime.instance_dir", "./data/instances")
	v.SetDefault("runtime.trash_dir", "./data/trash")
	v.SetDefault("runtime.database_path", "./data/launcherd.db")

	v.SetDefault("cache.libraries_dir", "./data/cache/libraries")
	v.SetDefault("cache.assets_dir", "./data/cache/assets")
	v.SetDefault("cache.versions_dir", "./data/cache/versions")

	v.SetDefault("download.max_concurrent", 10)
	v.SetDefault("download.max_attempts", 3)

	v.SetDefault("http.user_agent", "launcherd/1.0")
	v.SetDefault("http.max_cache_ttl", 86400)

	v.SetDefault("platforms.curseforge_base_url", "https://api.curseforge.com/v1")
	v.SetDefault("platforms.modrinth_base_url", "https://api.modrinth.com/v2")
	v.SetDefault("platforms.manifest_list_url", "https://launchermeta.mojang.com/mc/game/version_manifest_v2.json")
	v.SetDefault("platforms.forge_meta_url", "https://files.minecraftforge.net/maven/net/minecraftforge/forge/%s-%s/meta.json")
	v.SetDefault("platforms.fabric_meta_url", "https://meta.fabricmc.net/v2/versions/loader/{release}/{version}/profile/json")
	v.SetDefault("platforms.quilt_meta_url", "https://meta.quiltmc.org/v3/versions/loader/{release}/{version}/profile/json")

	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.file_path", "./data/launcherd.log")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("transport.host", "127.0.0.1")
	v.SetDefault("transport.port", "7645")
}

func validateConfig(cfg *Config) error {
	paths := []*string{
		&cfg.Runtime.DataDir, &cfg.Runtime.InstanceDir, &cfg.Runtime.TrashDir,
		&cfg.Runtime.DatabasePath, &cfg.Cache.LibrariesDir, &cfg.Cache.AssetsDir,
		&cfg.Cache.VersionsDir,
	}
	for _, p := range paths {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", *p, err)
		}
		*p = abs
	}

	if cfg.Download.MaxConcurrent <= 0 {
		return fmt.Errorf("download.max_concurrent must be positive")
	}
	if cfg.Download.MaxAttempts <= 0 {
		return fmt.Errorf("download.max_attempts must be positive")
	}

	return nil
}
