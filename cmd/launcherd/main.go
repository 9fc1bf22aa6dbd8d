package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nickheyer/launcherd/internal/config"
	storage "github.com/nickheyer/launcherd/internal/db"
	"github.com/nickheyer/launcherd/internal/download"
	"github.com/nickheyer/launcherd/internal/events"
	"github.com/nickheyer/launcherd/internal/httpcache"
	"github.com/nickheyer/launcherd/internal/instance"
	"github.com/nickheyer/launcherd/internal/launch"
	"github.com/nickheyer/launcherd/internal/loader"
	"github.com/nickheyer/launcherd/internal/modmeta"
	"github.com/nickheyer/launcherd/internal/modpack"
	"github.com/nickheyer/launcherd/internal/transport"
	"github.com/nickheyer/launcherd/internal/vtask"
	"github.com/nickheyer/launcherd/pkg/logger"
)

func main() {
	var configPath = flag.String("config", "", "Path to configuration directory")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	dirs := []string{
		cfg.Runtime.DataDir,
		cfg.Runtime.InstanceDir,
		cfg.Runtime.TrashDir,
		cfg.Cache.LibrariesDir,
		cfg.Cache.AssetsDir,
		cfg.Cache.VersionsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal("Failed to create directory %s: %v", dir, err)
		}
	}

	store, err := storage.Open(cfg.Runtime.DatabasePath, storage.Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		log.Fatal("Failed to open database: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		log.Fatal("Failed to migrate database: %v", err)
	}

	bus := events.NewBus()

	tasks := vtask.NewRegistry(bus, 200*time.Millisecond)
	defer tasks.Stop()

	instances, err := instance.Open(cfg.Runtime.InstanceDir, store, bus)
	if err != nil {
		log.Fatal("Failed to open instance store: %v", err)
	}

	cachingTransport := httpcache.New(store.DB, log, http.DefaultTransport)
	httpClient := &http.Client{Transport: cachingTransport, Timeout: 60 * time.Second}

	downloads := download.New(httpClient)

	merger := loader.New(httpClient, loader.Config{
		ManifestListURL: cfg.Platforms.ManifestListURL,
		ForgeMetaURL:    cfg.Platforms.ForgeMetaURL,
		FabricMetaURL:   cfg.Platforms.FabricMetaURL,
		QuiltMetaURL:    cfg.Platforms.QuiltMetaURL,
	})

	curseforge := modpack.NewCurseForgeClient(cfg.Platforms.CurseForgeAPIKey, cfg.HTTP.UserAgent)
	modrinth := modpack.NewModrinthClient(cfg.HTTP.UserAgent)
	materializer := modpack.NewMaterializer(curseforge, modrinth, downloads)

	metaManager := modmeta.NewManager(store.DB, log, modmeta.PlatformClients{
		CurseForge: curseforge,
		Modrinth:   modrinth,
	})
	metaManager.Start()
	defer metaManager.Stop()

	instances.SetMetaManager(metaManager)
	instances.SetDownloads(downloads)
	instances.SetModpackLookup(modpack.Lookup{CurseForge: curseforge, Modrinth: modrinth})

	transportServer := transport.NewServer(transport.Deps{
		Instances:    instances,
		Tasks:        tasks,
		Merger:       merger,
		Materializer: materializer,
		Downloads:    downloads,
		Bus:          bus,
		Log:          log,
		CacheRoots: launch.Roots{
			Libraries: cfg.Cache.LibrariesDir,
			Assets:    cfg.Cache.AssetsDir,
			Versions:  cfg.Cache.VersionsDir,
		},
		JavaBin: cfg.Java.BinaryOverride,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Transport.Host, cfg.Transport.Port),
		Handler:      transportServer.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting launcherd on %s:%s", cfg.Transport.Host, cfg.Transport.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped")
}
