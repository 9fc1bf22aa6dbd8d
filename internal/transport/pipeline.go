package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nickheyer/launcherd/internal/db"
	"github.com/nickheyer/launcherd/internal/instance"
	"github.com/nickheyer/launcherd/internal/launch"
	"github.com/nickheyer/launcherd/internal/loader"
	"github.com/nickheyer/launcherd/internal/modpack"
	"github.com/nickheyer/launcherd/internal/vtask"
)

// runPrepare drives materialize -> merge -> download/extract -> process-run
// for one instance, per SPEC_FULL.md §2's "prepare(instance) ->
// materializer -> merger -> launch assembler -> optional process spawn"
// data flow. It runs detached from the request goroutine; task observes
// progress and carries the failure if any stage errors.
func (s *Server) runPrepare(task *vtask.Task, id instance.Id) {
	ctx := task.Context()

	inst, ok := s.instances.Get(id)
	if !ok {
		s.log.Error("prepare %d: instance disappeared before pipeline start", int64(id))
		task.Finish(true)
		return
	}

	instanceDir := filepath.Dir(s.instances.GameDir(inst.Shortpath))
	if err := os.MkdirAll(instanceDir, 0o755); err != nil {
		s.log.Error("prepare %d: create instance dir: %v", int64(id), err)
		task.Finish(true)
		return
	}

	if mp := inst.Config.Modpack; mp != nil && !modpack.AlreadyMaterialized(instanceDir) {
		src := modpack.Source{
			Platform:  modpack.Platform(mp.Platform),
			Kind:      modpack.RemoteManaged,
			ProjectID: mp.ProjectID,
			FileID:    mp.FileID,
		}
		if _, err := s.materializer.Materialize(ctx, task, src, instanceDir); err != nil {
			s.log.Error("prepare %d: materialize: %v", int64(id), err)
			task.Finish(true)
			return
		}
	}

	if _, _, _, _, _, err := s.resolveAndAssemble(ctx, task, inst, instanceDir); err != nil {
		s.log.Error("prepare %d: %v", int64(id), err)
		task.Finish(true)
		return
	}

	s.log.Info("prepare %d: ready", int64(id))
	task.Finish(false)
}

// resolveAndAssemble runs resolve_version -> download/extract -> run
// processors for an already-materialized instance, per spec.md §183's
// ordering rule. Re-running it against an already-prepared instance is
// cheap: the merger caches release URLs and the download scheduler skips
// files that already verify against their checksum, so both prepareInstance
// (a second time) and launchInstance converge on the same manifest/paths
// without redoing network work.
func (s *Server) resolveAndAssemble(ctx context.Context, task *vtask.Task, inst *instance.Instance, instanceDir string) (
	manifest *loader.VersionManifest, paths []launch.LibraryPaths, clientJar, release string, roots launch.Roots, err error,
) {
	release, refs, err := loaderRefsFor(inst.Config.GameConfiguration.Version)
	if err != nil {
		return nil, nil, "", "", launch.Roots{}, fmt.Errorf("version field: %w", err)
	}

	tMerge := task.Subtask("resolve_version", 2)
	tMerge.Start(vtask.Opaque(true))
	manifest, warnings, err := s.merger.Resolve(ctx, release, refs)
	if err != nil {
		return nil, nil, "", "", launch.Roots{}, fmt.Errorf("resolve version manifest: %w", err)
	}
	tMerge.Start(vtask.Opaque(false))
	for _, w := range warnings {
		s.log.Warn("instance %d: ignored mod loader %s: %s", int64(inst.ID), w.Ignored, w.Reason)
	}

	javaBin := s.javaBin
	if javaBin == "" {
		javaBin = "java"
	}

	roots = s.cacheRoots
	roots.Instance = instanceDir

	assembler := launch.NewAssembler(s.downloads, roots)
	paths, clientJar, err = assembler.Prepare(ctx, task, manifest, map[string]bool{})
	if err != nil {
		return nil, nil, "", "", launch.Roots{}, fmt.Errorf("download/extract: %w", err)
	}

	tProcessors := task.Subtask("run_processors", 2)
	tProcessors.Start(vtask.Opaque(true))
	if err := loader.RunProcessors(ctx, manifest, loader.ProcessorContext{
		JavaBin:      javaBin,
		LibrariesDir: roots.Libraries,
		ClientJar:    clientJar,
		Release:      release,
		InstanceDir:  instanceDir,
	}); err != nil {
		return nil, nil, "", "", launch.Roots{}, fmt.Errorf("run processors: %w", err)
	}
	tProcessors.Start(vtask.Opaque(false))

	return manifest, paths, clientJar, release, roots, nil
}

// runLaunch drives resolve -> assemble -> spawn for an instance that has
// already been prepared, per spec.md §30's "optionally spawns the child
// process" and the separate launchInstance RPC of §211. The resulting
// Process is tracked by the server so a later killInstance call can find
// it and supervised output reaches the game log buffer.
func (s *Server) runLaunch(task *vtask.Task, id instance.Id) {
	ctx := task.Context()

	inst, ok := s.instances.Get(id)
	if !ok {
		s.log.Error("launch %d: instance disappeared before launch", int64(id))
		task.Finish(true)
		return
	}

	instanceDir := filepath.Dir(s.instances.GameDir(inst.Shortpath))

	manifest, paths, clientJar, _, roots, err := s.resolveAndAssemble(ctx, task, inst, instanceDir)
	if err != nil {
		s.log.Error("launch %d: %v", int64(id), err)
		task.Finish(true)
		return
	}

	javaBin := s.javaBin
	if javaBin == "" {
		javaBin = "java"
	}

	opts := launch.Options{
		JavaBin:         javaBin,
		AuthPlayerName:  "Player",
		AuthUUID:        "00000000-0000-0000-0000-000000000000",
		AuthAccessToken: "0",
		UserType:        "legacy",
		LauncherName:    "launcherd",
		LauncherVersion: "1.0",
	}

	proc, err := launch.Launch(ctx, manifest, paths, clientJar, opts, roots)
	if err != nil {
		s.log.Error("launch %d: spawn: %v", int64(id), err)
		task.Finish(true)
		return
	}

	s.setProcess(id, proc)
	go func() {
		err := proc.Wait()
		s.clearProcess(id)
		if err != nil {
			s.log.Warn("launch %d: process exited: %v", int64(id), err)
		} else {
			s.log.Info("launch %d: process exited", int64(id))
		}
	}()

	s.log.Info("launch %d: spawned pid %d", int64(id), proc.Pid())
	task.Finish(false)
}

func loaderRefsFor(v instance.VersionField) (string, []loader.LoaderRef, error) {
	if v.Standard == nil {
		return "", nil, fmt.Errorf("custom version fields are not resolvable by the loader merger")
	}
	refs := make([]loader.LoaderRef, 0, len(v.Standard.ModLoaders))
	for _, ml := range v.Standard.ModLoaders {
		refs = append(refs, loader.LoaderRef{Type: db.ModLoaderType(ml.Type), Version: ml.Version})
	}
	return v.Standard.Release, refs, nil
}
