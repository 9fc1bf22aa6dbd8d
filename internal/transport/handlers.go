package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nickheyer/launcherd/internal/instance"
	"github.com/nickheyer/launcherd/internal/vtask"
)

func taskIDFromInt64(v int64) vtask.TaskId {
	return vtask.TaskId(v)
}

func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.instances.List())
}

type createGroupRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.instances.CreateGroup(req.Name)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]uint{"id": id})
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.instances.DeleteGroup(id); err != nil {
		s.respondError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveTargetRequest struct {
	BeforeID   *int64 `json:"before_id,omitempty"`
	EndOfGroup *uint  `json:"end_of_group,omitempty"`
}

func (t moveTargetRequest) toTarget() instance.MoveTarget {
	var target instance.MoveTarget
	if t.BeforeID != nil {
		id := instance.Id(*t.BeforeID)
		target.BeforeID = &id
	}
	target.EndOfGroup = t.EndOfGroup
	return target
}

func (s *Server) handleMoveGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req moveTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.instances.MoveGroup(id, req.toTarget()); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createInstanceRequest struct {
	GroupID uint                  `json:"group_id"`
	Name    string                `json:"name"`
	Icon    instance.Icon         `json:"icon"`
	Version instance.VersionField `json:"version"`
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.instances.CreateInstance(req.GroupID, req.Name, req.Icon, req.Version)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]int64{"id": int64(id)})
}

func (s *Server) handleInstanceDetails(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	details, err := s.instances.InstanceDetails(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, details)
}

type updateInstanceRequest struct {
	Name *string        `json:"name,omitempty"`
	Icon *instance.Icon `json:"icon,omitempty"`
}

func (s *Server) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req updateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.instances.UpdateInstance(id, req.Name, req.Icon); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	trashRoot := r.URL.Query().Get("trash_root")
	if trashRoot == "" {
		s.respondError(w, http.StatusBadRequest, "trash_root query parameter is required")
		return
	}
	if err := s.instances.DeleteInstance(id, trashRoot); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req moveTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.instances.MoveInstance(id, req.toTarget()); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePrepareInstance kicks off materialize/merge/download for an
// instance; the heavy lifting runs in a task tracked by the registry and
// this handler returns immediately with its id, per spec.md §4.2's
// "a task is created when work begins" rule.
func (s *Server) handlePrepareInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := s.instances.Get(id); !ok {
		s.respondError(w, http.StatusNotFound, instance.ErrInvalidInstanceId.Error())
		return
	}

	task := s.tasks.New(context.Background(), "instance.prepare")
	go s.runPrepare(task, id)
	s.respondJSON(w, http.StatusAccepted, map[string]int64{"task_id": int64(task.ID)})
}

// handleLaunchInstance kicks off resolve/assemble/spawn for an already
// prepared instance, per spec.md §211's launchInstance RPC. Like prepare,
// the heavy lifting runs in a tracked task and this handler returns
// immediately with its id.
func (s *Server) handleLaunchInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := s.instances.Get(id); !ok {
		s.respondError(w, http.StatusNotFound, instance.ErrInvalidInstanceId.Error())
		return
	}

	task := s.tasks.New(context.Background(), "instance.launch")
	go s.runLaunch(task, id)
	s.respondJSON(w, http.StatusAccepted, map[string]int64{"task_id": int64(task.ID)})
}

// handleKillInstance terminates the running process for id, if any, per
// spec.md §211's killInstance RPC.
func (s *Server) handleKillInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	proc, ok := s.getProcess(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "instance is not running")
		return
	}
	proc.Kill(s.log)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnableMod(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	modID := mux.Vars(r)["mod_id"]
	if err := s.instances.EnableMod(id, modID); err != nil {
		s.respondModError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisableMod(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	modID := mux.Vars(r)["mod_id"]
	if err := s.instances.DisableMod(id, modID); err != nil {
		s.respondModError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteMod(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	modID := mux.Vars(r)["mod_id"]
	if err := s.instances.DeleteMod(id, modID); err != nil {
		s.respondModError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type installModRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

func (s *Server) handleInstallMod(w http.ResponseWriter, r *http.Request) {
	id, err := parseInstanceIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req installModRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.instances.InstallMod(r.Context(), id, req.URL, req.Filename); err != nil {
		s.respondModError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondModError maps the instance store's mod-operation error taxonomy
// onto HTTP status codes, per spec.md §8 scenario 4.
func (s *Server) respondModError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, instance.ErrInvalidInstanceId), errors.Is(err, instance.ErrModNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, instance.ErrModAlreadyEnabled), errors.Is(err, instance.ErrModAlreadyDisabled):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

type taskView struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

func (s *Server) handleGetTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.tasks.List()
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, taskView{ID: int64(t.ID), Name: t.Name, Percentage: t.Percentage()})
	}
	s.respondJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, ok := s.tasks.Get(taskIDFromInt64(id))
	if !ok {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	s.respondJSON(w, http.StatusOK, taskView{ID: int64(task.ID), Name: task.Name, Percentage: task.Percentage()})
}

func (s *Server) handleDismissTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r, "id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, ok := s.tasks.Get(taskIDFromInt64(id))
	if !ok {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	task.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func parseUintParam(r *http.Request, name string) (uint, error) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	return uint(v), err
}

func parseInt64Param(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

func parseInstanceIDParam(r *http.Request) (instance.Id, error) {
	v, err := parseInt64Param(r, "id")
	return instance.Id(v), err
}
