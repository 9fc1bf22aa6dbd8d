package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nickheyer/launcherd/internal/db"
	"github.com/nickheyer/launcherd/internal/events"
	"github.com/nickheyer/launcherd/internal/instance"
	"github.com/nickheyer/launcherd/internal/vtask"
	"github.com/nickheyer/launcherd/pkg/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	dstore, err := db.Open(filepath.Join(dir, "test.db"), db.Config{})
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { dstore.Close() })
	if err := dstore.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	bus := events.NewBus()
	instances, err := instance.Open(filepath.Join(dir, "instances"), dstore, bus)
	if err != nil {
		t.Fatalf("instance.Open: %v", err)
	}

	tasks := vtask.NewRegistry(bus, 50*time.Millisecond)
	t.Cleanup(tasks.Stop)

	return NewServer(Deps{
		Instances: instances,
		Tasks:     tasks,
		Bus:       bus,
		Log:       logger.New(),
	})
}

func decodeJSON(t *testing.T, body *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(body.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateAndFetchInstance(t *testing.T) {
	s := newTestServer(t)

	groupReq := httptest.NewRequest(http.MethodPost, "/api/v1/instance/groups", strings.NewReader(`{"name":"modpacks"}`))
	groupRec := httptest.NewRecorder()
	s.Router().ServeHTTP(groupRec, groupReq)
	if groupRec.Code != http.StatusCreated {
		t.Fatalf("create group: status %d body %s", groupRec.Code, groupRec.Body.String())
	}
	var group struct {
		ID uint `json:"id"`
	}
	decodeJSON(t, groupRec, &group)

	createBody := `{"group_id":` + strconv.FormatUint(uint64(group.ID), 10) + `,"name":"my-pack","icon":{"default":true},"version":{"standard":{"release":"1.20.1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/instance", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create instance: status %d body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeJSON(t, rec, &created)

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/instance/"+strconv.FormatInt(created.ID, 10), nil)
	getRec := httptest.NewRecorder()
	s.Router().ServeHTTP(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("get instance: status %d body %s", getRec.Code, getRec.Body.String())
	}
	var details struct {
		Name string `json:"Name"`
	}
	decodeJSON(t, getRec, &details)
}

func TestGetUnknownInstanceNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/instance/999", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPrepareUnknownInstanceNotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/instance/999/prepare", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetTasksEmpty(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vtask", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var views []taskView
	decodeJSON(t, rec, &views)
	if len(views) != 0 {
		t.Fatalf("expected no tasks, got %d", len(views))
	}
}

func TestNotImplementedRoutesReport501(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/account/profile", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}
