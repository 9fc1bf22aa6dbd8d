// Package transport is the thin external collaborator of spec.md §6: a
// gorilla/mux-routed HTTP/JSON binding over the RPC surface, plus a
// gorilla/websocket endpoint streaming invalidation events. It holds no
// domain logic of its own — every handler delegates to the instance
// store, task registry, or modpack/loader/launch collaborators.
package transport

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/nickheyer/launcherd/internal/download"
	"github.com/nickheyer/launcherd/internal/events"
	"github.com/nickheyer/launcherd/internal/instance"
	"github.com/nickheyer/launcherd/internal/launch"
	"github.com/nickheyer/launcherd/internal/loader"
	"github.com/nickheyer/launcherd/internal/modpack"
	"github.com/nickheyer/launcherd/internal/vtask"
	"github.com/nickheyer/launcherd/pkg/logger"
)

// Server binds the RPC surface of spec.md §6 onto an HTTP/JSON router,
// modeled structurally on the teacher's internal/api/server.go.
type Server struct {
	instances    *instance.Store
	tasks        *vtask.Registry
	merger       *loader.Merger
	materializer *modpack.Materializer
	downloads    *download.Scheduler
	bus          *events.Bus
	log          *logger.Logger
	router       *mux.Router
	hub          *Hub

	cacheRoots launch.Roots
	javaBin    string

	processMu sync.Mutex
	processes map[instance.Id]*launch.Process
}

// Deps bundles Server's collaborators.
type Deps struct {
	Instances    *instance.Store
	Tasks        *vtask.Registry
	Merger       *loader.Merger
	Materializer *modpack.Materializer
	Downloads    *download.Scheduler
	Bus          *events.Bus
	Log          *logger.Logger
	CacheRoots   launch.Roots
	JavaBin      string
}

// NewServer wires routes and starts the invalidation hub's broadcast loop.
func NewServer(deps Deps) *Server {
	s := &Server{
		instances:    deps.Instances,
		tasks:        deps.Tasks,
		merger:       deps.Merger,
		materializer: deps.Materializer,
		downloads:    deps.Downloads,
		bus:          deps.Bus,
		log:          deps.Log,
		hub:          newHub(deps.Bus, deps.Log),
		cacheRoots:   deps.CacheRoots,
		javaBin:      deps.JavaBin,
		processes:    make(map[instance.Id]*launch.Process),
	}
	s.setupRoutes()
	go s.hub.run()
	return s
}

// setProcess records the running process for id, per spec.md §4.6's
// process-supervision rule that a later killInstance call must find it.
func (s *Server) setProcess(id instance.Id, p *launch.Process) {
	s.processMu.Lock()
	defer s.processMu.Unlock()
	s.processes[id] = p
}

func (s *Server) clearProcess(id instance.Id) {
	s.processMu.Lock()
	defer s.processMu.Unlock()
	delete(s.processes, id)
}

func (s *Server) getProcess(id instance.Id) (*launch.Process, bool) {
	s.processMu.Lock()
	defer s.processMu.Unlock()
	p, ok := s.processes[id]
	return p, ok
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	instances := api.PathPrefix("/instance").Subrouter()
	instances.HandleFunc("/groups", s.handleGetGroups).Methods("GET")
	instances.HandleFunc("/groups", s.handleCreateGroup).Methods("POST")
	instances.HandleFunc("/groups/{id}", s.handleDeleteGroup).Methods("DELETE")
	instances.HandleFunc("/groups/{id}/move", s.handleMoveGroup).Methods("POST")
	instances.HandleFunc("", s.handleCreateInstance).Methods("POST")
	instances.HandleFunc("/{id}", s.handleInstanceDetails).Methods("GET")
	instances.HandleFunc("/{id}", s.handleUpdateInstance).Methods("PUT")
	instances.HandleFunc("/{id}", s.handleDeleteInstance).Methods("DELETE")
	instances.HandleFunc("/{id}/move", s.handleMoveInstance).Methods("POST")
	instances.HandleFunc("/{id}/prepare", s.handlePrepareInstance).Methods("POST")
	instances.HandleFunc("/{id}/launch", s.handleLaunchInstance).Methods("POST")
	instances.HandleFunc("/{id}/kill", s.handleKillInstance).Methods("POST")
	instances.HandleFunc("/{id}/mods/{mod_id}/enable", s.handleEnableMod).Methods("POST")
	instances.HandleFunc("/{id}/mods/{mod_id}/disable", s.handleDisableMod).Methods("POST")
	instances.HandleFunc("/{id}/mods/{mod_id}", s.handleDeleteMod).Methods("DELETE")
	instances.HandleFunc("/{id}/mods", s.handleInstallMod).Methods("POST")

	tasks := api.PathPrefix("/vtask").Subrouter()
	tasks.HandleFunc("", s.handleGetTasks).Methods("GET")
	tasks.HandleFunc("/{id}", s.handleGetTask).Methods("GET")
	tasks.HandleFunc("/{id}/dismiss", s.handleDismissTask).Methods("POST")

	platforms := api.PathPrefix("/modplatforms").Subrouter()
	platforms.HandleFunc("/curseforge/search", s.handleNotImplemented).Methods("GET")
	platforms.HandleFunc("/modrinth/search", s.handleNotImplemented).Methods("GET")

	api.HandleFunc("/mc/getMinecraftVersions", s.handleNotImplemented).Methods("GET")

	// Out of scope per spec.md §1's Non-goals (Microsoft/Xbox auth, Java
	// discovery/installation are external collaborators): stubbed so the
	// RPC surface shape is complete, but every handler reports 501.
	api.PathPrefix("/account").HandlerFunc(s.handleNotImplemented)
	api.PathPrefix("/java").HandlerFunc(s.handleNotImplemented)

	r.HandleFunc("/ws/invalidations", s.hub.serveWS)

	s.router = r
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleNotImplemented(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusNotImplemented, "not implemented: external collaborator")
}
