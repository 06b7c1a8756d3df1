package daemon

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"beacon/internal/beaconerr"
	"beacon/internal/beaconlog"
	"beacon/internal/config"
	"beacon/internal/index"
	"beacon/internal/issuestore/fsstore"
	"beacon/internal/model"
	"beacon/internal/paths"
)

// Server serves the daemon protocol for one repository root over a
// local Unix domain socket, one connection at a time, with no
// per-request goroutine: the accept loop in Run handles every request,
// matching §5's threading model. The only other goroutine is the
// fsnotify drain loop started by startWatcher, which only clears the
// warm cache.
type Server struct {
	Root    string
	Log     *beaconlog.Logger
	cfg     *model.Config
	project string

	listener net.Listener
	watcher  *fsnotify.Watcher
	cache    *index.Index
}

// NewServer constructs a Server for root using the already-loaded
// project configuration and its resolved project directory.
func NewServer(root string, cfg *model.Config, projectDir string, log *beaconlog.Logger) *Server {
	if log == nil {
		log = beaconlog.Default()
	}
	return &Server{Root: root, Log: log, cfg: cfg, project: projectDir}
}

// Run binds the socket, removing any pre-existing file as stale, warms
// the cache with one internal index.list, then accepts and serves
// connections serially until a shutdown action is handled or an
// unrecoverable accept error occurs.
func (s *Server) Run() error {
	sockPath := SocketPath(s.Root)
	if err := os.MkdirAll(filepath.Dir(sockPath), 0o755); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	if _, err := os.Stat(sockPath); err == nil {
		os.Remove(sockPath)
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	s.listener = listener
	defer listener.Close()
	defer os.Remove(sockPath)

	s.Log.Info("daemon listening on %s", sockPath)
	if err := s.warmCache(); err != nil {
		s.Log.Error("warm cache failed: %v", err)
	}
	s.startWatcher()
	if s.watcher != nil {
		defer s.watcher.Close()
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			return beaconerr.Wrap(beaconerr.IOError, err)
		}
		shutdown := s.handleConn(conn)
		if shutdown {
			s.Log.Info("daemon stopping")
			return nil
		}
	}
}

func (s *Server) warmCache() error {
	idx, _, err := index.BuildFromStore(fsstore.New(filepath.Join(s.project, "issues")))
	if err != nil {
		return err
	}
	s.cache = idx
	mtimes, err := fsstore.New(filepath.Join(s.project, "issues")).Mtimes()
	if err == nil {
		index.WriteCache(s.project, idx, mtimes, model.NewTime(time.Now()))
	}
	return nil
}

// startWatcher wires fsnotify onto the issues directory so the cache is
// invalidated proactively between requests, rather than only lazily on
// the next index.list mtime comparison. Failure to start a watcher is
// not fatal: the cache still self-corrects via the mtime check in
// loadIndex on every request.
func (s *Server) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.Log.Debug("fsnotify unavailable: %v", err)
		return
	}
	issuesDir := filepath.Join(s.project, "issues")
	if err := w.Add(issuesDir); err != nil {
		s.Log.Debug("fsnotify watch failed: %v", err)
		w.Close()
		return
	}
	s.watcher = w
	go func() {
		for {
			select {
			case _, ok := <-w.Events:
				if !ok {
					return
				}
				s.cache = nil
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// handleConn reads exactly one line from conn, dispatches it, writes
// the response, and reports whether the server should shut down after
// this connection. An empty connection (no bytes before EOF) is
// silently ignored, matching §4.J and the testable property of §8.
func (s *Server) handleConn(conn net.Conn) (shutdown bool) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	response, shutdown := s.handleLine(line)
	data, err := json.Marshal(response)
	if err != nil {
		return false
	}
	conn.Write(data)
	conn.Write([]byte("\n"))
	return shutdown
}

func (s *Server) handleLine(line string) (Response, bool) {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		return errorResponse("unknown", beaconerr.Wrap(beaconerr.InvalidRequest, err)), false
	}
	return s.handleRequest(req)
}

func (s *Server) handleRequest(req Request) (Response, bool) {
	if verr := ValidateCompatibility(req.ProtocolVersion, ProtocolVersion); verr != nil {
		return errorResponse(req.RequestID, verr), false
	}

	switch req.Action {
	case "ping":
		return okResponse(req.RequestID, map[string]any{"status": "ok"}), false
	case "shutdown":
		return okResponse(req.RequestID, map[string]any{"status": "stopping"}), true
	case "index.list":
		idx, err := s.loadIndex()
		if err != nil {
			be, _ := err.(*beaconerr.Error)
			if be == nil {
				be = beaconerr.Wrap(beaconerr.IOError, err)
			}
			return errorResponse(req.RequestID, be), false
		}
		return okResponse(req.RequestID, map[string]any{"issues": idx.Issues()}), false
	default:
		return errorResponse(req.RequestID, beaconerr.Newf(beaconerr.UnknownAction, "unknown action %q", req.Action).
			WithDetails(map[string]any{"action": req.Action})), false
	}
}

// loadIndex returns the warm in-memory cache when the fsnotify watcher
// is running and has not invalidated it, otherwise falls back to the
// on-disk cache-or-rebuild protocol of §4.G.
func (s *Server) loadIndex() (*index.Index, error) {
	if s.cache != nil && s.watcher != nil {
		return s.cache, nil
	}
	idx, err := index.LoadOrBuild(s.project, fsstore.New(filepath.Join(s.project, "issues")), model.NewTime(time.Now()))
	if err != nil {
		return nil, err
	}
	s.cache = idx
	return idx, nil
}

// Bootstrap resolves the repository's configuration and project
// directory and constructs a ready-to-run Server, mirroring the client
// spawn contract's expectation that `beacond <root>` needs no further
// arguments.
func Bootstrap(root string, log *beaconlog.Logger) (*Server, error) {
	cfg, err := config.Load(paths.MarkerPath(root))
	if err != nil {
		return nil, err
	}
	projectDir, err := paths.FindProject(root, cfg)
	if err != nil {
		return nil, err
	}
	return NewServer(root, cfg, projectDir, log), nil
}
