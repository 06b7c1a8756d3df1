// Package daemonclient implements the client side of §4.K:
// connect-or-spawn with stale-socket recovery, bounded timeouts, and
// the NO_DAEMON bypass toggle. The dial/backoff/reconnect shape is
// grounded on ttrei-beads's internal/rpc.Client (DialTimeout, a small
// retry loop with exponential backoff) adapted to this spec's
// envelope fields and to connect_or_spawn's spawn-and-poll contract,
// which that package's TryConnect does not attempt on its own.
package daemonclient

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"beacon/internal/beaconerr"
	"beacon/internal/config"
	"beacon/internal/daemon"
	"beacon/internal/index"
	"beacon/internal/issuestore/fsstore"
	"beacon/internal/model"
	"beacon/internal/paths"
)

const (
	connectTimeout   = 5 * time.Second
	spawnPollBudget  = 5 * time.Second
	spawnPollBackoff = 50 * time.Millisecond
)

// Client talks to the daemon for one repository root, or computes
// answers locally when NoDaemon disables the daemon path entirely.
type Client struct {
	Root       string
	NoDaemon   bool
	BeacondBin string
}

// New constructs a Client for root, reading the NO_DAEMON environment
// toggle of §6.4.
func New(root string) *Client {
	return &Client{
		Root:       root,
		NoDaemon:   envBool("NO_DAEMON"),
		BeacondBin: "beacond",
	}
}

func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// Ping sends a ping action and reports whether the daemon answered ok.
func (c *Client) Ping() bool {
	resp, err := c.Request("ping", nil)
	return err == nil && resp.Status == "ok"
}

// IndexList sends an index.list action and returns its issues result.
// A missing or non-list "issues" field is reported as io_error; the
// error taxonomy has no separate invalid_response code.
func (c *Client) IndexList() ([]any, error) {
	resp, err := c.Request("index.list", nil)
	if err != nil {
		return nil, err
	}
	issues, ok := resp.Result["issues"]
	if !ok {
		return nil, beaconerr.New(beaconerr.IOError, "index.list response missing issues field")
	}
	list, ok := issues.([]any)
	if !ok {
		return nil, beaconerr.New(beaconerr.IOError, "index.list response issues field has unexpected shape")
	}
	return list, nil
}

// Shutdown sends a shutdown action.
func (c *Client) Shutdown() error {
	_, err := c.Request("shutdown", nil)
	return err
}

// Request performs connect_or_spawn followed by one request/response
// round trip, per §4.K. When NoDaemon is set it never touches the
// socket path or spawns a server, answering from a local index build
// instead, per §4.K's "Disable mode".
func (c *Client) Request(action string, payload json.RawMessage) (*daemon.Response, error) {
	if c.NoDaemon {
		return c.localRequest(action)
	}

	sockPath := daemon.SocketPath(c.Root)

	conn, err := c.connectOrSpawn(sockPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := daemon.Request{
		ProtocolVersion: daemon.ProtocolVersion,
		RequestID:       uuid.New().String(),
		Action:          action,
		Payload:         payload,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	data = append(data, '\n')

	conn.SetDeadline(time.Now().Add(connectTimeout))
	if _, err := conn.Write(data); err != nil {
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}

	var resp daemon.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	if resp.Error != nil {
		return &resp, beaconerr.New(beaconerr.Code(resp.Error.Code), resp.Error.Message).WithDetails(resp.Error.Details)
	}
	return &resp, nil
}

// connectOrSpawn dials the socket; on a missing file or connection
// refusal it removes any stale socket, spawns a beacond process for
// this root, and polls for readiness within spawnPollBudget.
func (c *Client) connectOrSpawn(sockPath string) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", sockPath, connectTimeout)
	if err == nil {
		return conn, nil
	}

	os.Remove(sockPath)
	if err := c.spawn(); err != nil {
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}

	deadline := time.Now().Add(spawnPollBudget)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", sockPath, connectTimeout)
		if err == nil {
			return conn, nil
		}
		time.Sleep(spawnPollBackoff)
	}
	return nil, beaconerr.New(beaconerr.IOError, "daemon did not become ready in time")
}

func (c *Client) spawn() error {
	cmd := exec.Command(c.BeacondBin, c.Root)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Start()
}

// localRequest answers an action without a daemon by loading the
// project's configuration and index directly in this process. It
// mirrors the action set handleRequest serves, so NoDaemon callers see
// the same shape of response regardless of which path answered.
func (c *Client) localRequest(action string) (*daemon.Response, error) {
	switch action {
	case "ping":
		return &daemon.Response{ProtocolVersion: daemon.ProtocolVersion, Status: "ok", Result: map[string]any{"status": "ok"}}, nil
	case "shutdown":
		return &daemon.Response{ProtocolVersion: daemon.ProtocolVersion, Status: "ok", Result: map[string]any{"status": "stopping"}}, nil
	case "index.list":
		issues, err := c.localIndex()
		if err != nil {
			return nil, err
		}
		return &daemon.Response{ProtocolVersion: daemon.ProtocolVersion, Status: "ok", Result: map[string]any{"issues": issues}}, nil
	default:
		err := beaconerr.Newf(beaconerr.UnknownAction, "unknown action %q", action).WithDetails(map[string]any{"action": action})
		return nil, err
	}
}

// localIndex loads configuration and builds the project index directly
// against the filesystem, the same cache-or-rebuild protocol the
// daemon uses, without a running server.
func (c *Client) localIndex() ([]any, error) {
	cfg, err := config.Load(paths.MarkerPath(c.Root))
	if err != nil {
		return nil, err
	}
	projectDir, err := paths.FindProject(c.Root, cfg)
	if err != nil {
		return nil, err
	}
	idx, err := index.LoadOrBuild(projectDir, fsstore.New(filepath.Join(projectDir, "issues")), model.NewTime(time.Now()))
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so the result matches the wire path's
	// []any-of-map shape regardless of caller (IndexList type-asserts
	// resp.Result["issues"] the same way whether it came over the
	// socket or from here).
	issues := idx.Issues()
	raw, err := json.Marshal(issues)
	if err != nil {
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	return out, nil
}
