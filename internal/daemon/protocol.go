// Package daemon implements the local-socket server of §4.J: protocol
// version negotiation, the ping/index.list/shutdown actions, and the
// serial, one-connection-at-a-time accept loop. The envelope shapes and
// per-action dispatch are grounded almost directly on original_source's
// daemon_server.rs (RequestEnvelope/ResponseEnvelope, handle_stream's
// read-one-line-then-respond shape, warm_cache on bind); the envelope
// field names themselves come from this spec's §6.3 rather than the
// Rust source's, since the two differ slightly.
package daemon

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"beacon/internal/beaconerr"
)

// ProtocolVersion is the version this server implements.
const ProtocolVersion = "1.0"

// Request is the client->server envelope of §6.3.
type Request struct {
	ProtocolVersion string          `json:"protocol_version"`
	RequestID       string          `json:"request_id"`
	Action          string          `json:"action"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// ErrorDetail is the error field of a Response.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Response is the server->client envelope of §6.3.
type Response struct {
	ProtocolVersion string         `json:"protocol_version"`
	RequestID       string         `json:"request_id"`
	Status          string         `json:"status"`
	Result          map[string]any `json:"result,omitempty"`
	Error           *ErrorDetail   `json:"error,omitempty"`
}

func okResponse(requestID string, result map[string]any) Response {
	return Response{ProtocolVersion: ProtocolVersion, RequestID: requestID, Status: "ok", Result: result}
}

func errorResponse(requestID string, err *beaconerr.Error) Response {
	return Response{
		ProtocolVersion: ProtocolVersion,
		RequestID:       requestID,
		Status:          "error",
		Error: &ErrorDetail{
			Code:    string(err.Code),
			Message: err.Message,
			Details: err.Details,
		},
	}
}

// ParseVersion splits a "major.minor" string into its two integers.
func ParseVersion(v string) (major, minor int, err error) {
	parts := strings.SplitN(v, ".", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed protocol version %q", v)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed protocol version %q", v)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed protocol version %q", v)
	}
	return major, minor, nil
}

// ValidateCompatibility implements the negotiation rule of §4.J:
// mismatched major versions fail with protocol_version_mismatch; equal
// major with a client minor greater than the server's fails with
// protocol_version_unsupported; a malformed version string fails with
// invalid_request.
func ValidateCompatibility(clientVersion, serverVersion string) *beaconerr.Error {
	clientMajor, clientMinor, err := ParseVersion(clientVersion)
	if err != nil {
		return beaconerr.Wrap(beaconerr.InvalidRequest, err)
	}
	serverMajor, serverMinor, err := ParseVersion(serverVersion)
	if err != nil {
		return beaconerr.Wrap(beaconerr.InvalidRequest, err)
	}
	if clientMajor != serverMajor {
		return beaconerr.Newf(beaconerr.ProtocolVersionMismatch, "client protocol %s is incompatible with server protocol %s", clientVersion, serverVersion)
	}
	if clientMinor > serverMinor {
		return beaconerr.Newf(beaconerr.ProtocolVersionUnsupported, "client protocol %s is newer than server protocol %s", clientVersion, serverVersion)
	}
	return nil
}

// SocketPath returns the deterministic socket path for repository root.
func SocketPath(root string) string {
	return filepath.Join(root, ".beacon", "daemon.sock")
}
