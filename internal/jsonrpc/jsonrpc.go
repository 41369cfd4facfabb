// Package jsonrpc defines the JSON-RPC 2.0 request, response and notification
// shapes exchanged with web clients, plus the API method table used to route
// and classify commands.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Reserved connection ids. Positive ids identify HTTP/WebSocket connections.
const (
	ConnInternal int64 = -1 // request originated inside the daemon
	ConnScript   int64 = -2 // request originated from a trigger callback
)

// Facility names the error domain surfaced to clients.
type Facility string

const (
	FacilityMPD      Facility = "mpd"
	FacilityPlaylist Facility = "playlist"
	FacilityQueue    Facility = "queue"
	FacilitySession  Facility = "session"
	FacilityDatabase Facility = "database"
	FacilityGeneral  Facility = "general"
)

// Severity grades an error response.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Request is an inbound API call, created by the HTTP frontend or by
// timer/trigger paths, and destroyed once its response is sent or enqueued.
type Request struct {
	ConnID    int64
	ID        int64
	Method    string
	Cmd       CmdID
	Partition string
	Params    json.RawMessage
	// Extra carries an opaque payload owned by the request, e.g. the
	// album-art reply channel for async cover lookups.
	Extra any
}

// Response pairs with exactly one request unless the handler opted to reply
// asynchronously.
type Response struct {
	ConnID int64
	ID     int64
	Method string
	Body   []byte
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ParseRequest decodes a client JSON-RPC call into a Request. Unknown methods
// are rejected here so handlers never see them.
func ParseRequest(connID int64, partition string, body []byte) (*Request, error) {
	var env rpcEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed json-rpc request: %w", err)
	}
	if env.JSONRPC != "2.0" {
		return nil, fmt.Errorf("unsupported json-rpc version %q", env.JSONRPC)
	}
	cmd, ok := LookupMethod(env.Method)
	if !ok {
		return nil, fmt.Errorf("unknown method %q", env.Method)
	}
	var id int64
	if env.ID != nil {
		id = *env.ID
	}
	return &Request{
		ConnID:    connID,
		ID:        id,
		Method:    env.Method,
		Cmd:       cmd,
		Partition: partition,
		Params:    env.Params,
	}, nil
}

// NewResult builds a success response envelope.
func NewResult(connID, id int64, method string, result any) *Response {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return NewError(connID, id, method, FacilityGeneral, SeverityError,
			"Response serialization failed", nil)
	}
	return &Response{ConnID: connID, ID: id, Method: method, Body: body}
}

// ErrorBody is the error member of a JSON-RPC error response.
type ErrorBody struct {
	Facility Facility `json:"facility"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Data     any      `json:"data,omitempty"`
}

// NewError builds an error response envelope.
func NewError(connID, id int64, method string, fac Facility, sev Severity, msg string, data any) *Response {
	body, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   ErrorBody{Facility: fac, Severity: sev, Message: msg, Data: data},
	})
	return &Response{ConnID: connID, ID: id, Method: method, Body: body}
}

// Notification builds a WebSocket push payload. Notifications omit the id.
func Notification(method string, params any) []byte {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		payload["params"] = params
	}
	body, _ := json.Marshal(payload)
	return body
}

// BindParams decodes request params into dst, treating absent params as an
// empty object.
func (r *Request) BindParams(dst any) error {
	if len(r.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Params, dst); err != nil {
		return fmt.Errorf("invalid params for %s: %w", r.Method, err)
	}
	return nil
}
