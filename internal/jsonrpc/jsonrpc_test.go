package jsonrpc_test

import (
	"encoding/json"
	"testing"

	"github.com/cadenza-audio/cadenza/internal/jsonrpc"
)

func TestParseRequest(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		body := []byte(`{"jsonrpc":"2.0","id":3,"method":"MYMPD_API_PLAYER_STATE"}`)
		req, err := jsonrpc.ParseRequest(7, "default", body)
		if err != nil {
			t.Fatalf("ParseRequest: %v", err)
		}
		if req.Cmd != jsonrpc.CmdPlayerState || req.ID != 3 || req.ConnID != 7 {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.Partition != "default" {
			t.Errorf("partition = %q", req.Partition)
		}
	})

	t.Run("unknown method rejected", func(t *testing.T) {
		body := []byte(`{"jsonrpc":"2.0","id":1,"method":"MYMPD_API_NOPE"}`)
		if _, err := jsonrpc.ParseRequest(1, "default", body); err == nil {
			t.Error("expected error for unknown method")
		}
	})

	t.Run("wrong version rejected", func(t *testing.T) {
		body := []byte(`{"jsonrpc":"1.0","id":1,"method":"MYMPD_API_PLAYER_STATE"}`)
		if _, err := jsonrpc.ParseRequest(1, "default", body); err == nil {
			t.Error("expected error for json-rpc 1.0")
		}
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		if _, err := jsonrpc.ParseRequest(1, "default", []byte("{")); err == nil {
			t.Error("expected error for malformed body")
		}
	})
}

func TestResponses(t *testing.T) {
	t.Run("result envelope", func(t *testing.T) {
		resp := jsonrpc.NewResult(1, 9, "MYMPD_API_STATS", map[string]any{"songs": 10})
		var env struct {
			JSONRPC string         `json:"jsonrpc"`
			ID      int64          `json:"id"`
			Result  map[string]any `json:"result"`
		}
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.JSONRPC != "2.0" || env.ID != 9 || env.Result["songs"].(float64) != 10 {
			t.Errorf("unexpected envelope: %+v", env)
		}
	})

	t.Run("error envelope", func(t *testing.T) {
		resp := jsonrpc.NewError(1, 2, "MYMPD_API_STATS",
			jsonrpc.FacilityMPD, jsonrpc.SeverityError, "boom", nil)
		var env struct {
			Error jsonrpc.ErrorBody `json:"error"`
		}
		if err := json.Unmarshal(resp.Body, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Error.Facility != jsonrpc.FacilityMPD || env.Error.Message != "boom" {
			t.Errorf("unexpected error body: %+v", env.Error)
		}
	})

	t.Run("notification has no id", func(t *testing.T) {
		payload := jsonrpc.Notification("update_queue", map[string]any{"length": 2})
		var env map[string]any
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if _, has := env["id"]; has {
			t.Error("notification must not carry an id")
		}
		if env["method"] != "update_queue" {
			t.Errorf("method = %v", env["method"])
		}
	})
}

func TestBindParams(t *testing.T) {
	req := &jsonrpc.Request{Method: "MYMPD_API_QUEUE_APPEND",
		Params: json.RawMessage(`{"uri":"a/b.flac"}`)}
	var params struct {
		URI string `json:"uri"`
	}
	if err := req.BindParams(&params); err != nil || params.URI != "a/b.flac" {
		t.Errorf("BindParams: %v, uri=%q", err, params.URI)
	}

	empty := &jsonrpc.Request{Method: "MYMPD_API_QUEUE_LIST"}
	if err := empty.BindParams(&params); err != nil {
		t.Errorf("BindParams with absent params: %v", err)
	}
}

func TestMethodClassification(t *testing.T) {
	cases := []struct {
		method      string
		longRunning bool
		independent bool
		public      bool
	}{
		{"MYMPD_API_CACHES_CREATE", true, false, false},
		{"MYMPD_API_SMARTPLS_UPDATE_ALL", true, false, false},
		{"MYMPD_API_SESSION_LOGIN", false, true, true},
		{"MYMPD_API_LAST_PLAYED_LIST", false, true, false},
		{"MYMPD_API_PLAYER_STATE", false, false, false},
	}
	for _, c := range cases {
		cmd, ok := jsonrpc.LookupMethod(c.method)
		if !ok {
			t.Fatalf("unknown method %s", c.method)
		}
		if jsonrpc.IsLongRunning(cmd) != c.longRunning {
			t.Errorf("%s: IsLongRunning = %v", c.method, !c.longRunning)
		}
		if jsonrpc.IsMPDIndependent(cmd) != c.independent {
			t.Errorf("%s: IsMPDIndependent = %v", c.method, !c.independent)
		}
		if jsonrpc.IsPublic(cmd) != c.public {
			t.Errorf("%s: IsPublic = %v", c.method, !c.public)
		}
	}
}
