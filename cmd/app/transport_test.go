package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeErrorShapes(t *testing.T) {
	var re *remoteError

	err := decodeError("api", http.StatusNotFound, []byte(`{"error":"column cl_1 not found"}`))
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusNotFound, re.Code)
	require.Equal(t, "column cl_1 not found", re.Message)

	err = decodeError("rpc", 0, []byte(`{"code":-32602,"message":"id is required"}`))
	require.True(t, errors.As(err, &re))
	require.Equal(t, -32602, re.Code)
	require.Equal(t, "rpc error (-32602): id is required", err.Error())

	err = decodeError("api", http.StatusBadGateway, []byte("upstream down\n"))
	require.True(t, errors.As(err, &re))
	require.Equal(t, "upstream down", re.Message)
}

func TestHTTPTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/tables/md_1":
			_, _ = w.Write([]byte(`{"id":"md_1","title":"Films"}`))
		case "/api/bases/p1/tables":
			var in map[string]any
			_ = json.NewDecoder(r.Body).Decode(&in)
			if r.Method != http.MethodPost || in["table_name"] != "films" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"duplicate table title \"Films\""}`))
		case "/api/columns/cl_1":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	cfg := cliConfig{Transport: transportHTTP, Server: srv.URL + "/"}
	ctx := context.Background()

	var got struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, doTablesGet(ctx, cfg, "md_1", &got))
	require.Equal(t, "Films", got.Title)

	err := doTablesCreate(ctx, cfg, "p1", "Films", "films", &got)
	var re *remoteError
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusBadRequest, re.Code)
	require.Equal(t, `duplicate table title "Films"`, re.Message)

	require.NoError(t, doColumnsDelete(ctx, cfg, "cl_1"))
}

// serveRPC answers every connection on a unix socket with reply(request).
func serveRPC(t *testing.T, reply func(req map[string]any) map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rpc.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			var req map[string]any
			if json.NewDecoder(conn).Decode(&req) == nil {
				_ = json.NewEncoder(conn).Encode(reply(req))
			}
			_ = conn.Close()
		}
	}()
	return path
}

func TestSocketTransport(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []any
	)
	path := serveRPC(t, func(req map[string]any) map[string]any {
		mu.Lock()
		seen = append(seen, req["id"])
		mu.Unlock()
		params, _ := req["params"].(map[string]any)
		switch req["method"] {
		case "columns.create":
			return map[string]any{"jsonrpc": "2.0", "id": req["id"], "result": map[string]any{
				"fk_model_id": params["fk_model_id"], "title": params["title"],
			}}
		case "columns.delete":
			return map[string]any{"jsonrpc": "2.0", "id": req["id"], "error": map[string]any{"code": -32004, "message": "column not found"}}
		}
		return map[string]any{"jsonrpc": "2.0", "id": 99, "result": nil}
	})
	cfg := cliConfig{Transport: transportSocket, Socket: path}
	ctx := context.Background()

	in := map[string]any{"title": "Director", "uidt": "SingleLineText"}
	var col map[string]any
	require.NoError(t, doColumnsCreate(ctx, cfg, "md_1", in, &col))
	require.Equal(t, "md_1", col["fk_model_id"])
	require.NotContains(t, in, "fk_model_id")

	err := doColumnsDelete(ctx, cfg, "cl_1")
	var re *remoteError
	require.True(t, errors.As(err, &re))
	require.Equal(t, -32004, re.Code)

	err = doViewsDelete(ctx, cfg, "vw_1")
	require.ErrorContains(t, err, "does not match")

	tr := &socketTransport{path: path}
	for i := 0; i < 2; i++ {
		require.NoError(t, tr.roundTrip(ctx, call{method: "columns.create", params: map[string]any{}}, nil))
	}
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []any{1.0, 1.0, 1.0, 1.0, 2.0}, seen)
}

func TestConfigRoundTrip(t *testing.T) {
	t.Setenv("NOCOMETA_CONFIG", filepath.Join(t.TempDir(), "cli", "config.yaml"))

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, cliConfig{Transport: transportSocket, Server: defaultServer, Socket: defaultSocket}, cfg)

	require.NoError(t, saveConfig(cliConfig{Transport: transportHTTP, Server: "http://meta:9000"}))
	cfg, err = loadConfig()
	require.NoError(t, err)
	require.Equal(t, transportHTTP, cfg.Transport)
	require.Equal(t, "http://meta:9000", cfg.Server)
	require.Equal(t, defaultSocket, cfg.Socket)

	require.Error(t, saveConfig(cliConfig{Transport: "carrier-pigeon"}))
	_, err = dial(cliConfig{Transport: "carrier-pigeon"})
	require.Error(t, err)
}
