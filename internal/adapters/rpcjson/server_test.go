package rpcjson

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/nocometa/internal/adapters/cache/lru"
	"github.com/atvirokodosprendimai/nocometa/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/nocometa/internal/application"
	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) (*application.MetaService, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "rpc_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(context.Background(), db))
	cache, err := lru.New(0)
	require.NoError(t, err)
	svc := application.NewMetaService(sqlite.NewMetaStore(db), cache)
	t.Cleanup(func() { _ = svc.Close() })

	sockDir, err := os.MkdirTemp("", "nocorpc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })
	socket := filepath.Join(sockDir, "rpc.sock")

	srv, err := Start(socket, svc)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })
	return svc, socket
}

func call(t *testing.T, socket, method string, params any) response {
	t.Helper()
	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, json.NewEncoder(conn).Encode(map[string]any{
		"jsonrpc": "2.0", "method": method, "params": params, "id": 1,
	}))
	var resp struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *rpcError       `json:"error"`
	}
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return response{JSONRPC: resp.JSONRPC, Result: resp.Result, Error: resp.Error}
}

func TestTablesListAndColumnDelete(t *testing.T) {
	svc, socket := startTestServer(t)
	ctx := context.Background()

	m, err := svc.InsertModel(ctx, application.ModelRequest{
		Model: domain.Model{BaseID: "b1", Title: "Orders", TableName: "orders"},
		Columns: []application.ColumnRequest{
			{Column: domain.Column{Title: "Id", ColumnName: "id", UIDT: domain.UIID, PK: true}},
			{Column: domain.Column{Title: "Code", ColumnName: "code", UIDT: domain.UISingleLineText}},
		},
	})
	require.NoError(t, err)

	resp := call(t, socket, "tables.list", map[string]any{"base_id": "b1"})
	require.Nil(t, resp.Error)
	var models []domain.Model
	require.NoError(t, json.Unmarshal(resp.Result.(json.RawMessage), &models))
	require.Len(t, models, 1)
	require.Equal(t, m.ID, models[0].ID)

	code, err := svc.GetColumnByTitle(ctx, m.ID, "Code")
	require.NoError(t, err)
	require.NotNil(t, code)

	resp = call(t, socket, "columns.delete", map[string]any{"id": code.ID})
	require.Nil(t, resp.Error)

	resp = call(t, socket, "columns.get", map[string]any{"id": code.ID})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeNotFound, resp.Error.Code)
}

func TestDispatchErrors(t *testing.T) {
	_, socket := startTestServer(t)

	resp := call(t, socket, "nope", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	resp = call(t, socket, "columns.get", map[string]any{})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}
