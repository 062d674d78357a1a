package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/nocometa/internal/application"
	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeNotFound       = -32004
	codeInternal       = -32000
)

type Server struct {
	service  *application.MetaService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handlerFunc func(ctx context.Context, s *Server, params json.RawMessage) (any, error)

var methods = map[string]handlerFunc{
	"tables.list":     handleTablesList,
	"tables.get":      handleTablesGet,
	"tables.create":   handleTablesCreate,
	"tables.delete":   handleTablesDelete,
	"columns.list":    handleColumnsList,
	"columns.get":     handleColumnsGet,
	"columns.create":  handleColumnsCreate,
	"columns.deps":    handleColumnsDeps,
	"columns.delete":  handleColumnsDelete,
	"views.list":      handleViewsList,
	"views.get":       handleViewsGet,
	"views.columns":   handleViewsColumns,
	"views.delete":    handleViewsDelete,
	"views.show_all":  handleViewsShowAll,
	"views.hide_all":  handleViewsHideAll,
	"sorts.list":      handleSortsList,
	"filters.list":    handleFiltersList,
	"export.snapshot": handleExportSnapshot,
}

func Start(path string, service *application.MetaService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	return &Server{service: service, listener: ln, path: path}, nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidRequest, Message: "invalid request"}, ID: req.ID}
	}
	handler, ok := methods[req.Method]
	if !ok {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeMethodNotFound, Message: "method not found"}, ID: req.ID}
	}
	result, err := handler(ctx, s, req.Params)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return response{JSONRPC: "2.0", Result: result, ID: req.ID}
}

type idParams struct {
	ID     string `json:"id"`
	BaseID string `json:"base_id"`
	Force  bool   `json:"force"`
}

type visibilityParams struct {
	ID        string   `json:"id"`
	IgnoreIDs []string `json:"ignore_ids"`
}

type snapshotParams struct {
	BaseID   string   `json:"base_id"`
	TableIDs []string `json:"table_ids"`
}

func handleTablesList(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return s.service.ListModels(ctx, p.BaseID)
}

func handleTablesGet(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	m, err := s.service.GetModelWithInfo(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.NotFound("table %s not found", p.ID)
	}
	return m, nil
}

func handleTablesCreate(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var req application.ModelRequest
	if err := decodeParams(raw, &req); err != nil {
		return nil, err
	}
	return s.service.InsertModel(ctx, req)
}

func handleTablesDelete(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	if err := s.service.DeleteModel(ctx, p.ID, p.Force); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func handleColumnsList(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	return s.service.ListColumns(ctx, p.ID, "")
}

func handleColumnsGet(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	col, err := s.service.GetColumn(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, domain.NotFound("column %s not found", p.ID)
	}
	return col, nil
}

func handleColumnsCreate(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var req application.ColumnRequest
	if err := decodeParams(raw, &req); err != nil {
		return nil, err
	}
	return s.service.InsertColumn(ctx, req)
}

func handleColumnsDeps(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	return s.service.Dependents(ctx, p.ID)
}

func handleColumnsDelete(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	if err := s.service.DeleteColumn(ctx, p.ID); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func handleViewsList(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	return s.service.ListViewsWithInfo(ctx, p.ID)
}

func handleViewsGet(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	v, err := s.service.GetViewWithInfo(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.NotFound("view %s not found", p.ID)
	}
	return v, nil
}

func handleViewsColumns(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	return s.service.ListViewColumns(ctx, p.ID)
}

func handleViewsDelete(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	if err := s.service.DeleteView(ctx, p.ID); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func handleViewsShowAll(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var p visibilityParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := s.service.ShowAllColumns(ctx, p.ID, p.IgnoreIDs); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func handleViewsHideAll(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var p visibilityParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if err := s.service.HideAllColumns(ctx, p.ID, p.IgnoreIDs); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func handleSortsList(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	return s.service.ListSorts(ctx, p.ID)
}

func handleFiltersList(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	p, err := requireID(raw)
	if err != nil {
		return nil, err
	}
	return s.service.ListFilters(ctx, p.ID)
}

func handleExportSnapshot(ctx context.Context, s *Server, raw json.RawMessage) (any, error) {
	var p snapshotParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	ids := p.TableIDs
	if len(ids) == 0 {
		models, err := s.service.ListModels(ctx, p.BaseID)
		if err != nil {
			return nil, err
		}
		for _, m := range models {
			ids = append(ids, m.ID)
		}
	}
	return s.service.Snapshot(ctx, ids)
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.BadRequest("invalid params")
	}
	return nil
}

func requireID(raw json.RawMessage) (idParams, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return p, err
	}
	if strings.TrimSpace(p.ID) == "" {
		return p, domain.BadRequest("id is required")
	}
	return p, nil
}

func errorResponse(id any, err error) response {
	switch {
	case domain.IsBadRequest(err):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidParams, Message: err.Error()}, ID: id}
	case domain.IsNotFound(err):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeNotFound, Message: err.Error()}, ID: id}
	}
	return response{JSONRPC: "2.0", Error: &rpcError{Code: codeInternal, Message: fmt.Sprintf("internal error: %v", err)}, ID: id}
}
