package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/nocometa/internal/adapters/cache/lru"
	"github.com/atvirokodosprendimai/nocometa/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/nocometa/internal/application"
	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "router_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.RunMigrations(context.Background(), db))
	cache, err := lru.New(0)
	require.NoError(t, err)
	svc := application.NewMetaService(sqlite.NewMetaStore(db), cache)
	t.Cleanup(func() { _ = svc.Close() })
	return NewRouter(svc, prometheus.NewRegistry())
}

func do(t *testing.T, h http.Handler, method, path string, in any, out any) int {
	t.Helper()
	var body bytes.Buffer
	if in != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(in))
	}
	req := httptest.NewRequest(method, path, &body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 400 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestRouterTableLifecycle(t *testing.T) {
	h := newTestRouter(t)

	var m domain.Model
	code := do(t, h, http.MethodPost, "/api/bases/b1/tables", map[string]any{
		"title":      "Tasks",
		"table_name": "tasks",
		"columns": []map[string]any{
			{"title": "Id", "column_name": "id", "uidt": "ID", "pk": true},
			{"title": "Title", "column_name": "title", "uidt": "SingleLineText", "pv": true},
		},
	}, &m)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, m.ID)

	var cols []domain.Column
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/tables/"+m.ID+"/columns", nil, &cols))
	require.Len(t, cols, 2)

	var views []domain.View
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/tables/"+m.ID+"/views", nil, &views))
	require.Len(t, views, 1)
	require.True(t, views[0].IsDefault)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodDelete, "/api/tables/"+m.ID, nil, nil))
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/tables/"+m.ID, nil, nil))
}

func TestRouterColumnValidation(t *testing.T) {
	h := newTestRouter(t)

	var m domain.Model
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/bases/b1/tables",
		map[string]any{"title": "Notes", "table_name": "notes"}, &m))

	code := do(t, h, http.MethodPost, "/api/tables/"+m.ID+"/columns", map[string]any{"title": "NoType"}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/bases/b1/tables", map[string]any{"title": ""}, nil))
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/columns/missing", nil, nil))
}

func TestRouterHideAllKeepsPrimaryValue(t *testing.T) {
	h := newTestRouter(t)

	var m domain.Model
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/bases/b1/tables", map[string]any{
		"title":      "People",
		"table_name": "people",
		"columns": []map[string]any{
			{"title": "Age", "column_name": "age", "uidt": "Number"},
			{"title": "Name", "column_name": "name", "uidt": "SingleLineText", "pv": true},
			{"title": "Email", "column_name": "email", "uidt": "Email"},
		},
	}, &m))

	var views []domain.View
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/tables/"+m.ID+"/views", nil, &views))
	viewID := views[0].ID

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/views/"+viewID+"/columns/show-all", nil, nil))
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/views/"+viewID+"/columns/hide-all", nil, nil))

	var cols []domain.Column
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/tables/"+m.ID+"/columns", nil, &cols))
	titles := map[string]string{}
	for _, c := range cols {
		titles[c.ID] = c.Title
	}

	var vcs []domain.ViewColumn
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/views/"+viewID+"/columns", nil, &vcs))
	require.Len(t, vcs, 3)
	for _, vc := range vcs {
		require.Equal(t, titles[vc.FkColumnID] == "Name", vc.Show, titles[vc.FkColumnID])
	}
}

func TestRouterMetrics(t *testing.T) {
	h := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
