package main

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

func run(ctx context.Context, cfg cliConfig, c call, out any) error {
	t, err := dial(cfg)
	if err != nil {
		return err
	}
	return t.roundTrip(ctx, c, out)
}

func seg(id string) string { return url.PathEscape(id) }

func doTablesList(ctx context.Context, cfg cliConfig, baseID string, out any) error {
	return run(ctx, cfg, call{
		method: "tables.list", params: map[string]any{"base_id": baseID},
		verb: http.MethodGet, path: "/api/bases/" + seg(baseID) + "/tables",
	}, out)
}

func doTablesGet(ctx context.Context, cfg cliConfig, id string, out any) error {
	return run(ctx, cfg, call{
		method: "tables.get", params: map[string]any{"id": id},
		verb: http.MethodGet, path: "/api/tables/" + seg(id),
	}, out)
}

func doTablesCreate(ctx context.Context, cfg cliConfig, baseID, title, tableName string, out any) error {
	in := map[string]any{"base_id": baseID, "title": title, "table_name": tableName}
	return run(ctx, cfg, call{
		method: "tables.create", params: in,
		verb: http.MethodPost, path: "/api/bases/" + seg(baseID) + "/tables", body: in,
	}, out)
}

func doTablesDelete(ctx context.Context, cfg cliConfig, id string, force bool) error {
	path := "/api/tables/" + seg(id)
	if force {
		path += "?force=true"
	}
	return run(ctx, cfg, call{
		method: "tables.delete", params: map[string]any{"id": id, "force": force},
		verb: http.MethodDelete, path: path,
	}, nil)
}

func doColumnsList(ctx context.Context, cfg cliConfig, tableID string, out any) error {
	return run(ctx, cfg, call{
		method: "columns.list", params: map[string]any{"id": tableID},
		verb: http.MethodGet, path: "/api/tables/" + seg(tableID) + "/columns",
	}, out)
}

// doColumnsCreate sends in as the column body. The socket method has no table
// in its route, so the table id travels in the params.
func doColumnsCreate(ctx context.Context, cfg cliConfig, tableID string, in map[string]any, out any) error {
	params := make(map[string]any, len(in)+1)
	for k, v := range in {
		params[k] = v
	}
	params["fk_model_id"] = tableID
	return run(ctx, cfg, call{
		method: "columns.create", params: params,
		verb: http.MethodPost, path: "/api/tables/" + seg(tableID) + "/columns", body: in,
	}, out)
}

func doColumnsDeps(ctx context.Context, cfg cliConfig, id string, out any) error {
	return run(ctx, cfg, call{
		method: "columns.deps", params: map[string]any{"id": id},
		verb: http.MethodGet, path: "/api/columns/" + seg(id) + "/dependents",
	}, out)
}

func doColumnsDelete(ctx context.Context, cfg cliConfig, id string) error {
	return run(ctx, cfg, call{
		method: "columns.delete", params: map[string]any{"id": id},
		verb: http.MethodDelete, path: "/api/columns/" + seg(id),
	}, nil)
}

func doViewsList(ctx context.Context, cfg cliConfig, tableID string, out any) error {
	return run(ctx, cfg, call{
		method: "views.list", params: map[string]any{"id": tableID},
		verb: http.MethodGet, path: "/api/tables/" + seg(tableID) + "/views",
	}, out)
}

func doViewColumns(ctx context.Context, cfg cliConfig, viewID string, out any) error {
	return run(ctx, cfg, call{
		method: "views.columns", params: map[string]any{"id": viewID},
		verb: http.MethodGet, path: "/api/views/" + seg(viewID) + "/columns",
	}, out)
}

func doViewsVisibility(ctx context.Context, cfg cliConfig, viewID string, show bool, ignoreIDs []string) error {
	c := call{
		method: "views.hide_all", params: map[string]any{"id": viewID, "ignore_ids": ignoreIDs},
		verb: http.MethodPost, path: "/api/views/" + seg(viewID) + "/columns/hide-all",
		body: map[string]any{"ignore_ids": ignoreIDs},
	}
	if show {
		c.method = "views.show_all"
		c.path = "/api/views/" + seg(viewID) + "/columns/show-all"
	}
	return run(ctx, cfg, c, nil)
}

func doViewsDelete(ctx context.Context, cfg cliConfig, id string) error {
	return run(ctx, cfg, call{
		method: "views.delete", params: map[string]any{"id": id},
		verb: http.MethodDelete, path: "/api/views/" + seg(id),
	}, nil)
}

// doExport uses "-" as the base segment when no base is given; the route
// then exports the listed tables only.
func doExport(ctx context.Context, cfg cliConfig, baseID string, tableIDs []string, out any) error {
	base := baseID
	if base == "" {
		base = "-"
	}
	path := "/api/bases/" + seg(base) + "/export"
	if len(tableIDs) > 0 {
		path += "?tables=" + url.QueryEscape(strings.Join(tableIDs, ","))
	}
	return run(ctx, cfg, call{
		method: "export.snapshot", params: map[string]any{"base_id": baseID, "table_ids": tableIDs},
		verb: http.MethodGet, path: path,
	}, out)
}
