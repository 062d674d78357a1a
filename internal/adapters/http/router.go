package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/nocometa/internal/application"
	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	service *application.MetaService
}

// NewRouter exposes the metadata service as a JSON API. When gatherer is not
// nil it is served on /metrics.
func NewRouter(service *application.MetaService, gatherer prometheus.Gatherer) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/bases/{baseID}/tables", h.handleListTables)
		api.Post("/bases/{baseID}/tables", h.handleCreateTable)
		api.Get("/bases/{baseID}/export", h.handleExport)

		api.Get("/tables/{tableID}", h.handleGetTable)
		api.Patch("/tables/{tableID}", h.handleUpdateTable)
		api.Delete("/tables/{tableID}", h.handleDeleteTable)
		api.Get("/tables/{tableID}/columns", h.handleListColumns)
		api.Post("/tables/{tableID}/columns", h.handleCreateColumn)
		api.Post("/tables/{tableID}/columns/bulk", h.handleBulkCreateColumns)
		api.Post("/tables/{tableID}/primary-column", h.handleSetPrimaryColumn)
		api.Get("/tables/{tableID}/views", h.handleListViews)
		api.Post("/tables/{tableID}/views", h.handleCreateView)
		api.Get("/tables/{tableID}/comments", h.handleListComments)
		api.Post("/tables/{tableID}/comments", h.handleCreateComment)

		api.Get("/columns/{columnID}", h.handleGetColumn)
		api.Patch("/columns/{columnID}", h.handleUpdateColumn)
		api.Delete("/columns/{columnID}", h.handleDeleteColumn)
		api.Get("/columns/{columnID}/dependents", h.handleColumnDependents)

		api.Get("/views/{viewID}", h.handleGetView)
		api.Patch("/views/{viewID}", h.handleUpdateView)
		api.Delete("/views/{viewID}", h.handleDeleteView)
		api.Post("/views/{viewID}/share", h.handleShareView)
		api.Delete("/views/{viewID}/share", h.handleUnshareView)
		api.Put("/views/{viewID}/password", h.handleUpdateViewPassword)
		api.Post("/views/{viewID}/fix-pv", h.handleFixPVColumn)
		api.Get("/views/{viewID}/detail", h.handleGetViewDetail)
		api.Patch("/views/{viewID}/detail", h.handleUpdateViewDetail)
		api.Get("/views/{viewID}/columns", h.handleListViewColumns)
		api.Patch("/views/{viewID}/columns/{viewColumnID}", h.handleUpdateViewColumn)
		api.Post("/views/{viewID}/columns/show-all", h.handleShowAllColumns)
		api.Post("/views/{viewID}/columns/hide-all", h.handleHideAllColumns)
		api.Get("/views/{viewID}/sorts", h.handleListSorts)
		api.Post("/views/{viewID}/sorts", h.handleCreateSort)
		api.Get("/views/{viewID}/filters", h.handleListFilters)
		api.Post("/views/{viewID}/filters", h.handleCreateFilter)

		api.Patch("/sorts/{sortID}", h.handleUpdateSort)
		api.Delete("/sorts/{sortID}", h.handleDeleteSort)
		api.Get("/filters/{filterID}", h.handleGetFilter)
		api.Patch("/filters/{filterID}", h.handleUpdateFilter)
		api.Delete("/filters/{filterID}", h.handleDeleteFilter)
	})

	return r
}

func (h *Handler) handleListTables(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListModels(r.Context(), chi.URLParam(r, "baseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var req application.ModelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.BaseID = chi.URLParam(r, "baseID")
	m, err := h.service.InsertModel(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ids := splitCSV(r.URL.Query().Get("tables"))
	if len(ids) == 0 {
		models, err := h.service.ListModels(r.Context(), chi.URLParam(r, "baseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		for _, m := range models {
			ids = append(ids, m.ID)
		}
	}
	snap, err := h.service.Snapshot(r.Context(), ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleGetTable(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetModelWithInfo(r.Context(), chi.URLParam(r, "tableID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if m == nil {
		writeError(w, domain.NotFound("table %s not found", chi.URLParam(r, "tableID")))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleUpdateTable(w http.ResponseWriter, r *http.Request) {
	var patch application.ModelPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	m, err := h.service.UpdateModel(r.Context(), chi.URLParam(r, "tableID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	if err := h.service.DeleteModel(r.Context(), chi.URLParam(r, "tableID"), force); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := h.service.ListColumns(r.Context(), chi.URLParam(r, "tableID"), r.URL.Query().Get("default_view_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (h *Handler) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	var req application.ColumnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.FkModelID = chi.URLParam(r, "tableID")
	col, err := h.service.InsertColumn(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, col)
}

func (h *Handler) handleBulkCreateColumns(w http.ResponseWriter, r *http.Request) {
	var reqs []application.ColumnRequest
	if !decodeBody(w, r, &reqs) {
		return
	}
	cols, err := h.service.BulkInsertColumns(r.Context(), chi.URLParam(r, "tableID"), reqs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

type apiPrimaryColumnRequest struct {
	ColumnID string `json:"column_id"`
}

func (h *Handler) handleSetPrimaryColumn(w http.ResponseWriter, r *http.Request) {
	var req apiPrimaryColumnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.service.UpdatePrimaryColumn(r.Context(), chi.URLParam(r, "tableID"), req.ColumnID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListViewsWithInfo(r.Context(), chi.URLParam(r, "tableID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCreateView(w http.ResponseWriter, r *http.Request) {
	var req application.ViewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.FkModelID = chi.URLParam(r, "tableID")
	v, err := h.service.InsertView(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListComments(r.Context(), chi.URLParam(r, "tableID"), r.URL.Query().Get("row_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var c domain.Comment
	if !decodeBody(w, r, &c) {
		return
	}
	c.FkModelID = chi.URLParam(r, "tableID")
	out, err := h.service.InsertComment(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetColumn(w http.ResponseWriter, r *http.Request) {
	col, err := h.service.GetColumn(r.Context(), chi.URLParam(r, "columnID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if col == nil {
		writeError(w, domain.NotFound("column %s not found", chi.URLParam(r, "columnID")))
		return
	}
	writeJSON(w, http.StatusOK, col)
}

// handleUpdateColumn decodes the body over the stored column, so omitted
// fields keep their values.
func (h *Handler) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "columnID")
	col, err := h.service.GetColumn(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if col == nil {
		writeError(w, domain.NotFound("column %s not found", id))
		return
	}
	req := application.ColumnRequest{Column: *col}
	if !decodeBody(w, r, &req) {
		return
	}
	skip, _ := strconv.ParseBool(r.URL.Query().Get("skip_formula_invalidate"))
	out, err := h.service.UpdateColumn(r.Context(), id, req, skip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteColumn(r.Context(), chi.URLParam(r, "columnID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleColumnDependents(w http.ResponseWriter, r *http.Request) {
	deps, err := h.service.Dependents(r.Context(), chi.URLParam(r, "columnID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deps)
}

func (h *Handler) handleGetView(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetViewWithInfo(r.Context(), chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if v == nil {
		writeError(w, domain.NotFound("view %s not found", chi.URLParam(r, "viewID")))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUpdateView(w http.ResponseWriter, r *http.Request) {
	var patch application.ViewPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	v, err := h.service.UpdateView(r.Context(), chi.URLParam(r, "viewID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteView(r.Context(), chi.URLParam(r, "viewID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleShareView(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.ShareView(r.Context(), chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUnshareView(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.UnshareView(r.Context(), chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type apiPasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleUpdateViewPassword(w http.ResponseWriter, r *http.Request) {
	var req apiPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := h.service.UpdateViewPassword(r.Context(), chi.URLParam(r, "viewID"), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleFixPVColumn(w http.ResponseWriter, r *http.Request) {
	if err := h.service.FixPVColumnForView(r.Context(), chi.URLParam(r, "viewID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleGetViewDetail(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetViewDetail(r.Context(), chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if d == nil {
		writeError(w, domain.NotFound("view %s not found", chi.URLParam(r, "viewID")))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleUpdateViewDetail(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if !decodeBody(w, r, &patch) {
		return
	}
	d, err := h.service.UpdateViewDetail(r.Context(), chi.URLParam(r, "viewID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleListViewColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := h.service.ListViewColumns(r.Context(), chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (h *Handler) handleUpdateViewColumn(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if !decodeBody(w, r, &patch) {
		return
	}
	vc, err := h.service.UpdateViewColumn(r.Context(), chi.URLParam(r, "viewID"), chi.URLParam(r, "viewColumnID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vc)
}

type apiVisibilityRequest struct {
	IgnoreIDs []string `json:"ignore_ids"`
}

func (h *Handler) handleShowAllColumns(w http.ResponseWriter, r *http.Request) {
	var req apiVisibilityRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	if err := h.service.ShowAllColumns(r.Context(), chi.URLParam(r, "viewID"), req.IgnoreIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleHideAllColumns(w http.ResponseWriter, r *http.Request) {
	var req apiVisibilityRequest
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}
	if err := h.service.HideAllColumns(r.Context(), chi.URLParam(r, "viewID"), req.IgnoreIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListSorts(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListSorts(r.Context(), chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateSort(w http.ResponseWriter, r *http.Request) {
	var req application.SortRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.FkViewID = chi.URLParam(r, "viewID")
	out, err := h.service.InsertSort(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type apiUpdateSortRequest struct {
	Direction domain.SortDirection `json:"direction"`
}

func (h *Handler) handleUpdateSort(w http.ResponseWriter, r *http.Request) {
	var req apiUpdateSortRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := h.service.UpdateSort(r.Context(), chi.URLParam(r, "sortID"), req.Direction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleDeleteSort(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSort(r.Context(), chi.URLParam(r, "sortID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListFilters(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListFilters(r.Context(), chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateFilter(w http.ResponseWriter, r *http.Request) {
	var f domain.Filter
	if !decodeBody(w, r, &f) {
		return
	}
	f.FkViewID = chi.URLParam(r, "viewID")
	out, err := h.service.InsertFilter(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.GetFilter(r.Context(), chi.URLParam(r, "filterID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if f == nil {
		writeError(w, domain.NotFound("filter %s not found", chi.URLParam(r, "filterID")))
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) handleUpdateFilter(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if !decodeBody(w, r, &patch) {
		return
	}
	f, err := h.service.UpdateFilter(r.Context(), chi.URLParam(r, "filterID"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFilter(r.Context(), chi.URLParam(r, "filterID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return false
	}
	return true
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func statusOf(err error) int {
	switch {
	case domain.IsBadRequest(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
