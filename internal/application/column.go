package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

// ColumnOrder places a column at Order inside one view.
type ColumnOrder struct {
	Order  float64 `json:"order"`
	ViewID string  `json:"view_id"`
}

// ColumnShow makes a new column visible in one view regardless of its type.
type ColumnShow struct {
	Show   bool   `json:"show"`
	ViewID string `json:"view_id"`
}

// ColumnRequest is a column plus the per-request directives accepted by
// insert and update. Cn and AliasTitle are the legacy names of column_name
// and title.
type ColumnRequest struct {
	domain.Column
	ColumnOrder *ColumnOrder `json:"column_order,omitempty"`
	ColumnShow  *ColumnShow  `json:"column_show,omitempty"`
	Cn          string       `json:"cn,omitempty"`
	AliasTitle  string       `json:"_cn,omitempty"`
}

// UnmarshalJSON decodes over the current value, so an update body can be
// applied on top of an existing column.
func (r *ColumnRequest) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.Column); err != nil {
		return err
	}
	var extra struct {
		ColumnOrder *ColumnOrder `json:"column_order"`
		ColumnShow  *ColumnShow  `json:"column_show"`
		Cn          string       `json:"cn"`
		AliasTitle  string       `json:"_cn"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	if extra.ColumnOrder != nil {
		r.ColumnOrder = extra.ColumnOrder
	}
	if extra.ColumnShow != nil {
		r.ColumnShow = extra.ColumnShow
	}
	r.Cn = defaultString(extra.Cn, r.Cn)
	r.AliasTitle = defaultString(extra.AliasTitle, r.AliasTitle)
	return nil
}

func (r *ColumnRequest) normalize() {
	r.ColumnName = defaultString(r.ColumnName, r.Cn)
	r.Title = defaultString(r.Title, r.AliasTitle)
	r.Title = defaultString(r.Title, r.ColumnName)
	if r.Meta == nil {
		r.Meta = domain.Meta{}
	}
}

func (s *MetaService) InsertColumn(ctx context.Context, req ColumnRequest) (*domain.Column, error) {
	req.normalize()
	col := req.Column
	if col.FkModelID == "" {
		return nil, domain.BadRequest("fk_model_id is required")
	}
	if col.UIDT == "" {
		return nil, domain.BadRequest("uidt is required")
	}

	model, err := s.models().get(ctx, col.FkModelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, domain.BadRequest("model %s not found", col.FkModelID)
	}
	if err := s.checkColumnTitle(ctx, col.FkModelID, col.Title, ""); err != nil {
		return nil, err
	}

	col.ID = ""
	col.BaseID = defaultString(col.BaseID, model.BaseID)
	col.SourceID = defaultString(col.SourceID, model.SourceID)
	if col.Order == nil {
		next, err := s.store.Columns().NextOrder(ctx, domain.Where("fk_model_id", col.FkModelID))
		if err != nil {
			return nil, err
		}
		col.Order = domain.Float(next)
	}

	opts := col.ColOptions
	if err := s.columns().insert(ctx, &col, []string{col.FkModelID}); err != nil {
		return nil, err
	}
	col.ColOptions = opts
	if err := s.insertColumnOptions(ctx, &col); err != nil {
		return nil, err
	}
	if err := s.insertColumnToAllViews(ctx, &col, req.ColumnShow, req.ColumnOrder); err != nil {
		return nil, err
	}
	if err := s.clearSingleQueryCache(ctx, col.FkModelID); err != nil {
		return nil, err
	}
	return s.GetColumn(ctx, col.ID)
}

// BulkInsertColumns inserts the column rows first, then their option rows and
// finally one view column per existing view for each of them.
func (s *MetaService) BulkInsertColumns(ctx context.Context, modelID string, reqs []ColumnRequest) ([]domain.Column, error) {
	if len(reqs) == 0 {
		return []domain.Column{}, nil
	}
	model, err := s.models().get(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, domain.BadRequest("model %s not found", modelID)
	}

	next, err := s.store.Columns().NextOrder(ctx, domain.Where("fk_model_id", modelID))
	if err != nil {
		return nil, err
	}
	existing, err := s.columns().list(ctx, []string{modelID}, domain.Where("fk_model_id", modelID))
	if err != nil {
		return nil, err
	}
	titles := make(map[string]bool, len(existing)+len(reqs))
	for _, c := range existing {
		titles[c.Title] = true
	}

	cols := make([]domain.Column, 0, len(reqs))
	for _, req := range reqs {
		req.normalize()
		col := req.Column
		col.ID = ""
		col.FkModelID = modelID
		if col.UIDT == "" {
			return nil, domain.BadRequest("uidt is required")
		}
		if titles[col.Title] {
			return nil, domain.BadRequest("duplicate column title %q", col.Title)
		}
		titles[col.Title] = true
		col.BaseID = defaultString(col.BaseID, model.BaseID)
		col.SourceID = defaultString(col.SourceID, model.SourceID)
		if col.Order == nil {
			col.Order = domain.Float(next)
			next++
		}
		cols = append(cols, col)
	}

	rows := make([]*domain.Column, 0, len(cols))
	for i := range cols {
		rows = append(rows, &cols[i])
	}
	opts := make([]domain.ColumnOptions, len(cols))
	for i := range cols {
		opts[i] = cols[i].ColOptions
	}
	if err := s.store.Columns().InsertMany(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert columns: %w", err)
	}
	if err := s.columns().resetList(ctx, modelID); err != nil {
		return nil, err
	}
	for i := range cols {
		cols[i].ColOptions = opts[i]
		if err := s.insertColumnOptions(ctx, &cols[i]); err != nil {
			return nil, err
		}
	}

	views, err := s.ListViews(ctx, modelID)
	if err != nil {
		return nil, err
	}
	for _, view := range views {
		next, err := s.store.ViewColumns(view.Type).NextOrder(ctx, domain.Where("fk_view_id", view.ID))
		if err != nil {
			return nil, err
		}
		vcs := make([]*domain.ViewColumn, 0, len(cols))
		for i := range cols {
			vcs = append(vcs, &domain.ViewColumn{
				FkViewID:   view.ID,
				FkColumnID: cols[i].ID,
				BaseID:     view.BaseID,
				SourceID:   view.SourceID,
				Show:       defaultColumnShow(&cols[i]),
				Order:      domain.Float(next + float64(i)),
			})
		}
		if err := s.store.ViewColumns(view.Type).InsertMany(ctx, vcs); err != nil {
			return nil, fmt.Errorf("insert view columns for %s: %w", view.ID, err)
		}
		if err := s.viewColumns(view.Type).resetList(ctx, view.ID); err != nil {
			return nil, err
		}
	}

	if err := s.clearSingleQueryCache(ctx, modelID); err != nil {
		return nil, err
	}
	return s.ListColumns(ctx, modelID, "")
}

// GetColumn returns the column with its options, or nil when it does not exist.
func (s *MetaService) GetColumn(ctx context.Context, id string) (*domain.Column, error) {
	col, err := s.columns().get(ctx, id)
	if err != nil || col == nil {
		return nil, err
	}
	if col.Meta == nil {
		col.Meta = domain.Meta{}
	}
	if err := s.loadColumnOptions(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

func (s *MetaService) GetColumnByTitle(ctx context.Context, modelID, title string) (*domain.Column, error) {
	cols, err := s.ListColumns(ctx, modelID, "")
	if err != nil {
		return nil, err
	}
	for i := range cols {
		if cols[i].Title == title {
			return &cols[i], nil
		}
	}
	return nil, nil
}

// ListColumns returns the model's columns ordered by order, missing orders
// last. With defaultViewID set, every column's meta carries
// defaultViewColOrder, the column's position in that view. The annotation is
// never persisted.
func (s *MetaService) ListColumns(ctx context.Context, modelID, defaultViewID string) ([]domain.Column, error) {
	cols, err := s.columns().list(ctx, []string{modelID}, domain.Where("fk_model_id", modelID).Asc("order"))
	if err != nil {
		return nil, err
	}
	for i := range cols {
		if cols[i].Meta == nil {
			cols[i].Meta = domain.Meta{}
		}
		if err := s.loadColumnOptions(ctx, &cols[i]); err != nil {
			return nil, err
		}
	}
	if defaultViewID == "" {
		return cols, nil
	}

	vcs, err := s.ListViewColumns(ctx, defaultViewID)
	if err != nil {
		return nil, err
	}
	orders := make(map[string]*float64, len(vcs))
	for _, vc := range vcs {
		orders[vc.FkColumnID] = vc.Order
	}
	for i := range cols {
		if o, ok := orders[cols[i].ID]; ok && o != nil {
			meta := cols[i].Meta.Clone()
			meta["defaultViewColOrder"] = *o
			cols[i].Meta = meta
		}
	}
	return cols, nil
}

// UpdateColumn replaces the column with req. req must carry the complete
// column; callers merge partial input onto the current column first. The
// option rows are always deleted and inserted again from req.ColOptions.
func (s *MetaService) UpdateColumn(ctx context.Context, colID string, req ColumnRequest, skipFormulaInvalidate bool) (*domain.Column, error) {
	old, err := s.GetColumn(ctx, colID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, domain.NotFound("column %s not found", colID)
	}

	req.normalize()
	col := req.Column
	col.ID = old.ID
	col.FkModelID = old.FkModelID
	if col.UIDT == "" {
		col.UIDT = old.UIDT
	}
	if col.Title == "" {
		col.Title = old.Title
	}
	if col.Title != old.Title {
		if err := s.checkColumnTitle(ctx, col.FkModelID, col.Title, col.ID); err != nil {
			return nil, err
		}
	}

	if err := s.removeColumnOptions(ctx, old.ID, old.UIDT); err != nil {
		return nil, err
	}
	if !col.UIDT.CanFeedCode() {
		if err := s.deleteCodeColumnsFedBy(ctx, col.ID); err != nil {
			return nil, err
		}
	}
	if req.ColumnOrder != nil {
		if err := s.moveViewColumn(ctx, req.ColumnOrder.ViewID, col.ID, req.ColumnOrder.Order); err != nil {
			return nil, err
		}
	}
	if err := s.columns().update(ctx, col.ID, columnPatch(&col)); err != nil {
		return nil, err
	}
	if err := s.insertColumnOptions(ctx, &col); err != nil {
		return nil, err
	}
	if err := s.clearSingleQueryCache(ctx, col.FkModelID); err != nil {
		return nil, err
	}
	if !skipFormulaInvalidate {
		s.formulas.Enqueue(FormulaJob{ModelID: col.FkModelID, ColumnID: col.ID})
	}
	return s.GetColumn(ctx, col.ID)
}

// columnPatch is the set of column fields an update may change.
func columnPatch(c *domain.Column) map[string]any {
	meta := c.Meta.Clone()
	delete(meta, "defaultViewColOrder")
	return map[string]any{
		"column_name": c.ColumnName,
		"title":       c.Title,
		"uidt":        string(c.UIDT),
		"dt":          c.DT,
		"np":          c.NP,
		"ns":          c.NS,
		"clen":        c.Clen,
		"cop":         c.Cop,
		"ct":          c.CT,
		"dtx":         c.DTX,
		"dtxp":        c.DTXP,
		"dtxs":        c.DTXS,
		"cdf":         c.CDF,
		"cc":          c.CC,
		"csn":         c.CSN,
		"pk":          c.PK,
		"pv":          c.PV,
		"rqd":         c.RQD,
		"un":          c.UN,
		"ai":          c.AI,
		"au":          c.AU,
		"unique":      c.Unique,
		"system":      c.System,
		"meta":        meta,
		"validate":    c.Validate,
	}
}

func (s *MetaService) checkColumnTitle(ctx context.Context, modelID, title, selfID string) error {
	if strings.TrimSpace(title) == "" {
		return nil
	}
	cols, err := s.columns().list(ctx, []string{modelID}, domain.Where("fk_model_id", modelID).Asc("order"))
	if err != nil {
		return err
	}
	for _, c := range cols {
		if c.ID != selfID && c.Title == title {
			return domain.BadRequest("duplicate column title %q", title)
		}
	}
	return nil
}

// defaultColumnShow hides relation columns, except has-many/belongs-to Links,
// and system columns in views they are added to.
func defaultColumnShow(col *domain.Column) bool {
	if col.IsSystemColumn() {
		return false
	}
	switch col.UIDT {
	case domain.UILinkToAnotherRecord:
		return false
	case domain.UILinks:
		if link, ok := col.ColOptions.(*domain.LinkColumn); ok && link != nil && link.Type == domain.RelationManyToMany {
			return false
		}
	}
	return true
}
