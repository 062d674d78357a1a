package application

import (
	"context"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

// viewColumnFields are the view column fields UpdateViewColumn accepts per
// view type, on top of show and order.
var viewColumnFields = map[domain.ViewType][]string{
	domain.ViewGrid: {"width", "group_by", "group_by_order", "group_by_sort", "aggregation"},
	domain.ViewForm: {"label", "help", "description", "required", "enable_scanner"},
}

func (s *MetaService) ListViewColumns(ctx context.Context, viewID string) ([]domain.ViewColumn, error) {
	view, err := s.GetView(ctx, viewID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return []domain.ViewColumn{}, nil
	}
	return s.listViewColumns(ctx, view)
}

func (s *MetaService) listViewColumns(ctx context.Context, view *domain.View) ([]domain.ViewColumn, error) {
	return s.viewColumns(view.Type).list(ctx, []string{view.ID}, domain.Where("fk_view_id", view.ID).Asc("order"))
}

// insertViewColumn adds vc to view, appending it after the last column when
// it has no order.
func (s *MetaService) insertViewColumn(ctx context.Context, view *domain.View, vc *domain.ViewColumn) error {
	vc.ID = ""
	vc.FkViewID = view.ID
	vc.BaseID = defaultString(vc.BaseID, view.BaseID)
	vc.SourceID = defaultString(vc.SourceID, view.SourceID)
	if vc.Order == nil {
		next, err := s.store.ViewColumns(view.Type).NextOrder(ctx, domain.Where("fk_view_id", view.ID))
		if err != nil {
			return err
		}
		vc.Order = domain.Float(next)
	}
	return s.viewColumns(view.Type).insert(ctx, vc, []string{view.ID})
}

// insertColumnToAllViews adds a new column to every view of its model.
// show forces visibility in one view, order positions it in one view.
func (s *MetaService) insertColumnToAllViews(ctx context.Context, col *domain.Column, show *ColumnShow, order *ColumnOrder) error {
	views, err := s.ListViews(ctx, col.FkModelID)
	if err != nil {
		return err
	}
	visible := defaultColumnShow(col)
	for i := range views {
		view := &views[i]
		vc := domain.ViewColumn{FkColumnID: col.ID, Show: visible}
		if show != nil && show.ViewID == view.ID {
			vc.Show = true
		}
		if order != nil && order.ViewID == view.ID {
			vc.Order = domain.Float(order.Order)
		}
		if err := s.insertViewColumn(ctx, view, &vc); err != nil {
			return err
		}
	}
	return nil
}

// moveViewColumn sets the order of colID inside viewID.
func (s *MetaService) moveViewColumn(ctx context.Context, viewID, colID string, order float64) error {
	view, err := s.GetView(ctx, viewID)
	if err != nil || view == nil {
		return err
	}
	vc, err := s.store.ViewColumns(view.Type).FindOne(ctx, domain.Where("fk_view_id", view.ID).And("fk_column_id", colID))
	if err != nil || vc == nil {
		return err
	}
	return s.viewColumns(view.Type).update(ctx, vc.ID, map[string]any{"order": order})
}

// UpdateViewColumn patches one view column. Unknown fields are ignored.
func (s *MetaService) UpdateViewColumn(ctx context.Context, viewID, viewColumnID string, patch map[string]any) (*domain.ViewColumn, error) {
	view, err := s.GetView(ctx, viewID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, domain.NotFound("view %s not found", viewID)
	}
	r := s.viewColumns(view.Type)
	vc, err := r.get(ctx, viewColumnID)
	if err != nil {
		return nil, err
	}
	if vc == nil || vc.FkViewID != view.ID {
		return nil, domain.NotFound("view column %s not found", viewColumnID)
	}

	allowed := append([]string{"show", "order"}, viewColumnFields[view.Type]...)
	update := make(map[string]any, len(allowed))
	for _, k := range allowed {
		if v, ok := patch[k]; ok {
			update[k] = v
		}
	}
	if err := r.update(ctx, vc.ID, update); err != nil {
		return nil, err
	}
	if err := s.clearSingleQueryCache(ctx, view.FkModelID); err != nil {
		return nil, err
	}
	return r.get(ctx, vc.ID)
}

func (s *MetaService) ShowAllColumns(ctx context.Context, viewID string, ignoreIDs []string) error {
	return s.setAllColumnsShow(ctx, viewID, true, ignoreIDs)
}

// HideAllColumns hides every column of the view except ignoreIDs. The display
// value column of a grid and the geo data column of a map stay visible.
func (s *MetaService) HideAllColumns(ctx context.Context, viewID string, ignoreIDs []string) error {
	return s.setAllColumnsShow(ctx, viewID, false, ignoreIDs)
}

func (s *MetaService) setAllColumnsShow(ctx context.Context, viewID string, show bool, ignoreIDs []string) error {
	view, err := s.GetView(ctx, viewID)
	if err != nil {
		return err
	}
	if view == nil {
		return domain.NotFound("view %s not found", viewID)
	}

	ignore := append([]string(nil), ignoreIDs...)
	if !show {
		pinned, err := s.pinnedColumn(ctx, view)
		if err != nil {
			return err
		}
		if pinned != "" {
			ignore = append(ignore, pinned)
		}
	}
	c := domain.Where("fk_view_id", view.ID).Excluding("fk_column_id", ignore)
	table := s.store.ViewColumns(view.Type)
	if _, err := table.UpdateWhere(ctx, c, map[string]any{"show": show}); err != nil {
		return err
	}
	// cached lists hold item keys, so patching each item refreshes them too
	rows, err := table.List(ctx, c)
	if err != nil {
		return err
	}
	r := s.viewColumns(view.Type)
	for _, vc := range rows {
		if err := s.cache.Update(ctx, r.key(vc.ID), map[string]any{"show": show}); err != nil {
			return err
		}
	}
	return s.clearSingleQueryCache(ctx, view.FkModelID)
}

// pinnedColumn is the column a view never hides.
func (s *MetaService) pinnedColumn(ctx context.Context, view *domain.View) (string, error) {
	switch view.Type {
	case domain.ViewGrid:
		cols, err := s.ListColumns(ctx, view.FkModelID, "")
		if err != nil {
			return "", err
		}
		for _, c := range cols {
			if c.PV {
				return c.ID, nil
			}
		}
	case domain.ViewMap:
		detail, err := s.GetViewDetail(ctx, view.ID)
		if err != nil || detail == nil {
			return "", err
		}
		return detail.FkGeoDataColID, nil
	}
	return "", nil
}

// FixPVColumnForView makes the display value column of a grid view visible
// and uniquely first, keeping the relative order of the other columns.
func (s *MetaService) FixPVColumnForView(ctx context.Context, viewID string) error {
	view, err := s.GetView(ctx, viewID)
	if err != nil || view == nil || view.Type != domain.ViewGrid {
		return err
	}
	pv, err := s.pinnedColumn(ctx, view)
	if err != nil || pv == "" {
		return err
	}
	vcs, err := s.listViewColumns(ctx, view)
	if err != nil {
		return err
	}
	pvIndex := -1
	for i := range vcs {
		if vcs[i].FkColumnID == pv {
			pvIndex = i
			break
		}
	}
	if pvIndex < 0 {
		return nil
	}

	r := s.viewColumns(view.Type)
	if !vcs[pvIndex].Show {
		if err := r.update(ctx, vcs[pvIndex].ID, map[string]any{"show": true}); err != nil {
			return err
		}
	}
	uniquelyFirst := pvIndex == 0 && vcs[0].Order != nil &&
		(len(vcs) == 1 || domain.OrderValue(vcs[0].Order) < domain.OrderValue(vcs[1].Order))
	if !uniquelyFirst {
		ordered := make([]domain.ViewColumn, 0, len(vcs))
		ordered = append(ordered, vcs[pvIndex])
		ordered = append(ordered, vcs[:pvIndex]...)
		ordered = append(ordered, vcs[pvIndex+1:]...)
		for i := range ordered {
			want := float64(i + 1)
			if ordered[i].Order != nil && *ordered[i].Order == want {
				continue
			}
			if err := s.store.ViewColumns(view.Type).Update(ctx, ordered[i].ID, map[string]any{"order": want}); err != nil {
				return err
			}
		}
	}
	if err := r.resetList(ctx, view.ID); err != nil {
		return err
	}
	return s.clearSingleQueryCache(ctx, view.FkModelID)
}
