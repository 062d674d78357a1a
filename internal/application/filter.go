package application

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

// filterListParents is the list a filter is cached in: its group, or the view
// for root filters.
func filterListParents(f *domain.Filter) []string {
	if f.FkParentID != "" {
		return []string{f.FkParentID}
	}
	return []string{f.FkViewID}
}

// InsertFilter creates a filter and, for groups, every child in f.Children.
// Orders are assigned per parent.
func (s *MetaService) InsertFilter(ctx context.Context, f domain.Filter) (*domain.Filter, error) {
	if f.FkViewID == "" {
		return nil, domain.BadRequest("fk_view_id is required")
	}
	view, err := s.GetView(ctx, f.FkViewID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, domain.BadRequest("view %s not found", f.FkViewID)
	}
	if f.FkParentID != "" {
		parent, err := s.GetFilter(ctx, f.FkParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil || parent.FkViewID != view.ID {
			return nil, domain.BadRequest("filter group %s not found", f.FkParentID)
		}
		if !parent.IsGroup {
			return nil, domain.BadRequest("filter %s is not a group", f.FkParentID)
		}
	}
	out, err := s.insertFilter(ctx, view, f)
	if err != nil {
		return nil, err
	}
	if err := s.clearSingleQueryCache(ctx, view.FkModelID); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MetaService) insertFilter(ctx context.Context, view *domain.View, f domain.Filter) (*domain.Filter, error) {
	if !f.IsGroup && f.FkColumnID == "" {
		return nil, domain.BadRequest("fk_column_id is required")
	}
	if f.IsGroup && f.LogicalOp == "" {
		f.LogicalOp = "and"
	}
	children := f.Children
	f.ID = ""
	f.Children = nil
	f.FkViewID = view.ID
	f.BaseID = defaultString(f.BaseID, view.BaseID)
	f.SourceID = defaultString(f.SourceID, view.SourceID)
	if f.Order == nil {
		c := domain.Where("fk_view_id", view.ID).And("fk_parent_id", f.FkParentID)
		next, err := s.store.Filters().NextOrder(ctx, c)
		if err != nil {
			return nil, err
		}
		f.Order = domain.Float(next)
	}
	if err := s.filters().insert(ctx, &f, filterListParents(&f)); err != nil {
		return nil, err
	}
	for _, child := range children {
		if !f.IsGroup {
			return nil, domain.BadRequest("filter %s is not a group", f.ID)
		}
		child.FkParentID = f.ID
		child.Order = nil
		inserted, err := s.insertFilter(ctx, view, child)
		if err != nil {
			return nil, err
		}
		f.Children = append(f.Children, *inserted)
	}
	return &f, nil
}

func (s *MetaService) GetFilter(ctx context.Context, id string) (*domain.Filter, error) {
	return s.filters().get(ctx, id)
}

// ListFilters returns the root filters of the view with every group's
// children attached.
func (s *MetaService) ListFilters(ctx context.Context, viewID string) ([]domain.Filter, error) {
	roots, err := s.filters().list(ctx, []string{viewID}, domain.Where("fk_view_id", viewID).And("fk_parent_id", "").Asc("order"))
	if err != nil {
		return nil, err
	}
	for i := range roots {
		if err := s.attachChildren(ctx, &roots[i]); err != nil {
			return nil, err
		}
	}
	return roots, nil
}

// FilterChildren returns the direct children of a filter group.
func (s *MetaService) FilterChildren(ctx context.Context, parentID string) ([]domain.Filter, error) {
	return s.filters().list(ctx, []string{parentID}, domain.Where("fk_parent_id", parentID).Asc("order"))
}

func (s *MetaService) attachChildren(ctx context.Context, f *domain.Filter) error {
	if !f.IsGroup {
		return nil
	}
	children, err := s.FilterChildren(ctx, f.ID)
	if err != nil {
		return err
	}
	for i := range children {
		if err := s.attachChildren(ctx, &children[i]); err != nil {
			return err
		}
	}
	f.Children = children
	return nil
}

func (s *MetaService) UpdateFilter(ctx context.Context, id string, patch map[string]any) (*domain.Filter, error) {
	f, err := s.GetFilter(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, domain.NotFound("filter %s not found", id)
	}
	update := make(map[string]any)
	for _, k := range []string{"fk_column_id", "comparison_op", "comparison_sub_op", "value", "logical_op", "order"} {
		if v, ok := patch[k]; ok {
			update[k] = v
		}
	}
	if err := s.filters().update(ctx, f.ID, update); err != nil {
		return nil, err
	}
	if err := s.clearViewQueryCache(ctx, f.FkViewID); err != nil {
		return nil, err
	}
	return s.GetFilter(ctx, f.ID)
}

// DeleteFilter removes the filter and, for groups, its whole subtree.
func (s *MetaService) DeleteFilter(ctx context.Context, id string) error {
	f, err := s.GetFilter(ctx, id)
	if err != nil || f == nil {
		return err
	}
	if err := s.deleteFilterTree(ctx, f); err != nil {
		return err
	}
	return s.clearViewQueryCache(ctx, f.FkViewID)
}

func (s *MetaService) deleteFilterTree(ctx context.Context, f *domain.Filter) error {
	children, err := s.store.Filters().List(ctx, domain.Where("fk_parent_id", f.ID))
	if err != nil {
		return fmt.Errorf("children of filter %s: %w", f.ID, err)
	}
	for i := range children {
		if err := s.deleteFilterTree(ctx, &children[i]); err != nil {
			return err
		}
	}
	r := s.filters()
	if err := r.delete(ctx, f.ID); err != nil {
		return err
	}
	if err := s.cache.Del(ctx, domain.ListKey(domain.ScopeFilter, f.ID)); err != nil {
		return err
	}
	s.observer.CascadeDeleted("filter", 1)
	return nil
}

// DeleteAllFilters removes every filter of the view, groups and children alike.
func (s *MetaService) DeleteAllFilters(ctx context.Context, viewID string) error {
	rows, err := s.store.Filters().List(ctx, domain.Where("fk_view_id", viewID))
	if err != nil {
		return fmt.Errorf("filters of %s: %w", viewID, err)
	}
	if _, err := s.store.Filters().DeleteWhere(ctx, domain.Where("fk_view_id", viewID)); err != nil {
		return fmt.Errorf("delete filters of %s: %w", viewID, err)
	}
	r := s.filters()
	for _, f := range rows {
		if err := s.cache.DeepDel(ctx, r.key(f.ID), domain.ChildToParent); err != nil {
			return err
		}
		if err := s.cache.Del(ctx, domain.ListKey(domain.ScopeFilter, f.ID)); err != nil {
			return err
		}
	}
	s.observer.CascadeDeleted("filter", len(rows))
	return r.resetList(ctx, viewID)
}

// deleteFiltersOfColumn removes the root filters on colID. Filters nested in
// groups stay and are cleaned up with their group.
func (s *MetaService) deleteFiltersOfColumn(ctx context.Context, colID string) error {
	rows, err := s.store.Filters().List(ctx, domain.Where("fk_column_id", colID).And("fk_parent_id", ""))
	if err != nil {
		return fmt.Errorf("filters on %s: %w", colID, err)
	}
	for i := range rows {
		if err := s.deleteFilterTree(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}
