package application

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

// SortRequest creates a sort. PushToTop puts it first, shifting the others.
type SortRequest struct {
	domain.Sort
	PushToTop bool `json:"push_to_top,omitempty"`
}

func (s *MetaService) InsertSort(ctx context.Context, req SortRequest) (*domain.Sort, error) {
	so := req.Sort
	if so.FkViewID == "" {
		return nil, domain.BadRequest("fk_view_id is required")
	}
	if so.FkColumnID == "" {
		return nil, domain.BadRequest("fk_column_id is required")
	}
	if so.Direction == "" {
		so.Direction = domain.SortAsc
	}
	if !so.Direction.Valid() {
		return nil, domain.BadRequest("unknown sort direction %q", so.Direction)
	}
	view, err := s.GetView(ctx, so.FkViewID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, domain.BadRequest("view %s not found", so.FkViewID)
	}
	col, err := s.columns().get(ctx, so.FkColumnID)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, domain.BadRequest("column %s not found", so.FkColumnID)
	}

	so.ID = ""
	so.BaseID = defaultString(so.BaseID, view.BaseID)
	so.SourceID = defaultString(so.SourceID, col.SourceID)
	if req.PushToTop {
		if err := s.store.Sorts().Increment(ctx, domain.Where("fk_view_id", view.ID), "order", 1); err != nil {
			return nil, fmt.Errorf("shift sorts of %s: %w", view.ID, err)
		}
		// every sibling order moved, so the cached view list is stale
		if err := s.sorts().resetList(ctx, view.ID); err != nil {
			return nil, err
		}
		so.Order = domain.Float(1)
	} else {
		next, err := s.store.Sorts().NextOrder(ctx, domain.Where("fk_view_id", view.ID))
		if err != nil {
			return nil, err
		}
		so.Order = domain.Float(next)
	}

	if err := s.sorts().insert(ctx, &so, []string{view.ID}, []string{so.FkColumnID}); err != nil {
		return nil, err
	}
	if err := s.clearSingleQueryCache(ctx, view.FkModelID); err != nil {
		return nil, err
	}
	return &so, nil
}

func (s *MetaService) GetSort(ctx context.Context, id string) (*domain.Sort, error) {
	return s.sorts().get(ctx, id)
}

func (s *MetaService) ListSorts(ctx context.Context, viewID string) ([]domain.Sort, error) {
	return s.sorts().list(ctx, []string{viewID}, domain.Where("fk_view_id", viewID).Asc("order"))
}

func (s *MetaService) ListSortsByColumn(ctx context.Context, colID string) ([]domain.Sort, error) {
	return s.sorts().list(ctx, []string{colID}, domain.Where("fk_column_id", colID).Asc("order"))
}

func (s *MetaService) UpdateSort(ctx context.Context, id string, direction domain.SortDirection) (*domain.Sort, error) {
	so, err := s.GetSort(ctx, id)
	if err != nil {
		return nil, err
	}
	if so == nil {
		return nil, domain.NotFound("sort %s not found", id)
	}
	if !direction.Valid() {
		return nil, domain.BadRequest("unknown sort direction %q", direction)
	}
	if err := s.sorts().update(ctx, so.ID, map[string]any{"direction": string(direction)}); err != nil {
		return nil, err
	}
	if err := s.clearViewQueryCache(ctx, so.FkViewID); err != nil {
		return nil, err
	}
	return s.GetSort(ctx, so.ID)
}

func (s *MetaService) DeleteSort(ctx context.Context, id string) error {
	so, err := s.GetSort(ctx, id)
	if err != nil || so == nil {
		return err
	}
	if err := s.sorts().delete(ctx, so.ID); err != nil {
		return err
	}
	s.observer.CascadeDeleted("sort", 1)
	return s.clearViewQueryCache(ctx, so.FkViewID)
}

// DeleteAllSorts removes every sort of the view.
func (s *MetaService) DeleteAllSorts(ctx context.Context, viewID string) error {
	rows, err := s.store.Sorts().List(ctx, domain.Where("fk_view_id", viewID))
	if err != nil {
		return fmt.Errorf("sorts of %s: %w", viewID, err)
	}
	if _, err := s.store.Sorts().DeleteWhere(ctx, domain.Where("fk_view_id", viewID)); err != nil {
		return fmt.Errorf("delete sorts of %s: %w", viewID, err)
	}
	for _, so := range rows {
		if err := s.cache.DeepDel(ctx, s.sorts().key(so.ID), domain.ChildToParent); err != nil {
			return err
		}
	}
	s.observer.CascadeDeleted("sort", len(rows))
	return s.sorts().resetList(ctx, viewID)
}

func (s *MetaService) deleteSortsOfColumn(ctx context.Context, colID string) error {
	rows, err := s.store.Sorts().List(ctx, domain.Where("fk_column_id", colID))
	if err != nil {
		return fmt.Errorf("sorts on %s: %w", colID, err)
	}
	r := s.sorts()
	for _, so := range rows {
		if err := r.delete(ctx, so.ID); err != nil {
			return err
		}
	}
	s.observer.CascadeDeleted("sort", len(rows))
	return r.resetList(ctx, colID)
}

// clearViewQueryCache clears the single query cache of the model owning viewID.
func (s *MetaService) clearViewQueryCache(ctx context.Context, viewID string) error {
	view, err := s.GetView(ctx, viewID)
	if err != nil || view == nil {
		return err
	}
	return s.clearSingleQueryCache(ctx, view.FkModelID)
}
