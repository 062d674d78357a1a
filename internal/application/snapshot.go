package application

import (
	"context"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

// ViewSnapshot is a view with everything it owns.
type ViewSnapshot struct {
	domain.View
	Columns []domain.ViewColumn `json:"columns"`
	Sorts   []domain.Sort       `json:"sorts"`
	Filters []domain.Filter     `json:"filters"`
}

// ModelSnapshot is a model with its columns, options loaded, and its views.
type ModelSnapshot struct {
	Model   domain.Model    `json:"model"`
	Columns []domain.Column `json:"columns"`
	Views   []ViewSnapshot  `json:"views"`
}

// Snapshot collects the metadata of the given models. Unknown ids are skipped.
func (s *MetaService) Snapshot(ctx context.Context, modelIDs []string) ([]ModelSnapshot, error) {
	out := make([]ModelSnapshot, 0, len(modelIDs))
	for _, id := range modelIDs {
		m, err := s.GetModel(ctx, id)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		snap := ModelSnapshot{Model: *m}
		if snap.Columns, err = s.ListColumns(ctx, m.ID, ""); err != nil {
			return nil, err
		}
		views, err := s.ListViewsWithInfo(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range views {
			vs := ViewSnapshot{View: v}
			if vs.Columns, err = s.listViewColumns(ctx, &v); err != nil {
				return nil, err
			}
			if vs.Sorts, err = s.ListSorts(ctx, v.ID); err != nil {
				return nil, err
			}
			if vs.Filters, err = s.ListFilters(ctx, v.ID); err != nil {
				return nil, err
			}
			snap.Views = append(snap.Views, vs)
		}
		out = append(out, snap)
	}
	return out, nil
}
