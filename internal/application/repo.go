package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"golang.org/x/sync/singleflight"
)

// repo pairs one metadata table with its cache scope so every read goes
// through the cache and every write updates both sides.
type repo[T any] struct {
	table domain.Table[T]
	cache domain.Cache
	scope domain.CacheScope
	loads *singleflight.Group
	id    func(*T) string
	order func(*T) *float64
	// strip clears fields that are loaded separately and never cached.
	strip func(*T)
}

func (r repo[T]) key(id string) string { return domain.Key(r.scope, id) }

func (r repo[T]) get(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, nil
	}
	key := r.key(id)
	var v T
	ok, err := r.cache.Get(ctx, key, &v)
	if err != nil {
		return nil, err
	}
	if ok {
		return &v, nil
	}

	res, err, shared := r.loads.Do(key, func() (any, error) {
		row, err := r.table.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		if row == nil {
			return nil, nil
		}
		if err := r.cache.Set(ctx, key, r.cacheable(row)); err != nil {
			return nil, err
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	row, _ := res.(*T)
	if row == nil {
		return nil, nil
	}
	if shared {
		return clone(row)
	}
	return row, nil
}

// list reads the list cached under parents, loading it with c on a miss. The
// result is ordered by order with missing orders last on both paths.
func (r repo[T]) list(ctx context.Context, parents []string, c domain.Criteria) ([]T, error) {
	var items []T
	ok, err := r.cache.GetList(ctx, r.scope, parents, &items)
	if err != nil {
		return nil, err
	}
	if !ok {
		items, err = r.table.List(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", domain.ListKey(r.scope, parents...), err)
		}
		if err := r.setList(ctx, parents, items); err != nil {
			return nil, err
		}
	}
	if items == nil {
		items = []T{}
	}
	if r.order != nil {
		domain.SortByOrder(items, r.order)
	}
	return items, nil
}

func (r repo[T]) setList(ctx context.Context, parents []string, items []T) error {
	cached := make([]T, 0, len(items))
	for i := range items {
		cached = append(cached, r.cacheable(&items[i]))
	}
	return r.cache.SetList(ctx, r.scope, parents, cached)
}

// insert persists row, caches it and appends it to every existing list
// keyed by one of lists.
func (r repo[T]) insert(ctx context.Context, row *T, lists ...[]string) error {
	if err := r.table.Insert(ctx, row); err != nil {
		return fmt.Errorf("insert %s: %w", r.scope, err)
	}
	key := r.key(r.id(row))
	if err := r.cache.Set(ctx, key, r.cacheable(row)); err != nil {
		return err
	}
	for _, parents := range lists {
		if err := r.cache.AppendToList(ctx, r.scope, parents, key); err != nil {
			return err
		}
	}
	return nil
}

func (r repo[T]) update(ctx context.Context, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	if err := r.table.Update(ctx, id, patch); err != nil {
		return fmt.Errorf("update %s: %w", r.key(id), err)
	}
	return r.cache.Update(ctx, r.key(id), patch)
}

// delete removes the row and prunes it from every cached list.
func (r repo[T]) delete(ctx context.Context, id string) error {
	if err := r.table.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", r.key(id), err)
	}
	return r.cache.DeepDel(ctx, r.key(id), domain.ChildToParent)
}

// resetList drops a cached list together with the objects it holds.
func (r repo[T]) resetList(ctx context.Context, parents ...string) error {
	return r.cache.DeepDel(ctx, domain.ListKey(r.scope, parents...), domain.ParentToChild)
}

func (r repo[T]) cacheable(row *T) T {
	v := *row
	if r.strip != nil {
		r.strip(&v)
	}
	return v
}

func clone[T any](v *T) (*T, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MetaService) models() repo[domain.Model] {
	return repo[domain.Model]{
		table: s.store.Models(), cache: s.cache, scope: domain.ScopeModel, loads: &s.loads,
		id:    func(m *domain.Model) string { return m.ID },
		order: func(m *domain.Model) *float64 { return m.Order },
		strip: func(m *domain.Model) { m.Columns, m.Views = nil, nil },
	}
}

func (s *MetaService) columns() repo[domain.Column] {
	return repo[domain.Column]{
		table: s.store.Columns(), cache: s.cache, scope: domain.ScopeColumn, loads: &s.loads,
		id:    func(c *domain.Column) string { return c.ID },
		order: func(c *domain.Column) *float64 { return c.Order },
		strip: func(c *domain.Column) { c.ColOptions = nil },
	}
}

func (s *MetaService) views() repo[domain.View] {
	return repo[domain.View]{
		table: s.store.Views(), cache: s.cache, scope: domain.ScopeView, loads: &s.loads,
		id:    func(v *domain.View) string { return v.ID },
		order: func(v *domain.View) *float64 { return v.Order },
		strip: func(v *domain.View) { v.Detail = nil },
	}
}

func (s *MetaService) viewDetails(t domain.ViewType) repo[domain.ViewDetail] {
	return repo[domain.ViewDetail]{
		table: s.store.ViewDetails(t), cache: s.cache, scope: detailScope(t), loads: &s.loads,
		id: func(d *domain.ViewDetail) string { return d.FkViewID },
	}
}

func (s *MetaService) viewColumns(t domain.ViewType) repo[domain.ViewColumn] {
	return repo[domain.ViewColumn]{
		table: s.store.ViewColumns(t), cache: s.cache, scope: viewColumnScope(t), loads: &s.loads,
		id:    func(c *domain.ViewColumn) string { return c.ID },
		order: func(c *domain.ViewColumn) *float64 { return c.Order },
	}
}

func (s *MetaService) sorts() repo[domain.Sort] {
	return repo[domain.Sort]{
		table: s.store.Sorts(), cache: s.cache, scope: domain.ScopeSort, loads: &s.loads,
		id:    func(v *domain.Sort) string { return v.ID },
		order: func(v *domain.Sort) *float64 { return v.Order },
	}
}

func (s *MetaService) filters() repo[domain.Filter] {
	return repo[domain.Filter]{
		table: s.store.Filters(), cache: s.cache, scope: domain.ScopeFilter, loads: &s.loads,
		id:    func(f *domain.Filter) string { return f.ID },
		order: func(f *domain.Filter) *float64 { return f.Order },
		strip: func(f *domain.Filter) { f.Children = nil },
	}
}

func (s *MetaService) comments() repo[domain.Comment] {
	return repo[domain.Comment]{
		table: s.store.Comments(), cache: s.cache, scope: domain.ScopeComment, loads: &s.loads,
		id: func(c *domain.Comment) string { return c.ID },
	}
}

func detailScope(t domain.ViewType) domain.CacheScope {
	switch t {
	case domain.ViewGallery:
		return domain.ScopeGalleryView
	case domain.ViewForm:
		return domain.ScopeFormView
	case domain.ViewKanban:
		return domain.ScopeKanbanView
	case domain.ViewMap:
		return domain.ScopeMapView
	}
	return domain.ScopeGridView
}

func viewColumnScope(t domain.ViewType) domain.CacheScope {
	switch t {
	case domain.ViewGallery:
		return domain.ScopeGalleryViewColumn
	case domain.ViewForm:
		return domain.ScopeFormViewColumn
	case domain.ViewKanban:
		return domain.ScopeKanbanViewColumn
	case domain.ViewMap:
		return domain.ScopeMapViewColumn
	}
	return domain.ScopeGridViewColumn
}
