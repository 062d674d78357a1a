package application

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/google/uuid"
)

// ViewRequest creates a view. Detail settings travel in View.Detail; with
// CopyFromID set the new view starts as a copy of that view.
type ViewRequest struct {
	domain.View
	CopyFromID string `json:"copy_from_id,omitempty"`
}

// ViewPatch lists the view fields UpdateView may change. Nil fields are kept.
type ViewPatch struct {
	Title            *string     `json:"title,omitempty"`
	Order            *float64    `json:"order,omitempty"`
	ShowSystemFields *bool       `json:"show_system_fields,omitempty"`
	LockType         *string     `json:"lock_type,omitempty"`
	Password         *string     `json:"password,omitempty"`
	Meta             domain.Meta `json:"meta,omitempty"`
	UUID             *string     `json:"uuid,omitempty"`
}

// detailFields are the detail row fields each view type persists.
var detailFields = map[domain.ViewType][]string{
	domain.ViewGrid:    {"row_height", "meta"},
	domain.ViewGallery: {"fk_cover_image_col_id", "meta"},
	domain.ViewForm:    {"heading", "subheading", "success_msg", "redirect_url", "submit_another_form", "show_blank_form", "meta"},
	domain.ViewKanban:  {"fk_grp_col_id", "fk_cover_image_col_id", "meta"},
	domain.ViewMap:     {"fk_geo_data_col_id", "meta"},
}

func viewAliasKey(modelID, title string) string {
	return domain.Key(domain.ScopeView, "alias", modelID, title)
}

func defaultViewKey(modelID string) string {
	return domain.Key(domain.ScopeView, modelID, "default")
}

func (s *MetaService) InsertView(ctx context.Context, req ViewRequest) (*domain.View, error) {
	view := req.View
	if view.FkModelID == "" {
		return nil, domain.BadRequest("fk_model_id is required")
	}
	view.Title = strings.TrimSpace(view.Title)
	if view.Title == "" {
		return nil, domain.BadRequest("title is required")
	}
	if !view.Type.Valid() {
		return nil, domain.BadRequest("unknown view type %q", view.Type)
	}
	model, err := s.models().get(ctx, view.FkModelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, domain.BadRequest("model %s not found", view.FkModelID)
	}

	existing, err := s.ListViews(ctx, view.FkModelID)
	if err != nil {
		return nil, err
	}
	for _, v := range existing {
		if v.Title == view.Title {
			return nil, domain.BadRequest("duplicate view title %q", view.Title)
		}
	}

	var source *domain.View
	if req.CopyFromID != "" {
		source, err = s.GetView(ctx, req.CopyFromID)
		if err != nil {
			return nil, err
		}
		if source == nil {
			return nil, domain.BadRequest("view %s to copy from not found", req.CopyFromID)
		}
	}

	requested := view.Detail
	next, err := s.store.Views().NextOrder(ctx, domain.Where("fk_model_id", view.FkModelID))
	if err != nil {
		return nil, err
	}
	view.ID = ""
	view.Detail = nil
	view.Order = domain.Float(next)
	view.Show = true
	view.BaseID = defaultString(view.BaseID, model.BaseID)
	view.SourceID = defaultString(view.SourceID, model.SourceID)
	if view.Meta == nil {
		view.Meta = domain.Meta{}
	}
	if len(existing) == 0 {
		view.IsDefault = true
	}
	if err := s.views().insert(ctx, &view, []string{view.FkModelID}); err != nil {
		return nil, err
	}
	if err := s.cacheViewAliases(ctx, &view); err != nil {
		return nil, err
	}

	cols, err := s.ListColumns(ctx, view.FkModelID, "")
	if err != nil {
		return nil, err
	}
	detail, err := s.insertViewDetail(ctx, &view, source, requested, cols)
	if err != nil {
		return nil, err
	}

	if source != nil {
		if err := s.copySortsAndFilters(ctx, source, &view); err != nil {
			return nil, err
		}
	}
	if err := s.seedViewColumns(ctx, &view, detail, source, cols); err != nil {
		return nil, err
	}
	if err := s.refreshNonDefaultViews(ctx, view.FkModelID); err != nil {
		return nil, err
	}

	view.Detail = detail
	return &view, nil
}

// insertViewDetail creates the type detail row. A copied view of the same
// type starts from the source detail; requested fields win over it.
func (s *MetaService) insertViewDetail(ctx context.Context, view, source *domain.View, requested *domain.ViewDetail, cols []domain.Column) (*domain.ViewDetail, error) {
	detail := domain.ViewDetail{}
	if source != nil && source.Type == view.Type {
		d, err := s.GetViewDetail(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		if d != nil {
			detail = *d
			detail.Meta = d.Meta.Clone()
		}
	}
	if requested != nil {
		mergeDetail(&detail, requested)
	}
	detail.FkViewID = view.ID
	detail.BaseID = view.BaseID
	detail.SourceID = view.SourceID
	if detail.Meta == nil {
		detail.Meta = domain.Meta{}
	}

	firstOf := func(uidt domain.UIType) string {
		for _, c := range cols {
			if c.UIDT == uidt {
				return c.ID
			}
		}
		return ""
	}
	switch view.Type {
	case domain.ViewGallery, domain.ViewKanban:
		if detail.FkCoverImageColID == "" {
			detail.FkCoverImageColID = firstOf(domain.UIAttachment)
		}
	case domain.ViewMap:
		if detail.FkGeoDataColID == "" {
			detail.FkGeoDataColID = firstOf(domain.UIGeoData)
		}
	}

	r := s.viewDetails(view.Type)
	if err := r.insert(ctx, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func mergeDetail(dst, src *domain.ViewDetail) {
	if src.RowHeight != 0 {
		dst.RowHeight = src.RowHeight
	}
	dst.FkCoverImageColID = defaultString(src.FkCoverImageColID, dst.FkCoverImageColID)
	dst.FkGrpColID = defaultString(src.FkGrpColID, dst.FkGrpColID)
	dst.FkGeoDataColID = defaultString(src.FkGeoDataColID, dst.FkGeoDataColID)
	dst.Heading = defaultString(src.Heading, dst.Heading)
	dst.Subheading = defaultString(src.Subheading, dst.Subheading)
	dst.SuccessMsg = defaultString(src.SuccessMsg, dst.SuccessMsg)
	dst.RedirectURL = defaultString(src.RedirectURL, dst.RedirectURL)
	if src.SubmitAnotherForm {
		dst.SubmitAnotherForm = true
	}
	if src.ShowBlankForm {
		dst.ShowBlankForm = true
	}
	if len(src.Meta) > 0 {
		if dst.Meta == nil {
			dst.Meta = domain.Meta{}
		}
		for k, v := range src.Meta {
			dst.Meta[k] = v
		}
	}
}

func (s *MetaService) copySortsAndFilters(ctx context.Context, source, view *domain.View) error {
	sorts, err := s.ListSorts(ctx, source.ID)
	if err != nil {
		return err
	}
	for _, so := range sorts {
		copied := domain.Sort{
			FkViewID:   view.ID,
			FkColumnID: so.FkColumnID,
			Direction:  so.Direction,
			Order:      so.Order,
			BaseID:     view.BaseID,
			SourceID:   view.SourceID,
		}
		if err := s.sorts().insert(ctx, &copied, []string{view.ID}, []string{copied.FkColumnID}); err != nil {
			return err
		}
	}

	filters, err := s.ListFilters(ctx, source.ID)
	if err != nil {
		return err
	}
	for i := range filters {
		if err := s.copyFilter(ctx, &filters[i], view, ""); err != nil {
			return err
		}
	}
	return nil
}

func (s *MetaService) copyFilter(ctx context.Context, f *domain.Filter, view *domain.View, parentID string) error {
	copied := *f
	copied.ID = ""
	copied.FkViewID = view.ID
	copied.FkParentID = parentID
	copied.BaseID = view.BaseID
	copied.SourceID = view.SourceID
	copied.Children = nil
	if err := s.filters().insert(ctx, &copied, filterListParents(&copied)); err != nil {
		return err
	}
	for i := range f.Children {
		if err := s.copyFilter(ctx, &f.Children[i], view, copied.ID); err != nil {
			return err
		}
	}
	return nil
}

// seedViewColumns creates one view column per model column, applying the
// visibility defaults of the view type. Orders run 1, 2, 3 in seeding order.
func (s *MetaService) seedViewColumns(ctx context.Context, view *domain.View, detail *domain.ViewDetail, source *domain.View, cols []domain.Column) error {
	var seeds []domain.ViewColumn
	if source != nil {
		var err error
		seeds, err = s.copiedViewColumns(ctx, view, source, cols)
		if err != nil {
			return err
		}
	} else {
		seeds = freshViewColumns(view.Type, detail, cols)
	}

	system := make(map[string]bool, len(cols))
	for i := range cols {
		if cols[i].IsSystemColumn() {
			system[cols[i].ID] = true
		}
	}
	rows := make([]*domain.ViewColumn, 0, len(seeds))
	for i := range seeds {
		vc := &seeds[i]
		vc.ID = ""
		vc.FkViewID = view.ID
		vc.BaseID = view.BaseID
		vc.SourceID = view.SourceID
		vc.Order = domain.Float(float64(i + 1))
		if system[vc.FkColumnID] {
			vc.Show = false
		}
		rows = append(rows, vc)
	}
	if err := s.store.ViewColumns(view.Type).InsertMany(ctx, rows); err != nil {
		return fmt.Errorf("seed view columns of %s: %w", view.ID, err)
	}
	return s.viewColumns(view.Type).setList(ctx, []string{view.ID}, seeds)
}

// copiedViewColumns follows the source view's column order and visibility.
// Model columns missing from the source are appended visible.
func (s *MetaService) copiedViewColumns(ctx context.Context, view, source *domain.View, cols []domain.Column) ([]domain.ViewColumn, error) {
	sourceCols, err := s.listViewColumns(ctx, source)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c.ID] = true
	}
	sameType := source.Type == view.Type
	out := make([]domain.ViewColumn, 0, len(cols))
	copied := make(map[string]bool, len(sourceCols))
	for _, vc := range sourceCols {
		if !known[vc.FkColumnID] || copied[vc.FkColumnID] {
			continue
		}
		copied[vc.FkColumnID] = true
		seed := domain.ViewColumn{FkColumnID: vc.FkColumnID, Show: vc.Show}
		if sameType {
			seed = vc
		}
		out = append(out, seed)
	}
	for _, c := range cols {
		if !copied[c.ID] {
			out = append(out, domain.ViewColumn{FkColumnID: c.ID, Show: true})
		}
	}
	return out, nil
}

func freshViewColumns(t domain.ViewType, detail *domain.ViewDetail, cols []domain.Column) []domain.ViewColumn {
	ordered := append([]domain.Column(nil), cols...)
	out := make([]domain.ViewColumn, 0, len(ordered))

	switch t {
	case domain.ViewKanban:
		slices.SortStableFunc(ordered, kanbanColumnOrder)
		limit := 0
		for _, c := range ordered {
			show := false
			switch {
			case c.ID == detail.FkGrpColID:
				show = true
			case c.ID == detail.FkCoverImageColID || c.PV:
				show = true
				limit++
			case limit < 3 && !c.IsSystemColumn():
				show = true
				limit++
			}
			out = append(out, domain.ViewColumn{FkColumnID: c.ID, Show: show})
		}
	case domain.ViewGallery:
		limit := 0
		for _, c := range ordered {
			show := false
			if c.ID == detail.FkCoverImageColID || c.PV || limit < 3 {
				show = true
				limit++
			}
			out = append(out, domain.ViewColumn{FkColumnID: c.ID, Show: show})
		}
	case domain.ViewMap:
		for _, c := range ordered {
			out = append(out, domain.ViewColumn{FkColumnID: c.ID, Show: c.ID == detail.FkGeoDataColID})
		}
	default:
		for _, c := range ordered {
			out = append(out, domain.ViewColumn{FkColumnID: c.ID, Show: true})
		}
	}
	return out
}

// kanbanColumnOrder puts the display value first, then attachment, text and
// number columns, breaking ties by descending column order.
func kanbanColumnOrder(a, b domain.Column) int {
	rank := func(c domain.Column) int {
		if c.PV {
			return 0
		}
		switch c.UIDT {
		case domain.UIAttachment, domain.UISingleLineText, domain.UINumber:
			return 1
		}
		return 2
	}
	if d := cmp.Compare(rank(a), rank(b)); d != 0 {
		return d
	}
	return cmp.Compare(domain.OrderValue(b.Order), domain.OrderValue(a.Order))
}

// GetView returns the view without its detail, or nil.
func (s *MetaService) GetView(ctx context.Context, id string) (*domain.View, error) {
	return s.views().get(ctx, id)
}

// GetViewWithInfo returns the view with its detail row.
func (s *MetaService) GetViewWithInfo(ctx context.Context, id string) (*domain.View, error) {
	view, err := s.GetView(ctx, id)
	if err != nil || view == nil {
		return nil, err
	}
	detail, err := s.viewDetails(view.Type).get(ctx, view.ID)
	if err != nil {
		return nil, err
	}
	view.Detail = detail
	return view, nil
}

func (s *MetaService) GetViewByTitle(ctx context.Context, modelID, title string) (*domain.View, error) {
	var view domain.View
	ok, err := s.cache.Get(ctx, viewAliasKey(modelID, title), &view)
	if err != nil {
		return nil, err
	}
	if ok {
		return &view, nil
	}
	row, err := s.store.Views().FindOne(ctx, domain.Where("fk_model_id", modelID).And("title", title))
	if err != nil || row == nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, viewAliasKey(modelID, title), row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *MetaService) GetDefaultView(ctx context.Context, modelID string) (*domain.View, error) {
	var view domain.View
	ok, err := s.cache.Get(ctx, defaultViewKey(modelID), &view)
	if err != nil {
		return nil, err
	}
	if ok {
		return &view, nil
	}
	row, err := s.store.Views().FindOne(ctx, domain.Where("fk_model_id", modelID).And("is_default", true))
	if err != nil || row == nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, defaultViewKey(modelID), row); err != nil {
		return nil, err
	}
	return row, nil
}

// ListViews returns the views of a model ordered by order, missing orders last.
func (s *MetaService) ListViews(ctx context.Context, modelID string) ([]domain.View, error) {
	return s.views().list(ctx, []string{modelID}, domain.Where("fk_model_id", modelID).Asc("order"))
}

// ListViewsWithInfo is ListViews with every view's detail row attached.
func (s *MetaService) ListViewsWithInfo(ctx context.Context, modelID string) ([]domain.View, error) {
	views, err := s.ListViews(ctx, modelID)
	if err != nil {
		return nil, err
	}
	for i := range views {
		detail, err := s.viewDetails(views[i].Type).get(ctx, views[i].ID)
		if err != nil {
			return nil, err
		}
		views[i].Detail = detail
	}
	return views, nil
}

func (s *MetaService) UpdateView(ctx context.Context, id string, patch ViewPatch) (*domain.View, error) {
	view, err := s.GetView(ctx, id)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, domain.NotFound("view %s not found", id)
	}

	update := map[string]any{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, domain.BadRequest("title is required")
		}
		if title != view.Title {
			other, err := s.GetViewByTitle(ctx, view.FkModelID, title)
			if err != nil {
				return nil, err
			}
			if other != nil && other.ID != view.ID {
				return nil, domain.BadRequest("duplicate view title %q", title)
			}
		}
		update["title"] = title
	}
	if patch.Order != nil {
		update["order"] = *patch.Order
	}
	if patch.ShowSystemFields != nil {
		update["show_system_fields"] = *patch.ShowSystemFields
	}
	if patch.LockType != nil {
		update["lock_type"] = *patch.LockType
	}
	if patch.Password != nil {
		update["password"] = *patch.Password
	}
	if patch.Meta != nil {
		update["meta"] = patch.Meta
	}
	if patch.UUID != nil {
		update["uuid"] = *patch.UUID
	}

	if err := s.views().update(ctx, view.ID, update); err != nil {
		return nil, err
	}
	if view.IsDefault {
		if err := s.cache.Update(ctx, defaultViewKey(view.FkModelID), update); err != nil {
			return nil, err
		}
	}
	if err := s.cache.Del(ctx, viewAliasKey(view.FkModelID, view.Title)); err != nil {
		return nil, err
	}
	if view.Type == domain.ViewGrid && patch.ShowSystemFields != nil && *patch.ShowSystemFields != view.ShowSystemFields {
		if err := s.FixPVColumnForView(ctx, view.ID); err != nil {
			return nil, err
		}
	}
	if err := s.clearSingleQueryCache(ctx, view.FkModelID); err != nil {
		return nil, err
	}
	return s.GetView(ctx, view.ID)
}

// ShareView gives the view a public uuid, keeping an existing one.
func (s *MetaService) ShareView(ctx context.Context, id string) (*domain.View, error) {
	view, err := s.GetView(ctx, id)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, domain.NotFound("view %s not found", id)
	}
	if view.UUID != "" {
		return view, nil
	}
	shareID := uuid.NewString()
	return s.UpdateView(ctx, id, ViewPatch{UUID: &shareID})
}

func (s *MetaService) UnshareView(ctx context.Context, id string) (*domain.View, error) {
	empty := ""
	return s.UpdateView(ctx, id, ViewPatch{UUID: &empty, Password: &empty})
}

func (s *MetaService) UpdateViewPassword(ctx context.Context, id, password string) (*domain.View, error) {
	return s.UpdateView(ctx, id, ViewPatch{Password: &password})
}

// DeleteView removes a view and everything it owns. Deleting a missing view is
// a no-op; the default view goes only with its model.
func (s *MetaService) DeleteView(ctx context.Context, id string) error {
	view, err := s.GetView(ctx, id)
	if err != nil || view == nil {
		return err
	}
	if view.IsDefault {
		return domain.BadRequest("the default view cannot be deleted")
	}
	if err := s.deleteView(ctx, view); err != nil {
		return err
	}
	return s.refreshNonDefaultViews(ctx, view.FkModelID)
}

func (s *MetaService) deleteView(ctx context.Context, view *domain.View) error {
	if err := s.DeleteAllSorts(ctx, view.ID); err != nil {
		return err
	}
	if err := s.DeleteAllFilters(ctx, view.ID); err != nil {
		return err
	}

	n, err := s.store.ViewColumns(view.Type).DeleteWhere(ctx, domain.Where("fk_view_id", view.ID))
	if err != nil {
		return fmt.Errorf("delete view columns of %s: %w", view.ID, err)
	}
	s.observer.CascadeDeleted("view_column", int(n))
	if err := s.viewColumns(view.Type).resetList(ctx, view.ID); err != nil {
		return err
	}

	details := s.viewDetails(view.Type)
	if err := details.table.Delete(ctx, view.ID); err != nil {
		return fmt.Errorf("delete detail of %s: %w", view.ID, err)
	}
	if err := s.cache.Del(ctx, details.key(view.ID)); err != nil {
		return err
	}

	if err := s.views().delete(ctx, view.ID); err != nil {
		return err
	}
	keys := []string{viewAliasKey(view.FkModelID, view.Title)}
	if view.IsDefault {
		keys = append(keys, defaultViewKey(view.FkModelID))
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		return err
	}
	s.observer.CascadeDeleted("view", 1)
	return s.clearSingleQueryCache(ctx, view.FkModelID)
}

func (s *MetaService) cacheViewAliases(ctx context.Context, view *domain.View) error {
	if err := s.cache.Set(ctx, viewAliasKey(view.FkModelID, view.Title), s.views().cacheable(view)); err != nil {
		return err
	}
	if view.IsDefault {
		return s.cache.Set(ctx, defaultViewKey(view.FkModelID), s.views().cacheable(view))
	}
	return nil
}

// refreshNonDefaultViews keeps meta.hasNonDefaultViews of the model in line
// with its views.
func (s *MetaService) refreshNonDefaultViews(ctx context.Context, modelID string) error {
	model, err := s.models().get(ctx, modelID)
	if err != nil || model == nil {
		return err
	}
	views, err := s.ListViews(ctx, modelID)
	if err != nil {
		return err
	}
	has := len(views) > 1 || (len(views) == 1 && views[0].Type != domain.ViewGrid)
	if current, ok := model.Meta["hasNonDefaultViews"].(bool); ok && current == has {
		return nil
	}
	meta := model.Meta.Clone()
	meta["hasNonDefaultViews"] = has
	return s.models().update(ctx, model.ID, map[string]any{"meta": meta})
}

// GetViewDetail returns the type detail row of the view, or nil.
func (s *MetaService) GetViewDetail(ctx context.Context, viewID string) (*domain.ViewDetail, error) {
	view, err := s.GetView(ctx, viewID)
	if err != nil || view == nil {
		return nil, err
	}
	return s.viewDetails(view.Type).get(ctx, view.ID)
}

// UpdateViewDetail patches the detail row with the fields its view type owns.
func (s *MetaService) UpdateViewDetail(ctx context.Context, viewID string, patch map[string]any) (*domain.ViewDetail, error) {
	view, err := s.GetView(ctx, viewID)
	if err != nil {
		return nil, err
	}
	if view == nil {
		return nil, domain.NotFound("view %s not found", viewID)
	}
	update := make(map[string]any)
	for _, k := range detailFields[view.Type] {
		if v, ok := patch[k]; ok {
			update[k] = v
		}
	}
	if m, ok := update["meta"]; ok {
		update["meta"] = domain.ToMeta(m)
	}
	r := s.viewDetails(view.Type)
	if err := r.update(ctx, view.ID, update); err != nil {
		return nil, err
	}
	if err := s.clearSingleQueryCache(ctx, view.FkModelID); err != nil {
		return nil, err
	}
	return r.get(ctx, view.ID)
}
