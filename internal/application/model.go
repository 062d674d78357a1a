package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

// ModelRequest creates a model together with its first columns.
type ModelRequest struct {
	domain.Model
	Columns []ColumnRequest `json:"columns,omitempty"`
}

// ModelPatch lists the model fields UpdateModel may change.
type ModelPatch struct {
	Title     *string     `json:"title,omitempty"`
	TableName *string     `json:"table_name,omitempty"`
	Order     *float64    `json:"order,omitempty"`
	Meta      domain.Meta `json:"meta,omitempty"`
}

func modelAliasKey(baseID, title string) string {
	return domain.Key(domain.ScopeModel, "alias", baseID, title)
}

// InsertModel creates the model row, its default grid view and then every
// requested column.
func (s *MetaService) InsertModel(ctx context.Context, req ModelRequest) (*domain.Model, error) {
	m := req.Model
	m.Title = strings.TrimSpace(m.Title)
	m.TableName = strings.TrimSpace(m.TableName)
	if m.Title == "" {
		return nil, domain.BadRequest("title is required")
	}
	if m.TableName == "" {
		return nil, domain.BadRequest("table_name is required")
	}
	if err := s.checkModelNames(ctx, m.BaseID, m.Title, m.TableName, ""); err != nil {
		return nil, err
	}

	m.ID = ""
	m.Columns, m.Views = nil, nil
	if m.Type == "" {
		m.Type = domain.ModelTable
	}
	if m.Meta == nil {
		m.Meta = domain.Meta{}
	}
	if m.Order == nil {
		next, err := s.store.Models().NextOrder(ctx, domain.Where("base_id", m.BaseID))
		if err != nil {
			return nil, err
		}
		m.Order = domain.Float(next)
	}
	if err := s.models().insert(ctx, &m, []string{m.BaseID}); err != nil {
		return nil, err
	}

	if _, err := s.InsertView(ctx, ViewRequest{View: domain.View{
		FkModelID: m.ID,
		Title:     m.Title,
		Type:      domain.ViewGrid,
	}}); err != nil {
		return nil, fmt.Errorf("default view of %s: %w", m.ID, err)
	}
	for _, colReq := range req.Columns {
		colReq.FkModelID = m.ID
		if _, err := s.InsertColumn(ctx, colReq); err != nil {
			return nil, err
		}
	}
	return s.GetModelWithInfo(ctx, m.ID)
}

func (s *MetaService) checkModelNames(ctx context.Context, baseID, title, tableName, selfID string) error {
	models, err := s.ListModels(ctx, baseID)
	if err != nil {
		return err
	}
	for _, other := range models {
		if other.ID == selfID {
			continue
		}
		if title != "" && other.Title == title {
			return domain.BadRequest("duplicate table title %q", title)
		}
		if tableName != "" && other.TableName == tableName {
			return domain.BadRequest("duplicate table name %q", tableName)
		}
	}
	return nil
}

func (s *MetaService) GetModel(ctx context.Context, id string) (*domain.Model, error) {
	m, err := s.models().get(ctx, id)
	if err != nil || m == nil {
		return nil, err
	}
	if m.Meta == nil {
		m.Meta = domain.Meta{}
	}
	return m, nil
}

func (s *MetaService) GetModelByTitle(ctx context.Context, baseID, title string) (*domain.Model, error) {
	key := modelAliasKey(baseID, title)
	var m domain.Model
	ok, err := s.cache.Get(ctx, key, &m)
	if err != nil {
		return nil, err
	}
	if ok {
		return &m, nil
	}
	row, err := s.store.Models().FindOne(ctx, domain.Where("base_id", baseID).And("title", title))
	if err != nil || row == nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, s.models().cacheable(row)); err != nil {
		return nil, err
	}
	return row, nil
}

// ListModels returns the models of a base ordered by order, missing orders last.
func (s *MetaService) ListModels(ctx context.Context, baseID string) ([]domain.Model, error) {
	return s.models().list(ctx, []string{baseID}, domain.Where("base_id", baseID).Asc("order"))
}

// GetModelWithInfo returns the model with its columns and views loaded.
func (s *MetaService) GetModelWithInfo(ctx context.Context, id string) (*domain.Model, error) {
	m, err := s.GetModel(ctx, id)
	if err != nil || m == nil {
		return nil, err
	}
	def, err := s.GetDefaultView(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	defaultViewID := ""
	if def != nil {
		defaultViewID = def.ID
	}
	if m.Columns, err = s.ListColumns(ctx, m.ID, defaultViewID); err != nil {
		return nil, err
	}
	if m.Views, err = s.ListViewsWithInfo(ctx, m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MetaService) UpdateModel(ctx context.Context, id string, patch ModelPatch) (*domain.Model, error) {
	m, err := s.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.NotFound("table %s not found", id)
	}
	update := map[string]any{}
	title, tableName := "", ""
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, domain.BadRequest("title is required")
		}
		update["title"] = title
	}
	if patch.TableName != nil {
		tableName = strings.TrimSpace(*patch.TableName)
		if tableName == "" {
			return nil, domain.BadRequest("table_name is required")
		}
		update["table_name"] = tableName
	}
	if err := s.checkModelNames(ctx, m.BaseID, title, tableName, m.ID); err != nil {
		return nil, err
	}
	if patch.Order != nil {
		update["order"] = *patch.Order
	}
	if patch.Meta != nil {
		update["meta"] = patch.Meta
	}
	if err := s.models().update(ctx, m.ID, update); err != nil {
		return nil, err
	}
	if patch.Order != nil {
		// sibling order changed; the cached list is rebuilt on the next read
		if err := s.cache.Del(ctx, domain.ListKey(domain.ScopeModel, m.BaseID)); err != nil {
			return nil, err
		}
	}
	if err := s.cache.Del(ctx, modelAliasKey(m.BaseID, m.Title)); err != nil {
		return nil, err
	}
	if err := s.clearSingleQueryCache(ctx, m.ID); err != nil {
		return nil, err
	}
	return s.GetModel(ctx, m.ID)
}

// DeleteModel removes a model with its comments, views, columns and option
// rows. With force, relation columns of other models pointing at it are
// deleted too. Deleting a missing model is a no-op.
func (s *MetaService) DeleteModel(ctx context.Context, id string, force bool) error {
	return s.deleteModel(ctx, newCascade(), id, force)
}

func (s *MetaService) deleteModel(ctx context.Context, run *cascade, id string, force bool) error {
	if id == "" || run.models[id] {
		return nil
	}
	run.models[id] = true

	m, err := s.GetModel(ctx, id)
	if err != nil || m == nil {
		return err
	}

	if err := s.deleteComments(ctx, m.ID); err != nil {
		return err
	}

	views, err := s.ListViews(ctx, m.ID)
	if err != nil {
		return err
	}
	for i := range views {
		if err := s.deleteView(ctx, &views[i]); err != nil {
			return err
		}
	}
	if err := s.views().resetList(ctx, m.ID); err != nil {
		return err
	}

	cols, err := s.store.Columns().List(ctx, domain.Where("fk_model_id", m.ID))
	if err != nil {
		return fmt.Errorf("columns of %s: %w", m.ID, err)
	}
	for _, c := range cols {
		run.columns[c.ID] = true
	}
	for _, c := range cols {
		if err := s.removeColumnOptions(ctx, c.ID, c.UIDT); err != nil {
			return err
		}
	}

	if force {
		related, err := s.store.Relations().List(ctx, domain.Where("fk_related_model_id", m.ID))
		if err != nil {
			return fmt.Errorf("relations into %s: %w", m.ID, err)
		}
		for _, r := range related {
			if err := s.deleteColumn(ctx, run, r.FkColumnID); err != nil {
				return err
			}
		}
	}

	n, err := s.store.Columns().DeleteWhere(ctx, domain.Where("fk_model_id", m.ID))
	if err != nil {
		return fmt.Errorf("delete columns of %s: %w", m.ID, err)
	}
	s.observer.CascadeDeleted("column", int(n))
	if err := s.columns().resetList(ctx, m.ID); err != nil {
		return err
	}

	if err := s.models().delete(ctx, m.ID); err != nil {
		return err
	}
	if err := s.cache.Del(ctx, modelAliasKey(m.BaseID, m.Title), defaultViewKey(m.ID)); err != nil {
		return err
	}
	s.observer.CascadeDeleted("model", 1)
	return s.clearSingleQueryCache(ctx, m.ID)
}

// UpdatePrimaryColumn makes colID the only display value column of its model
// and pins it first in every grid view showing it.
func (s *MetaService) UpdatePrimaryColumn(ctx context.Context, modelID, colID string) error {
	col, err := s.GetColumn(ctx, colID)
	if err != nil {
		return err
	}
	if col == nil || col.FkModelID != modelID {
		return domain.BadRequest("column %s not found in table %s", colID, modelID)
	}

	flagged, err := s.store.Columns().List(ctx, domain.Where("fk_model_id", modelID).And("pv", true))
	if err != nil {
		return fmt.Errorf("display value columns of %s: %w", modelID, err)
	}
	for _, c := range flagged {
		if c.ID == colID {
			continue
		}
		if err := s.columns().update(ctx, c.ID, map[string]any{"pv": false}); err != nil {
			return err
		}
	}
	if err := s.columns().update(ctx, colID, map[string]any{"pv": true}); err != nil {
		return err
	}
	if err := s.columns().resetList(ctx, modelID); err != nil {
		return err
	}

	views, err := s.ListViews(ctx, modelID)
	if err != nil {
		return err
	}
	for _, v := range views {
		if v.Type != domain.ViewGrid {
			continue
		}
		vc, err := s.store.ViewColumns(v.Type).FindOne(ctx, domain.Where("fk_view_id", v.ID).And("fk_column_id", colID))
		if err != nil {
			return err
		}
		if vc == nil {
			continue
		}
		if err := s.FixPVColumnForView(ctx, v.ID); err != nil {
			return err
		}
	}
	return s.clearSingleQueryCache(ctx, modelID)
}
