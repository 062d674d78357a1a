package application

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
)

// EdgeKind says how a dependent column relies on another column.
type EdgeKind string

const (
	// EdgeValueSource: a QrCode or Barcode column renders the column's value.
	EdgeValueSource EdgeKind = "value-source"
	// EdgeTarget: a Lookup or Rollup column reads the column through a relation.
	EdgeTarget EdgeKind = "target"
	// EdgeFormula: a formula of the same model references the column.
	EdgeFormula EdgeKind = "formula"
	// EdgeRelation: a Lookup or Rollup column walks through the relation column.
	EdgeRelation EdgeKind = "relation"
	// EdgeForeignSide: a relation column uses the column as one of its keys.
	EdgeForeignSide EdgeKind = "foreign-side"
	// EdgePairedRelation: the other half of the relation column's pair.
	EdgePairedRelation EdgeKind = "paired-relation"
)

type Dependency struct {
	Kind     EdgeKind      `json:"kind"`
	ColumnID string        `json:"column_id"`
	UIDT     domain.UIType `json:"uidt,omitempty"`
}

// Dependents returns the columns that rely on colID, in the order DeleteColumn
// visits them. Formula edges are repaired by a delete, every other edge is
// deleted along with the column.
func (s *MetaService) Dependents(ctx context.Context, colID string) ([]Dependency, error) {
	col, err := s.GetColumn(ctx, colID)
	if err != nil || col == nil {
		return nil, err
	}
	return s.dependents(ctx, col)
}

func (s *MetaService) dependents(ctx context.Context, col *domain.Column) ([]Dependency, error) {
	var deps []Dependency
	seen := make(map[Dependency]bool)
	add := func(kind EdgeKind, colID string, uidt domain.UIType) {
		d := Dependency{Kind: kind, ColumnID: colID, UIDT: uidt}
		if colID == "" || colID == col.ID || seen[d] {
			return
		}
		seen[d] = true
		deps = append(deps, d)
	}

	qrs, err := s.store.QrCodes().List(ctx, domain.Where("fk_qr_value_column_id", col.ID))
	if err != nil {
		return nil, fmt.Errorf("qrcode dependents of %s: %w", col.ID, err)
	}
	for _, o := range qrs {
		add(EdgeValueSource, o.FkColumnID, domain.UIQrCode)
	}
	barcodes, err := s.store.Barcodes().List(ctx, domain.Where("fk_barcode_value_column_id", col.ID))
	if err != nil {
		return nil, fmt.Errorf("barcode dependents of %s: %w", col.ID, err)
	}
	for _, o := range barcodes {
		add(EdgeValueSource, o.FkColumnID, domain.UIBarcode)
	}

	lookups, err := s.store.Lookups().List(ctx, domain.Where("fk_lookup_column_id", col.ID))
	if err != nil {
		return nil, fmt.Errorf("lookup dependents of %s: %w", col.ID, err)
	}
	for _, o := range lookups {
		add(EdgeTarget, o.FkColumnID, domain.UILookup)
	}
	rollups, err := s.store.Rollups().List(ctx, domain.Where("fk_rollup_column_id", col.ID))
	if err != nil {
		return nil, fmt.Errorf("rollup dependents of %s: %w", col.ID, err)
	}
	for _, o := range rollups {
		add(EdgeTarget, o.FkColumnID, domain.UIRollup)
	}

	formulaCols, err := s.store.Columns().List(ctx, domain.Where("fk_model_id", col.FkModelID).And("uidt", string(domain.UIFormula)))
	if err != nil {
		return nil, fmt.Errorf("formula dependents of %s: %w", col.ID, err)
	}
	for _, fc := range formulaCols {
		f, err := formulaOptions.get(ctx, s, fc.ID)
		if err != nil {
			return nil, err
		}
		if f != nil && formulaReferences(f, col.ID) {
			add(EdgeFormula, fc.ID, domain.UIFormula)
		}
	}

	if col.UIDT.IsRelation() {
		lookups, err := s.store.Lookups().List(ctx, domain.Where("fk_relation_column_id", col.ID))
		if err != nil {
			return nil, fmt.Errorf("relation lookups of %s: %w", col.ID, err)
		}
		for _, o := range lookups {
			add(EdgeRelation, o.FkColumnID, domain.UILookup)
		}
		rollups, err := s.store.Rollups().List(ctx, domain.Where("fk_relation_column_id", col.ID))
		if err != nil {
			return nil, fmt.Errorf("relation rollups of %s: %w", col.ID, err)
		}
		for _, o := range rollups {
			add(EdgeRelation, o.FkColumnID, domain.UIRollup)
		}
	}

	foreign, err := s.store.Relations().List(ctx, domain.AnyOf(col.ID,
		"fk_child_column_id", "fk_parent_column_id", "fk_mm_child_column_id", "fk_mm_parent_column_id"))
	if err != nil {
		return nil, fmt.Errorf("relations keyed by %s: %w", col.ID, err)
	}
	for _, o := range foreign {
		add(EdgeForeignSide, o.FkColumnID, "")
	}

	if link, ok := col.ColOptions.(*domain.LinkColumn); ok && link != nil {
		paired, err := s.pairedRelations(ctx, link)
		if err != nil {
			return nil, err
		}
		for _, o := range paired {
			add(EdgePairedRelation, o.FkColumnID, "")
		}
	}
	return deps, nil
}

// pairedRelations finds the relation rows describing the same link from the
// other model: the same child/parent key pair, or the same junction model.
func (s *MetaService) pairedRelations(ctx context.Context, link *domain.LinkColumn) ([]domain.LinkColumn, error) {
	var c domain.Criteria
	switch {
	case link.Type == domain.RelationManyToMany && link.FkMMModelID != "":
		c = domain.Where("fk_mm_model_id", link.FkMMModelID)
	case link.FkChildColumnID != "" && link.FkParentColumnID != "":
		c = domain.Where("fk_child_column_id", link.FkChildColumnID).And("fk_parent_column_id", link.FkParentColumnID)
	default:
		return nil, nil
	}
	rows, err := s.store.Relations().List(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("paired relations of %s: %w", link.FkColumnID, err)
	}
	out := rows[:0]
	for _, r := range rows {
		if r.FkColumnID != link.FkColumnID {
			out = append(out, r)
		}
	}
	return out, nil
}

// cascade tracks the columns and models one delete has already entered, so
// paired relations do not recurse into each other.
type cascade struct {
	columns map[string]bool
	models  map[string]bool
}

func newCascade() *cascade {
	return &cascade{columns: make(map[string]bool), models: make(map[string]bool)}
}

// DeleteColumn removes the column and everything depending on it. Deleting a
// column that does not exist is a no-op.
func (s *MetaService) DeleteColumn(ctx context.Context, id string) error {
	return s.deleteColumn(ctx, newCascade(), id)
}

func (s *MetaService) deleteColumn(ctx context.Context, run *cascade, id string) error {
	if id == "" || run.columns[id] {
		return nil
	}
	run.columns[id] = true

	col, err := s.GetColumn(ctx, id)
	if err != nil {
		return err
	}
	if col == nil {
		return nil
	}
	deps, err := s.dependents(ctx, col)
	if err != nil {
		return err
	}
	deleteEdges := func(kinds ...EdgeKind) error {
		for _, d := range deps {
			for _, k := range kinds {
				if d.Kind == k {
					if err := s.deleteColumn(ctx, run, d.ColumnID); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	if err := deleteEdges(EdgeValueSource); err != nil {
		return err
	}
	if err := deleteEdges(EdgeTarget); err != nil {
		return err
	}
	for _, d := range deps {
		if d.Kind == EdgeFormula {
			if err := s.markFormulaBroken(ctx, d.ColumnID, col); err != nil {
				return err
			}
		}
	}
	if err := deleteEdges(EdgeRelation); err != nil {
		return err
	}

	if err := s.deleteSortsOfColumn(ctx, col.ID); err != nil {
		return err
	}
	if err := s.deleteFiltersOfColumn(ctx, col.ID); err != nil {
		return err
	}
	if err := s.removeColumnOptions(ctx, col.ID, col.UIDT); err != nil {
		return err
	}
	if err := s.deleteViewColumnsOf(ctx, col.ID); err != nil {
		return err
	}

	if err := deleteEdges(EdgeForeignSide, EdgePairedRelation); err != nil {
		return err
	}
	if link, ok := col.ColOptions.(*domain.LinkColumn); ok && link != nil &&
		link.Type == domain.RelationManyToMany && link.FkMMModelID != "" {
		if err := s.deleteModel(ctx, run, link.FkMMModelID, false); err != nil {
			return err
		}
	}

	if err := s.columns().delete(ctx, col.ID); err != nil {
		return err
	}
	s.observer.CascadeDeleted("column", 1)
	return s.clearSingleQueryCache(ctx, col.FkModelID)
}

// deleteCodeColumnsFedBy deletes the QrCode and Barcode columns rendering colID.
func (s *MetaService) deleteCodeColumnsFedBy(ctx context.Context, colID string) error {
	col, err := s.GetColumn(ctx, colID)
	if err != nil || col == nil {
		return err
	}
	deps, err := s.dependents(ctx, col)
	if err != nil {
		return err
	}
	run := newCascade()
	run.columns[colID] = true
	for _, d := range deps {
		if d.Kind == EdgeValueSource {
			if err := s.deleteColumn(ctx, run, d.ColumnID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *MetaService) deleteViewColumnsOf(ctx context.Context, colID string) error {
	for _, t := range domain.ViewTypes {
		rows, err := s.store.ViewColumns(t).List(ctx, domain.Where("fk_column_id", colID))
		if err != nil {
			return fmt.Errorf("list %s view columns of %s: %w", t, colID, err)
		}
		r := s.viewColumns(t)
		for _, vc := range rows {
			if err := r.delete(ctx, vc.ID); err != nil {
				return err
			}
		}
		s.observer.CascadeDeleted("view_column", len(rows))
	}
	return nil
}
