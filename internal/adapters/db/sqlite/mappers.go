package sqlite

import (
	"encoding/json"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"gorm.io/datatypes"
)

func modelToDomain(r *ModelRow) domain.Model {
	return domain.Model{
		ID:        r.ID,
		BaseID:    r.BaseID,
		SourceID:  r.SourceID,
		TableName: r.PhysicalName,
		Title:     r.Title,
		Type:      domain.ModelType(r.Type),
		MM:        r.MM,
		Order:     r.Order,
		Meta:      domain.ParseMeta(r.Meta),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func modelToRow(m *domain.Model) ModelRow {
	t := m.Type
	if t == "" {
		t = domain.ModelTable
	}
	return ModelRow{
		ID:           m.ID,
		BaseID:       m.BaseID,
		SourceID:     m.SourceID,
		PhysicalName: m.TableName,
		Title:        m.Title,
		Type:         string(t),
		MM:           m.MM,
		Order:        m.Order,
		Meta:         m.Meta.String(),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func columnToDomain(r *ColumnRow) domain.Column {
	return domain.Column{
		ID:         r.ID,
		FkModelID:  r.FkModelID,
		BaseID:     r.BaseID,
		SourceID:   r.SourceID,
		ColumnName: r.ColumnName,
		Title:      r.Title,
		UIDT:       domain.UIType(r.UIDT),
		DT:         r.DT,
		NP:         r.NP,
		NS:         r.NS,
		Clen:       r.Clen,
		Cop:        r.Cop,
		CT:         r.CT,
		DTX:        r.DTX,
		DTXP:       r.DTXP,
		DTXS:       r.DTXS,
		CDF:        r.CDF,
		CC:         r.CC,
		CSN:        r.CSN,
		PK:         r.PK,
		PV:         r.PV,
		RQD:        r.RQD,
		UN:         r.UN,
		AI:         r.AI,
		AU:         r.AU,
		Unique:     r.Unique,
		System:     r.System,
		Order:      r.Order,
		Meta:       domain.ParseMeta(r.Meta),
		Validate:   r.Validate,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func columnToRow(c *domain.Column) ColumnRow {
	return ColumnRow{
		ID:         c.ID,
		FkModelID:  c.FkModelID,
		BaseID:     c.BaseID,
		SourceID:   c.SourceID,
		ColumnName: c.ColumnName,
		Title:      c.Title,
		UIDT:       string(c.UIDT),
		DT:         c.DT,
		NP:         c.NP,
		NS:         c.NS,
		Clen:       c.Clen,
		Cop:        c.Cop,
		CT:         c.CT,
		DTX:        c.DTX,
		DTXP:       c.DTXP,
		DTXS:       c.DTXS,
		CDF:        c.CDF,
		CC:         c.CC,
		CSN:        c.CSN,
		PK:         c.PK,
		PV:         c.PV,
		RQD:        c.RQD,
		UN:         c.UN,
		AI:         c.AI,
		AU:         c.AU,
		Unique:     c.Unique,
		System:     c.System,
		Order:      c.Order,
		Meta:       c.Meta.String(),
		Validate:   c.Validate,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func lookupToDomain(r *LookupRow) domain.LookupColumn {
	return domain.LookupColumn{
		ID:                 r.ID,
		FkColumnID:         r.FkColumnID,
		FkRelationColumnID: r.FkRelationColumnID,
		FkLookupColumnID:   r.FkLookupColumnID,
	}
}

func lookupToRow(l *domain.LookupColumn) LookupRow {
	return LookupRow{
		ID:                 l.ID,
		FkColumnID:         l.FkColumnID,
		FkRelationColumnID: l.FkRelationColumnID,
		FkLookupColumnID:   l.FkLookupColumnID,
	}
}

func rollupToDomain(r *RollupRow) domain.RollupColumn {
	return domain.RollupColumn{
		ID:                 r.ID,
		FkColumnID:         r.FkColumnID,
		FkRelationColumnID: r.FkRelationColumnID,
		FkRollupColumnID:   r.FkRollupColumnID,
		RollupFunction:     r.RollupFunction,
	}
}

func rollupToRow(r *domain.RollupColumn) RollupRow {
	return RollupRow{
		ID:                 r.ID,
		FkColumnID:         r.FkColumnID,
		FkRelationColumnID: r.FkRelationColumnID,
		FkRollupColumnID:   r.FkRollupColumnID,
		RollupFunction:     r.RollupFunction,
	}
}

func relationToDomain(r *RelationRow) domain.LinkColumn {
	return domain.LinkColumn{
		ID:                 r.ID,
		FkColumnID:         r.FkColumnID,
		Type:               domain.RelationType(r.Type),
		FkChildColumnID:    r.FkChildColumnID,
		FkParentColumnID:   r.FkParentColumnID,
		FkMMModelID:        r.FkMMModelID,
		FkMMChildColumnID:  r.FkMMChildColumnID,
		FkMMParentColumnID: r.FkMMParentColumnID,
		FkRelatedModelID:   r.FkRelatedModelID,
		UR:                 r.UR,
		DR:                 r.DR,
		FkIndexName:        r.FkIndexName,
		Virtual:            r.Virtual,
	}
}

func relationToRow(l *domain.LinkColumn) RelationRow {
	return RelationRow{
		ID:                 l.ID,
		FkColumnID:         l.FkColumnID,
		Type:               string(l.Type),
		FkChildColumnID:    l.FkChildColumnID,
		FkParentColumnID:   l.FkParentColumnID,
		FkMMModelID:        l.FkMMModelID,
		FkMMChildColumnID:  l.FkMMChildColumnID,
		FkMMParentColumnID: l.FkMMParentColumnID,
		FkRelatedModelID:   l.FkRelatedModelID,
		UR:                 l.UR,
		DR:                 l.DR,
		FkIndexName:        l.FkIndexName,
		Virtual:            l.Virtual,
	}
}

func formulaToDomain(r *FormulaRow) domain.FormulaColumn {
	var tree json.RawMessage
	if len(r.ParsedTree) > 0 && string(r.ParsedTree) != "null" {
		tree = json.RawMessage(r.ParsedTree)
	}
	return domain.FormulaColumn{
		ID:         r.ID,
		FkColumnID: r.FkColumnID,
		Formula:    r.Formula,
		FormulaRaw: r.FormulaRaw,
		ParsedTree: tree,
		Error:      r.Error,
	}
}

func formulaToRow(f *domain.FormulaColumn) FormulaRow {
	var tree datatypes.JSON
	if len(f.ParsedTree) > 0 {
		tree = datatypes.JSON(f.ParsedTree)
	}
	return FormulaRow{
		ID:         f.ID,
		FkColumnID: f.FkColumnID,
		Formula:    f.Formula,
		FormulaRaw: f.FormulaRaw,
		ParsedTree: tree,
		Error:      f.Error,
	}
}

func qrCodeToDomain(r *QrCodeRow) domain.QrCodeColumn {
	return domain.QrCodeColumn{ID: r.ID, FkColumnID: r.FkColumnID, FkQrValueColumnID: r.FkQrValueColumnID}
}

func qrCodeToRow(q *domain.QrCodeColumn) QrCodeRow {
	return QrCodeRow{ID: q.ID, FkColumnID: q.FkColumnID, FkQrValueColumnID: q.FkQrValueColumnID}
}

func barcodeToDomain(r *BarcodeRow) domain.BarcodeColumn {
	return domain.BarcodeColumn{
		ID:                     r.ID,
		FkColumnID:             r.FkColumnID,
		FkBarcodeValueColumnID: r.FkBarcodeValueColumnID,
		BarcodeFormat:          r.BarcodeFormat,
	}
}

func barcodeToRow(b *domain.BarcodeColumn) BarcodeRow {
	return BarcodeRow{
		ID:                     b.ID,
		FkColumnID:             b.FkColumnID,
		FkBarcodeValueColumnID: b.FkBarcodeValueColumnID,
		BarcodeFormat:          b.BarcodeFormat,
	}
}

func selectOptionToDomain(r *SelectOptionRow) domain.SelectOption {
	return domain.SelectOption{ID: r.ID, FkColumnID: r.FkColumnID, Title: r.Title, Color: r.Color, Order: r.Order}
}

func selectOptionToRow(o *domain.SelectOption) SelectOptionRow {
	return SelectOptionRow{ID: o.ID, FkColumnID: o.FkColumnID, Title: o.Title, Color: o.Color, Order: o.Order}
}

func viewToDomain(r *ViewRow) domain.View {
	return domain.View{
		ID:               r.ID,
		FkModelID:        r.FkModelID,
		BaseID:           r.BaseID,
		SourceID:         r.SourceID,
		Title:            r.Title,
		Type:             domain.ViewType(r.Type),
		IsDefault:        r.IsDefault,
		Order:            r.Order,
		Show:             r.Show,
		UUID:             r.UUID,
		Password:         r.Password,
		ShowSystemFields: r.ShowSystemFields,
		LockType:         r.LockType,
		Meta:             domain.ParseMeta(r.Meta),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func viewToRow(v *domain.View) ViewRow {
	return ViewRow{
		ID:               v.ID,
		FkModelID:        v.FkModelID,
		BaseID:           v.BaseID,
		SourceID:         v.SourceID,
		Title:            v.Title,
		Type:             string(v.Type),
		IsDefault:        v.IsDefault,
		Order:            v.Order,
		Show:             v.Show,
		UUID:             v.UUID,
		Password:         v.Password,
		ShowSystemFields: v.ShowSystemFields,
		LockType:         v.LockType,
		Meta:             v.Meta.String(),
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
}

func gridViewToDomain(r *GridViewRow) domain.ViewDetail {
	return domain.ViewDetail{FkViewID: r.FkViewID, BaseID: r.BaseID, SourceID: r.SourceID, RowHeight: r.RowHeight, Meta: domain.ParseMeta(r.Meta)}
}

func gridViewToRow(d *domain.ViewDetail) GridViewRow {
	return GridViewRow{FkViewID: d.FkViewID, BaseID: d.BaseID, SourceID: d.SourceID, RowHeight: d.RowHeight, Meta: d.Meta.String()}
}

func galleryViewToDomain(r *GalleryViewRow) domain.ViewDetail {
	return domain.ViewDetail{
		FkViewID:          r.FkViewID,
		BaseID:            r.BaseID,
		SourceID:          r.SourceID,
		FkCoverImageColID: r.FkCoverImageColID,
		Meta:              domain.ParseMeta(r.Meta),
	}
}

func galleryViewToRow(d *domain.ViewDetail) GalleryViewRow {
	return GalleryViewRow{
		FkViewID:          d.FkViewID,
		BaseID:            d.BaseID,
		SourceID:          d.SourceID,
		FkCoverImageColID: d.FkCoverImageColID,
		Meta:              d.Meta.String(),
	}
}

func formViewToDomain(r *FormViewRow) domain.ViewDetail {
	return domain.ViewDetail{
		FkViewID:          r.FkViewID,
		BaseID:            r.BaseID,
		SourceID:          r.SourceID,
		Heading:           r.Heading,
		Subheading:        r.Subheading,
		SuccessMsg:        r.SuccessMsg,
		RedirectURL:       r.RedirectURL,
		SubmitAnotherForm: r.SubmitAnotherForm,
		ShowBlankForm:     r.ShowBlankForm,
		Meta:              domain.ParseMeta(r.Meta),
	}
}

func formViewToRow(d *domain.ViewDetail) FormViewRow {
	return FormViewRow{
		FkViewID:          d.FkViewID,
		BaseID:            d.BaseID,
		SourceID:          d.SourceID,
		Heading:           d.Heading,
		Subheading:        d.Subheading,
		SuccessMsg:        d.SuccessMsg,
		RedirectURL:       d.RedirectURL,
		SubmitAnotherForm: d.SubmitAnotherForm,
		ShowBlankForm:     d.ShowBlankForm,
		Meta:              d.Meta.String(),
	}
}

func kanbanViewToDomain(r *KanbanViewRow) domain.ViewDetail {
	return domain.ViewDetail{
		FkViewID:          r.FkViewID,
		BaseID:            r.BaseID,
		SourceID:          r.SourceID,
		FkGrpColID:        r.FkGrpColID,
		FkCoverImageColID: r.FkCoverImageColID,
		Meta:              domain.ParseMeta(r.Meta),
	}
}

func kanbanViewToRow(d *domain.ViewDetail) KanbanViewRow {
	return KanbanViewRow{
		FkViewID:          d.FkViewID,
		BaseID:            d.BaseID,
		SourceID:          d.SourceID,
		FkGrpColID:        d.FkGrpColID,
		FkCoverImageColID: d.FkCoverImageColID,
		Meta:              d.Meta.String(),
	}
}

func mapViewToDomain(r *MapViewRow) domain.ViewDetail {
	return domain.ViewDetail{
		FkViewID:       r.FkViewID,
		BaseID:         r.BaseID,
		SourceID:       r.SourceID,
		FkGeoDataColID: r.FkGeoDataColID,
		Meta:           domain.ParseMeta(r.Meta),
	}
}

func mapViewToRow(d *domain.ViewDetail) MapViewRow {
	return MapViewRow{
		FkViewID:       d.FkViewID,
		BaseID:         d.BaseID,
		SourceID:       d.SourceID,
		FkGeoDataColID: d.FkGeoDataColID,
		Meta:           d.Meta.String(),
	}
}

func gridViewColumnToDomain(r *GridViewColumnRow) domain.ViewColumn {
	return domain.ViewColumn{
		ID:           r.ID,
		FkViewID:     r.FkViewID,
		FkColumnID:   r.FkColumnID,
		BaseID:       r.BaseID,
		SourceID:     r.SourceID,
		Show:         r.Show,
		Order:        r.Order,
		Width:        r.Width,
		GroupBy:      r.GroupBy,
		GroupByOrder: r.GroupByOrder,
		GroupBySort:  r.GroupBySort,
		Aggregation:  r.Aggregation,
	}
}

func gridViewColumnToRow(c *domain.ViewColumn) GridViewColumnRow {
	return GridViewColumnRow{
		ID:           c.ID,
		FkViewID:     c.FkViewID,
		FkColumnID:   c.FkColumnID,
		BaseID:       c.BaseID,
		SourceID:     c.SourceID,
		Show:         c.Show,
		Order:        c.Order,
		Width:        c.Width,
		GroupBy:      c.GroupBy,
		GroupByOrder: c.GroupByOrder,
		GroupBySort:  c.GroupBySort,
		Aggregation:  c.Aggregation,
	}
}

func formViewColumnToDomain(r *FormViewColumnRow) domain.ViewColumn {
	return domain.ViewColumn{
		ID:            r.ID,
		FkViewID:      r.FkViewID,
		FkColumnID:    r.FkColumnID,
		BaseID:        r.BaseID,
		SourceID:      r.SourceID,
		Show:          r.Show,
		Order:         r.Order,
		Label:         r.Label,
		Help:          r.Help,
		Description:   r.Description,
		Required:      r.Required,
		EnableScanner: r.EnableScanner,
	}
}

func formViewColumnToRow(c *domain.ViewColumn) FormViewColumnRow {
	return FormViewColumnRow{
		ID:            c.ID,
		FkViewID:      c.FkViewID,
		FkColumnID:    c.FkColumnID,
		BaseID:        c.BaseID,
		SourceID:      c.SourceID,
		Show:          c.Show,
		Order:         c.Order,
		Label:         c.Label,
		Help:          c.Help,
		Description:   c.Description,
		Required:      c.Required,
		EnableScanner: c.EnableScanner,
	}
}

// Gallery, kanban and map view columns share the plain layout.

func galleryViewColumnToDomain(r *GalleryViewColumnRow) domain.ViewColumn {
	return domain.ViewColumn{ID: r.ID, FkViewID: r.FkViewID, FkColumnID: r.FkColumnID, BaseID: r.BaseID, SourceID: r.SourceID, Show: r.Show, Order: r.Order}
}

func galleryViewColumnToRow(c *domain.ViewColumn) GalleryViewColumnRow {
	return GalleryViewColumnRow{ID: c.ID, FkViewID: c.FkViewID, FkColumnID: c.FkColumnID, BaseID: c.BaseID, SourceID: c.SourceID, Show: c.Show, Order: c.Order}
}

func kanbanViewColumnToDomain(r *KanbanViewColumnRow) domain.ViewColumn {
	return domain.ViewColumn{ID: r.ID, FkViewID: r.FkViewID, FkColumnID: r.FkColumnID, BaseID: r.BaseID, SourceID: r.SourceID, Show: r.Show, Order: r.Order}
}

func kanbanViewColumnToRow(c *domain.ViewColumn) KanbanViewColumnRow {
	return KanbanViewColumnRow{ID: c.ID, FkViewID: c.FkViewID, FkColumnID: c.FkColumnID, BaseID: c.BaseID, SourceID: c.SourceID, Show: c.Show, Order: c.Order}
}

func mapViewColumnToDomain(r *MapViewColumnRow) domain.ViewColumn {
	return domain.ViewColumn{ID: r.ID, FkViewID: r.FkViewID, FkColumnID: r.FkColumnID, BaseID: r.BaseID, SourceID: r.SourceID, Show: r.Show, Order: r.Order}
}

func mapViewColumnToRow(c *domain.ViewColumn) MapViewColumnRow {
	return MapViewColumnRow{ID: c.ID, FkViewID: c.FkViewID, FkColumnID: c.FkColumnID, BaseID: c.BaseID, SourceID: c.SourceID, Show: c.Show, Order: c.Order}
}

func sortToDomain(r *SortRow) domain.Sort {
	return domain.Sort{
		ID:         r.ID,
		FkViewID:   r.FkViewID,
		FkColumnID: r.FkColumnID,
		BaseID:     r.BaseID,
		SourceID:   r.SourceID,
		Direction:  domain.SortDirection(r.Direction),
		Order:      r.Order,
	}
}

func sortToRow(s *domain.Sort) SortRow {
	return SortRow{
		ID:         s.ID,
		FkViewID:   s.FkViewID,
		FkColumnID: s.FkColumnID,
		BaseID:     s.BaseID,
		SourceID:   s.SourceID,
		Direction:  string(s.Direction),
		Order:      s.Order,
	}
}

func filterToDomain(r *FilterRow) domain.Filter {
	return domain.Filter{
		ID:              r.ID,
		FkViewID:        r.FkViewID,
		FkColumnID:      r.FkColumnID,
		FkParentID:      r.FkParentID,
		BaseID:          r.BaseID,
		SourceID:        r.SourceID,
		ComparisonOp:    r.ComparisonOp,
		ComparisonSubOp: r.ComparisonSubOp,
		Value:           r.Value,
		IsGroup:         r.IsGroup,
		LogicalOp:       r.LogicalOp,
		Order:           r.Order,
	}
}

func filterToRow(f *domain.Filter) FilterRow {
	return FilterRow{
		ID:              f.ID,
		FkViewID:        f.FkViewID,
		FkColumnID:      f.FkColumnID,
		FkParentID:      f.FkParentID,
		BaseID:          f.BaseID,
		SourceID:        f.SourceID,
		ComparisonOp:    f.ComparisonOp,
		ComparisonSubOp: f.ComparisonSubOp,
		Value:           f.Value,
		IsGroup:         f.IsGroup,
		LogicalOp:       f.LogicalOp,
		Order:           f.Order,
	}
}

func commentToDomain(r *CommentRow) domain.Comment {
	return domain.Comment{ID: r.ID, FkModelID: r.FkModelID, RowID: r.RowID, Comment: r.Comment, CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt}
}

func commentToRow(c *domain.Comment) CommentRow {
	return CommentRow{ID: c.ID, FkModelID: c.FkModelID, RowID: c.RowID, Comment: c.Comment, CreatedBy: c.CreatedBy, CreatedAt: c.CreatedAt}
}
