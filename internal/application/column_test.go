package application

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/stretchr/testify/require"
)

// optionRowCounts counts the side-table rows of colID per table.
func optionRowCounts(t *testing.T, svc *MetaService, colID string) map[string]int {
	t.Helper()
	ctx := context.Background()
	by := domain.Where("fk_column_id", colID)
	counts := map[string]int{}

	lookups, err := svc.store.Lookups().List(ctx, by)
	require.NoError(t, err)
	counts["lookup"] = len(lookups)
	rollups, err := svc.store.Rollups().List(ctx, by)
	require.NoError(t, err)
	counts["rollup"] = len(rollups)
	relations, err := svc.store.Relations().List(ctx, by)
	require.NoError(t, err)
	counts["relation"] = len(relations)
	formulas, err := svc.store.Formulas().List(ctx, by)
	require.NoError(t, err)
	counts["formula"] = len(formulas)
	qrs, err := svc.store.QrCodes().List(ctx, by)
	require.NoError(t, err)
	counts["qrcode"] = len(qrs)
	barcodes, err := svc.store.Barcodes().List(ctx, by)
	require.NoError(t, err)
	counts["barcode"] = len(barcodes)
	options, err := svc.store.SelectOptions().List(ctx, by)
	require.NoError(t, err)
	counts["select"] = len(options)
	return counts
}

func TestInsertColumnRequiresModelAndUIDT(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films")

	_, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{Title: "x", UIDT: domain.UINumber}})
	require.True(t, domain.IsBadRequest(err))
	_, err = svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{FkModelID: m.ID, Title: "x"}})
	require.True(t, domain.IsBadRequest(err))
	_, err = svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{FkModelID: "md_missing", Title: "x", UIDT: domain.UINumber}})
	require.True(t, domain.IsBadRequest(err))

	dup := textColumn("Title")
	dup.FkModelID = m.ID
	_, err = svc.InsertColumn(ctx, dup)
	require.True(t, domain.IsBadRequest(err))
}

func TestColumnRequestAcceptsLegacyNames(t *testing.T) {
	var req ColumnRequest
	require.NoError(t, json.Unmarshal([]byte(`{"cn":"year","uidt":"Number","column_order":{"order":1,"view_id":"vw_1"}}`), &req))
	req.normalize()
	require.Equal(t, "year", req.ColumnName)
	require.Equal(t, "year", req.Title)
	require.Equal(t, domain.UINumber, req.UIDT)
	require.Equal(t, "vw_1", req.ColumnOrder.ViewID)
}

func TestSelectColumnOptionsFromDTXP(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films")

	col, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: m.ID, Title: "Genre", ColumnName: "genre",
		UIDT: domain.UISingleSelect, DT: "text", DTXP: `'drama','sci-fi, space',comedy`,
	}})
	require.NoError(t, err)
	opts, ok := col.ColOptions.(*domain.SelectOptions)
	require.True(t, ok)
	require.Len(t, opts.Options, 3)
	require.Equal(t, "drama", opts.Options[0].Title)
	require.Equal(t, "sci-fi, space", opts.Options[1].Title)
	require.Equal(t, "comedy", opts.Options[2].Title)
	require.Equal(t, selectColors[0], opts.Options[0].Color)

	enum, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: m.ID, Title: "Rating", ColumnName: "rating", UIDT: domain.UIMultiSelect, DT: "enum",
		ColOptions: &domain.SelectOptions{Options: []domain.SelectOption{
			{Title: "G  ", Color: "#fff"},
			{Title: "PG"},
		}},
	}})
	require.NoError(t, err)
	opts = enum.ColOptions.(*domain.SelectOptions)
	require.Equal(t, "G", opts.Options[0].Title)
	require.Equal(t, "#fff", opts.Options[0].Color)
	require.Equal(t, 2.0, *opts.Options[1].Order)
}

func TestUpdateColumnReplacesOptionRows(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films")
	title := columnByTitle(t, m, "Title")

	col, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: m.ID, Title: "Shout", UIDT: domain.UIFormula,
		ColOptions: &domain.FormulaColumn{Formula: "UPPER({{" + title.ID + "}})"},
	}})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"lookup": 0, "rollup": 0, "relation": 0, "formula": 1, "qrcode": 0, "barcode": 0, "select": 0},
		optionRowCounts(t, svc, col.ID))

	req := ColumnRequest{Column: *col}
	req.UIDT = domain.UISingleSelect
	req.DTXP = "a,b"
	req.ColOptions = nil
	updated, err := svc.UpdateColumn(ctx, col.ID, req, true)
	require.NoError(t, err)
	require.Equal(t, domain.UISingleSelect, updated.UIDT)
	require.Equal(t, map[string]int{"lookup": 0, "rollup": 0, "relation": 0, "formula": 0, "qrcode": 0, "barcode": 0, "select": 2},
		optionRowCounts(t, svc, col.ID))

	req = ColumnRequest{Column: *updated}
	req.UIDT = domain.UIFormula
	req.ColOptions = &domain.FormulaColumn{Formula: "LEN({{" + title.ID + "}})"}
	updated, err = svc.UpdateColumn(ctx, col.ID, req, true)
	require.NoError(t, err)
	f, ok := updated.ColOptions.(*domain.FormulaColumn)
	require.True(t, ok)
	require.Equal(t, "LEN({{"+title.ID+"}})", f.Formula)
	require.Equal(t, 1, optionRowCounts(t, svc, col.ID)["formula"])
	require.Equal(t, 0, optionRowCounts(t, svc, col.ID)["select"])
}

func TestUpdateColumnInvalidatesReferencingFormulas(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films")
	title := columnByTitle(t, m, "Title")

	tree := json.RawMessage(`{"type":"CallExpression","arguments":[{"type":"Identifier","name":"` + title.ID + `"}]}`)
	formula, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: m.ID, Title: "Shout", UIDT: domain.UIFormula,
		ColOptions: &domain.FormulaColumn{Formula: "UPPER({{" + title.ID + "}})", ParsedTree: tree},
	}})
	require.NoError(t, err)
	require.NotEmpty(t, formula.ColOptions.(*domain.FormulaColumn).ParsedTree)

	req := ColumnRequest{Column: *title}
	req.Title = "Name"
	_, err = svc.UpdateColumn(ctx, title.ID, req, false)
	require.NoError(t, err)
	svc.Formulas().Flush()

	got, err := svc.GetColumn(ctx, formula.ID)
	require.NoError(t, err)
	require.Empty(t, got.ColOptions.(*domain.FormulaColumn).ParsedTree)
}

func TestUpdatePrimaryColumnKeepsSinglePV(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films", textColumn("Director"), textColumn("Year"))
	director := columnByTitle(t, m, "Director")
	year := columnByTitle(t, m, "Year")

	for _, id := range []string{director.ID, year.ID, director.ID} {
		require.NoError(t, svc.UpdatePrimaryColumn(ctx, m.ID, id))

		cols, err := svc.ListColumns(ctx, m.ID, "")
		require.NoError(t, err)
		var pv []string
		for _, c := range cols {
			if c.PV {
				pv = append(pv, c.ID)
			}
		}
		require.Equal(t, []string{id}, pv)

		vcs, err := svc.ListViewColumns(ctx, m.Views[0].ID)
		require.NoError(t, err)
		require.Equal(t, id, vcs[0].FkColumnID)
		require.True(t, vcs[0].Show)
		require.Less(t, *vcs[0].Order, *vcs[1].Order)
	}

	require.True(t, domain.IsBadRequest(svc.UpdatePrimaryColumn(ctx, m.ID, "cl_missing")))
}

func TestListsOrderMissingOrdersLast(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films")

	for _, c := range []domain.Column{
		{FkModelID: m.ID, Title: "Late", UIDT: domain.UINumber},
		{FkModelID: m.ID, Title: "Early", UIDT: domain.UINumber},
	} {
		require.NoError(t, svc.store.Columns().Insert(ctx, &c))
	}
	late, err := svc.store.Columns().FindOne(ctx, domain.Where("title", "Late"))
	require.NoError(t, err)
	require.NoError(t, svc.store.Columns().Update(ctx, late.ID, map[string]any{"order": nil}))
	early, err := svc.store.Columns().FindOne(ctx, domain.Where("title", "Early"))
	require.NoError(t, err)
	require.NoError(t, svc.store.Columns().Update(ctx, early.ID, map[string]any{"order": 0.5}))
	require.NoError(t, svc.columns().resetList(ctx, m.ID))

	for n := 0; n < 2; n++ {
		cols, err := svc.ListColumns(ctx, m.ID, "")
		require.NoError(t, err)
		titles := make([]string, 0, len(cols))
		for _, c := range cols {
			titles = append(titles, c.Title)
		}
		require.Equal(t, []string{"Early", "Id", "Title", "Late"}, titles)
	}
}

func TestColumnRequestStringifiesValidateAndParsesMeta(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films")

	var req ColumnRequest
	require.NoError(t, json.Unmarshal([]byte(
		`{"title":"Mail","uidt":"Email","validate":{"func":["isEmail"]},"meta":"{\"precision\":2}"}`), &req))
	require.Equal(t, `{"func":["isEmail"]}`, req.Validate)
	require.Equal(t, 2.0, req.Meta["precision"])

	req.FkModelID = m.ID
	col, err := svc.InsertColumn(ctx, req)
	require.NoError(t, err)
	require.Equal(t, `{"func":["isEmail"]}`, col.Validate)
	require.Equal(t, 2.0, col.Meta["precision"])

	patch := ColumnRequest{Column: *col}
	require.NoError(t, json.Unmarshal([]byte(`{"validate":"{\"func\":[\"isURL\"]}","meta":{"precision":3}}`), &patch))
	require.Equal(t, `{"func":["isURL"]}`, patch.Validate)
	require.Equal(t, 3.0, patch.Meta["precision"])
	require.Equal(t, "Mail", patch.Title)

	updated, err := svc.UpdateColumn(ctx, col.ID, patch, true)
	require.NoError(t, err)
	require.Equal(t, `{"func":["isURL"]}`, updated.Validate)
	require.Equal(t, 3.0, updated.Meta["precision"])
}

func TestUpdateColumnToNonCodeTypeDropsCodeColumns(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films", textColumn("Director"))
	director := columnByTitle(t, m, "Director")

	qr, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: m.ID, Title: "QR", UIDT: domain.UIQrCode,
		ColOptions: &domain.QrCodeColumn{FkQrValueColumnID: director.ID},
	}})
	require.NoError(t, err)
	barcode, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: m.ID, Title: "Barcode", UIDT: domain.UIBarcode,
		ColOptions: &domain.BarcodeColumn{FkBarcodeValueColumnID: director.ID},
	}})
	require.NoError(t, err)

	req := ColumnRequest{Column: *director}
	req.UIDT = domain.UILongText
	_, err = svc.UpdateColumn(ctx, director.ID, req, true)
	require.NoError(t, err)
	for _, id := range []string{qr.ID, barcode.ID} {
		got, err := svc.GetColumn(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
	}

	req.UIDT = domain.UICheckbox
	updated, err := svc.UpdateColumn(ctx, director.ID, req, true)
	require.NoError(t, err)
	require.Equal(t, domain.UICheckbox, updated.UIDT)
	requireGone(t, svc, qr.ID, barcode.ID)
}

func TestUpdateColumnMovesItInOneView(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films", textColumn("Director"), textColumn("Year"))
	grid := m.Views[0].ID
	year := columnByTitle(t, m, "Year")
	second, err := svc.InsertView(ctx, ViewRequest{View: domain.View{FkModelID: m.ID, Title: "Second", Type: domain.ViewGrid}})
	require.NoError(t, err)

	req := ColumnRequest{Column: *year, ColumnOrder: &ColumnOrder{ViewID: grid, Order: 0.5}}
	_, err = svc.UpdateColumn(ctx, year.ID, req, true)
	require.NoError(t, err)

	vcs, err := svc.ListViewColumns(ctx, grid)
	require.NoError(t, err)
	require.Equal(t, year.ID, vcs[0].FkColumnID)
	require.Equal(t, 0.5, *vcs[0].Order)

	vcs, err = svc.ListViewColumns(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, year.ID, vcs[len(vcs)-1].FkColumnID)
}

func TestInsertColumnViewDirectives(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	fc := newFilmCast(t, svc)
	grid := fc.films.Views[0].ID
	second, err := svc.InsertView(ctx, ViewRequest{View: domain.View{FkModelID: fc.films.ID, Title: "Second", Type: domain.ViewGrid}})
	require.NoError(t, err)

	showIn := func(viewID, colID string) bool {
		vcs, err := svc.ListViewColumns(ctx, viewID)
		require.NoError(t, err)
		for _, vc := range vcs {
			if vc.FkColumnID == colID {
				return vc.Show
			}
		}
		t.Fatalf("column %s missing from view %s", colID, viewID)
		return false
	}

	require.True(t, showIn(grid, fc.filmActors.ID))
	require.False(t, showIn(fc.actors.Views[0].ID, fc.actorOf.ID))

	link, err := svc.InsertColumn(ctx, ColumnRequest{
		Column: domain.Column{
			FkModelID: fc.films.ID, Title: "Sequel", UIDT: domain.UILinkToAnotherRecord,
			ColOptions: &domain.LinkColumn{Type: domain.RelationBelongsTo, FkRelatedModelID: fc.films.ID},
		},
		ColumnShow:  &ColumnShow{ViewID: second.ID, Show: true},
		ColumnOrder: &ColumnOrder{ViewID: second.ID, Order: 0.5},
	})
	require.NoError(t, err)
	require.False(t, showIn(grid, link.ID))
	require.True(t, showIn(second.ID, link.ID))
	vcs, err := svc.ListViewColumns(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, link.ID, vcs[0].FkColumnID)

	mm, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: fc.films.ID, Title: "Genres", UIDT: domain.UILinks,
		ColOptions: &domain.LinkColumn{Type: domain.RelationManyToMany, FkRelatedModelID: fc.actors.ID},
	}})
	require.NoError(t, err)
	require.False(t, showIn(grid, mm.ID))
	require.False(t, showIn(second.ID, mm.ID))
}

func TestBulkInsertColumns(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	m := newFilms(t, svc, "Films")
	gallery, err := svc.InsertView(ctx, ViewRequest{View: domain.View{FkModelID: m.ID, Title: "Cards", Type: domain.ViewGallery}})
	require.NoError(t, err)

	empty, err := svc.BulkInsertColumns(ctx, m.ID, nil)
	require.NoError(t, err)
	require.Empty(t, empty)

	cols, err := svc.BulkInsertColumns(ctx, m.ID, []ColumnRequest{
		textColumn("Director"),
		{Column: domain.Column{Title: "Status", UIDT: domain.UISingleSelect, DTXP: "'draft','done'"}},
	})
	require.NoError(t, err)
	require.Len(t, cols, 4)
	require.Equal(t, []string{"Id", "Title", "Director", "Status"},
		[]string{cols[0].Title, cols[1].Title, cols[2].Title, cols[3].Title})
	require.Equal(t, 3.0, *cols[2].Order)
	require.Equal(t, 4.0, *cols[3].Order)
	require.Equal(t, 2, optionRowCounts(t, svc, cols[3].ID)["select"])

	for _, viewID := range []string{m.Views[0].ID, gallery.ID} {
		vcs, err := svc.ListViewColumns(ctx, viewID)
		require.NoError(t, err)
		require.Len(t, vcs, 4)
	}

	_, err = svc.BulkInsertColumns(ctx, m.ID, []ColumnRequest{textColumn("Director")})
	require.True(t, domain.IsBadRequest(err))
	_, err = svc.BulkInsertColumns(ctx, m.ID, []ColumnRequest{{Column: domain.Column{Title: "NoType"}}})
	require.True(t, domain.IsBadRequest(err))
	_, err = svc.BulkInsertColumns(ctx, "md_missing", []ColumnRequest{textColumn("X")})
	require.True(t, domain.IsBadRequest(err))
}
