package application

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/nocometa/internal/domain"
	"github.com/stretchr/testify/require"
)

type filmCast struct {
	films, actors       *domain.Model
	filmActors, actorOf *domain.Column
	filmID              *domain.Column
}

// newFilmCast links Films and Actors through a has-many column on Films and
// the matching belongs-to column on Actors.
func newFilmCast(t *testing.T, svc *MetaService) filmCast {
	t.Helper()
	ctx := context.Background()
	films := newFilms(t, svc, "Films")
	actors := newFilms(t, svc, "Actors", ColumnRequest{Column: domain.Column{
		Title: "FilmId", ColumnName: "film_id", UIDT: domain.UIForeignKey, DT: "integer",
		Meta: domain.Meta{"system": true},
	}})
	filmID := columnByTitle(t, actors, "FilmId")
	pk := columnByTitle(t, films, "Id")

	filmActors, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: films.ID, Title: "Actors", UIDT: domain.UILinks,
		ColOptions: &domain.LinkColumn{
			Type: domain.RelationHasMany, FkChildColumnID: filmID.ID, FkParentColumnID: pk.ID, FkRelatedModelID: actors.ID,
		},
	}})
	require.NoError(t, err)
	actorOf, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: actors.ID, Title: "Film", UIDT: domain.UILinkToAnotherRecord,
		ColOptions: &domain.LinkColumn{
			Type: domain.RelationBelongsTo, FkChildColumnID: filmID.ID, FkParentColumnID: pk.ID, FkRelatedModelID: films.ID,
		},
	}})
	require.NoError(t, err)
	return filmCast{films: films, actors: actors, filmActors: filmActors, actorOf: actorOf, filmID: filmID}
}

func requireGone(t *testing.T, svc *MetaService, ids ...string) {
	t.Helper()
	for _, id := range ids {
		col, err := svc.GetColumn(context.Background(), id)
		require.NoError(t, err)
		require.Nil(t, col, "column %s should be deleted", id)
		for kind, n := range optionRowCounts(t, svc, id) {
			require.Zero(t, n, "%s option rows of %s", kind, id)
		}
		for _, vt := range domain.ViewTypes {
			vcs, err := svc.store.ViewColumns(vt).List(context.Background(), domain.Where("fk_column_id", id))
			require.NoError(t, err)
			require.Empty(t, vcs, "%s view columns of %s", vt, id)
		}
	}
}

func TestDeleteRelationTakesRollupAndPairedRelation(t *testing.T) {
	ctx := context.Background()
	obs := &countingObserver{}
	svc := newTestService(t, WithObserver(obs))
	fc := newFilmCast(t, svc)

	rollup, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: fc.films.ID, Title: "Cast size", UIDT: domain.UIRollup,
		ColOptions: &domain.RollupColumn{
			FkRelationColumnID: fc.filmActors.ID,
			FkRollupColumnID:   columnByTitle(t, fc.actors, "Id").ID,
			RollupFunction:     "count",
		},
	}})
	require.NoError(t, err)
	lookup, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: fc.actors.ID, Title: "Film title", UIDT: domain.UILookup,
		ColOptions: &domain.LookupColumn{
			FkRelationColumnID: fc.actorOf.ID,
			FkLookupColumnID:   columnByTitle(t, fc.films, "Title").ID,
		},
	}})
	require.NoError(t, err)

	deps, err := svc.Dependents(ctx, fc.filmActors.ID)
	require.NoError(t, err)
	require.Contains(t, deps, Dependency{Kind: EdgeRelation, ColumnID: rollup.ID, UIDT: domain.UIRollup})
	require.Contains(t, deps, Dependency{Kind: EdgePairedRelation, ColumnID: fc.actorOf.ID})

	require.NoError(t, svc.DeleteColumn(ctx, fc.filmActors.ID))
	requireGone(t, svc, fc.filmActors.ID, rollup.ID, fc.actorOf.ID, lookup.ID)
	require.Equal(t, 4, obs.deleted["column"])

	fk, err := svc.GetColumn(ctx, fc.filmID.ID)
	require.NoError(t, err)
	require.NotNil(t, fk)

	require.NoError(t, svc.DeleteColumn(ctx, fc.filmActors.ID))
	require.Equal(t, 4, obs.deleted["column"])
}

func TestDeleteForeignKeyTakesBothRelationSides(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	fc := newFilmCast(t, svc)

	deps, err := svc.Dependents(ctx, fc.filmID.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []Dependency{
		{Kind: EdgeForeignSide, ColumnID: fc.filmActors.ID},
		{Kind: EdgeForeignSide, ColumnID: fc.actorOf.ID},
	}, deps)

	require.NoError(t, svc.DeleteColumn(ctx, fc.filmID.ID))
	requireGone(t, svc, fc.filmID.ID, fc.filmActors.ID, fc.actorOf.ID)

	cols, err := svc.ListColumns(ctx, fc.films.ID, "")
	require.NoError(t, err)
	require.Len(t, cols, 2)
}

func TestDeleteLookupTarget(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	fc := newFilmCast(t, svc)
	title := columnByTitle(t, fc.films, "Title")

	lookup, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: fc.actors.ID, Title: "Film title", UIDT: domain.UILookup,
		ColOptions: &domain.LookupColumn{FkRelationColumnID: fc.actorOf.ID, FkLookupColumnID: title.ID},
	}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteColumn(ctx, title.ID))
	requireGone(t, svc, title.ID, lookup.ID)

	for _, id := range []string{fc.filmActors.ID, fc.actorOf.ID} {
		col, err := svc.GetColumn(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, col)
	}
}

func TestDeleteColumnCascadesToViewState(t *testing.T) {
	ctx := context.Background()
	obs := &countingObserver{}
	svc := newTestService(t, WithObserver(obs))
	m := newFilms(t, svc, "Films", textColumn("Director"))
	director := columnByTitle(t, m, "Director")
	title := columnByTitle(t, m, "Title")
	grid := m.Views[0]

	qr, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: m.ID, Title: "QR", UIDT: domain.UIQrCode,
		ColOptions: &domain.QrCodeColumn{FkQrValueColumnID: director.ID},
	}})
	require.NoError(t, err)
	barcode, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: m.ID, Title: "Barcode", UIDT: domain.UIBarcode,
		ColOptions: &domain.BarcodeColumn{FkBarcodeValueColumnID: director.ID, BarcodeFormat: "CODE128"},
	}})
	require.NoError(t, err)
	formula, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
		FkModelID: m.ID, Title: "Shout", UIDT: domain.UIFormula,
		ColOptions: &domain.FormulaColumn{Formula: "UPPER({{" + director.ID + "}})"},
	}})
	require.NoError(t, err)
	gallery, err := svc.InsertView(ctx, ViewRequest{View: domain.View{FkModelID: m.ID, Title: "Cards", Type: domain.ViewGallery}})
	require.NoError(t, err)

	_, err = svc.InsertSort(ctx, SortRequest{Sort: domain.Sort{FkViewID: grid.ID, FkColumnID: director.ID}})
	require.NoError(t, err)
	keep, err := svc.InsertSort(ctx, SortRequest{Sort: domain.Sort{FkViewID: grid.ID, FkColumnID: title.ID}})
	require.NoError(t, err)
	_, err = svc.InsertFilter(ctx, domain.Filter{FkViewID: grid.ID, FkColumnID: director.ID, ComparisonOp: "eq", Value: "Nolan"})
	require.NoError(t, err)
	group, err := svc.InsertFilter(ctx, domain.Filter{FkViewID: grid.ID, IsGroup: true, Children: []domain.Filter{
		{FkColumnID: director.ID, ComparisonOp: "neq", Value: "Bay"},
	}})
	require.NoError(t, err)

	deps, err := svc.Dependents(ctx, director.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []Dependency{
		{Kind: EdgeValueSource, ColumnID: qr.ID, UIDT: domain.UIQrCode},
		{Kind: EdgeValueSource, ColumnID: barcode.ID, UIDT: domain.UIBarcode},
		{Kind: EdgeFormula, ColumnID: formula.ID, UIDT: domain.UIFormula},
	}, deps)

	require.NoError(t, svc.DeleteColumn(ctx, director.ID))
	requireGone(t, svc, director.ID, qr.ID, barcode.ID)
	require.Equal(t, 3, obs.deleted["column"])
	require.Equal(t, 6, obs.deleted["view_column"])

	sorts, err := svc.ListSorts(ctx, grid.ID)
	require.NoError(t, err)
	require.Len(t, sorts, 1)
	require.Equal(t, keep.ID, sorts[0].ID)

	filters, err := svc.ListFilters(ctx, grid.ID)
	require.NoError(t, err)
	require.Len(t, filters, 1)
	require.Equal(t, group.ID, filters[0].ID)
	require.Len(t, filters[0].Children, 1)

	broken, err := svc.GetColumn(ctx, formula.ID)
	require.NoError(t, err)
	require.NotNil(t, broken)
	require.Contains(t, broken.ColOptions.(*domain.FormulaColumn).Error, "Director")

	vcs, err := svc.ListViewColumns(ctx, gallery.ID)
	require.NoError(t, err)
	for _, vc := range vcs {
		require.NotEqual(t, director.ID, vc.FkColumnID)
	}
}

func TestDeleteMissingColumnIsNoop(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.DeleteColumn(context.Background(), "cl_missing"))
	require.NoError(t, svc.DeleteColumn(context.Background(), ""))
}

func TestDeleteManyToManyTakesJunctionModel(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	films := newFilms(t, svc, "Films")
	actors := newFilms(t, svc, "Actors")
	junction, err := svc.InsertModel(ctx, ModelRequest{
		Model: domain.Model{BaseID: "p1", Title: "FilmActor", TableName: "film_actor", MM: true},
		Columns: []ColumnRequest{
			{Column: domain.Column{Title: "FilmId", ColumnName: "film_id", UIDT: domain.UIForeignKey, Meta: domain.Meta{"system": true}}},
			{Column: domain.Column{Title: "ActorId", ColumnName: "actor_id", UIDT: domain.UIForeignKey, Meta: domain.Meta{"system": true}}},
		},
	})
	require.NoError(t, err)

	link := func(owner, related *domain.Model, title string) *domain.Column {
		col, err := svc.InsertColumn(ctx, ColumnRequest{Column: domain.Column{
			FkModelID: owner.ID, Title: title, UIDT: domain.UILinks,
			ColOptions: &domain.LinkColumn{
				Type: domain.RelationManyToMany, FkMMModelID: junction.ID, FkRelatedModelID: related.ID,
			},
		}})
		require.NoError(t, err)
		return col
	}
	filmActors := link(films, actors, "Actors")
	actorFilms := link(actors, films, "Films")

	deps, err := svc.Dependents(ctx, filmActors.ID)
	require.NoError(t, err)
	require.Contains(t, deps, Dependency{Kind: EdgePairedRelation, ColumnID: actorFilms.ID})

	require.NoError(t, svc.DeleteColumn(ctx, filmActors.ID))
	requireGone(t, svc, filmActors.ID, actorFilms.ID)
	for _, c := range junction.Columns {
		requireGone(t, svc, c.ID)
	}
	got, err := svc.GetModel(ctx, junction.ID)
	require.NoError(t, err)
	require.Nil(t, got)
	views, err := svc.ListViews(ctx, junction.ID)
	require.NoError(t, err)
	require.Empty(t, views)

	for _, id := range []string{films.ID, actors.ID} {
		m, err := svc.GetModel(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, m)
	}
	require.NoError(t, svc.DeleteColumn(ctx, filmActors.ID))
}
